// SPDX-License-Identifier: MPL-2.0

// Package envreg maps environment kinds to the factories that construct them.
package envreg

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
)

// DefaultPackageKind is the kind of package environments that name none.
const DefaultPackageKind = "builder"

var (
	// ErrKindConflict is returned when two owners register the same kind.
	ErrKindConflict = errors.New("environment kind registered twice")
	// ErrNoMatchingKind is returned when no kind fits an environment.
	ErrNoMatchingKind = errors.New("no matching environment kind")
)

type (
	// Factory constructs one environment.
	Factory func(spec environment.Spec) (environment.Environment, error)

	// Kind is a registered environment kind.
	Kind struct {
		Name    string
		Role    environment.Role
		Owner   string
		Factory Factory
	}

	// Resolver answers which kind an environment without runner uses.
	Resolver interface {
		ResolveKind(name string, conf *confset.Store) (string, bool, error)
	}

	// Registry holds the kinds registered for one invocation.
	Registry struct {
		mu    sync.RWMutex
		kinds map[string]*Kind
		order []string
	}

	// KindConflictError names both owners of a kind.
	KindConflictError struct {
		Kind     string
		Existing string
		Owner    string
	}

	// NoMatchingKindError explains why an environment has no kind.
	NoMatchingKindError struct {
		Env  string
		Kind string
		Role environment.Role
		// Actual is the role of Kind when it exists with another role.
		Actual environment.Role
	}
)

func (e *KindConflictError) Error() string {
	return fmt.Sprintf("kind %q registered by both %q and %q", e.Kind, e.Existing, e.Owner)
}

func (e *KindConflictError) Unwrap() error { return ErrKindConflict }

func (e *NoMatchingKindError) Error() string {
	if e.Actual != "" {
		return fmt.Sprintf("[%s] kind %q builds %s environments, need %s", e.Env, e.Kind, e.Actual, e.Role)
	}
	return fmt.Sprintf("[%s] no %s environment kind named %q", e.Env, e.Role, e.Kind)
}

func (e *NoMatchingKindError) Unwrap() error { return ErrNoMatchingKind }

// New returns an empty registry.
func New() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// RegisterKind adds a kind. The same owner registering the same kind again
// replaces its factory.
func (r *Registry) RegisterKind(name string, role environment.Role, factory Factory, owner string) error {
	if name == "" || factory == nil || !role.Valid() {
		return fmt.Errorf("register kind %q: name, valid role and factory are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.kinds[name]; ok {
		if existing.Owner != owner {
			return &KindConflictError{Kind: name, Existing: existing.Owner, Owner: owner}
		}
		existing.Role, existing.Factory = role, factory
		return nil
	}
	r.kinds[name] = &Kind{Name: name, Role: role, Owner: owner, Factory: factory}
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the kind called name.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[name]
	return k, ok
}

// Kinds returns the registered kinds sorted by role then name.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.kinds[name])
	}
	slices.SortFunc(out, func(a, b Kind) int {
		if c := strings.Compare(string(a.Role), string(b.Role)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// ResolveKindFor picks the kind of environment name: an explicit runner,
// else the first resolver answer, else the role default. The result must be
// registered for role.
func (r *Registry) ResolveKindFor(name string, conf *confset.Store, role environment.Role, resolver Resolver) (*Kind, error) {
	kind, err := r.kindName(name, conf, role, resolver)
	if err != nil {
		return nil, err
	}
	k, ok := r.Lookup(kind)
	if !ok {
		return nil, &NoMatchingKindError{Env: name, Kind: kind, Role: role}
	}
	if k.Role != role {
		return nil, &NoMatchingKindError{Env: name, Kind: kind, Role: role, Actual: k.Role}
	}
	return k, nil
}

func (r *Registry) kindName(name string, conf *confset.Store, role environment.Role, resolver Resolver) (string, error) {
	if err := environment.DeclareRunner(conf); err != nil {
		return "", err
	}
	runner, err := confset.Get[string](conf, environment.KeyRunner)
	if err != nil {
		return "", err
	}
	if runner != "" {
		return runner, nil
	}
	if resolver != nil {
		kind, ok, err := resolver.ResolveKind(name, conf)
		if err != nil {
			return "", err
		}
		if ok {
			return kind, nil
		}
	}
	if role == environment.RolePackage {
		return DefaultPackageKind, nil
	}
	return confset.Get[string](conf.Config().Core(), environment.CoreDefaultRunner)
}

// New constructs environment name with its resolved kind.
func (k *Kind) New(spec environment.Spec) (environment.Environment, error) {
	spec.Kind, spec.Role = k.Name, k.Role
	env, err := k.Factory(spec)
	if err != nil {
		return nil, fmt.Errorf("[%s] construct %s environment: %w", spec.Name, k.Name, err)
	}
	return env, nil
}
