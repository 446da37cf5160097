// SPDX-License-Identifier: MPL-2.0

package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
	"github.com/envrun/envrun/internal/execute"

	"github.com/spf13/pflag"
)

// Registry is the ordered plugin list of one invocation.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	frozen  bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register appends p. Registering the same plugin again is a no-op; a
// different plugin with an already registered name is rejected.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register %q: %w", p.Name(), ErrRegistryFrozen)
	}
	for _, existing := range r.plugins {
		if existing.Name() != p.Name() {
			continue
		}
		if samePlugin(existing, p) {
			return nil
		}
		return fmt.Errorf("register %q: %w", p.Name(), ErrDuplicatePlugin)
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// samePlugin reports whether a and b are the same plugin. Values of
// non-comparable types are compared structurally.
func samePlugin(a, b Plugin) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Unregister removes the plugin called name and reports whether it was present.
func (r *Registry) Unregister(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return false, fmt.Errorf("unregister %q: %w", name, ErrRegistryFrozen)
	}
	idx := slices.IndexFunc(r.plugins, func(p Plugin) bool { return p.Name() == name })
	if idx < 0 {
		return false, nil
	}
	r.plugins = slices.Delete(r.plugins, idx, idx+1)
	return true, nil
}

// Reset removes every plugin and unfreezes the registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = nil
	r.frozen = false
}

// Freeze rejects further Register and Unregister calls.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Plugins returns the plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.plugins)
}

// Lookup returns the plugin called name.
func (r *Registry) Lookup(name string) (Plugin, bool) {
	for _, p := range r.Plugins() {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// CheckPending validates the points declared by every Declarer.
func (r *Registry) CheckPending() error {
	var errs []error
	for _, p := range r.Plugins() {
		d, ok := p.(Declarer)
		if !ok {
			continue
		}
		for _, point := range d.Hooks() {
			switch {
			case !point.Known():
				errs = append(errs, &UnknownExtensionPointError{Plugin: p.Name(), Point: point})
			case !Implements(p, point):
				errs = append(errs, &UnknownExtensionPointError{Plugin: p.Name(), Point: point, NotImplemented: true})
			}
		}
	}
	return errors.Join(errs...)
}

// Broadcast calls fn for every plugin implementing P, in registration order.
// Every implementer is called; their errors are joined.
func Broadcast[P any](r *Registry, point Point, fn func(P) error) error {
	var errs []error
	for _, p := range r.Plugins() {
		impl, ok := p.(P)
		if !ok {
			continue
		}
		if err := fn(impl); err != nil {
			errs = append(errs, &PluginError{Plugin: p.Name(), Point: point, Err: err})
		}
	}
	return errors.Join(errs...)
}

// FirstResult calls fn for plugins implementing P in registration order and
// returns the first answer. With required set, no answer is a NoResponderError.
func FirstResult[P, R any](r *Registry, point Point, key string, required bool, fn func(P) (R, bool, error)) (R, bool, error) {
	var zero R
	for _, p := range r.Plugins() {
		impl, ok := p.(P)
		if !ok {
			continue
		}
		res, answered, err := fn(impl)
		if err != nil {
			return zero, false, &PluginError{Plugin: p.Name(), Point: point, Err: err}
		}
		if answered {
			return res, true, nil
		}
	}
	if required {
		return zero, false, &NoResponderError{Point: point, Key: key}
	}
	return zero, false, nil
}

// AddOptions lets every OptionContributor add flags.
func (r *Registry) AddOptions(flags *pflag.FlagSet) {
	_ = Broadcast(r, PointAddOption, func(p OptionContributor) error {
		p.AddOptions(flags)
		return nil
	})
}

// AddCoreConfig lets every CoreConfigContributor declare core keys.
func (r *Registry) AddCoreConfig(core *confset.Store) error {
	return Broadcast(r, PointAddCoreConfig, func(p CoreConfigContributor) error {
		return p.AddCoreConfig(core)
	})
}

// AddEnvConfig lets every EnvConfigContributor declare keys of env.
func (r *Registry) AddEnvConfig(env environment.Environment) error {
	return Broadcast(r, PointAddEnvConfig, func(p EnvConfigContributor) error {
		return p.AddEnvConfig(env)
	})
}

// RegisterKinds lets every KindRegistrar register its kinds.
func (r *Registry) RegisterKinds(kinds *envreg.Registry) error {
	return Broadcast(r, PointRegisterEnvKinds, func(p KindRegistrar) error {
		return p.RegisterEnvKinds(kinds)
	})
}

// ResolveKind asks KindResolvers for the kind of the environment name. It
// satisfies envreg.Resolver.
func (r *Registry) ResolveKind(name string, conf *confset.Store) (string, bool, error) {
	return FirstResult(r, PointResolveEnvKind, name, false, func(p KindResolver) (string, bool, error) {
		kind, ok := p.ResolveEnvKind(name, conf)
		return kind, ok && kind != "", nil
	})
}

// BeforeRunCommands notifies every BeforeRunObserver.
func (r *Registry) BeforeRunCommands(ctx context.Context, env environment.Environment) {
	ctxlog.FromContext(ctx).Debug("dispatch", slog.String("point", string(PointBeforeRunCommands)))
	_ = Broadcast(r, PointBeforeRunCommands, func(p BeforeRunObserver) error {
		p.BeforeRunCommands(ctx, env)
		return nil
	})
}

// AfterRunCommands notifies every AfterRunObserver.
func (r *Registry) AfterRunCommands(ctx context.Context, env environment.Environment, exitCode int, results []*execute.Result) {
	ctxlog.FromContext(ctx).Debug("dispatch", slog.String("point", string(PointAfterRunCommands)), slog.Int("exit_code", exitCode))
	_ = Broadcast(r, PointAfterRunCommands, func(p AfterRunObserver) error {
		p.AfterRunCommands(ctx, env, exitCode, results)
		return nil
	})
}
