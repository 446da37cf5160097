// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"fmt"
	"slices"
	"sync"

	"github.com/envrun/envrun/internal/source"
)

type (
	// Store holds the declarations and memoized values of one section.
	//
	// Values are computed on first Get and never recomputed; failures are not
	// cached. The cache is guarded by a mutex that is never held while a value
	// is being resolved, so substitutions may re-enter the same store.
	Store struct {
		cfg     *Config
		name    string
		section string
		isCore  bool
		factors []string

		mu    sync.Mutex
		decls []*Declaration
		cache map[string]any
		used  map[string]bool
	}

	// View is a store seen from within one resolution. Reads through a view
	// take part in the cycle detection of the resolution that created it.
	View struct {
		store *Store
		res   *resolution
	}

	// resolution tracks the section:key pairs currently being computed.
	resolution struct {
		stack []string
	}
)

func newStore(cfg *Config, name, section string, isCore bool, factors []string) *Store {
	return &Store{
		cfg:     cfg,
		name:    name,
		section: section,
		isCore:  isCore,
		factors: factors,
		cache:   make(map[string]any),
		used:    make(map[string]bool),
	}
}

// Name returns "envrun" for the core store or the environment name.
func (s *Store) Name() string { return s.name }

// Section returns the source section backing the store.
func (s *Store) Section() string { return s.section }

// IsCore reports whether this is the core store.
func (s *Store) IsCore() bool { return s.isCore }

// Factors returns the environment's name factors.
func (s *Store) Factors() []string { return s.factors }

// Config returns the directory the store belongs to.
func (s *Store) Config() *Config { return s.cfg }

// Declare registers a key. Redeclaring with the same type merges aliases;
// a different type fails unless the existing declaration is Redeclarable and
// has not been resolved yet.
func (s *Store) Declare(d Declaration) error {
	if len(d.Keys) == 0 {
		return fmt.Errorf("[%s] declaration without keys", s.name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.decls {
		if !overlaps(existing, &d) {
			continue
		}
		if existing.Type == d.Type {
			for _, k := range d.Keys {
				if !existing.matches(k) {
					existing.Keys = append(existing.Keys, k)
				}
			}
			return nil
		}
		if _, resolved := s.cache[existing.Primary()]; existing.Redeclarable && !resolved {
			decl := d
			s.decls[i] = &decl
			return nil
		}
		return &DuplicateDeclarationError{
			Section:   s.name,
			Key:       existing.Primary(),
			Existing:  existing.Type,
			Requested: d.Type,
		}
	}
	decl := d
	s.decls = append(s.decls, &decl)
	return nil
}

// MustDeclare is Declare for built-in keys whose declarations cannot conflict.
func (s *Store) MustDeclare(d Declaration) {
	if err := s.Declare(d); err != nil {
		panic(err)
	}
}

// Declaration returns the declaration matching key, if any.
func (s *Store) Declaration(key string) (*Declaration, bool) {
	d := s.declaration(key)
	if d == nil {
		return nil, false
	}
	copied := *d
	return &copied, true
}

// Get resolves key. See the package documentation for the precedence chain.
func (s *Store) Get(key string) (any, error) {
	return s.resolve(key, &resolution{})
}

// Get resolves key and asserts its Go type.
func Get[T any](s *Store, key string) (T, error) {
	return as[T](s.name, key)(s.Get(key))
}

// Contains reports whether key is declared or present in the store's own section.
func (s *Store) Contains(key string) bool {
	if s.declaration(key) != nil {
		return true
	}
	_, _, ok := s.ownRaw([]string{key}, false)
	return ok
}

// PrimaryKey maps an alias to its canonical name. Unknown keys are returned unchanged.
func (s *Store) PrimaryKey(key string) string {
	if d := s.declaration(key); d != nil {
		return d.Primary()
	}
	return key
}

// Keys lists declared keys in declaration order, followed by raw keys of the
// store's own section that no declaration claims.
func (s *Store) Keys() []string {
	s.mu.Lock()
	var keys []string
	for _, d := range s.decls {
		keys = append(keys, d.Primary())
	}
	decls := slices.Clone(s.decls)
	s.mu.Unlock()

	if section, ok := s.cfg.src.Section(s.section); ok {
		for _, raw := range section.Keys() {
			claimed := false
			for _, d := range decls {
				if d.matches(raw) {
					claimed = true
					break
				}
			}
			if !claimed {
				keys = append(keys, raw)
			}
		}
	}
	return keys
}

// Defined reports whether key is set explicitly for this section, either in
// its own raw section or by an override targeting it.
func (s *Store) Defined(key string) bool {
	keys := []string{key}
	if d := s.declaration(key); d != nil {
		keys = d.Keys
	}
	if _, _, ok := s.ownRaw(keys, false); ok {
		return true
	}
	for _, o := range s.cfg.overrides {
		if o.Section == s.name && matchesAny(keys, o.Key) {
			return true
		}
	}
	return false
}

// Unused lists raw keys of the store's own section that were never read.
func (s *Store) Unused() []string {
	section, ok := s.cfg.src.Section(s.section)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, k := range section.Keys() {
		if !s.used[normalizeKey(k)] {
			out = append(out, k)
		}
	}
	return out
}

func (s *Store) declaration(key string) *Declaration {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decls {
		if d.matches(key) {
			return d
		}
	}
	return nil
}

func (s *Store) resolve(key string, res *resolution) (any, error) {
	decl := s.declaration(key)
	if decl == nil {
		return s.resolveUndeclared(key, res)
	}
	primary := decl.Primary()
	if v, ok := s.cached(primary); ok {
		return v, nil
	}
	if err := res.enter(s.name, primary); err != nil {
		return nil, err
	}
	defer res.leave()

	v, err := s.compute(decl, res)
	if err != nil {
		return nil, err
	}
	return s.memoize(primary, v), nil
}

func (s *Store) compute(decl *Declaration, res *resolution) (any, error) {
	raw, found, err := s.rawValue(decl.Keys, decl.AllowCoreFallback, res)
	if err != nil {
		return nil, err
	}
	if found {
		v, err := coerce(raw, decl.Type, s.cfg.root)
		if err != nil {
			return nil, &TypeCoercionError{Section: s.name, Key: decl.Primary(), Raw: raw, Target: decl.Type, Err: err}
		}
		return v, nil
	}
	switch {
	case decl.DefaultFunc != nil:
		return decl.DefaultFunc(View{store: s, res: res})
	case decl.Default != nil:
		return decl.Default, nil
	default:
		return nil, &MissingValueError{Section: s.name, Key: decl.Primary()}
	}
}

// resolveUndeclared returns the substituted raw string of a key nobody declared.
func (s *Store) resolveUndeclared(key string, res *resolution) (any, error) {
	if err := res.enter(s.name, key); err != nil {
		return nil, err
	}
	defer res.leave()

	raw, found, err := s.rawValue([]string{key}, false, res)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &MissingValueError{Section: s.name, Key: key}
	}
	return raw, nil
}

// rawValue applies the precedence chain and returns the substituted raw
// string: override, own section, shared env defaults, core fallback.
func (s *Store) rawValue(keys []string, allowCore bool, res *resolution) (string, bool, error) {
	raw, _, found := s.ownRaw(keys, true)
	owner := s
	if !found && !s.isCore {
		raw, found = s.sectionRaw(source.EnvDefaultsSection, keys)
	}
	if !found && !s.isCore && allowCore {
		if coreRaw, ok := s.cfg.core.overriddenRaw(keys); ok {
			raw, found, owner = coreRaw, true, s.cfg.core
		}
	}
	for _, o := range s.cfg.overrides {
		if !o.appliesTo(s.name) || !matchesAny(keys, o.Key) {
			continue
		}
		if owner != s && o.Section == "" {
			// already applied while reading the core section
			continue
		}
		if o.Append && found {
			raw = raw + "\n" + o.Value
		} else {
			raw = o.Value
		}
		found, owner = true, s
	}
	if !found {
		return "", false, nil
	}
	if !owner.isCore {
		raw = filterFactors(raw, owner.factors)
	}
	expanded, err := owner.expand(raw, keys[0], res)
	if err != nil {
		return "", false, err
	}
	return expanded, true, nil
}

// overriddenRaw reads the store's own section with its overrides applied, unsubstituted.
func (s *Store) overriddenRaw(keys []string) (string, bool) {
	raw, _, found := s.ownRaw(keys, true)
	for _, o := range s.cfg.overrides {
		if !o.appliesTo(s.name) || !matchesAny(keys, o.Key) {
			continue
		}
		if o.Append && found {
			raw = raw + "\n" + o.Value
		} else {
			raw = o.Value
		}
		found = true
	}
	return raw, found
}

// ownRaw looks keys up in the store's own section, optionally marking the hit as used.
func (s *Store) ownRaw(keys []string, markUsed bool) (string, string, bool) {
	section, ok := s.cfg.src.Section(s.section)
	if !ok {
		return "", "", false
	}
	for _, rawKey := range section.Keys() {
		if !matchesAny(keys, rawKey) {
			continue
		}
		v, _ := section.Get(rawKey)
		if markUsed {
			s.mu.Lock()
			s.used[normalizeKey(rawKey)] = true
			s.mu.Unlock()
		}
		return v, rawKey, true
	}
	return "", "", false
}

func (s *Store) sectionRaw(name string, keys []string) (string, bool) {
	section, ok := s.cfg.src.Section(name)
	if !ok {
		return "", false
	}
	for _, rawKey := range section.Keys() {
		if matchesAny(keys, rawKey) {
			v, _ := section.Get(rawKey)
			return v, true
		}
	}
	return "", false
}

func (s *Store) cached(primary string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[primary]
	return v, ok
}

// memoize stores v unless another goroutine won the race, in which case the
// first stored value is returned.
func (s *Store) memoize(primary string, v any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache[primary]; ok {
		return existing
	}
	s.cache[primary] = v
	return v
}

// Name returns the name of the viewed store.
func (v View) Name() string { return v.store.name }

// Get resolves key within the current resolution.
func (v View) Get(key string) (any, error) { return v.store.resolve(key, v.res) }

// Core returns a view of the core store sharing the current resolution.
func (v View) Core() View { return View{store: v.store.cfg.core, res: v.res} }

// Env returns a view of another environment's store sharing the current resolution.
func (v View) Env(name string) View { return View{store: v.store.cfg.Env(name), res: v.res} }

// ViewGet resolves key through a view and asserts its Go type.
func ViewGet[T any](v View, key string) (T, error) {
	return as[T](v.store.name, key)(v.Get(key))
}

func as[T any](section, key string) func(any, error) (T, error) {
	return func(v any, err error) (T, error) {
		var zero T
		if err != nil {
			return zero, err
		}
		typed, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("[%s] %s: value has type %T, not %T", section, key, v, zero)
		}
		return typed, nil
	}
}

func (r *resolution) enter(section, key string) error {
	id := section + ":" + key
	if idx := slices.Index(r.stack, id); idx >= 0 {
		chain := append(slices.Clone(r.stack[idx:]), id)
		return &UnresolvedSubstitutionError{Section: section, Key: key, Chain: chain}
	}
	r.stack = append(r.stack, id)
	return nil
}

func (r *resolution) leave() {
	r.stack = r.stack[:len(r.stack)-1]
}

func overlaps(a, b *Declaration) bool {
	for _, k := range b.Keys {
		if a.matches(k) {
			return true
		}
	}
	return false
}

func matchesAny(keys []string, candidate string) bool {
	n := normalizeKey(candidate)
	for _, k := range keys {
		if normalizeKey(k) == n {
			return true
		}
	}
	return false
}
