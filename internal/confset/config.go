// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"os"
	"sync"

	"github.com/envrun/envrun/internal/source"
)

type (
	// Config is the directory of configuration stores for one run: the core
	// store plus one store per environment, all reading the same source and
	// overrides.
	Config struct {
		src       source.Source
		overrides []Override
		root      string
		posargs   []string
		hasPos    bool
		lookupEnv func(string) (string, bool)

		mu   sync.Mutex
		core *Store
		envs map[string]*Store
	}

	// Option configures a Config.
	Option func(*Config)
)

// WithOverrides sets the invocation-time overrides.
func WithOverrides(overrides []Override) Option {
	return func(c *Config) { c.overrides = append(c.overrides, overrides...) }
}

// WithRoot sets the directory relative paths are anchored at.
func WithRoot(root string) Option {
	return func(c *Config) { c.root = root }
}

// WithPosArgs sets the positional arguments substituted for {posargs}.
func WithPosArgs(args []string) Option {
	return func(c *Config) {
		c.posargs = args
		c.hasPos = true
	}
}

// WithLookupEnv replaces os.LookupEnv for {env:NAME} substitutions.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(c *Config) { c.lookupEnv = fn }
}

// NewConfig creates the store directory for src.
func NewConfig(src source.Source, opts ...Option) *Config {
	c := &Config{
		src:       src,
		lookupEnv: os.LookupEnv,
		envs:      make(map[string]*Store),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.core = newStore(c, source.CoreSection, source.CoreSection, true, nil)
	return c
}

// Source returns the backing source.
func (c *Config) Source() source.Source { return c.src }

// Root returns the directory relative paths are anchored at.
func (c *Config) Root() string { return c.root }

// Overrides returns the invocation-time overrides.
func (c *Config) Overrides() []Override {
	out := make([]Override, len(c.overrides))
	copy(out, c.overrides)
	return out
}

// PosArgs returns the positional arguments and whether any were given.
func (c *Config) PosArgs() ([]string, bool) { return c.posargs, c.hasPos }

// Core returns the core store.
func (c *Config) Core() *Store { return c.core }

// Env returns the store of the named environment, creating it on first use.
func (c *Config) Env(name string) *Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.envs[name]; ok {
		return s
	}
	s := newStore(c, name, source.EnvSection(name), false, Factors(name))
	c.envs[name] = s
	return s
}

// HasEnv reports whether a store was already created for name.
func (c *Config) HasEnv(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.envs[name]
	return ok
}

// EnvNames lists environments defined in the source, in source order.
func (c *Config) EnvNames() []string {
	return source.EnvNames(c.src)
}

// storeFor resolves a substitution section qualifier.
func (c *Config) storeFor(section string) *Store {
	if section == source.CoreSection {
		return c.core
	}
	return c.Env(section)
}
