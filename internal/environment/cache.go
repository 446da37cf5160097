// SPDX-License-Identifier: MPL-2.0

package environment

import "sync"

type (
	// InstallCache remembers, per environment and install category, the
	// fingerprint of the last dependency list installed and its outcome.
	InstallCache struct {
		mu      sync.Mutex
		entries map[cacheKey]cacheEntry
	}

	cacheKey struct {
		env      string
		category string
	}

	cacheEntry struct {
		fingerprint uint64
		err         error
	}
)

// NewInstallCache returns an empty cache.
func NewInstallCache() *InstallCache {
	return &InstallCache{entries: make(map[cacheKey]cacheEntry)}
}

// Lookup returns the recorded outcome when fingerprint matches the last
// install of category in env.
func (c *InstallCache) Lookup(env, category string, fingerprint uint64) (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{env, category}]
	if !ok || e.fingerprint != fingerprint {
		return nil, false
	}
	return e.err, true
}

// Store records the outcome of installing fingerprint.
func (c *InstallCache) Store(env, category string, fingerprint uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{env, category}] = cacheEntry{fingerprint: fingerprint, err: err}
}
