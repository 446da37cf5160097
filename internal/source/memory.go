// SPDX-License-Identifier: MPL-2.0

package source

import "sync"

// Memory is a mutable in-memory Source.
type Memory struct {
	path string

	mu       sync.RWMutex
	order    []string
	sections map[string]*Section
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{sections: make(map[string]*Section)}
}

// WithPath records the location the values were read from.
func (m *Memory) WithPath(path string) *Memory {
	m.path = path
	return m
}

// Path implements Source.
func (m *Memory) Path() string { return m.path }

// Sections implements Source.
func (m *Memory) Sections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Section implements Source.
func (m *Memory) Section(name string) (*Section, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sections[name]
	return s, ok
}

// Ensure returns the named section, creating it when missing.
func (m *Memory) Ensure(name string) *Section {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sections[name]; ok {
		return s
	}
	s := NewSection(name)
	m.sections[name] = s
	m.order = append(m.order, name)
	return s
}

// Set stores key=value in the named section.
func (m *Memory) Set(section, key, value string) *Memory {
	m.Ensure(section).Set(key, value)
	return m
}

// SetEnv stores key=value in the section of environment env.
func (m *Memory) SetEnv(env, key, value string) *Memory {
	return m.Set(EnvSection(env), key, value)
}

// SetCore stores key=value in the core section.
func (m *Memory) SetCore(key, value string) *Memory {
	return m.Set(CoreSection, key, value)
}
