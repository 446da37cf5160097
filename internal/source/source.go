// SPDX-License-Identifier: MPL-2.0

package source

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	// CoreSection is the name of the shared core section.
	CoreSection = "envrun"
	// EnvDefaultsSection holds values shared by every environment section.
	EnvDefaultsSection = "env"
	// EnvSectionPrefix prefixes the section of a single environment.
	EnvSectionPrefix = "env:"
)

type (
	// Source exposes the raw sections of a project configuration.
	// The core never parses the backing file format itself.
	Source interface {
		// Path identifies where the source was read from (empty for in-memory sources).
		Path() string
		// Sections lists section names in source order.
		Sections() []string
		// Section returns the named section, if present.
		Section(name string) (*Section, bool)
	}

	// Section is an ordered mapping from raw key name to raw string value.
	// It is safe for concurrent reads and writes.
	Section struct {
		name string

		mu     sync.RWMutex
		keys   []string
		values map[string]string
	}
)

// NewSection creates an empty section.
func NewSection(name string) *Section {
	return &Section{name: name, values: make(map[string]string)}
}

// EnvSection returns the section name of the environment called env.
func EnvSection(env string) string {
	return EnvSectionPrefix + env
}

// EnvName extracts the environment name from an environment section name.
func EnvName(section string) (string, bool) {
	if !strings.HasPrefix(section, EnvSectionPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(section, EnvSectionPrefix)
	return name, name != ""
}

// EnvNames lists the environments defined by src, in source order.
func EnvNames(src Source) []string {
	var names []string
	for _, section := range src.Sections() {
		if name, ok := EnvName(section); ok {
			names = append(names, name)
		}
	}
	return names
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// Keys returns the raw keys in source order.
func (s *Section) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the raw value stored under key.
func (s *Section) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a raw value, appending the key when it is new.
func (s *Section) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Len returns the number of raw keys.
func (s *Section) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// rawString renders a decoded scalar or list as the raw string form the
// configuration layer expects: lists are newline-joined.
func rawString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case []any:
		parts := make([]string, 0, len(val))
		for i, item := range val {
			s, err := rawString(item)
			if err != nil {
				return "", fmt.Errorf("item %d: %w", i, err)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n"), nil
	case []string:
		return strings.Join(val, "\n"), nil
	case map[string]any:
		return "", fmt.Errorf("nested table is not a valid value")
	default:
		return fmt.Sprint(val), nil
	}
}
