// SPDX-License-Identifier: MPL-2.0

package confset

import "strings"

type (
	// DefaultFunc computes a default lazily. It may read other keys through view;
	// those reads take part in cycle detection.
	DefaultFunc func(view View) (any, error)

	// Declaration registers one key of a section.
	Declaration struct {
		// Keys lists the accepted names; the first one is the primary name.
		Keys []string
		Type ValueType
		// Default is used when no value is configured. Nil means no default
		// unless DefaultFunc is set.
		Default     any
		DefaultFunc DefaultFunc
		Desc        string
		// AllowCoreFallback lets an environment section inherit the identically
		// named key of the core section.
		AllowCoreFallback bool
		// Redeclarable permits a later declaration with a different type to
		// replace this one instead of failing.
		Redeclarable bool
	}
)

// Primary returns the canonical key name.
func (d *Declaration) Primary() string {
	if len(d.Keys) == 0 {
		return ""
	}
	return d.Keys[0]
}

// HasDefault reports whether the declaration can produce a value without configuration.
func (d *Declaration) HasDefault() bool {
	return d.Default != nil || d.DefaultFunc != nil
}

func (d *Declaration) matches(key string) bool {
	n := normalizeKey(key)
	for _, k := range d.Keys {
		if normalizeKey(k) == n {
			return true
		}
	}
	return false
}

// normalizeKey folds case and treats "-" like "_".
func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}
