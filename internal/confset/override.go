// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"fmt"
	"strings"

	"github.com/envrun/envrun/internal/source"
)

// Override is a value supplied at invocation time. It wins over every other source.
type Override struct {
	// Section is empty for overrides that apply to every section declaring Key,
	// "envrun" for the core section, or an environment name.
	Section string
	Key     string
	Value   string
	// Append adds Value as a new line after the value that would otherwise apply.
	Append bool
}

// ParseOverride parses "[section.]key=value" or "[section.]key+=value".
// Environment names may contain dots, so the section is split at the last dot.
// The "env:" prefix on the section is accepted and dropped.
func ParseOverride(s string) (Override, error) {
	lhs, value, ok := strings.Cut(s, "=")
	if !ok {
		return Override{}, fmt.Errorf("%w %q: expected [section.]key=value", ErrInvalidOverride, s)
	}
	var o Override
	if trimmed, isAppend := strings.CutSuffix(lhs, "+"); isAppend {
		o.Append = true
		lhs = trimmed
	}
	lhs = strings.TrimSpace(lhs)
	if idx := strings.LastIndex(lhs, "."); idx >= 0 {
		o.Section = strings.TrimPrefix(lhs[:idx], source.EnvSectionPrefix)
		o.Key = lhs[idx+1:]
	} else {
		o.Key = lhs
	}
	if o.Key == "" {
		return Override{}, fmt.Errorf("%w %q: empty key", ErrInvalidOverride, s)
	}
	o.Value = value
	return o, nil
}

// ParseOverrides parses every entry of list.
func ParseOverrides(list []string) ([]Override, error) {
	out := make([]Override, 0, len(list))
	for _, s := range list {
		o, err := ParseOverride(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// String renders the override in the form ParseOverride accepts.
func (o Override) String() string {
	op := "="
	if o.Append {
		op = "+="
	}
	if o.Section == "" {
		return o.Key + op + o.Value
	}
	return o.Section + "." + o.Key + op + o.Value
}

func (o Override) appliesTo(section string) bool {
	return o.Section == "" || o.Section == section
}
