// SPDX-License-Identifier: MPL-2.0

package plugins

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/envrun/envrun/internal/hook"
)

// ErrUnknownPlugin is returned when an optional plugin name is not in the catalog.
var ErrUnknownPlugin = errors.New("unknown plugin")

var optional = map[string]func() hook.Plugin{
	"timing": func() hook.Plugin { return NewTiming() },
}

// Builtin returns the plugins registered on every run, in dispatch order.
func Builtin(defaultImage string) []hook.Plugin {
	return []hook.Plugin{
		NewRunners(defaultImage),
		Packaging{},
		ContainerResolver{},
		NewJournal(),
	}
}

// Optional instantiates the optional plugin called name.
func Optional(name string) (hook.Plugin, error) {
	newPlugin, ok := optional[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownPlugin, name, OptionalNames())
	}
	return newPlugin(), nil
}

// OptionalNames lists the optional plugins.
func OptionalNames() []string {
	return slices.Sorted(maps.Keys(optional))
}

// JournalOf returns the journal registered in r.
func JournalOf(r *hook.Registry) (*Journal, bool) {
	p, ok := r.Lookup("journal")
	if !ok {
		return nil, false
	}
	j, ok := p.(*Journal)
	return j, ok
}
