// SPDX-License-Identifier: MPL-2.0

package hook

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownExtensionPoint is returned by CheckPending for a declared point
	// that does not exist or that the plugin does not implement.
	ErrUnknownExtensionPoint = errors.New("unknown extension point")
	// ErrNoResponder is returned by a required first-result dispatch nobody answered.
	ErrNoResponder = errors.New("no plugin responded")
	// ErrRegistryFrozen is returned when the plugin list is changed after Freeze.
	ErrRegistryFrozen = errors.New("plugin registry is frozen")
	// ErrDuplicatePlugin is returned when two different plugins share a name.
	ErrDuplicatePlugin = errors.New("duplicate plugin name")
)

type (
	// UnknownExtensionPointError names the plugin and the point it declared.
	UnknownExtensionPointError struct {
		Plugin string
		Point  Point
		// NotImplemented is set when the point exists but the plugin lacks the method.
		NotImplemented bool
	}

	// NoResponderError names the point nobody answered.
	NoResponderError struct {
		Point Point
		Key   string
	}

	// PluginError attributes a dispatch failure to a plugin.
	PluginError struct {
		Plugin string
		Point  Point
		Err    error
	}
)

func (e *UnknownExtensionPointError) Error() string {
	if e.NotImplemented {
		return fmt.Sprintf("plugin %q declares %q but does not implement it", e.Plugin, e.Point)
	}
	return fmt.Sprintf("plugin %q declares unknown extension point %q", e.Plugin, e.Point)
}

func (e *UnknownExtensionPointError) Unwrap() error { return ErrUnknownExtensionPoint }

func (e *NoResponderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("no plugin responded to %s for %q", e.Point, e.Key)
	}
	return fmt.Sprintf("no plugin responded to %s", e.Point)
}

func (e *NoResponderError) Unwrap() error { return ErrNoResponder }

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %q (%s): %v", e.Plugin, e.Point, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }
