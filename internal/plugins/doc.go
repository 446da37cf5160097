// SPDX-License-Identifier: MPL-2.0

// Package plugins holds the plugins shipped with envrun.
//
// The runners, packaging, container-resolver and journal plugins are always
// registered. Optional plugins such as timing are enabled by name through the
// core "plugins" key or the user settings.
package plugins
