// SPDX-License-Identifier: MPL-2.0

// Package config loads envrun user settings with Viper, using CUE as the file format.
//
// Settings are read from config.cue in the envrun configuration directory
// ($XDG_CONFIG_HOME/envrun on Linux, ~/Library/Application Support/envrun on
// macOS, %APPDATA%\envrun on Windows) and validated against an embedded CUE
// schema. Every key can be overridden by an ENVRUN_* environment variable,
// for example ENVRUN_PARALLEL=4 or ENVRUN_CONTAINER_DEFAULT_IMAGE=alpine:3.
package config
