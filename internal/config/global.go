// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces ConfigDir's result in tests, where
// os.UserHomeDir does not follow HOME on every platform.
var configDirOverride string

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
