// SPDX-License-Identifier: MPL-2.0

package source

import (
	"fmt"
	"os"
	"slices"

	"github.com/envrun/envrun/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
)

// LoadTOML reads an envrun.toml file.
//
// Layout:
//
//	[envrun]        core section
//	[env]           values shared by every environment
//	[env.NAME]      the section of environment NAME
//
// The TOML decoder produces maps, so keys within a section are ordered lexically.
func LoadTOML(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}
	src, err := ParseTOML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src.WithPath(path), nil
}

// ParseTOML decodes TOML bytes into an in-memory source.
func ParseTOML(data []byte) (*Memory, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	src := NewMemory()
	for _, top := range sortedKeys(doc) {
		table, ok := doc[top].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("top-level key %q must be a table", top)
		}
		switch top {
		case CoreSection:
			if err := fillSection(src.Ensure(CoreSection), table); err != nil {
				return nil, fmt.Errorf("[%s]: %w", top, err)
			}
		case EnvDefaultsSection:
			if err := fillEnvTable(src, table); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown table [%s] (expected [%s] or [%s])", top, CoreSection, EnvDefaultsSection)
		}
	}
	return src, nil
}

func fillEnvTable(src *Memory, table map[string]any) error {
	defaults := src.Ensure(EnvDefaultsSection)
	for _, key := range sortedKeys(table) {
		if sub, ok := table[key].(map[string]any); ok {
			if err := fillSection(src.Ensure(EnvSection(key)), sub); err != nil {
				return fmt.Errorf("[env.%s]: %w", key, err)
			}
			continue
		}
		raw, err := rawString(table[key])
		if err != nil {
			return fmt.Errorf("[env] %s: %w", key, err)
		}
		defaults.Set(key, raw)
	}
	return nil
}

func fillSection(section *Section, table map[string]any) error {
	for _, key := range sortedKeys(table) {
		raw, err := rawString(table[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		section.Set(key, raw)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
