// SPDX-License-Identifier: MPL-2.0

package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/envrun/envrun/pkg/cueutil"

	"cuelang.org/go/cue"
)

// LoadCUE reads an envrun.cue file. It uses the same layout as LoadTOML;
// unlike TOML, CUE keeps fields in declaration order.
func LoadCUE(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	src, err := ParseCUE(data, path)
	if err != nil {
		return nil, err
	}
	return src.WithPath(path), nil
}

// ParseCUE decodes CUE bytes into an in-memory source.
func ParseCUE(data []byte, filename string) (*Memory, error) {
	root, err := cueutil.Compile(data, cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}

	src := NewMemory()
	err = eachField(root, func(top string, table cue.Value) error {
		if table.Kind() != cue.StructKind {
			return fmt.Errorf("%s: top-level field %q must be a struct", filename, top)
		}
		switch top {
		case CoreSection:
			section := src.Ensure(CoreSection)
			return eachField(table, func(key string, v cue.Value) error {
				raw, err := cueRaw(v)
				if err != nil {
					return fmt.Errorf("%s: %s.%s: %w", filename, top, key, err)
				}
				section.Set(key, raw)
				return nil
			})
		case EnvDefaultsSection:
			defaults := src.Ensure(EnvDefaultsSection)
			return eachField(table, func(key string, v cue.Value) error {
				if v.Kind() == cue.StructKind {
					section := src.Ensure(EnvSection(key))
					return eachField(v, func(inner string, iv cue.Value) error {
						raw, err := cueRaw(iv)
						if err != nil {
							return fmt.Errorf("%s: env.%s.%s: %w", filename, key, inner, err)
						}
						section.Set(inner, raw)
						return nil
					})
				}
				raw, err := cueRaw(v)
				if err != nil {
					return fmt.Errorf("%s: env.%s: %w", filename, key, err)
				}
				defaults.Set(key, raw)
				return nil
			})
		default:
			return fmt.Errorf("%s: unknown top-level field %q (expected %q or %q)", filename, top, CoreSection, EnvDefaultsSection)
		}
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func eachField(v cue.Value, fn func(label string, field cue.Value) error) error {
	it, err := v.Fields()
	if err != nil {
		return err
	}
	for it.Next() {
		if err := fn(it.Selector().Unquoted(), it.Value()); err != nil {
			return err
		}
	}
	return nil
}

func cueRaw(v cue.Value) (string, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(i, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case cue.NullKind:
		return "", nil
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return "", err
		}
		var parts []string
		for it.Next() {
			s, err := cueRaw(it.Value())
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n"), nil
	default:
		return "", fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}
