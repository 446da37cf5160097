// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// FormatError renders CUE errors as "<file>: <field.path[0]>: <message>", one
// line per error.
func FormatError(err error, filename string) error {
	if err == nil {
		return nil
	}
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		path := FieldPath(cueerrors.Path(e))
		msg := e.Error()
		if path != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
			msg = path + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filename, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filename, strings.Join(lines, "\n  "))
}

// FieldPath joins CUE path elements, writing numeric elements as list indices:
// ["env", "py", "deps", "2"] becomes "env.py.deps[2]".
func FieldPath(elems []string) string {
	var b strings.Builder
	for i, el := range elems {
		switch {
		case i > 0 && isIndex(el):
			b.WriteString("[" + el + "]")
		case i > 0:
			b.WriteString("." + el)
		default:
			b.WriteString(el)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
