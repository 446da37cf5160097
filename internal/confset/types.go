// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"mvdan.cc/sh/v3/syntax"
)

// Value types a declaration can request.
const (
	TypeString ValueType = iota + 1
	TypeBool
	TypeInt
	TypePath
	TypeDuration
	TypeCommand
	// TypeStringList splits on newlines only; items may contain commas.
	TypeStringList
	// TypeNameList splits on newlines and commas.
	TypeNameList
	TypeCommandList
	TypeEnvMap
)

type (
	// ValueType is the semantic type of a configuration key.
	ValueType int

	// Command is a single shell command line.
	Command struct {
		Line string
		// IgnoreExit is set when the line was prefixed with "-".
		IgnoreExit bool
	}

	// EnvVar is one NAME=value assignment.
	EnvVar struct {
		Name  string
		Value string
	}

	// EnvVars is an ordered list of assignments; later entries win.
	EnvVars []EnvVar
)

var typeNames = map[ValueType]string{
	TypeString:      "string",
	TypeBool:        "bool",
	TypeInt:         "int",
	TypePath:        "path",
	TypeDuration:    "duration",
	TypeCommand:     "command",
	TypeStringList:  "list of strings",
	TypeNameList:    "list of names",
	TypeCommandList: "list of commands",
	TypeEnvMap:      "environment map",
}

// String returns the human-readable type name.
func (t ValueType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// String returns the command line, including the ignore marker.
func (c Command) String() string {
	if c.IgnoreExit {
		return "- " + c.Line
	}
	return c.Line
}

// Map returns the assignments as a map.
func (e EnvVars) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, v := range e {
		m[v.Name] = v.Value
	}
	return m
}

// ParseCommand parses one command line.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	cmd := Command{Line: line}
	if rest, ok := strings.CutPrefix(line, "-"); ok {
		cmd.IgnoreExit = true
		cmd.Line = strings.TrimSpace(rest)
	}
	if cmd.Line == "" {
		return Command{}, fmt.Errorf("empty command")
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(cmd.Line), ""); err != nil {
		return Command{}, fmt.Errorf("invalid shell syntax: %w", err)
	}
	return cmd, nil
}

// decimal strips leading zeros so s is never read as an octal literal.
func decimal(s string) string {
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	if trimmed := strings.TrimLeft(s, "0"); trimmed != s {
		if trimmed == "" {
			trimmed = "0"
		}
		s = trimmed
	}
	return sign + s
}

// coerce converts a raw string to the Go value of typ. Path values that are
// relative are anchored at root.
func coerce(raw string, typ ValueType, root string) (any, error) {
	switch typ {
	case TypeString:
		return strings.TrimSpace(raw), nil
	case TypeBool:
		return cast.ToBoolE(strings.TrimSpace(raw))
	case TypeInt:
		return cast.ToIntE(decimal(strings.TrimSpace(raw)))
	case TypePath:
		p := strings.TrimSpace(raw)
		if p == "" {
			return "", nil
		}
		if !filepath.IsAbs(p) && root != "" {
			p = filepath.Join(root, p)
		}
		return filepath.Clean(p), nil
	case TypeDuration:
		s := strings.TrimSpace(raw)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return cast.ToDurationE(s)
	case TypeStringList:
		return splitLines(raw), nil
	case TypeNameList:
		var out []string
		for _, line := range splitLines(raw) {
			for _, item := range strings.Split(line, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
		}
		return out, nil
	case TypeCommand:
		return ParseCommand(joinContinuations(raw))
	case TypeCommandList:
		var out []Command
		for _, line := range splitLines(joinContinuations(raw)) {
			cmd, err := ParseCommand(line)
			if err != nil {
				return nil, err
			}
			out = append(out, cmd)
		}
		return out, nil
	case TypeEnvMap:
		var out EnvVars
		for _, line := range splitLines(raw) {
			name, value, ok := strings.Cut(line, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return nil, fmt.Errorf("expected NAME=value, got %q", line)
			}
			out = append(out, EnvVar{Name: name, Value: strings.TrimSpace(value)})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value type %d", typ)
	}
}

// Stringify renders a resolved value in its raw string form: lists one item per line.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case time.Duration:
		return val.String()
	case []string:
		return strings.Join(val, "\n")
	case Command:
		return val.String()
	case []Command:
		lines := make([]string, len(val))
		for i, c := range val {
			lines[i] = c.String()
		}
		return strings.Join(lines, "\n")
	case EnvVars:
		lines := make([]string, len(val))
		for i, e := range val {
			lines[i] = e.Name + "=" + e.Value
		}
		return strings.Join(lines, "\n")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r", ""), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// joinContinuations merges lines ending in an unescaped backslash with the next line.
func joinContinuations(raw string) string {
	raw = strings.ReplaceAll(raw, "\r", "")
	var b strings.Builder
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, `\`) && !strings.HasSuffix(trimmed, `\\`) && i < len(lines)-1 {
			b.WriteString(strings.TrimSuffix(trimmed, `\`))
			b.WriteString(" ")
			continue
		}
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
