// SPDX-License-Identifier: MPL-2.0

// Package deps normalizes dependency lists before they reach an installer.
//
// A list is the text of a deps key: one requirement per line, with installer
// options such as "-i URL" or "-c constraints.txt" mixed in. Parse joins
// continuation lines, drops comments, inlines "-r file" includes, splits the
// glued "-rfile" spelling, and removes duplicates while keeping order.
package deps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrIllegalOption is returned for options that only requirement files may carry.
var ErrIllegalOption = errors.New("option not allowed in an inline dependency list")

// valueOptions take exactly one argument.
var valueOptions = []string{
	"--index-url", "--extra-index-url", "--editable", "--constraint", "--requirement",
	"--find-links", "--trusted-host", "--use-feature", "--no-binary", "--only-binary",
	"-i", "-e", "-c", "-r", "-f",
}

// inlineIllegal are options accepted in files but rejected in an inline list.
var inlineIllegal = []string{"--hash"}

type (
	// Option is an installer option with its argument, if any.
	Option struct {
		Name  string
		Value string
	}

	// List is a normalized dependency list.
	List struct {
		Options      []Option
		Requirements []string
		// Files lists included requirement files in inclusion order.
		Files []string
	}

	// IllegalOptionError names the offending option and line.
	IllegalOptionError struct {
		Option string
		Line   string
	}

	parser struct {
		list    *List
		seen    map[string]bool
		seenOpt map[Option]bool
		active  []string
	}
)

func (e *IllegalOptionError) Error() string {
	return fmt.Sprintf("cannot use %s in deps list, move it to a requirements file (%s)", e.Option, e.Line)
}

func (e *IllegalOptionError) Unwrap() error { return ErrIllegalOption }

// Parse normalizes raw. Relative include and constraint paths are resolved
// against root.
func Parse(raw, root string) (*List, error) {
	p := &parser{list: &List{}, seen: map[string]bool{}, seenOpt: map[Option]bool{}}
	if err := p.parse(raw, root, true); err != nil {
		return nil, err
	}
	return p.list, nil
}

// ParseLines is Parse for a list already split into items.
func ParseLines(items []string, root string) (*List, error) {
	return Parse(strings.Join(items, "\n"), root)
}

func (p *parser) parse(raw, dir string, inline bool) error {
	for _, line := range Normalize(raw) {
		name, value, isOpt := splitOption(line)
		if !isOpt {
			if inline {
				for _, opt := range inlineIllegal {
					if strings.Contains(line, opt) {
						return &IllegalOptionError{Option: opt, Line: line}
					}
				}
			}
			p.addRequirement(stripOptions(line))
			continue
		}
		if inline && slices.Contains(inlineIllegal, name) {
			return &IllegalOptionError{Option: name, Line: line}
		}
		switch name {
		case "-r", "--requirement":
			if err := p.include(resolve(dir, value)); err != nil {
				return err
			}
		case "-c", "--constraint":
			p.addOption(Option{Name: "-c", Value: resolve(dir, value)})
		case "-e", "--editable":
			p.addRequirement("-e " + value)
		default:
			p.addOption(Option{Name: name, Value: value})
		}
	}
	return nil
}

func (p *parser) include(path string) error {
	if slices.Contains(p.active, path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read requirements file: %w", err)
	}
	if !slices.Contains(p.list.Files, path) {
		p.list.Files = append(p.list.Files, path)
	}
	p.active = append(p.active, path)
	defer func() { p.active = p.active[:len(p.active)-1] }()
	return p.parse(string(data), filepath.Dir(path), false)
}

func (p *parser) addRequirement(req string) {
	if req == "" || p.seen[req] {
		return
	}
	p.seen[req] = true
	p.list.Requirements = append(p.list.Requirements, req)
}

func (p *parser) addOption(o Option) {
	if p.seenOpt[o] {
		return
	}
	p.seenOpt[o] = true
	p.list.Options = append(p.list.Options, o)
}

// Normalize joins continuation lines, drops blank lines and comments, and
// separates glued one-argument options ("-rreq.txt" becomes "-r req.txt").
func Normalize(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "")
	raw = strings.ReplaceAll(raw, "\\\n", "")
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(stripComment(line))
		if line == "" {
			continue
		}
		out = append(out, unglue(line))
	}
	return out
}

func stripComment(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return ""
	}
	if idx := strings.Index(line, " #"); idx >= 0 {
		return line[:idx]
	}
	if idx := strings.Index(line, "\t#"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func unglue(line string) string {
	for _, opt := range valueOptions {
		if !strings.HasPrefix(line, opt) || len(line) == len(opt) {
			continue
		}
		next := line[len(opt)]
		if next == ' ' || next == '\t' || next == '=' {
			return line
		}
		if strings.HasPrefix(opt, "--") {
			// a longer option sharing the prefix, such as --index-url-extra
			continue
		}
		return opt + " " + line[len(opt):]
	}
	return line
}

// splitOption splits "-x value", "--name=value" or "--flag". Escaped spaces
// in the value are unescaped.
func splitOption(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "-") {
		return "", "", false
	}
	name, value := line, ""
	if idx := strings.IndexAny(line, " \t="); idx >= 0 {
		name, value = line[:idx], strings.TrimSpace(line[idx+1:])
	}
	return name, strings.ReplaceAll(value, `\ `, " "), true
}

// stripOptions removes per-requirement options that follow the specifier,
// such as "--global-option".
func stripOptions(line string) string {
	if idx := strings.Index(line, " --"); idx >= 0 {
		return strings.TrimSpace(line[:idx])
	}
	return line
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

// Args renders the list as installer arguments: options first, then requirements.
func (l *List) Args() []string {
	var out []string
	for _, o := range l.Options {
		out = append(out, o.Args()...)
	}
	for _, r := range l.Requirements {
		if rest, ok := strings.CutPrefix(r, "-e "); ok {
			out = append(out, "-e", rest)
			continue
		}
		out = append(out, r)
	}
	return out
}

// OptionArgs renders only the options.
func (l *List) OptionArgs() []string {
	var out []string
	for _, o := range l.Options {
		out = append(out, o.Args()...)
	}
	return out
}

// PackageArgs renders only the requirements.
func (l *List) PackageArgs() []string {
	full := l.Args()
	return full[len(l.OptionArgs()):]
}

// Empty reports whether the list installs nothing.
func (l *List) Empty() bool {
	return len(l.Requirements) == 0
}

// String renders the normalized list one entry per line.
func (l *List) String() string {
	lines := make([]string, 0, len(l.Options)+len(l.Requirements))
	for _, o := range l.Options {
		lines = append(lines, strings.Join(o.Args(), " "))
	}
	lines = append(lines, l.Requirements...)
	return strings.Join(lines, "\n")
}

// Fingerprint hashes the normalized list. Equal fingerprints mean the
// installer would receive the same arguments.
func (l *List) Fingerprint() uint64 {
	return xxhash.Sum64String(l.String())
}

// Args renders the option as installer arguments.
func (o Option) Args() []string {
	if o.Value == "" {
		return []string{o.Name}
	}
	return []string{o.Name, o.Value}
}
