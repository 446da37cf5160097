// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"errors"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Reserved substitution prefixes.
const (
	envVarPrefix = "env"
	posArgsKey   = "posargs"
)

var referencePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// expand replaces substitution markers in raw, resolved in the context of s.
//
//	{key}                   another key of the same section
//	{section:key}           a key of the core section ("envrun") or of an environment
//	{env:NAME[:default]}    an environment variable
//	{posargs[:default]}     positional arguments given after "--"
//
// "${...}" and markers containing whitespace are left untouched for the shell,
// and "\{" / "\}" produce literal braces.
func (s *Store) expand(raw, key string, res *resolution) (string, error) {
	if !strings.ContainsAny(raw, "{}") {
		return raw, nil
	}
	var b strings.Builder
	for i := 0; i < len(raw); {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) && (raw[i+1] == '{' || raw[i+1] == '}') {
			b.WriteByte(raw[i+1])
			i += 2
			continue
		}
		if c != '{' || (i > 0 && raw[i-1] == '$') {
			b.WriteByte(c)
			i++
			continue
		}
		end := matchBrace(raw, i)
		if end < 0 {
			b.WriteString(raw[i:])
			break
		}
		out, handled, err := s.substitute(raw[i+1:end], key, res)
		if err != nil {
			return "", err
		}
		if handled {
			b.WriteString(out)
		} else {
			b.WriteString(raw[i : end+1])
		}
		i = end + 1
	}
	return b.String(), nil
}

func (s *Store) substitute(inner, key string, res *resolution) (string, bool, error) {
	if inner == "" || strings.ContainsAny(inner, " \t\n") {
		return "", false, nil
	}
	head, rest, qualified := strings.Cut(inner, ":")

	switch head {
	case envVarPrefix:
		if !qualified {
			break
		}
		name, def, hasDefault := strings.Cut(rest, ":")
		if v, ok := s.cfg.lookupEnv(name); ok {
			return v, true, nil
		}
		if !hasDefault {
			return "", true, nil
		}
		out, err := s.expand(def, key, res)
		return out, true, err
	case posArgsKey:
		if args, ok := s.cfg.PosArgs(); ok && len(args) > 0 {
			return quoteArgs(args), true, nil
		}
		out, err := s.expand(rest, key, res)
		return out, true, err
	}

	target, ref := s, inner
	if qualified {
		if !referencePattern.MatchString(head) {
			return "", false, nil
		}
		target, ref = s.cfg.storeFor(head), rest
	}
	if !referencePattern.MatchString(ref) {
		return "", false, nil
	}

	v, err := target.resolve(ref, res)
	if err != nil {
		if errors.Is(err, ErrMissingValue) {
			return "", false, &UnresolvedSubstitutionError{Section: s.name, Key: key, Reference: inner}
		}
		return "", false, err
	}
	return Stringify(v), true, nil
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(raw string, open int) int {
	depth := 0
	for i := open; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = a
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
