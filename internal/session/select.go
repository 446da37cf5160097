// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"slices"
	"strings"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/issue"

	"github.com/bmatcuk/doublestar/v4"
)

// AllEnvs selects every known environment.
const AllEnvs = "ALL"

// KnownEnvs lists env_list entries followed by the remaining environment
// sections, without duplicates.
func (s *Session) KnownEnvs() ([]string, error) {
	return knownEnvs(s.cfg)
}

func knownEnvs(cfg *confset.Config) ([]string, error) {
	envList, err := confset.Get[[]string](cfg.Core(), CoreEnvList)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(envList)
	for _, name := range cfg.EnvNames() {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// selectEnvs picks the environments to run: explicit names, then labels and
// factors, then env_list, then every section.
func (s *Session) selectEnvs() ([]string, error) {
	known, err := knownEnvs(s.cfg)
	if err != nil {
		return nil, err
	}

	names := splitNames(s.opts.Envs)
	if len(names) > 0 {
		return s.selectNamed(names, known)
	}

	if len(s.opts.Labels) > 0 || len(s.opts.Factors) > 0 {
		candidates := known
		if len(s.opts.Labels) > 0 {
			if candidates, err = s.withLabels(splitNames(s.opts.Labels), known); err != nil {
				return nil, err
			}
		}
		factors := splitNames(s.opts.Factors)
		return slices.DeleteFunc(slices.Clone(candidates), func(name string) bool {
			return !hasFactors(name, factors)
		}), nil
	}

	envList, err := confset.Get[[]string](s.cfg.Core(), CoreEnvList)
	if err != nil {
		return nil, err
	}
	if len(envList) > 0 {
		return envList, nil
	}
	return s.cfg.EnvNames(), nil
}

func (s *Session) selectNamed(names, known []string) ([]string, error) {
	if slices.Contains(names, AllEnvs) {
		return known, nil
	}
	var out []string
	for _, name := range names {
		if isGlob(name) {
			matched := matchKnown(name, known)
			if len(matched) == 0 {
				return nil, unknownEnvError(name, known)
			}
			out = append(out, matched...)
			continue
		}
		if !isKnown(name, known) {
			return nil, unknownEnvError(name, known)
		}
		out = append(out, name)
	}
	return out, nil
}

// withLabels returns environments carrying any label, either through the core
// labels map or their own labels key.
func (s *Session) withLabels(labels, known []string) ([]string, error) {
	mapped, err := confset.Get[confset.EnvVars](s.cfg.Core(), CoreLabels)
	if err != nil {
		return nil, err
	}
	var out []string
	add := func(name string) {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, entry := range mapped {
		if slices.Contains(labels, entry.Name) {
			for _, name := range splitNames([]string{entry.Value}) {
				add(name)
			}
		}
	}
	for _, name := range known {
		conf := s.cfg.Env(name)
		if err := declareLabels(conf); err != nil {
			return nil, err
		}
		own, err := confset.Get[[]string](conf, environment.KeyLabels)
		if err != nil {
			return nil, err
		}
		if slices.ContainsFunc(own, func(l string) bool { return slices.Contains(labels, l) }) {
			add(name)
		}
	}
	return out, nil
}

// isKnown accepts names with a section or env_list entry, and names built
// only from factors some known environment uses.
func isKnown(name string, known []string) bool {
	if slices.Contains(known, name) {
		return true
	}
	factors := confset.Factors(name)
	if len(factors) == 0 {
		return false
	}
	used := make(map[string]bool)
	for _, k := range known {
		for _, f := range confset.Factors(k) {
			used[f] = true
		}
	}
	for _, f := range factors {
		if !used[f] {
			return false
		}
	}
	return true
}

func hasFactors(name string, factors []string) bool {
	own := confset.Factors(name)
	for _, f := range factors {
		if !slices.Contains(own, f) {
			return false
		}
	}
	return true
}

func isGlob(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

func matchKnown(pattern string, known []string) []string {
	var out []string
	for _, name := range known {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			out = append(out, name)
		}
	}
	return out
}

func splitNames(list []string) []string {
	var out []string
	for _, item := range list {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func unknownEnvError(name string, known []string) error {
	return issue.NewErrorContext().
		WithOperation("select environments").
		WithResource(name).
		WithSuggestion(fmt.Sprintf("Known environments: %s", strings.Join(known, ", "))).
		WithSuggestion("Run 'envrun list' to see every environment").
		WithIssue(issue.UnknownEnvironmentID).
		Wrap(fmt.Errorf("%w %q", ErrUnknownEnvironment, name)).
		BuildError()
}
