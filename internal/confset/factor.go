// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"regexp"
	"slices"
	"strings"
)

// factorLine matches "cond: value". The colon must be followed by whitespace or
// end the line so URLs and drive letters are left alone.
var factorLine = regexp.MustCompile(`^([!\w.,-]+):(?:\s+(.*))?$`)

// Factors splits an environment name into its factors. Names starting with a
// dot are internal environments and carry no factors.
func Factors(name string) []string {
	if name == "" || strings.HasPrefix(name, ".") {
		return nil
	}
	var out []string
	for _, f := range strings.Split(name, "-") {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// filterFactors keeps unconditional lines and the conditional lines whose
// condition the factors satisfy, with the condition prefix removed.
//
// A condition is a comma-separated list of alternatives; each alternative is a
// "-"-joined conjunction of factors, any of which may be negated with "!".
func filterFactors(raw string, factors []string) string {
	if !strings.Contains(raw, ":") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		m := factorLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			out = append(out, line)
			continue
		}
		if conditionHolds(m[1], factors) {
			out = append(out, m[2])
		}
	}
	return strings.Join(out, "\n")
}

func conditionHolds(cond string, factors []string) bool {
	for _, alt := range strings.Split(cond, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if conjunctionHolds(alt, factors) {
			return true
		}
	}
	return false
}

func conjunctionHolds(alt string, factors []string) bool {
	for _, term := range strings.Split(alt, "-") {
		if term == "" {
			continue
		}
		negated := strings.HasPrefix(term, "!")
		present := slices.Contains(factors, strings.TrimPrefix(term, "!"))
		if present == negated {
			return false
		}
	}
	return true
}
