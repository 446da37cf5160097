// SPDX-License-Identifier: MPL-2.0

package report

import (
	"io"

	"github.com/envrun/envrun/internal/envreg"
)

// ListEntry is one line of the environment listing.
type ListEntry struct {
	Name        string
	Description string
}

// List prints the default environments, then the additional ones.
func List(w io.Writer, defaults, additional []ListEntry, color bool) error {
	st := newStyles(w, color)
	p := &printer{w: w}
	width := 0
	for _, e := range append(append([]ListEntry{}, defaults...), additional...) {
		width = max(width, len(e.Name))
	}
	group := func(title string, entries []ListEntry) {
		if len(entries) == 0 {
			return
		}
		p.println(st.title.Render(title + ":"))
		for _, e := range entries {
			line := e.Name
			if e.Description != "" {
				line += pad(width-len(e.Name)) + " -> " + st.muted.Render(e.Description)
			}
			p.println(line)
		}
	}
	group("default environments", defaults)
	if len(defaults) > 0 && len(additional) > 0 {
		p.println("")
	}
	group("additional environments", additional)
	return p.err
}

// Kinds prints the registered environment kinds.
func Kinds(w io.Writer, kinds []envreg.Kind, color bool) error {
	st := newStyles(w, color)
	p := &printer{w: w}
	p.println(st.title.Render("environment kinds:"))
	for _, k := range kinds {
		p.println(st.key.Render(k.Name) + st.muted.Render(" ("+k.Role.String()+", from "+k.Owner+")"))
	}
	return p.err
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
