// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/source"
)

// ShowConfig prints the resolved configuration of envs, one section each.
// With keys set only those keys are printed; otherwise every known key plus a
// comment naming unused raw keys. The core section follows when showCore is set.
// Keys are resolved here, so the unused list reflects everything read so far.
func ShowConfig(w io.Writer, envs []environment.Environment, core *confset.Store, keys []string, showCore, color bool) error {
	st := newStyles(w, color)
	p := &printer{w: w}
	for i, env := range envs {
		if i > 0 {
			p.println("")
		}
		p.println(st.section.Render("[" + source.EnvSection(env.Name()) + "]"))
		if len(keys) == 0 {
			p.keyValue(st, "type", env.Kind())
		}
		printStore(p, st, env.Conf(), keys)
	}
	if showCore {
		if len(envs) > 0 {
			p.println("")
		}
		p.println(st.section.Render("[" + source.CoreSection + "]"))
		printStore(p, st, core, keys)
	}
	return p.err
}

func printStore(p *printer, st styles, store *confset.Store, keys []string) {
	list := keys
	if len(list) == 0 {
		list = store.Keys()
	}
	for _, key := range list {
		if !store.Contains(key) {
			continue
		}
		key = store.PrimaryKey(key)
		value, err := store.Get(key)
		if err != nil {
			p.keyValue(st, key, st.failure.Render(fmt.Sprintf("# Exception: %v", err)))
			continue
		}
		p.keyValue(st, key, confset.Stringify(value))
	}
	if unused := store.Unused(); len(unused) > 0 && len(keys) == 0 {
		p.println(st.comment.Render("# !!! unused: " + strings.Join(unused, ", ")))
	}
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) println(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) keyValue(st styles, key, value string) {
	if !strings.Contains(value, "\n") {
		p.println(st.key.Render(key) + " = " + value)
		return
	}
	p.println(st.key.Render(key) + " =")
	for line := range strings.SplitSeq(value, "\n") {
		p.println("  " + line)
	}
}
