// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/scheduler"
)

// Summary prints one line per environment in completion order, then the totals.
func Summary(w io.Writer, report *scheduler.Report, color bool) error {
	st := newStyles(w, color)
	p := &printer{w: w}
	for _, o := range report.Outcomes() {
		p.println("  " + outcomeLine(st, o))
	}

	counts := report.Counts()
	totals := fmt.Sprintf("%d succeeded, %d failed, %d skipped",
		counts[scheduler.StateSucceeded], counts[scheduler.StateFailed], counts[scheduler.StateSkipped])
	switch {
	case report.Interrupted:
		p.println(st.failure.Render(fmt.Sprintf("  interrupted: %s (%s)", totals, seconds(report.Elapsed))))
	case report.Success():
		p.println(st.success.Render(fmt.Sprintf("  congratulations :) %s (%s)", totals, seconds(report.Elapsed))))
	default:
		p.println(st.failure.Render(fmt.Sprintf("  evaluation failed :( %s (%s)", totals, seconds(report.Elapsed))))
	}
	return p.err
}

func outcomeLine(st styles, o *scheduler.Outcome) string {
	name := o.Env
	if o.Role == environment.RolePackage {
		name += " (package)"
	}
	switch o.State {
	case scheduler.StateSucceeded:
		return name + ": " + st.success.Render("OK") + st.muted.Render(" ("+seconds(o.Elapsed)+")")
	case scheduler.StateSkipped:
		reason := o.Reason
		if reason == "" && o.Err != nil {
			reason = o.Err.Error()
		}
		if reason == "" {
			return name + ": " + st.muted.Render("SKIP")
		}
		return name + ": " + st.muted.Render("SKIP ("+reason+")")
	default:
		var b strings.Builder
		b.WriteString("FAIL")
		if o.ExitCode != 0 {
			fmt.Fprintf(&b, " code %d", o.ExitCode)
		}
		if o.Kind == scheduler.KindSetupError && o.Err != nil {
			fmt.Fprintf(&b, ": %v", o.Err)
		}
		return name + ": " + st.failure.Render(b.String()) + st.muted.Render(" ("+seconds(o.Elapsed)+")")
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}
