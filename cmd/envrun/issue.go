// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/envrun/envrun/internal/issue"

	"github.com/spf13/cobra"
)

func newIssueCommand(app *App, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "issue [id]",
		Short: "Explain an error and how to fix it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, entry := range issue.All() {
					fmt.Fprintf(app.stdout, "%3d  %s\n", entry.ID(), entry.Title())
				}
				return nil
			}
			n, err := strconv.Atoi(args[0])
			entry := issue.Get(issue.ID(n))
			if err != nil || entry == nil {
				return fatal(fmt.Errorf("unknown issue %q, run 'envrun issue' for the list", args[0]))
			}
			style := "notty"
			if app.colored(g, app.stdout) {
				style = "auto"
			}
			out, err := entry.Render(style)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(app.stdout, out)
			return err
		},
	}
}
