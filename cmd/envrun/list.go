// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"slices"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/report"
	"github.com/envrun/envrun/internal/session"

	"github.com/spf13/cobra"
)

func newListCommand(app *App, g *globalOptions) *cobra.Command {
	var (
		kinds       bool
		defaultOnly bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, app, g, session.Options{Envs: []string{session.AllEnvs}, Parallel: -1}, nil)
			if err != nil {
				return err
			}
			color := app.colored(g, app.stdout)
			if kinds {
				return report.Kinds(app.stdout, s.Kinds().Kinds(), color)
			}

			known, err := s.KnownEnvs()
			if err != nil {
				return fatal(err)
			}
			envList, err := confset.Get[[]string](s.Config().Core(), session.CoreEnvList)
			if err != nil {
				return fatal(err)
			}
			if len(envList) == 0 {
				envList = known
			}
			var defaults, additional []report.ListEntry
			for _, name := range known {
				entry := report.ListEntry{Name: name}
				if node, ok := s.Graph().Node(name); ok {
					entry.Description, _ = confset.Get[string](node.Env.Conf(), environment.KeyDescription)
				}
				if slices.Contains(envList, name) {
					defaults = append(defaults, entry)
				} else if !defaultOnly {
					additional = append(additional, entry)
				}
			}
			return report.List(app.stdout, defaults, additional, color)
		},
	}
	cmd.Flags().BoolVar(&kinds, "kinds", false, "list the registered environment kinds instead")
	cmd.Flags().BoolVarP(&defaultOnly, "default", "d", false, "list only the default environments")
	return cmd
}
