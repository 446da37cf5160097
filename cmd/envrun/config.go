// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/envrun/envrun/internal/config"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/report"
	"github.com/envrun/envrun/internal/session"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App, g *globalOptions) *cobra.Command {
	var (
		sel      selectFlags
		keys     []string
		showCore bool
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration of environments",
		Long: `Show the resolved configuration of environments.

Without -e every environment is shown, followed by the core section. Keys
that could not be resolved are shown as "# Exception" comments; raw keys
nothing read are listed as unused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := sel.options()
			showAll := len(opts.Envs) == 0 && len(opts.Labels) == 0 && len(opts.Factors) == 0
			if showAll {
				opts.Envs = []string{session.AllEnvs}
			}
			s, err := newSession(cmd, app, g, opts, nil)
			if err != nil {
				return err
			}
			envs := make([]environment.Environment, 0, s.Graph().Len())
			for _, node := range s.Graph().Nodes() {
				envs = append(envs, node.Env)
			}
			return report.ShowConfig(app.stdout, envs, s.Config().Core(), keys, showAll || showCore, app.colored(g, app.stdout))
		},
	}
	sel.register(cmd)
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "show only these keys")
	cmd.Flags().BoolVar(&showCore, "core", false, "show the core section too when selecting environments")

	cmd.AddCommand(newConfigSettingsCommand(app, g), newConfigInitCommand(app))
	return cmd
}

func newConfigSettingsCommand(app *App, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the effective user settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: g.settingsFile})
			if err != nil {
				return fatal(err)
			}
			source := "defaults and environment"
			if loaded.Path != "" {
				source = loaded.Path
			}
			fmt.Fprintf(app.stdout, "// source: %s\n", source)
			_, err = fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return err
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return fatal(err)
			}
			path := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			if _, err := os.Stat(path); err == nil && !force {
				return fatal(fmt.Errorf("%s already exists (use --force to overwrite)", path))
			}
			if path, err = config.Save(config.DefaultConfig()); err != nil {
				return fatal(err)
			}
			_, err = fmt.Fprintln(app.stdout, "wrote", path)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")
	return cmd
}
