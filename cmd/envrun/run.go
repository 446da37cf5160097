// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/envrun/envrun/internal/hook"
	"github.com/envrun/envrun/internal/plugins"
	"github.com/envrun/envrun/internal/report"
	"github.com/envrun/envrun/internal/session"

	"github.com/spf13/cobra"
)

// selectFlags are the environment selection flags shared by several commands.
type selectFlags struct {
	envs      []string
	labels    []string
	factors   []string
	overrides []string
}

func (f *selectFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVarP(&f.envs, "env", "e", nil, "environments to select, comma separated names or globs (ALL for every one)")
	flags.StringSliceVarP(&f.labels, "labels", "m", nil, "select environments carrying any of these labels")
	flags.StringSliceVarP(&f.factors, "factors", "f", nil, "keep environments whose names contain every factor")
	flags.StringArrayVarP(&f.overrides, "override", "x", nil, "override a setting: [section.]key=value or [section.]key+=value")
}

func (f *selectFlags) options() session.Options {
	return session.Options{
		Envs:      f.envs,
		Labels:    f.labels,
		Factors:   f.factors,
		Overrides: f.overrides,
		Parallel:  -1,
	}
}

// newSession fills the global inputs of opts and prepares the invocation.
func newSession(cmd *cobra.Command, app *App, g *globalOptions, opts session.Options, reg *hook.Registry) (*session.Session, error) {
	opts.Root = g.root
	opts.ConfigFile = g.confFile
	opts.Settings = g.settings
	opts.Stdout = app.stdout
	if reg == nil {
		reg = session.NewRegistry(g.settingsOrDefault())
	}
	s, err := session.New(cmd.Context(), opts, reg)
	if err != nil {
		return nil, fatal(err)
	}
	return s, nil
}

func newRunCommand(app *App, g *globalOptions) *cobra.Command {
	var (
		sel         selectFlags
		parallel    int
		skipMissing string
		noSummary   bool
	)
	// Plugins contribute flags before parsing, so the registry is created with
	// the command; session.New completes it once settings are known.
	reg := session.NewRegistry(g.settingsOrDefault())

	cmd := &cobra.Command{
		Use:   "run [flags] [-- posargs...]",
		Short: "Run environments",
		Example: `  envrun run -e lint
  envrun run -m ci -p 4
  envrun run -e py312 -- tests/test_api.py -x`,
		Args: func(cmd *cobra.Command, args []string) error {
			if dash := cmd.ArgsLenAtDash(); dash > 0 || (dash < 0 && len(args) > 0) {
				return fmt.Errorf("unexpected arguments %q: pass positional arguments after --", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := sel.options()
			if cmd.Flags().Changed("parallel") {
				opts.Parallel = parallel
			}
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				opts.PosArgs, opts.HasPosArgs = args[dash:], true
			}
			if skipMissing != "config" {
				v, err := strconv.ParseBool(skipMissing)
				if err != nil {
					return fatal(fmt.Errorf("--skip-missing-interpreters: expected config, true or false, got %q", skipMissing))
				}
				opts.SkipMissing = &v
			}

			s, err := newSession(cmd, app, g, opts, reg)
			if err != nil {
				return err
			}
			res, err := s.Run(cmd.Context())
			if err != nil {
				return fatal(err)
			}
			if !noSummary {
				if err := report.Summary(app.stdout, res, app.colored(g, app.stdout)); err != nil {
					return err
				}
			}
			if j, ok := plugins.JournalOf(s.Hooks()); ok && j.Path() != "" {
				if err := report.WriteJSON(j.Path(), s.RunID(), res, j.Entries()); err != nil {
					return fatal(err)
				}
			}
			if code := session.ExitCode(res, nil); code != session.ExitSuccess {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	sel.register(cmd)
	flags := cmd.Flags()
	flags.IntVarP(&parallel, "parallel", "p", 0, "run up to N environments at once (0 or 1 runs sequentially)")
	flags.StringVar(&skipMissing, "skip-missing-interpreters", "config", "skip environments whose base is missing: config, true or false")
	flags.BoolVar(&noSummary, "no-summary", false, "do not print the result summary")
	reg.AddOptions(flags)
	return cmd
}
