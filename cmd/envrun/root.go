// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/envrun/envrun/internal/issue"
	"github.com/envrun/envrun/internal/session"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	g := &app.global
	root := &cobra.Command{
		Use:   "envrun",
		Short: "Run commands in isolated, configured environments",
		Long: TitleStyle.Render("envrun") + SubtitleStyle.Render(" - run commands in isolated, configured environments") + `

envrun reads envrun.toml (or envrun.cue) from the project root, prepares each
selected environment, installs its dependencies, optionally builds the project
in a package environment, and runs the configured commands.

` + SubtitleStyle.Render("Examples:") + `
  envrun run                    Run the default environments
  envrun run -e lint,py312      Run two environments
  envrun run -p 4 -- -k slow    Run in parallel, passing positional arguments
  envrun config -e lint         Show the resolved configuration of lint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(app.prepare(cmd.Context(), g))
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging and detailed errors")
	flags.StringVar(&g.settingsFile, "settings", "", "user settings file (default is $XDG_CONFIG_HOME/envrun/config.cue)")
	flags.StringVarP(&g.confFile, "conf", "c", "", "project configuration file (default is envrun.toml or envrun.cue in the root)")
	flags.StringVar(&g.root, "root", "", "project root (default is the working directory)")
	flags.StringVar(&g.color, "color", "", "colorize output: auto, always or never (default from settings)")

	root.AddCommand(
		newRunCommand(app, g),
		newConfigCommand(app, g),
		newListCommand(app, g),
		newDependsCommand(app, g),
		newIssueCommand(app, g),
		newVersionCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.Err == nil {
				return
			}
			fang.DefaultErrorHandler(w, styles, errors.New(formatErrorForDisplay(err, app.global.verbose)))
		}),
	)
	return exitCode(err)
}

// Execute runs the CLI and exits. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

func exitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return session.ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled):
		return session.ExitInterrupted
	default:
		return session.ExitFatal
	}
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors list their suggestions and, in verbose mode, the error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	msg := ae.Format(verboseMode)
	if ae.Issue != 0 {
		msg += fmt.Sprintf("\n\nRun 'envrun issue %d' for help.", ae.Issue)
	}
	return msg
}

// fatal wraps a preparation error so it maps to the fatal exit code.
func fatal(err error) error {
	return &ExitError{Code: session.ExitCode(nil, err), Err: err}
}
