// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/envrun/envrun/internal/config"
	"github.com/envrun/envrun/internal/ctxlog"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

type (
	// App wires the CLI to its dependencies. Every command handler receives it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		global globalOptions
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// globalOptions are the persistent flags shared by every command.
	globalOptions struct {
		verbose      bool
		settingsFile string
		confFile     string
		root         string
		color        string

		settings *config.Config
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
}

// prepare loads user settings and installs the logger into ctx. Broken
// settings are reported and replaced by the defaults.
func (a *App) prepare(ctx context.Context, g *globalOptions) context.Context {
	settings, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: g.settingsFile})
	if err != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, g.verbose))
		settings = config.DefaultConfig()
	}
	g.settings = settings
	return ctxlog.WithLogger(ctx, newLogger(a.stderr, string(settings.LogLevel), g.verbose))
}

// colored decides whether output to w is styled.
func (a *App) colored(g *globalOptions, w io.Writer) bool {
	mode := config.ColorMode(g.color)
	if mode == "" && g.settings != nil {
		mode = g.settings.Color
	}
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
	}
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.WarnLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix:          "envrun",
		Level:           lvl,
		ReportTimestamp: verbose,
	})
	return slog.New(handler)
}

func (g *globalOptions) settingsOrDefault() *config.Config {
	if g.settings != nil {
		return g.settings
	}
	return config.DefaultConfig()
}
