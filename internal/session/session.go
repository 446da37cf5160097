// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/envrun/envrun/internal/config"
	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
	"github.com/envrun/envrun/internal/graph"
	"github.com/envrun/envrun/internal/hook"
	"github.com/envrun/envrun/internal/issue"
	"github.com/envrun/envrun/internal/plugins"
	"github.com/envrun/envrun/internal/scheduler"
	"github.com/envrun/envrun/internal/source"

	"golang.org/x/sync/errgroup"
)

// Exit codes of an invocation.
const (
	ExitSuccess     = 0
	ExitEnvFailure  = 1
	ExitFatal       = 2
	ExitInterrupted = 130
)

type (
	// Options are the inputs of one invocation.
	Options struct {
		// Root is the project directory; empty means the working directory.
		Root string
		// ConfigFile points at the project configuration explicitly.
		ConfigFile string
		// Envs lists environments by name or glob; "ALL" selects every environment.
		Envs []string
		// Labels selects environments carrying any of the labels.
		Labels []string
		// Factors keeps environments whose names contain every factor.
		Factors []string
		// Overrides are "[section.]key=value" strings.
		Overrides []string
		// SkipMissing overrides the core skip_missing_interpreters key when set.
		SkipMissing *bool
		PosArgs     []string
		HasPosArgs  bool
		// Parallel overrides the core parallel key when not negative.
		Parallel int
		Settings *config.Config
		Stdout   io.Writer
		Clock    scheduler.Clock
	}

	// Session is a prepared invocation.
	Session struct {
		opts     Options
		hooks    *hook.Registry
		cfg      *confset.Config
		kinds    *envreg.Registry
		graph    *graph.Graph
		selected []string
		run      *environment.Run
	}
)

// NewRegistry returns a plugin registry holding the builtin plugins.
func NewRegistry(settings *config.Config) *hook.Registry {
	reg := hook.New()
	for _, p := range plugins.Builtin(settings.Container.DefaultImage) {
		// builtin names are unique
		_ = reg.Register(p)
	}
	return reg
}

// New prepares an invocation. reg must already hold the builtin plugins;
// New registers the optional ones the configuration enables and freezes it.
func New(ctx context.Context, opts Options, reg *hook.Registry) (*Session, error) {
	if opts.Settings == nil {
		opts.Settings = config.DefaultConfig()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	root, err := projectRoot(opts.Root, opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	src, err := source.Discover(root, opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded project configuration", slog.String("path", src.Path()))

	overrides, err := confset.ParseOverrides(opts.Overrides)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse overrides").
			WithSuggestion("Write overrides as [section.]key=value or [section.]key+=value").
			Wrap(err).
			BuildError()
	}
	if opts.SkipMissing != nil {
		overrides = append(overrides, confset.Override{
			Section: source.CoreSection, Key: environment.CoreSkipMissing, Value: fmt.Sprint(*opts.SkipMissing),
		})
	}
	cfgOpts := []confset.Option{confset.WithOverrides(overrides), confset.WithRoot(root)}
	if opts.HasPosArgs {
		cfgOpts = append(cfgOpts, confset.WithPosArgs(opts.PosArgs))
	}
	cfg := confset.NewConfig(src, cfgOpts...)
	if err := declareCore(cfg.Core(), root, opts.Settings); err != nil {
		return nil, err
	}

	if p, ok := reg.Lookup("runners"); ok {
		if runners, ok := p.(*plugins.Runners); ok {
			runners.DefaultImage = opts.Settings.Container.DefaultImage
		}
	}
	if err := enablePlugins(cfg.Core(), reg); err != nil {
		return nil, err
	}
	if err := reg.CheckPending(); err != nil {
		return nil, err
	}
	reg.Freeze()
	if err := reg.AddCoreConfig(cfg.Core()); err != nil {
		return nil, err
	}

	kinds := envreg.New()
	if err := reg.RegisterKinds(kinds); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("register environment kinds").
			WithIssue(issue.KindConflictID).
			Wrap(err).
			BuildError()
	}

	s := &Session{opts: opts, hooks: reg, cfg: cfg, kinds: kinds, run: environment.NewRun()}
	if s.selected, err = s.selectEnvs(); err != nil {
		return nil, err
	}
	logger.Debug("selected environments", slog.Any("envs", s.selected))

	s.graph, err = (&graph.Builder{Config: cfg, Kinds: kinds, Hooks: reg, Run: s.run}).Build(s.selected)
	if err != nil {
		return nil, graphError(err)
	}
	if skipped := s.graph.Unconsumed(); len(skipped) > 0 {
		logger.Warn("package environments have no selected consumer and will not be built", slog.Any("envs", skipped))
	}
	return s, nil
}

func projectRoot(root, configFile string) (string, error) {
	if root == "" && configFile != "" {
		root = filepath.Dir(configFile)
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

func enablePlugins(core *confset.Store, reg *hook.Registry) error {
	names, err := confset.Get[[]string](core, CorePlugins)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := reg.Lookup(name); ok {
			continue
		}
		p, err := plugins.Optional(name)
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("enable plugins").
				WithResource(name).
				WithSuggestion(fmt.Sprintf("Available optional plugins: %v", plugins.OptionalNames())).
				Wrap(err).
				BuildError()
		}
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

func graphError(err error) error {
	ctx := issue.NewErrorContext().WithOperation("build environment graph")
	var (
		invalid  *graph.InvalidDependencyError
		noKind   *envreg.NoMatchingKindError
		conflict *envreg.KindConflictError
	)
	switch {
	case errors.As(err, &invalid):
		ctx = ctx.WithResource(invalid.Env).
			WithSuggestion("A package environment cannot itself name a package_env").
			WithIssue(issue.InvalidDependencyID)
	case errors.As(err, &noKind):
		ctx = ctx.WithResource(noKind.Env).
			WithSuggestion("Set runner to one of the registered kinds, see 'envrun list --kinds'").
			WithIssue(issue.NoMatchingKindID)
	case errors.As(err, &conflict):
		ctx = ctx.WithIssue(issue.KindConflictID)
	case errors.Is(err, confset.ErrUnresolvedSubstitution):
		ctx = ctx.WithIssue(issue.UnresolvedSubstitutionID)
	}
	return ctx.Wrap(err).BuildError()
}

// Config returns the configuration stores.
func (s *Session) Config() *confset.Config { return s.cfg }

// Graph returns the built dependency graph.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Kinds returns the registered environment kinds.
func (s *Session) Kinds() *envreg.Registry { return s.kinds }

// Hooks returns the frozen plugin registry.
func (s *Session) Hooks() *hook.Registry { return s.hooks }

// Selected returns the environments chosen on the command line, in order.
func (s *Session) Selected() []string { return s.selected }

// RunID identifies this invocation.
func (s *Session) RunID() string { return s.run.ID }

// Parallelism returns the number of environments run at once.
func (s *Session) Parallelism() (int, error) {
	if s.opts.Parallel >= 0 {
		return s.opts.Parallel, nil
	}
	return confset.Get[int](s.cfg.Core(), CoreParallel)
}

// Run schedules the graph and closes every environment afterwards.
func (s *Session) Run(ctx context.Context) (*scheduler.Report, error) {
	parallel, err := s.Parallelism()
	if err != nil {
		return nil, err
	}
	schedOpts := []scheduler.Option{scheduler.WithHooks(s.hooks), scheduler.WithOutput(s.opts.Stdout)}
	if s.opts.Clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(s.opts.Clock))
	}
	sched := scheduler.New(schedOpts...)

	var report *scheduler.Report
	if parallel > 1 {
		report = sched.RunParallel(ctx, s.graph, parallel)
	} else {
		report = sched.RunSequential(ctx, s.graph)
	}
	s.Close(ctx)
	return report, nil
}

// Close releases every environment. Failures are logged.
func (s *Session) Close(ctx context.Context) {
	// closing must finish even after an interrupt
	ctx = context.WithoutCancel(ctx)
	logger := ctxlog.FromContext(ctx)
	var g errgroup.Group
	for _, env := range s.graph.Environments() {
		g.Go(func() error {
			if err := env.Close(ctx); err != nil {
				logger.Warn("closing environment failed", slog.String("env", env.Name()), slog.Any("error", err))
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ExitCode maps the result of an invocation to a process exit code.
func ExitCode(report *scheduler.Report, err error) int {
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		return ExitInterrupted
	case err != nil:
		return ExitFatal
	case report == nil:
		return ExitFatal
	case report.Interrupted:
		return ExitInterrupted
	case !report.Success():
		return ExitEnvFailure
	default:
		return ExitSuccess
	}
}
