// SPDX-License-Identifier: MPL-2.0

// Package scheduler drives environments through their lifecycle, one at a
// time or with a bounded worker pool, and collects their outcomes.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/graph"
)

// ReasonInterrupted is the skip reason of environments never started because of an interrupt.
const ReasonInterrupted = "interrupted"

type (
	// Hooks observes command execution of run environments.
	Hooks interface {
		BeforeRunCommands(ctx context.Context, env environment.Environment)
		AfterRunCommands(ctx context.Context, env environment.Environment, exitCode int, results []*execute.Result)
	}

	// Clock provides the time stamps of transitions.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	// Scheduler runs a graph of environments.
	Scheduler struct {
		hooks  Hooks
		clock  Clock
		stdout io.Writer

		outMu sync.Mutex
	}

	// Option configures a Scheduler.
	Option func(*Scheduler)

	realClock struct{}

	// skipMissing is implemented by environments that know their skip policy.
	skipMissing interface {
		SkipMissing() bool
	}
)

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

// WithHooks sets the run observers.
func WithHooks(h Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithOutput sets where environment output goes.
func WithOutput(w io.Writer) Option {
	return func(s *Scheduler) { s.stdout = w }
}

// New returns a scheduler writing to os.Stdout.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: realClock{}, stdout: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunSequential runs each environment to a terminal state before starting
// the next, in graph order.
func (s *Scheduler) RunSequential(ctx context.Context, g *graph.Graph) *Report {
	start := s.clock.Now()
	report := &Report{}
	for _, node := range g.Nodes() {
		if ctx.Err() != nil {
			s.finish(report, s.skip(node, ReasonInterrupted), nil)
			continue
		}
		if reason, skip := s.blocked(report, node); skip {
			s.finish(report, s.skip(node, reason), nil)
			continue
		}
		var buf bytes.Buffer
		out := &lockedWriter{mu: &s.outMu, w: io.MultiWriter(s.stdout, &buf)}
		o := s.run(ctx, node, out)
		o.Output = buf.String()
		s.finish(report, o, nil)
	}
	report.Interrupted = ctx.Err() != nil
	report.Elapsed = s.clock.Since(start)
	return report
}

// RunParallel runs up to maxConcurrency environments at once. An environment
// is dispatched once its package environment succeeded; the dependents of a
// failed package are skipped without being dispatched. Output of each
// environment is buffered and written in one piece when it finishes.
func (s *Scheduler) RunParallel(ctx context.Context, g *graph.Graph, maxConcurrency int) *Report {
	if maxConcurrency <= 1 {
		return s.RunSequential(ctx, g)
	}
	start := s.clock.Now()
	report := &Report{}
	p := &pool{
		s:       s,
		g:       g,
		report:  report,
		ready:   make(chan *graph.Descriptor, g.Len()),
		pending: make(map[string]int, g.Len()),
	}
	p.wg.Add(g.Len())
	for _, node := range g.Nodes() {
		p.pending[node.Env.Name()] = len(g.Dependencies(node.Env.Name()))
	}
	for _, node := range g.Nodes() {
		if p.pending[node.Env.Name()] == 0 {
			p.ready <- node
		}
	}

	workers := min(maxConcurrency, max(g.Len(), 1))
	var done sync.WaitGroup
	for id := range workers {
		done.Add(1)
		go func() {
			defer done.Done()
			p.worker(ctx, id)
		}()
	}
	p.wg.Wait()
	close(p.ready)
	done.Wait()

	report.Interrupted = ctx.Err() != nil
	report.Elapsed = s.clock.Since(start)
	return report
}

// blocked reports whether node depends on a package environment that did not succeed.
func (s *Scheduler) blocked(report *Report, node *graph.Descriptor) (string, bool) {
	if node.Package == "" {
		return "", false
	}
	o, ok := report.Outcome(node.Package)
	if ok && o.Succeeded() {
		return "", false
	}
	return fmt.Sprintf("package environment %s %s", node.Package, packageState(o)), true
}

func packageState(o *Outcome) string {
	if o == nil {
		return "did not run"
	}
	if o.State == StateSkipped {
		return "was skipped"
	}
	return "failed"
}

func (s *Scheduler) newOutcome(node *graph.Descriptor) *Outcome {
	o := &Outcome{Env: node.Env.Name(), Role: node.Role, EnvKind: node.Env.Kind()}
	_ = o.enter(StatePending, s.clock.Now())
	return o
}

func (s *Scheduler) skip(node *graph.Descriptor, reason string) *Outcome {
	o := s.newOutcome(node)
	_ = o.enter(StateSkipped, s.clock.Now())
	o.Kind, o.Reason = KindSkipped, reason
	return o
}

// finish records o and writes buffered output in one piece.
func (s *Scheduler) finish(report *Report, o *Outcome, buffered []byte) {
	s.outMu.Lock()
	if len(buffered) > 0 {
		_, _ = s.stdout.Write(buffered)
	}
	report.add(o)
	s.outMu.Unlock()
}

// run drives one environment from pending to a terminal state.
func (s *Scheduler) run(ctx context.Context, node *graph.Descriptor, out io.Writer) *Outcome {
	env := node.Env
	ctx = ctxlog.With(ctx, "env", env.Name())
	log := ctxlog.FromContext(ctx)
	o := s.newOutcome(node)
	start := s.clock.Now()
	defer func() { o.Elapsed = s.clock.Since(start) }()

	env.SetOutput(out, out)
	s.enter(ctx, o, StateSettingUp)
	if err := env.Setup(ctx); err != nil {
		if errors.Is(err, environment.ErrMissingRequirement) && skipsMissing(env) {
			log.Warn("skipped", "reason", err)
			s.enter(ctx, o, StateSkipped)
			o.Kind, o.Reason, o.Err = KindSkipped, err.Error(), err
			return o
		}
		return s.fail(ctx, o, KindSetupError, err)
	}

	s.enter(ctx, o, StateInstalling)
	if err := env.InstallDependencies(ctx); err != nil {
		return s.fail(ctx, o, KindSetupError, err)
	}

	if pkg, ok := env.(environment.Packager); ok && node.Role == environment.RolePackage {
		s.enter(ctx, o, StatePackaging)
		if _, err := pkg.Package(ctx); err != nil {
			return s.fail(ctx, o, commandKind(err), err)
		}
		return s.succeed(ctx, o)
	}

	if s.hooks != nil {
		s.hooks.BeforeRunCommands(ctx, env)
	}
	s.enter(ctx, o, StateRunning)
	results, err := env.RunCommands(ctx)
	o.Commands = results
	code := 0
	if err != nil {
		code = environment.ExitCode(err)
	}
	if s.hooks != nil {
		s.hooks.AfterRunCommands(ctx, env, code, results)
	}
	if err != nil {
		return s.fail(ctx, o, commandKind(err), err)
	}
	return s.succeed(ctx, o)
}

func (s *Scheduler) enter(ctx context.Context, o *Outcome, state State) {
	if err := o.enter(state, s.clock.Now()); err != nil {
		ctxlog.FromContext(ctx).Error("state", "error", err)
		return
	}
	ctxlog.FromContext(ctx).Debug("state", "state", string(state))
}

func (s *Scheduler) succeed(ctx context.Context, o *Outcome) *Outcome {
	s.enter(ctx, o, StateSucceeded)
	o.Kind = KindSuccess
	return o
}

func (s *Scheduler) fail(ctx context.Context, o *Outcome, kind OutcomeKind, err error) *Outcome {
	s.enter(ctx, o, StateFailed)
	o.Kind, o.Err, o.ExitCode = kind, err, environment.ExitCode(err)
	if ctx.Err() != nil {
		o.Reason = ReasonInterrupted
	}
	ctxlog.FromContext(ctx).Error("failed", "kind", string(kind), "error", err)
	return o
}

func commandKind(err error) OutcomeKind {
	if errors.Is(err, environment.ErrCommandFailed) {
		return KindCommandFailure
	}
	return KindSetupError
}

func skipsMissing(env environment.Environment) bool {
	if s, ok := env.(skipMissing); ok {
		return s.SkipMissing()
	}
	skip, err := confset.Get[bool](env.Conf(), environment.KeySkipMissing)
	return err == nil && skip
}

// lockedWriter serializes writes of the sequential runner with flushes.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
