// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/graph"
	"github.com/envrun/envrun/internal/source"
	"github.com/envrun/envrun/internal/testutil"
)

type hookRecorder struct {
	mu     sync.Mutex
	before []string
	after  map[string]int
}

func (h *hookRecorder) BeforeRunCommands(_ context.Context, env environment.Environment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, env.Name())
}

func (h *hookRecorder) AfterRunCommands(_ context.Context, env environment.Environment, code int, _ []*execute.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.after == nil {
		h.after = make(map[string]int)
	}
	h.after[env.Name()] = code
}

func virtual(*confset.Store) (execute.Executor, error) { return execute.NewVirtual(), nil }

// buildGraph builds selected from src with a virtual run kind and the builder package kind.
func buildGraph(t *testing.T, src *source.Memory, selected ...string) (*graph.Graph, string) {
	t.Helper()
	root := t.TempDir()
	cfg := confset.NewConfig(src, confset.WithRoot(root))
	if err := environment.DeclareCore(cfg.Core(), root); err != nil {
		t.Fatal(err)
	}
	kinds := envreg.New()
	if err := kinds.RegisterKind("native", environment.RoleRun, func(s environment.Spec) (environment.Environment, error) {
		return environment.NewRunEnv(s, virtual)
	}, "test"); err != nil {
		t.Fatal(err)
	}
	if err := kinds.RegisterKind(envreg.DefaultPackageKind, environment.RolePackage, func(s environment.Spec) (environment.Environment, error) {
		return environment.NewPackageEnv(s, virtual)
	}, "test"); err != nil {
		t.Fatal(err)
	}
	run := &environment.Run{ID: "test-run", Cache: environment.NewInstallCache(), Environ: os.Environ()}
	g, err := (&graph.Builder{Config: cfg, Kinds: kinds, Run: run}).Build(selected)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g, root
}

func packagedProject(buildCommand string) *source.Memory {
	return source.NewMemory().
		SetEnv("py", "package_env", "pkg").
		SetEnv("py", "deps", "a\nb").
		SetEnv("py", "install_command", `echo {packages} >> "$ENVRUN_ENV_DIR/installed.log"`).
		SetEnv("py", "commands", `true`+"\n"+`echo ran > "$ENVRUN_ROOT/py-ran"`).
		SetEnv("pkg", "build_commands", buildCommand)
}

type runMode struct {
	name string
	run  func(*Scheduler, context.Context, *graph.Graph) *Report
}

var modes = []runMode{
	{"sequential", func(s *Scheduler, ctx context.Context, g *graph.Graph) *Report { return s.RunSequential(ctx, g) }},
	{"parallel", func(s *Scheduler, ctx context.Context, g *graph.Graph) *Report { return s.RunParallel(ctx, g, 4) }},
}

func TestRun_PackagedEnvironmentSucceeds(t *testing.T) {
	t.Parallel()

	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			t.Parallel()
			g, root := buildGraph(t, packagedProject(`echo built > "$ENVRUN_DIST_DIR/pkg-1.0.tar.gz"`), "py", "pkg")
			hooks := &hookRecorder{}
			var out bytes.Buffer
			report := mode.run(New(WithHooks(hooks), WithOutput(&out)), t.Context(), g)

			if !report.Success() {
				t.Fatalf("Success() = false, outcomes: %+v", report.Outcomes())
			}
			outcomes := report.Outcomes()
			if len(outcomes) != 2 || outcomes[0].Env != "pkg" || outcomes[1].Env != "py" {
				t.Fatalf("outcomes = %v", names(outcomes))
			}
			wantPkg := []State{StatePending, StateSettingUp, StateInstalling, StatePackaging, StateSucceeded}
			if got := outcomes[0].States(); !slices.Equal(got, wantPkg) {
				t.Errorf("pkg states = %v, want %v", got, wantPkg)
			}
			wantPy := []State{StatePending, StateSettingUp, StateInstalling, StateRunning, StateSucceeded}
			if got := outcomes[1].States(); !slices.Equal(got, wantPy) {
				t.Errorf("py states = %v, want %v", got, wantPy)
			}
			if len(outcomes[1].Commands) != 2 {
				t.Errorf("py ran %d commands, want 2", len(outcomes[1].Commands))
			}

			log, err := os.ReadFile(filepath.Join(root, ".envrun", "py", "installed.log"))
			if err != nil {
				t.Fatalf("read install log: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(string(log)), "\n")
			if len(lines) != 2 || lines[0] != "a b" || !strings.HasSuffix(lines[1], "pkg-1.0.tar.gz") {
				t.Errorf("install log = %q", lines)
			}
			if !slices.Equal(hooks.before, []string{"py"}) || hooks.after["py"] != 0 {
				t.Errorf("hooks = %v / %v", hooks.before, hooks.after)
			}
		})
	}
}

func TestRun_FailedPackageSkipsDependents(t *testing.T) {
	t.Parallel()

	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			t.Parallel()
			g, root := buildGraph(t, packagedProject("exit 4"), "py", "pkg")
			hooks := &hookRecorder{}
			report := mode.run(New(WithHooks(hooks), WithOutput(&bytes.Buffer{})), t.Context(), g)

			if report.Success() {
				t.Fatal("Success() = true, want false")
			}
			pkg, _ := report.Outcome("pkg")
			if pkg.State != StateFailed || pkg.Kind != KindCommandFailure || pkg.ExitCode != 4 {
				t.Errorf("pkg = %s/%s/%d", pkg.State, pkg.Kind, pkg.ExitCode)
			}
			py, _ := report.Outcome("py")
			if py.State != StateSkipped || !strings.Contains(py.Reason, "pkg") {
				t.Errorf("py = %s (%q)", py.State, py.Reason)
			}
			if got := py.States(); !slices.Equal(got, []State{StatePending, StateSkipped}) {
				t.Errorf("py states = %v", got)
			}
			if _, err := os.Stat(filepath.Join(root, "py-ran")); !errors.Is(err, os.ErrNotExist) {
				t.Error("py commands ran although its package failed")
			}
			if len(hooks.before) != 0 {
				t.Errorf("run hooks fired for %v", hooks.before)
			}
		})
	}
}

func TestRun_MissingRequirement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		skip      string
		wantState State
	}{
		{"true", StateSkipped},
		{"false", StateFailed},
	}
	for _, tt := range tests {
		t.Run("skip="+tt.skip, func(t *testing.T) {
			t.Parallel()
			src := source.NewMemory().
				SetCore("skip_missing_interpreters", tt.skip).
				SetEnv("py", "base", "envrun-no-such-interpreter").
				SetEnv("py", "commands", "true")
			g, _ := buildGraph(t, src, "py")
			report := New(WithOutput(&bytes.Buffer{})).RunSequential(t.Context(), g)
			o, _ := report.Outcome("py")
			if o.State != tt.wantState {
				t.Fatalf("state = %s, want %s", o.State, tt.wantState)
			}
			if !errors.Is(o.Err, environment.ErrMissingRequirement) {
				t.Errorf("Err = %v, want ErrMissingRequirement", o.Err)
			}
			if tt.wantState == StateSkipped && !report.Success() {
				t.Error("a skipped environment failed the run")
			}
			if tt.wantState == StateFailed && (report.Success() || o.Kind != KindSetupError) {
				t.Errorf("Success() = %v, Kind = %s", report.Success(), o.Kind)
			}
		})
	}
}

func TestRun_CommandFailure(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("ok", "commands", "true").
		SetEnv("bad", "commands", "exit 3")
	g, _ := buildGraph(t, src, "ok", "bad")
	hooks := &hookRecorder{}
	clock := testutil.NewFakeClock(time.Time{})
	report := New(WithHooks(hooks), WithClock(clock), WithOutput(&bytes.Buffer{})).RunSequential(t.Context(), g)

	bad, _ := report.Outcome("bad")
	if bad.State != StateFailed || bad.Kind != KindCommandFailure || bad.ExitCode != 3 {
		t.Errorf("bad = %s/%s/%d", bad.State, bad.Kind, bad.ExitCode)
	}
	if !errors.Is(bad.Err, environment.ErrCommandFailed) {
		t.Errorf("Err = %v", bad.Err)
	}
	if hooks.after["bad"] != 3 || hooks.after["ok"] != 0 {
		t.Errorf("after hook codes = %v", hooks.after)
	}
	ok, _ := report.Outcome("ok")
	if ok.Kind != KindSuccess {
		t.Errorf("ok kind = %s", ok.Kind)
	}
	for _, tr := range ok.Transitions {
		if !tr.At.Equal(clock.Now()) {
			t.Errorf("transition %s at %v, want fake clock time", tr.State, tr.At)
		}
	}
	if counts := report.Counts(); counts[StateSucceeded] != 1 || counts[StateFailed] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestRun_Interrupted(t *testing.T) {
	t.Parallel()

	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			t.Parallel()
			g, _ := buildGraph(t, packagedProject("true"), "py", "lint")
			ctx, cancel := context.WithCancel(t.Context())
			cancel()
			report := mode.run(New(WithOutput(&bytes.Buffer{})), ctx, g)
			if !report.Interrupted {
				t.Error("Interrupted = false")
			}
			if len(report.Outcomes()) != g.Len() {
				t.Fatalf("outcomes = %v, want %d", names(report.Outcomes()), g.Len())
			}
			for _, o := range report.Outcomes() {
				if o.State != StateSkipped || o.Reason != ReasonInterrupted {
					t.Errorf("%s = %s (%q)", o.Env, o.State, o.Reason)
				}
			}
		})
	}
}

func TestRunParallel_OutputNotInterleaved(t *testing.T) {
	t.Parallel()

	src := source.NewMemory()
	var selected []string
	for _, name := range []string{"a", "b", "c", "d"} {
		src.SetEnv(name, "commands", "echo "+name+"1\necho "+name+"2\necho "+name+"3")
		selected = append(selected, name)
	}
	g, _ := buildGraph(t, src, selected...)
	var out bytes.Buffer
	report := New(WithOutput(&out)).RunParallel(t.Context(), g, 3)
	if !report.Success() {
		t.Fatalf("run failed: %+v", report.Outcomes())
	}
	for _, o := range report.Outcomes() {
		if o.Output == "" || !strings.Contains(out.String(), o.Output) {
			t.Errorf("output of %s is not contiguous in:\n%s", o.Env, out.String())
		}
	}
}

func TestRunParallel_DegradesToSequential(t *testing.T) {
	t.Parallel()

	g, _ := buildGraph(t, source.NewMemory().SetEnv("a", "commands", "true").SetEnv("b", "commands", "true"), "a", "b")
	report := New(WithOutput(&bytes.Buffer{})).RunParallel(t.Context(), g, 1)
	if got := names(report.Outcomes()); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("outcomes = %v", got)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateSettingUp, true},
		{StatePending, StateSkipped, true},
		{StateInstalling, StatePackaging, true},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateSettingUp, false},
		{StateSucceeded, StatePending, false},
		{StatePending, StateRunning, false},
		{StateFailed, StateSkipped, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	o := &Outcome{Env: "py"}
	_ = o.enter(StatePending, time.Time{})
	_ = o.enter(StateSettingUp, time.Time{})
	var invalid *InvalidTransitionError
	if err := o.enter(StatePending, time.Time{}); !errors.As(err, &invalid) {
		t.Errorf("enter(pending) error = %v", err)
	}
	if o.State != StateSettingUp {
		t.Errorf("state changed to %s after a rejected transition", o.State)
	}
}

func names(outcomes []*Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Env
	}
	return out
}

func TestRun_LogsEnvAttributeOnce(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("lint", "deps", "ruff").
		SetEnv("lint", "install_command", "true {packages}").
		SetEnv("lint", "commands", "true")
	g, _ := buildGraph(t, src, "lint")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(t.Context(), logger)
	report := New(WithOutput(&bytes.Buffer{})).RunSequential(ctx, g)
	if !report.Success() {
		t.Fatalf("run failed: %s", logs.String())
	}

	var sawRun, sawInstall bool
	for line := range strings.Lines(logs.String()) {
		if n := strings.Count(line, "env=lint"); n > 1 {
			t.Errorf("env attribute repeated %d times: %s", n, line)
		}
		sawRun = sawRun || strings.Contains(line, "msg=run ")
		sawInstall = sawInstall || strings.Contains(line, "msg=install ")
	}
	if !sawRun || !sawInstall {
		t.Errorf("missing run or install log lines:\n%s", logs.String())
	}
}
