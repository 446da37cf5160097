// SPDX-License-Identifier: MPL-2.0

package plugins

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/hook"
)

// KeySlowThreshold is the core key above which timing warns about an environment.
const KeySlowThreshold = "slow_threshold"

// Timing logs how long the commands of each environment took.
type Timing struct {
	now func() time.Time

	core *confset.Store

	mu      sync.Mutex
	started map[string]time.Time
}

// NewTiming returns the timing plugin.
func NewTiming() *Timing {
	return &Timing{now: time.Now, started: make(map[string]time.Time)}
}

// Name implements hook.Plugin.
func (t *Timing) Name() string { return "timing" }

// Hooks implements hook.Declarer.
func (t *Timing) Hooks() []hook.Point {
	return []hook.Point{hook.PointAddCoreConfig, hook.PointBeforeRunCommands, hook.PointAfterRunCommands}
}

// AddCoreConfig implements hook.CoreConfigContributor.
func (t *Timing) AddCoreConfig(core *confset.Store) error {
	t.core = core
	return core.Declare(confset.Declaration{
		Keys: []string{KeySlowThreshold}, Type: confset.TypeDuration, Default: time.Duration(0),
		Desc: "warn when an environment's commands take longer (0 disables)",
	})
}

// BeforeRunCommands implements hook.BeforeRunObserver.
func (t *Timing) BeforeRunCommands(_ context.Context, env environment.Environment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[env.Name()] = t.now()
}

// AfterRunCommands implements hook.AfterRunObserver.
func (t *Timing) AfterRunCommands(ctx context.Context, env environment.Environment, exitCode int, results []*execute.Result) {
	logger := ctxlog.FromContext(ctx)
	for _, r := range results {
		logger.Info("command timing",
			slog.String("label", r.Label),
			slog.String("command", r.Command),
			slog.Duration("elapsed", r.Elapsed))
	}

	t.mu.Lock()
	start, ok := t.started[env.Name()]
	delete(t.started, env.Name())
	t.mu.Unlock()
	if !ok {
		return
	}
	total := t.now().Sub(start)
	logger.Info("commands finished", slog.Duration("elapsed", total), slog.Int("exit_code", exitCode))

	if threshold := t.threshold(); threshold > 0 && total > threshold {
		logger.Warn("environment exceeded slow threshold",
			slog.Duration("elapsed", total), slog.Duration("threshold", threshold))
	}
}

func (t *Timing) threshold() time.Duration {
	if t.core == nil {
		return 0
	}
	d, err := confset.Get[time.Duration](t.core, KeySlowThreshold)
	if err != nil {
		return 0
	}
	return d
}
