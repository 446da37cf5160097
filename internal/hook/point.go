// SPDX-License-Identifier: MPL-2.0

package hook

import (
	"context"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
	"github.com/envrun/envrun/internal/execute"

	"github.com/spf13/pflag"
)

// Extension points.
const (
	PointAddOption         Point = "add-option"
	PointAddCoreConfig     Point = "add-core-config"
	PointAddEnvConfig      Point = "add-env-config"
	PointRegisterEnvKinds  Point = "register-env-kinds"
	PointResolveEnvKind    Point = "resolve-env-kind"
	PointBeforeRunCommands Point = "before-run-commands"
	PointAfterRunCommands  Point = "after-run-commands"
)

type (
	// Point names an extension point.
	Point string

	// Plugin is the minimum a registered extension must provide.
	Plugin interface {
		Name() string
	}

	// Declarer lists the points a plugin means to implement. CheckPending
	// verifies the list, so a misspelt or unimplemented point fails at startup.
	Declarer interface {
		Hooks() []Point
	}

	// OptionContributor adds command-line flags.
	OptionContributor interface {
		AddOptions(flags *pflag.FlagSet)
	}

	// CoreConfigContributor declares keys of the core section.
	CoreConfigContributor interface {
		AddCoreConfig(core *confset.Store) error
	}

	// EnvConfigContributor declares keys of an environment once it is constructed.
	EnvConfigContributor interface {
		AddEnvConfig(env environment.Environment) error
	}

	// KindRegistrar registers environment kinds.
	KindRegistrar interface {
		RegisterEnvKinds(kinds *envreg.Registry) error
	}

	// KindResolver picks the kind of an environment that does not set runner.
	KindResolver interface {
		ResolveEnvKind(name string, conf *confset.Store) (string, bool)
	}

	// BeforeRunObserver is told when an environment is about to run its commands.
	BeforeRunObserver interface {
		BeforeRunCommands(ctx context.Context, env environment.Environment)
	}

	// AfterRunObserver is told when an environment finished running its commands.
	AfterRunObserver interface {
		AfterRunCommands(ctx context.Context, env environment.Environment, exitCode int, results []*execute.Result)
	}
)

// Points lists every extension point in dispatch-phase order.
func Points() []Point {
	return []Point{
		PointAddOption,
		PointAddCoreConfig,
		PointAddEnvConfig,
		PointRegisterEnvKinds,
		PointResolveEnvKind,
		PointBeforeRunCommands,
		PointAfterRunCommands,
	}
}

// Known reports whether p names an extension point.
func (p Point) Known() bool {
	_, ok := implementsPoint[p]
	return ok
}

var implementsPoint = map[Point]func(Plugin) bool{
	PointAddOption:         func(p Plugin) bool { _, ok := p.(OptionContributor); return ok },
	PointAddCoreConfig:     func(p Plugin) bool { _, ok := p.(CoreConfigContributor); return ok },
	PointAddEnvConfig:      func(p Plugin) bool { _, ok := p.(EnvConfigContributor); return ok },
	PointRegisterEnvKinds:  func(p Plugin) bool { _, ok := p.(KindRegistrar); return ok },
	PointResolveEnvKind:    func(p Plugin) bool { _, ok := p.(KindResolver); return ok },
	PointBeforeRunCommands: func(p Plugin) bool { _, ok := p.(BeforeRunObserver); return ok },
	PointAfterRunCommands:  func(p Plugin) bool { _, ok := p.(AfterRunObserver); return ok },
}

// Implements reports whether plugin takes part in point.
func Implements(plugin Plugin, point Point) bool {
	check, ok := implementsPoint[point]
	return ok && check(plugin)
}
