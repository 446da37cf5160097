// SPDX-License-Identifier: MPL-2.0

package plugins

import (
	"time"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/hook"
)

// KeyImage selects the image of container environments.
const KeyImage = "image"

// Runners registers the native, virtual and container run kinds.
type Runners struct {
	// DefaultImage is used by container environments that set no image.
	DefaultImage string
}

// NewRunners returns the runners plugin.
func NewRunners(defaultImage string) *Runners {
	return &Runners{DefaultImage: defaultImage}
}

// Name implements hook.Plugin.
func (r *Runners) Name() string { return "runners" }

// Hooks implements hook.Declarer.
func (r *Runners) Hooks() []hook.Point {
	return []hook.Point{hook.PointRegisterEnvKinds, hook.PointAddEnvConfig}
}

// RegisterEnvKinds implements hook.KindRegistrar.
func (r *Runners) RegisterEnvKinds(kinds *envreg.Registry) error {
	for _, k := range []struct {
		name    string
		newExec environment.ExecutorFunc
	}{
		{execute.NameNative, nativeExecutor},
		{execute.NameVirtual, virtualExecutor},
		{execute.NameContainer, containerExecutor},
	} {
		if err := kinds.RegisterKind(k.name, environment.RoleRun, runFactory(k.newExec), r.Name()); err != nil {
			return err
		}
	}
	return nil
}

// AddEnvConfig implements hook.EnvConfigContributor.
func (r *Runners) AddEnvConfig(env environment.Environment) error {
	if env.Kind() != execute.NameContainer {
		return nil
	}
	return env.Conf().Declare(confset.Declaration{
		Keys: []string{KeyImage}, Type: confset.TypeString, Default: r.DefaultImage,
		Desc: "container image commands run in",
	})
}

func runFactory(newExec environment.ExecutorFunc) envreg.Factory {
	return func(spec environment.Spec) (environment.Environment, error) {
		return environment.NewRunEnv(spec, newExec)
	}
}

func nativeExecutor(conf *confset.Store) (execute.Executor, error) {
	timeout, err := confset.Get[time.Duration](conf, environment.KeyInterruptTimeout)
	if err != nil {
		return nil, err
	}
	n := execute.NewNative()
	n.InterruptTimeout = timeout
	return n, nil
}

func virtualExecutor(*confset.Store) (execute.Executor, error) {
	return execute.NewVirtual(), nil
}

func containerExecutor(conf *confset.Store) (execute.Executor, error) {
	image, err := confset.Get[string](conf, KeyImage)
	if err != nil {
		return nil, err
	}
	root, err := confset.Get[string](conf.Config().Core(), environment.CoreRoot)
	if err != nil {
		return nil, err
	}
	return execute.NewContainer(image, root), nil
}
