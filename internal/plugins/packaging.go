// SPDX-License-Identifier: MPL-2.0

package plugins

import (
	"fmt"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/hook"
)

// KeyBuildShell picks the shell package environments build with.
const KeyBuildShell = "build_shell"

// Packaging registers the builder package kind.
type Packaging struct{}

// Name implements hook.Plugin.
func (Packaging) Name() string { return "packaging" }

// Hooks implements hook.Declarer.
func (Packaging) Hooks() []hook.Point {
	return []hook.Point{hook.PointRegisterEnvKinds}
}

// RegisterEnvKinds implements hook.KindRegistrar.
func (p Packaging) RegisterEnvKinds(kinds *envreg.Registry) error {
	return kinds.RegisterKind(envreg.DefaultPackageKind, environment.RolePackage, newBuilder, p.Name())
}

func newBuilder(spec environment.Spec) (environment.Environment, error) {
	if err := spec.Conf.Declare(confset.Declaration{
		Keys: []string{KeyBuildShell}, Type: confset.TypeString, Default: execute.NameNative,
		Desc: "shell build commands run in: native or virtual",
	}); err != nil {
		return nil, err
	}
	return environment.NewPackageEnv(spec, builderExecutor)
}

func builderExecutor(conf *confset.Store) (execute.Executor, error) {
	shell, err := confset.Get[string](conf, KeyBuildShell)
	if err != nil {
		return nil, err
	}
	switch shell {
	case execute.NameNative:
		return nativeExecutor(conf)
	case execute.NameVirtual:
		return virtualExecutor(conf)
	default:
		return nil, fmt.Errorf("%s: unsupported value %q", KeyBuildShell, shell)
	}
}
