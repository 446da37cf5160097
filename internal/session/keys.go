// SPDX-License-Identifier: MPL-2.0

package session

import (
	"github.com/envrun/envrun/internal/config"
	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
)

// Core keys owned by the session.
const (
	CoreEnvList  = "env_list"
	CoreLabels   = "labels"
	CorePlugins  = "plugins"
	CoreParallel = "parallel"
)

// declareCore registers the core keys. The settings-backed declarations come
// first so their defaults survive the later DeclareCore merge.
func declareCore(core *confset.Store, root string, settings *config.Config) error {
	pre := []confset.Declaration{
		{Keys: []string{environment.CoreDefaultRunner}, Type: confset.TypeString,
			Default: string(settings.DefaultRunner), Desc: "kind used when an environment names none"},
	}
	if settings.WorkDir != "" {
		pre = append(pre, confset.Declaration{Keys: []string{environment.CoreWorkDir, "workdir"}, Type: confset.TypePath,
			Default: settings.WorkDir, Desc: "directory holding environment directories"})
	}
	for _, d := range pre {
		if err := core.Declare(d); err != nil {
			return err
		}
	}
	if err := environment.DeclareCore(core, root); err != nil {
		return err
	}

	plugins := settings.Plugins
	if plugins == nil {
		plugins = []string{}
	}
	for _, d := range []confset.Declaration{
		{Keys: []string{CoreEnvList, "envlist"}, Type: confset.TypeNameList, Default: []string{},
			Desc: "environments run when none are selected"},
		{Keys: []string{CoreLabels}, Type: confset.TypeEnvMap, Default: confset.EnvVars{},
			Desc: "label = comma separated environments"},
		{Keys: []string{CorePlugins}, Type: confset.TypeNameList, Default: plugins,
			Desc: "optional plugins to enable"},
		{Keys: []string{CoreParallel}, Type: confset.TypeInt, Default: settings.Parallel,
			Desc: "environments run at once, 0 or 1 runs sequentially"},
	} {
		if err := core.Declare(d); err != nil {
			return err
		}
	}
	return nil
}

// declareLabels registers the environment labels key before the environment
// exists so selection can read it.
func declareLabels(conf *confset.Store) error {
	return conf.Declare(confset.Declaration{Keys: []string{environment.KeyLabels}, Type: confset.TypeNameList,
		Default: []string{}, Desc: "labels selecting this environment"})
}
