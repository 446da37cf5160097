// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/envrun/envrun/internal/confset"

	"github.com/bmatcuk/doublestar/v4"
)

// Variables exported to every command.
const (
	EnvVarEnvName = "ENVRUN_ENV_NAME"
	EnvVarEnvDir  = "ENVRUN_ENV_DIR"
	EnvVarWorkDir = "ENVRUN_WORKDIR"
	EnvVarRunID   = "ENVRUN_RUN_ID"
	EnvVarRoot    = "ENVRUN_ROOT"
)

// alwaysPassed are host variables commands receive regardless of pass_env.
var alwaysPassed = []string{
	"PATH", "HOME", "USER", "LANG", "LC_*", "TERM", "TMPDIR", "TMP", "TEMP",
	"CI", "SSL_CERT_FILE", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "DOCKER_HOST",
}

var windowsPassed = []string{"SYSTEMROOT", "SYSTEMDRIVE", "COMSPEC", "PATHEXT", "USERPROFILE", "APPDATA", "PROGRAMDATA", "WINDIR"}

// buildEnviron selects host variables through pass_env, applies set_env and
// adds the ENVRUN_* variables. PATH starts with the environment's bin directory.
func (b *Base) buildEnviron() ([]string, error) {
	conf := b.spec.Conf
	passEnv, err := confset.Get[[]string](conf, KeyPassEnv)
	if err != nil {
		return nil, err
	}
	setEnv, err := confset.Get[confset.EnvVars](conf, KeySetEnv)
	if err != nil {
		return nil, err
	}
	envDir, err := confset.Get[string](conf, KeyEnvDir)
	if err != nil {
		return nil, err
	}
	workDir, err := confset.Get[string](b.spec.Core, CoreWorkDir)
	if err != nil {
		return nil, err
	}
	root, err := confset.Get[string](b.spec.Core, CoreRoot)
	if err != nil {
		return nil, err
	}

	patterns := append(slices.Clone(alwaysPassed), passEnv...)
	if runtime.GOOS == "windows" {
		patterns = append(patterns, windowsPassed...)
	}
	vars := make(map[string]string)
	var order []string
	set := func(name, value string) {
		if _, ok := vars[name]; !ok {
			order = append(order, name)
		}
		vars[name] = value
	}
	for _, kv := range b.spec.Run.Environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if matchAny(patterns, name) {
			set(name, value)
		}
	}
	for _, v := range setEnv {
		set(v.Name, v.Value)
	}
	set(EnvVarEnvName, b.Name())
	set(EnvVarEnvDir, envDir)
	set(EnvVarWorkDir, workDir)
	set(EnvVarRoot, root)
	set(EnvVarRunID, b.RunID())

	bin := binDir(envDir)
	if path, ok := vars["PATH"]; ok && path != "" {
		set("PATH", bin+string(os.PathListSeparator)+path)
	} else {
		set("PATH", bin)
	}

	out := make([]string, 0, len(order))
	for _, name := range order {
		out = append(out, name+"="+vars[name])
	}
	return out, nil
}

// matchAny matches a variable name against pass_env globs. Names compare
// case-insensitively on Windows.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if runtime.GOOS == "windows" {
			p, name = strings.ToUpper(p), strings.ToUpper(name)
		}
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func lookup(environ []string, name string) (string, bool) {
	for i := len(environ) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(environ[i], "="); ok && k == name {
			return v, true
		}
	}
	return "", false
}
