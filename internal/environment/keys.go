// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"path/filepath"
	"time"

	"github.com/envrun/envrun/internal/confset"
)

// Core keys every environment reads.
const (
	CoreRoot           = "root"
	CoreWorkDir        = "work_dir"
	CoreSkipMissing    = "skip_missing_interpreters"
	CoreDefaultRunner  = "default_runner"
	CoreDefaultPackage = "package_env"
)

// Environment keys.
const (
	KeyDescription      = "description"
	KeyRunner           = "runner"
	KeyPackageEnv       = "package_env"
	KeySkipInstall      = "skip_install"
	KeyBase             = "base"
	KeyDeps             = "deps"
	KeyInstallCommand   = "install_command"
	KeyCommandsPre      = "commands_pre"
	KeyCommands         = "commands"
	KeyCommandsPost     = "commands_post"
	KeyIgnoreErrors     = "ignore_errors"
	KeySetEnv           = "set_env"
	KeyPassEnv          = "pass_env"
	KeyChangeDir        = "change_dir"
	KeyEnvDir           = "env_dir"
	KeyEnvName          = "env_name"
	KeySkipMissing      = "skip_missing_interpreters"
	KeyLabels           = "labels"
	KeyInterruptTimeout = "interrupt_timeout"

	KeyBuildRequires = "build_requires"
	KeyBuildCommands = "build_commands"
	KeyDistDir       = "dist_dir"
	KeyArtifacts     = "artifacts"
	KeyPackageDeps   = "package_deps"
)

// Placeholders left in install_command for the installer arguments.
const (
	PlaceholderPackages = "{packages}"
	PlaceholderOpts     = "{opts}"
)

// DeclareCore registers the core keys environments depend on. It is safe to
// call more than once.
func DeclareCore(core *confset.Store, root string) error {
	decls := []confset.Declaration{
		{Keys: []string{CoreRoot, "project_dir"}, Type: confset.TypePath, Default: root, Desc: "project root"},
		{Keys: []string{CoreWorkDir, "workdir"}, Type: confset.TypePath, Desc: "directory holding environment directories",
			DefaultFunc: func(v confset.View) (any, error) {
				r, err := confset.ViewGet[string](v, CoreRoot)
				if err != nil {
					return nil, err
				}
				return filepath.Join(r, ".envrun"), nil
			}},
		{Keys: []string{CoreSkipMissing}, Type: confset.TypeBool, Default: true,
			Desc: "report environments with missing requirements as skipped"},
		{Keys: []string{CoreDefaultRunner}, Type: confset.TypeString, Default: "native", Desc: "kind used when an environment names none"},
		{Keys: []string{CoreDefaultPackage}, Type: confset.TypeString, Default: "", Desc: "package environment used by every run environment"},
	}
	for _, d := range decls {
		if err := core.Declare(d); err != nil {
			return err
		}
	}
	return nil
}

// DeclareRunner registers the key naming an environment's kind. Kind
// resolution reads it before the environment exists.
func DeclareRunner(conf *confset.Store) error {
	return conf.Declare(confset.Declaration{Keys: []string{KeyRunner}, Type: confset.TypeString, Default: "", Desc: "environment kind"})
}

// declareCommon registers the keys shared by run and package environments.
func declareCommon(conf *confset.Store, name string) error {
	decls := []confset.Declaration{
		{Keys: []string{KeyDescription}, Type: confset.TypeString, Default: "", Desc: "what the environment is for"},
		{Keys: []string{KeyEnvName, "envname"}, Type: confset.TypeString, Default: name, Desc: "environment name"},
		{Keys: []string{KeyEnvDir, "envdir"}, Type: confset.TypePath, Desc: "environment directory",
			DefaultFunc: func(v confset.View) (any, error) {
				work, err := confset.ViewGet[string](v.Core(), CoreWorkDir)
				if err != nil {
					return nil, err
				}
				return filepath.Join(work, name), nil
			}},
		{Keys: []string{KeyChangeDir, "changedir"}, Type: confset.TypePath, Desc: "working directory of commands",
			DefaultFunc: func(v confset.View) (any, error) {
				return confset.ViewGet[string](v.Core(), CoreRoot)
			}},
		{Keys: []string{KeyBase, "basepython"}, Type: confset.TypeNameList, Default: []string{}, Desc: "executables of which at least one must exist"},
		{Keys: []string{KeySkipMissing}, Type: confset.TypeBool, AllowCoreFallback: true, Desc: "skip instead of fail on a missing base",
			DefaultFunc: func(v confset.View) (any, error) {
				return confset.ViewGet[bool](v.Core(), CoreSkipMissing)
			}},
		{Keys: []string{KeyInstallCommand}, Type: confset.TypeString, Default: "", Desc: "installer; {opts} and {packages} receive arguments"},
		{Keys: []string{"packages"}, Type: confset.TypeString, Default: PlaceholderPackages},
		{Keys: []string{"opts"}, Type: confset.TypeString, Default: PlaceholderOpts},
		{Keys: []string{KeySetEnv, "setenv"}, Type: confset.TypeEnvMap, Default: confset.EnvVars{}, Desc: "variables set for commands"},
		{Keys: []string{KeyPassEnv, "passenv"}, Type: confset.TypeNameList, Default: []string{}, Desc: "host variables passed to commands, globs allowed"},
		{Keys: []string{KeyLabels}, Type: confset.TypeNameList, Default: []string{}, Desc: "labels selecting the environment"},
		{Keys: []string{KeyInterruptTimeout}, Type: confset.TypeDuration, Default: 3 * time.Second, Desc: "grace period after an interrupt"},
	}
	if err := DeclareRunner(conf); err != nil {
		return err
	}
	for _, d := range decls {
		if err := conf.Declare(d); err != nil {
			return err
		}
	}
	return nil
}

// DeclarePackageRef registers the key naming the package environment a run
// environment installs from. Graph building reads it before construction.
func DeclarePackageRef(conf *confset.Store) error {
	return conf.Declare(confset.Declaration{
		Keys: []string{KeyPackageEnv}, Type: confset.TypeString, AllowCoreFallback: true,
		Desc: "package environment to install from",
		DefaultFunc: func(v confset.View) (any, error) {
			return confset.ViewGet[string](v.Core(), CoreDefaultPackage)
		},
	})
}

func declareRun(conf *confset.Store) error {
	if err := DeclarePackageRef(conf); err != nil {
		return err
	}
	decls := []confset.Declaration{
		{Keys: []string{KeySkipInstall}, Type: confset.TypeBool, Default: false, Desc: "do not install the package"},
		{Keys: []string{KeyDeps}, Type: confset.TypeStringList, Default: []string{}, Desc: "dependencies, one requirement per line"},
		{Keys: []string{KeyCommandsPre}, Type: confset.TypeCommandList, Default: []confset.Command{}},
		{Keys: []string{KeyCommands}, Type: confset.TypeCommandList, Default: []confset.Command{}},
		{Keys: []string{KeyCommandsPost}, Type: confset.TypeCommandList, Default: []confset.Command{}},
		{Keys: []string{KeyIgnoreErrors}, Type: confset.TypeBool, Default: false, Desc: "keep running commands after a failure"},
	}
	for _, d := range decls {
		if err := conf.Declare(d); err != nil {
			return err
		}
	}
	return nil
}

func declarePackage(conf *confset.Store) error {
	decls := []confset.Declaration{
		{Keys: []string{KeyBuildRequires}, Type: confset.TypeStringList, Default: []string{}, Desc: "requirements of the build"},
		{Keys: []string{KeyBuildCommands}, Type: confset.TypeCommandList, Default: []confset.Command{}, Desc: "commands producing artifacts in dist_dir"},
		{Keys: []string{KeyDistDir}, Type: confset.TypePath, Desc: "where build commands write artifacts",
			DefaultFunc: func(v confset.View) (any, error) {
				dir, err := confset.ViewGet[string](v, KeyEnvDir)
				if err != nil {
					return nil, err
				}
				return filepath.Join(dir, "dist"), nil
			}},
		{Keys: []string{KeyArtifacts}, Type: confset.TypeNameList, Default: []string{"*"}, Desc: "globs relative to dist_dir"},
		{Keys: []string{KeyPackageDeps}, Type: confset.TypeStringList, Default: []string{}, Desc: "requirements consumers install before the artifacts"},
	}
	for _, d := range decls {
		if err := conf.Declare(d); err != nil {
			return err
		}
	}
	return nil
}
