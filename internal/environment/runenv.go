// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"context"
	"errors"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/deps"
	"github.com/envrun/envrun/internal/execute"
)

// Install categories.
const (
	CategoryDeps        = "deps"
	CategoryPackageDeps = "package_deps"
	CategoryPackage     = "package"
	CategoryBuildDeps   = "build_requires"
)

// RunEnv runs the commands of a run environment.
type RunEnv struct {
	*Base
	pkg Packager
}

var (
	_ Environment     = (*RunEnv)(nil)
	_ PackageConsumer = (*RunEnv)(nil)
)

// NewRunEnv declares the run environment keys on spec.Conf and returns the environment.
func NewRunEnv(spec Spec, newExec ExecutorFunc) (*RunEnv, error) {
	spec.Role = RoleRun
	b, err := newBase(spec, newExec)
	if err != nil {
		return nil, err
	}
	if err := declareRun(spec.Conf); err != nil {
		return nil, err
	}
	return &RunEnv{Base: b}, nil
}

// PackageEnv implements PackageConsumer.
func (e *RunEnv) PackageEnv() Packager { return e.pkg }

// SetPackageEnv implements PackageConsumer.
func (e *RunEnv) SetPackageEnv(p Packager) { e.pkg = p }

// InstallDependencies implements Environment: deps first, then the package's
// dependencies and the package artifacts unless skip_install is set.
func (e *RunEnv) InstallDependencies(ctx context.Context) error {
	list, err := e.requirements(KeyDeps)
	if err != nil {
		return err
	}
	if err := e.install(ctx, CategoryDeps, list); err != nil {
		return err
	}
	if e.pkg == nil {
		return nil
	}
	skip, err := confset.Get[bool](e.Conf(), KeySkipInstall)
	if err != nil || skip {
		return err
	}
	pkgDeps, err := e.pkg.PackageDependencies()
	if err != nil {
		return err
	}
	pkgList, err := deps.ParseLines(pkgDeps, e.root())
	if err != nil {
		return err
	}
	if err := e.install(ctx, CategoryPackageDeps, pkgList); err != nil {
		return err
	}
	artifacts, err := e.pkg.Package(ctx)
	if err != nil {
		return err
	}
	return e.install(ctx, CategoryPackage, &deps.List{Requirements: artifacts})
}

// RunCommands implements Environment. A failing commands_pre skips commands;
// commands_post always runs. The first failure is returned.
func (e *RunEnv) RunCommands(ctx context.Context) ([]*execute.Result, error) {
	ignore, err := confset.Get[bool](e.Conf(), KeyIgnoreErrors)
	if err != nil {
		return nil, err
	}
	lists := make(map[string][]confset.Command, 3)
	for _, key := range []string{KeyCommandsPre, KeyCommands, KeyCommandsPost} {
		cmds, err := confset.Get[[]confset.Command](e.Conf(), key)
		if err != nil {
			return nil, err
		}
		lists[key] = cmds
	}

	results, runErr := e.runCommands(ctx, KeyCommandsPre, lists[KeyCommandsPre], ignore)
	if runErr == nil {
		var res []*execute.Result
		res, runErr = e.runCommands(ctx, KeyCommands, lists[KeyCommands], ignore)
		results = append(results, res...)
	}
	if ctx.Err() != nil {
		return results, errors.Join(runErr, ctx.Err())
	}
	post, postErr := e.runCommands(ctx, KeyCommandsPost, lists[KeyCommandsPost], true)
	results = append(results, post...)
	if runErr == nil {
		runErr = postErr
	}
	return results, runErr
}

func (e *RunEnv) requirements(key string) (*deps.List, error) {
	raw, err := confset.Get[[]string](e.Conf(), key)
	if err != nil {
		return nil, err
	}
	return deps.ParseLines(raw, e.root())
}

func (e *RunEnv) root() string {
	return e.Conf().Config().Root()
}
