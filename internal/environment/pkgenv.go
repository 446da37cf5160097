// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/deps"
	"github.com/envrun/envrun/internal/execute"

	"github.com/bmatcuk/doublestar/v4"
)

// PackageEnv builds artifacts for run environments.
type PackageEnv struct {
	*Base

	buildOnce sync.Once
	artifacts []string
	buildErr  error
	builds    int

	consumersMu sync.Mutex
	consumers   []string
}

var _ Packager = (*PackageEnv)(nil)

// NewPackageEnv declares the package environment keys on spec.Conf and returns the environment.
func NewPackageEnv(spec Spec, newExec ExecutorFunc) (*PackageEnv, error) {
	spec.Role = RolePackage
	b, err := newBase(spec, newExec)
	if err != nil {
		return nil, err
	}
	if err := declarePackage(spec.Conf); err != nil {
		return nil, err
	}
	return &PackageEnv{Base: b}, nil
}

// InstallDependencies implements Environment by installing build_requires.
func (e *PackageEnv) InstallDependencies(ctx context.Context) error {
	raw, err := confset.Get[[]string](e.Conf(), KeyBuildRequires)
	if err != nil {
		return err
	}
	list, err := deps.ParseLines(raw, e.Conf().Config().Root())
	if err != nil {
		return err
	}
	return e.install(ctx, CategoryBuildDeps, list)
}

// RunCommands implements Environment. Package environments build instead of
// running commands.
func (e *PackageEnv) RunCommands(context.Context) ([]*execute.Result, error) {
	return nil, nil
}

// Package implements Packager. The first call empties dist_dir, runs
// build_commands and collects the artifacts matching the artifacts globs.
func (e *PackageEnv) Package(ctx context.Context) ([]string, error) {
	e.buildOnce.Do(func() {
		e.builds++
		e.artifacts, e.buildErr = e.build(ctx)
	})
	return e.artifacts, e.buildErr
}

// Builds reports how many times the package was built.
func (e *PackageEnv) Builds() int { return e.builds }

// PackageDependencies implements Packager.
func (e *PackageEnv) PackageDependencies() ([]string, error) {
	return confset.Get[[]string](e.Conf(), KeyPackageDeps)
}

// Consumers implements Packager.
func (e *PackageEnv) Consumers() []string {
	e.consumersMu.Lock()
	defer e.consumersMu.Unlock()
	return slices.Clone(e.consumers)
}

// AddConsumer implements Packager.
func (e *PackageEnv) AddConsumer(name string) {
	e.consumersMu.Lock()
	defer e.consumersMu.Unlock()
	if !slices.Contains(e.consumers, name) {
		e.consumers = append(e.consumers, name)
	}
}

func (e *PackageEnv) build(ctx context.Context) ([]string, error) {
	conf := e.Conf()
	dist, err := confset.Get[string](conf, KeyDistDir)
	if err != nil {
		return nil, err
	}
	cmds, err := confset.Get[[]confset.Command](conf, KeyBuildCommands)
	if err != nil {
		return nil, err
	}
	globs, err := confset.Get[[]string](conf, KeyArtifacts)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(dist); err != nil {
		return nil, fmt.Errorf("clean %s: %w", dist, err)
	}
	if err := os.MkdirAll(dist, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dist, err)
	}
	e.environ = append(e.environ, "ENVRUN_DIST_DIR="+dist)
	if _, err := e.runCommands(ctx, KeyBuildCommands, cmds, false); err != nil {
		return nil, err
	}

	var found []string
	fsys := os.DirFS(dist)
	for _, g := range globs {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(g), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyArtifacts, err)
		}
		for _, m := range matches {
			p := filepath.Join(dist, filepath.FromSlash(m))
			if !slices.Contains(found, p) {
				found = append(found, p)
			}
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("[%s] %w in %s", e.Name(), ErrNoArtifacts, dist)
	}
	slices.Sort(found)
	ctxlog.FromContext(ctx).Info("built package", "artifacts", found)
	return found, nil
}
