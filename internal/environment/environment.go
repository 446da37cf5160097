// SPDX-License-Identifier: MPL-2.0

// Package environment implements the lifecycle of a single environment.
//
// A run environment installs its dependencies, optionally installs the
// artifacts of a package environment, and runs its commands. A package
// environment installs its build requirements and builds artifacts once per
// run, no matter how many run environments consume them.
package environment

import (
	"context"
	"io"
	"os"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/execute"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleRun     Role = "run"
	RolePackage Role = "package"
)

type (
	// Role separates environments that run commands from those that build packages.
	Role string

	// Environment is one materialized environment.
	Environment interface {
		Name() string
		// Kind is the registered kind that constructed the environment.
		Kind() string
		Role() Role
		Conf() *confset.Store
		Core() *confset.Store
		// SetOutput directs command output. It must be called before Setup.
		SetOutput(stdout, stderr io.Writer)
		// Setup prepares the environment directory and checks base requirements.
		Setup(ctx context.Context) error
		InstallDependencies(ctx context.Context) error
		// RunCommands runs commands_pre, commands and commands_post.
		RunCommands(ctx context.Context) ([]*execute.Result, error)
		Close(ctx context.Context) error
	}

	// Packager is an environment that builds artifacts for run environments.
	Packager interface {
		Environment
		// Package builds the artifacts. Only the first call builds; later calls
		// return the same result.
		Package(ctx context.Context) ([]string, error)
		// PackageDependencies lists what consumers install before the artifacts.
		PackageDependencies() ([]string, error)
		// Consumers lists the run environments using this package, in wiring order.
		Consumers() []string
		AddConsumer(name string)
	}

	// PackageConsumer is a run environment that can install a package.
	PackageConsumer interface {
		Environment
		PackageEnv() Packager
		SetPackageEnv(p Packager)
	}

	// Spec carries what a kind factory needs to construct an environment.
	Spec struct {
		Name string
		Kind string
		Role Role
		Conf *confset.Store
		Core *confset.Store
		Run  *Run
	}

	// Run is the state shared by every environment of one invocation.
	Run struct {
		ID    string
		Cache *InstallCache
		// Environ is the host environment pass_env selects from.
		Environ []string
	}
)

// NewRun creates the shared state of an invocation with a fresh run id.
func NewRun() *Run {
	return &Run{ID: uuid.NewString(), Cache: NewInstallCache(), Environ: os.Environ()}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleRun || r == RolePackage
}

func (r Role) String() string { return string(r) }
