// SPDX-License-Identifier: MPL-2.0

// Package execute runs shell command lines on behalf of an environment.
//
// An Executor hides where a command runs: on the host shell (Native), in the
// embedded POSIX interpreter (Virtual), or inside a container (Container).
// Executors stream output to the writers of each Request and report the exit
// status in a Result; they never decide whether a failure matters.
package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Executor names.
const (
	NameNative    = "native"
	NameVirtual   = "virtual"
	NameContainer = "container"
)

// ErrUnavailable is returned by Available when the executor cannot run commands here.
var ErrUnavailable = errors.New("executor unavailable")

type (
	// Executor runs command lines for one environment.
	Executor interface {
		Name() string
		// Available reports why the executor cannot be used, or nil.
		Available(ctx context.Context) error
		// LookPath resolves an executable name the way commands will see it.
		LookPath(ctx context.Context, name string, env []string) (string, error)
		Execute(ctx context.Context, req *Request) *Result
		// Close releases resources held for the environment.
		Close(ctx context.Context) error
	}

	// Request is one command line to execute.
	Request struct {
		// Env names the environment, for logs.
		Env string
		// Label groups commands of the same phase, such as "commands" or "install_deps".
		Label   string
		Command string
		Dir     string
		// Environ is the complete process environment as NAME=value pairs.
		Environ []string
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// Result is the outcome of one Request.
	Result struct {
		Env      string
		Label    string
		Command  string
		ExitCode int
		Elapsed  time.Duration
		// Err is set when the command could not be run at all.
		Err error
	}

	// UnavailableError explains why an executor cannot be used.
	UnavailableError struct {
		Executor string
		Reason   error
	}
)

// Success reports whether the command ran and exited 0.
func (r *Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s executor unavailable: %v", e.Executor, e.Reason)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Reason} }

func newResult(req *Request) *Result {
	return &Result{Env: req.Env, Label: req.Label, Command: req.Command}
}

func (req *Request) writers() (io.Writer, io.Writer) {
	stdout, stderr := req.Stdout, req.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = stdout
	}
	return stdout, stderr
}
