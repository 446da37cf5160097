// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRequirement is returned by Setup when no base requirement is available.
	ErrMissingRequirement = errors.New("missing requirement")
	// ErrInstallFailed is returned when an install command exits non-zero.
	ErrInstallFailed = errors.New("install failed")
	// ErrCommandFailed is returned by RunCommands when a command exits non-zero.
	ErrCommandFailed = errors.New("command failed")
	// ErrNoArtifacts is returned when a build produced nothing to install.
	ErrNoArtifacts = errors.New("build produced no artifacts")
)

type (
	// MissingRequirementError lists the candidates that were tried.
	MissingRequirementError struct {
		Env        string
		Candidates []string
		Err        error
	}

	// InstallError describes a failed install step.
	InstallError struct {
		Env      string
		Category string
		ExitCode int
		Err      error
	}

	// CommandFailedError describes the first failing command of an environment.
	CommandFailedError struct {
		Env      string
		Command  string
		ExitCode int
	}
)

func (e *MissingRequirementError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("[%s] %v", e.Env, e.Err)
	}
	return fmt.Sprintf("[%s] none of %s found", e.Env, strings.Join(e.Candidates, ", "))
}

func (e *MissingRequirementError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingRequirement}
	}
	return []error{ErrMissingRequirement, e.Err}
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] install %s: %v", e.Env, e.Category, e.Err)
	}
	return fmt.Sprintf("[%s] install %s exited with code %d", e.Env, e.Category, e.ExitCode)
}

func (e *InstallError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInstallFailed}
	}
	return []error{ErrInstallFailed, e.Err}
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("[%s] %q exited with code %d", e.Env, e.Command, e.ExitCode)
}

func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }

// ExitCode extracts the process exit code carried by err, 0 for nil and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandFailedError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode != 0 {
		return cmdErr.ExitCode
	}
	var installErr *InstallError
	if errors.As(err, &installErr) && installErr.ExitCode != 0 {
		return installErr.ExitCode
	}
	return 1
}
