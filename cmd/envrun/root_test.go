// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/envrun/envrun/internal/issue"
	"github.com/envrun/envrun/internal/session"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, session.ExitSuccess},
		{"exit error", &ExitError{Code: session.ExitEnvFailure}, session.ExitEnvFailure},
		{"wrapped exit error", fmt.Errorf("run: %w", &ExitError{Code: 7}), 7},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), session.ExitInterrupted},
		{"other", errors.New("boom"), session.ExitFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFatal(t *testing.T) {
	t.Parallel()

	err := fatal(errors.New("broken graph"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != session.ExitFatal {
		t.Fatalf("fatal() = %#v", err)
	}
	if err.Error() != "broken graph" {
		t.Errorf("Error() = %q", err.Error())
	}
	if got := (&ExitError{Code: 1}).Error(); got != "exit status 1" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file")
	ae := issue.NewErrorContext().
		WithOperation("load project configuration").
		WithResource("/src").
		WithSuggestion("Create envrun.toml in the project root").
		WithIssue(issue.ConfigNotFoundID).
		Wrap(cause).
		BuildError()

	plain := formatErrorForDisplay(fatal(ae), false)
	for _, want := range []string{
		"failed to load project configuration: /src: no such file",
		"• Create envrun.toml in the project root",
		fmt.Sprintf("Run 'envrun issue %d' for help.", issue.ConfigNotFoundID),
	} {
		if !strings.Contains(plain, want) {
			t.Errorf("output missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Error chain:") {
		t.Error("error chain shown without verbose")
	}
	if verbose := formatErrorForDisplay(ae, true); !strings.Contains(verbose, "1. no such file") {
		t.Errorf("verbose output = %q", verbose)
	}
	if got := formatErrorForDisplay(errors.New("plain"), true); got != "plain" {
		t.Errorf("plain error = %q", got)
	}
}

func TestGetVersionString(t *testing.T) {
	t.Parallel()

	if got := getVersionString(); !strings.HasPrefix(got, "dev") {
		t.Errorf("getVersionString() = %q", got)
	}
}
