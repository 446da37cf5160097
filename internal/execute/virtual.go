// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Virtual runs commands in the embedded POSIX shell interpreter. External
// programs are still started from the host PATH.
type Virtual struct {
	// KillTimeout bounds the grace period of external programs after cancellation.
	KillTimeout time.Duration
}

// NewVirtual returns an embedded-shell executor.
func NewVirtual() *Virtual {
	return &Virtual{KillTimeout: DefaultInterruptTimeout}
}

// Name implements Executor.
func (v *Virtual) Name() string { return NameVirtual }

// Available implements Executor; the interpreter is always present.
func (v *Virtual) Available(context.Context) error { return nil }

// LookPath implements Executor.
func (v *Virtual) LookPath(_ context.Context, name string, env []string) (string, error) {
	environ := expand.ListEnviron(env...)
	dir, _ := lookupEnv(env, "PWD")
	return interp.LookPathDir(dir, environ, name)
}

// Execute implements Executor.
func (v *Virtual) Execute(ctx context.Context, req *Request) *Result {
	res := newResult(req)
	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Command), req.Label)
	if err != nil {
		res.ExitCode, res.Err = 1, fmt.Errorf("parse %q: %w", req.Command, err)
		return res
	}

	stdout, stderr := req.writers()
	runner, err := interp.New(
		interp.Dir(req.Dir),
		interp.Env(expand.ListEnviron(req.Environ...)),
		interp.StdIO(nil, stdout, stderr),
		interp.ExecHandlers(func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return interp.DefaultExecHandler(v.killTimeout())
		}),
	)
	if err != nil {
		res.ExitCode, res.Err = 1, fmt.Errorf("create interpreter: %w", err)
		return res
	}

	start := time.Now()
	err = runner.Run(ctx, prog)
	res.Elapsed = time.Since(start)

	var status interp.ExitStatus
	switch {
	case err == nil:
	case errors.As(err, &status):
		res.ExitCode = int(status)
	default:
		res.ExitCode, res.Err = 1, err
	}
	if ctx.Err() != nil && res.ExitCode == 0 {
		res.ExitCode, res.Err = 128+int(interruptSignal), ctx.Err()
	}
	return res
}

// Close implements Executor.
func (v *Virtual) Close(context.Context) error { return nil }

func (v *Virtual) killTimeout() time.Duration {
	if v.KillTimeout <= 0 {
		return DefaultInterruptTimeout
	}
	return v.KillTimeout
}
