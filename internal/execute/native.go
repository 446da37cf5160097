// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"
)

// DefaultInterruptTimeout is how long a command may take to exit after an
// interrupt before it is killed.
const DefaultInterruptTimeout = 3 * time.Second

// Native runs commands through the host shell.
type Native struct {
	// Shell overrides the shell; empty picks bash or sh (cmd on Windows).
	Shell string
	// InterruptTimeout bounds the grace period after cancellation.
	InterruptTimeout time.Duration
}

// NewNative returns a host-shell executor.
func NewNative() *Native {
	return &Native{InterruptTimeout: DefaultInterruptTimeout}
}

// Name implements Executor.
func (n *Native) Name() string { return NameNative }

// Available implements Executor.
func (n *Native) Available(context.Context) error {
	if _, err := n.shell(); err != nil {
		return &UnavailableError{Executor: NameNative, Reason: err}
	}
	return nil
}

// LookPath implements Executor, searching PATH from env when it is set there.
func (n *Native) LookPath(_ context.Context, name string, env []string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return exec.LookPath(name)
	}
	path, ok := lookupEnv(env, "PATH")
	if !ok {
		return exec.LookPath(name)
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		if found, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return found, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Execute implements Executor. Cancelling ctx sends an interrupt and, after
// InterruptTimeout, kills the process.
func (n *Native) Execute(ctx context.Context, req *Request) *Result {
	res := newResult(req)
	shell, err := n.shell()
	if err != nil {
		res.ExitCode, res.Err = 1, err
		return res
	}

	cmd := exec.CommandContext(ctx, shell, append(shellArgs(shell), req.Command)...)
	cmd.Dir = req.Dir
	cmd.Env = req.Environ
	cmd.Stdout, cmd.Stderr = req.writers()
	cmd.Cancel = func() error {
		if goruntime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = n.InterruptTimeout
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultInterruptTimeout
	}

	start := time.Now()
	err = cmd.Run()
	res.Elapsed = time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			// killed by a signal
			res.ExitCode = 128 + int(interruptSignal)
			res.Err = ctx.Err()
		}
	default:
		res.ExitCode, res.Err = 1, fmt.Errorf("run %q: %w", req.Command, err)
	}
	return res
}

// Close implements Executor.
func (n *Native) Close(context.Context) error { return nil }

func (n *Native) shell() (string, error) {
	if n.Shell != "" {
		return exec.LookPath(n.Shell)
	}
	if goruntime.GOOS == "windows" {
		return exec.LookPath("cmd")
	}
	for _, candidate := range []string{"bash", "sh"} {
		if p, err := exec.LookPath(candidate); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no POSIX shell found in PATH")
}

func shellArgs(shell string) []string {
	switch strings.TrimSuffix(filepath.Base(shell), ".exe") {
	case "cmd":
		return []string{"/C"}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command"}
	default:
		return []string{"-c"}
	}
}

func lookupEnv(env []string, name string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && k == name {
			return v, true
		}
	}
	return "", false
}
