// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/ctxlog"
	"github.com/envrun/envrun/internal/deps"
	"github.com/envrun/envrun/internal/execute"

	"mvdan.cc/sh/v3/syntax"
)

type (
	// ExecutorFunc builds the executor of an environment once its
	// configuration is complete.
	ExecutorFunc func(conf *confset.Store) (execute.Executor, error)

	// Base implements what run and package environments share.
	Base struct {
		spec    Spec
		newExec ExecutorFunc

		mu       sync.Mutex
		exec     execute.Executor
		environ  []string
		stdout   io.Writer
		stderr   io.Writer
		basePath string
	}
)

func newBase(spec Spec, newExec ExecutorFunc) (*Base, error) {
	if spec.Run == nil {
		spec.Run = NewRun()
	}
	if err := declareCommon(spec.Conf, spec.Name); err != nil {
		return nil, err
	}
	return &Base{spec: spec, newExec: newExec, stdout: io.Discard, stderr: io.Discard}, nil
}

// Name implements Environment.
func (b *Base) Name() string { return b.spec.Name }

// Kind implements Environment.
func (b *Base) Kind() string { return b.spec.Kind }

// Role implements Environment.
func (b *Base) Role() Role { return b.spec.Role }

// Conf implements Environment.
func (b *Base) Conf() *confset.Store { return b.spec.Conf }

// Core implements Environment.
func (b *Base) Core() *confset.Store { return b.spec.Core }

// RunID returns the id shared by every environment of the invocation.
func (b *Base) RunID() string { return b.spec.Run.ID }

// Executor returns the executor created by Setup, or nil before it.
func (b *Base) Executor() execute.Executor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exec
}

// BasePath returns the base requirement Setup found.
func (b *Base) BasePath() string { return b.basePath }

// SetOutput implements Environment.
func (b *Base) SetOutput(stdout, stderr io.Writer) {
	if stderr == nil {
		stderr = stdout
	}
	b.stdout, b.stderr = stdout, stderr
}

// Setup implements Environment. It creates the executor and the environment
// directory, then resolves the first available base requirement.
func (b *Base) Setup(ctx context.Context) error {
	exec, err := b.newExec(b.spec.Conf)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.exec = exec
	b.mu.Unlock()

	if err := exec.Available(ctx); err != nil {
		return &MissingRequirementError{Env: b.Name(), Err: err}
	}
	dir, err := confset.Get[string](b.spec.Conf, KeyEnvDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}
	environ, err := b.buildEnviron()
	if err != nil {
		return err
	}
	b.environ = environ

	candidates, err := confset.Get[[]string](b.spec.Conf, KeyBase)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(ctx, c, environ); err == nil {
			b.basePath = path
			ctxlog.FromContext(ctx).Debug("found base requirement", "path", path)
			return nil
		}
	}
	return &MissingRequirementError{Env: b.Name(), Candidates: candidates}
}

// Close implements Environment.
func (b *Base) Close(ctx context.Context) error {
	b.mu.Lock()
	exec := b.exec
	b.mu.Unlock()
	if exec == nil {
		return nil
	}
	return exec.Close(ctx)
}

// Environ returns the process environment commands receive.
func (b *Base) Environ() []string { return b.environ }

// SkipMissing reports whether a missing requirement skips the environment.
func (b *Base) SkipMissing() bool {
	skip, err := confset.Get[bool](b.spec.Conf, KeySkipMissing)
	return err == nil && skip
}

// execute runs one command line in change_dir.
func (b *Base) execute(ctx context.Context, label, command string) (*execute.Result, error) {
	dir, err := confset.Get[string](b.spec.Conf, KeyChangeDir)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("run", "phase", label, "command", command)
	fmt.Fprintf(b.stdout, "%s: %s> %s\n", b.Name(), label, command)
	res := b.Executor().Execute(ctx, &execute.Request{
		Env:     b.Name(),
		Label:   label,
		Command: command,
		Dir:     dir,
		Environ: b.environ,
		Stdout:  b.stdout,
		Stderr:  b.stderr,
	})
	return res, nil
}

// runCommands runs cmds in order. It stops at the first failure unless
// ignoreErrors is set; commands marked with "-" never fail.
func (b *Base) runCommands(ctx context.Context, label string, cmds []confset.Command, ignoreErrors bool) ([]*execute.Result, error) {
	var (
		results  []*execute.Result
		firstErr error
	)
	for _, c := range cmds {
		if err := ctx.Err(); err != nil {
			return results, errors.Join(firstErr, err)
		}
		res, err := b.execute(ctx, label, c.Line)
		if err != nil {
			return results, errors.Join(firstErr, err)
		}
		results = append(results, res)
		if res.Success() || c.IgnoreExit {
			continue
		}
		if res.Err != nil && ctx.Err() != nil {
			return results, errors.Join(firstErr, ctx.Err())
		}
		if firstErr == nil {
			code := res.ExitCode
			if code == 0 {
				code = 1
			}
			firstErr = &CommandFailedError{Env: b.Name(), Command: c.Line, ExitCode: code}
		}
		if !ignoreErrors {
			return results, firstErr
		}
	}
	return results, firstErr
}

// install runs install_command for list unless the same list was already
// installed under category during this run.
func (b *Base) install(ctx context.Context, category string, list *deps.List) error {
	if list.Empty() {
		return nil
	}
	log := ctxlog.FromContext(ctx)
	fp := list.Fingerprint()
	if prior, ok := b.spec.Run.Cache.Lookup(b.Name(), category, fp); ok {
		log.Debug("install cached", "category", category)
		return prior
	}
	err := b.runInstall(ctx, category, list)
	if ctx.Err() == nil {
		b.spec.Run.Cache.Store(b.Name(), category, fp, err)
	}
	return err
}

func (b *Base) runInstall(ctx context.Context, category string, list *deps.List) error {
	tmpl, err := confset.Get[string](b.spec.Conf, KeyInstallCommand)
	if err != nil {
		return err
	}
	if strings.TrimSpace(tmpl) == "" {
		return &InstallError{Env: b.Name(), Category: category, Err: fmt.Errorf("%s is empty but %s are configured", KeyInstallCommand, category)}
	}
	command := renderInstall(tmpl, list)
	ctxlog.FromContext(ctx).Log(ctx, slog.LevelInfo, "install", "category", category, "packages", list.String())
	res, err := b.execute(ctx, category, command)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return &InstallError{Env: b.Name(), Category: category, ExitCode: res.ExitCode, Err: res.Err}
	}
	if res.ExitCode != 0 {
		return &InstallError{Env: b.Name(), Category: category, ExitCode: res.ExitCode}
	}
	return nil
}

// renderInstall fills the installer placeholders with shell-quoted arguments.
// A template without {packages} gets them appended; without {opts} the
// options go in front of the packages.
func renderInstall(tmpl string, list *deps.List) string {
	opts, pkgs := quoteAll(list.OptionArgs()), quoteAll(list.PackageArgs())
	if !strings.Contains(tmpl, PlaceholderPackages) {
		tmpl += " " + PlaceholderPackages
	}
	if strings.Contains(tmpl, PlaceholderOpts) {
		tmpl = fill(tmpl, PlaceholderOpts, opts)
	} else if opts != "" {
		pkgs = opts + " " + pkgs
	}
	return strings.TrimSpace(fill(tmpl, PlaceholderPackages, pkgs))
}

func fill(s, placeholder, value string) string {
	if value == "" {
		s = strings.ReplaceAll(s, " "+placeholder, "")
	}
	return strings.ReplaceAll(s, placeholder, value)
}

func quoteAll(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = a
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " ")
}

// binDir is prepended to PATH so tools installed into the environment win.
func binDir(envDir string) string {
	return filepath.Join(envDir, "bin")
}
