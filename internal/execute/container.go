// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultMountTarget is where the project root appears inside the container.
const DefaultMountTarget = "/src"

// hostOnlyVars are not forwarded into containers; the image provides its own.
var hostOnlyVars = map[string]bool{
	"PATH": true, "HOME": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "TMPDIR": true, "USER": true, "LOGNAME": true,
}

// Container runs commands inside one long-lived container per environment.
// The container is started on first use and removed by Close.
type Container struct {
	Image string
	// Root is the host directory bind-mounted at MountTarget.
	Root        string
	MountTarget string
	// Shell runs each command line inside the container.
	Shell string

	mu      sync.Mutex
	running testcontainers.Container
}

// NewContainer returns an executor for image with root mounted at /src.
func NewContainer(image, root string) *Container {
	return &Container{Image: image, Root: root, MountTarget: DefaultMountTarget, Shell: "sh"}
}

// Name implements Executor.
func (c *Container) Name() string { return NameContainer }

// Available implements Executor by asking the Docker provider for its health.
func (c *Container) Available(ctx context.Context) (err error) {
	defer func() {
		// provider detection panics on some broken Docker setups
		if r := recover(); r != nil {
			err = &UnavailableError{Executor: NameContainer, Reason: fmt.Errorf("%v", r)}
		}
	}()
	if c.Image == "" {
		return &UnavailableError{Executor: NameContainer, Reason: errors.New("no image configured")}
	}
	provider, perr := testcontainers.ProviderDocker.GetProvider()
	if perr != nil {
		return &UnavailableError{Executor: NameContainer, Reason: perr}
	}
	defer provider.Close()
	if herr := provider.Health(ctx); herr != nil {
		return &UnavailableError{Executor: NameContainer, Reason: herr}
	}
	return nil
}

// LookPath implements Executor by running "command -v" in the container.
func (c *Container) LookPath(ctx context.Context, name string, _ []string) (string, error) {
	ctr, err := c.start(ctx)
	if err != nil {
		return "", err
	}
	code, reader, err := ctr.Exec(ctx, []string{c.shell(), "-c", "command -v " + shellWord(name)}, tcexec.Multiplexed())
	if err != nil {
		return "", err
	}
	out, _ := io.ReadAll(reader)
	if code != 0 {
		return "", fmt.Errorf("%s: not found in image %s", name, c.Image)
	}
	return strings.TrimSpace(string(out)), nil
}

// Execute implements Executor. Stdout and stderr arrive multiplexed on Stdout.
func (c *Container) Execute(ctx context.Context, req *Request) *Result {
	res := newResult(req)
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	ctr, err := c.start(ctx)
	if err != nil {
		res.ExitCode, res.Err = 1, err
		return res
	}
	code, reader, err := ctr.Exec(ctx, []string{c.shell(), "-c", req.Command},
		tcexec.Multiplexed(),
		tcexec.WithWorkingDir(c.containerPath(req.Dir)),
		tcexec.WithEnv(containerEnviron(req.Environ)),
	)
	if err != nil {
		res.ExitCode, res.Err = 1, fmt.Errorf("exec %q: %w", req.Command, err)
		return res
	}
	stdout, _ := req.writers()
	if _, err := io.Copy(stdout, reader); err != nil && ctx.Err() == nil {
		res.Err = fmt.Errorf("read output: %w", err)
	}
	res.ExitCode = code
	return res
}

// Close implements Executor.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	ctr := c.running
	c.running = nil
	c.mu.Unlock()
	if ctr == nil {
		return nil
	}
	return ctr.Terminate(ctx)
}

func (c *Container) start(ctx context.Context) (testcontainers.Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		return c.running, nil
	}
	target := c.mountTarget()
	req := testcontainers.ContainerRequest{
		Image:      c.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: target,
		HostConfigModifier: func(hc *container.HostConfig) {
			if c.Root != "" {
				hc.Binds = append(hc.Binds, c.Root+":"+target)
			}
		},
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container from %s: %w", c.Image, err)
	}
	c.running = ctr
	return ctr, nil
}

// containerPath maps a host directory below Root to its mounted location.
func (c *Container) containerPath(dir string) string {
	target := c.mountTarget()
	if dir == "" || c.Root == "" {
		return target
	}
	rel, err := filepath.Rel(c.Root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return target
	}
	return filepath.ToSlash(filepath.Join(target, rel))
}

func (c *Container) mountTarget() string {
	if c.MountTarget == "" {
		return DefaultMountTarget
	}
	return c.MountTarget
}

func (c *Container) shell() string {
	if c.Shell == "" {
		return "sh"
	}
	return c.Shell
}

func containerEnviron(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if !hostOnlyVars[name] {
			out = append(out, kv)
		}
	}
	return out
}

func shellWord(s string) string {
	if q, err := syntax.Quote(s, syntax.LangPOSIX); err == nil {
		return q
	}
	return "''"
}
