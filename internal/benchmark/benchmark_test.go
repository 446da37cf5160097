// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/envrun/envrun/internal/config"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/session"
	"github.com/envrun/envrun/internal/source"
)

const sampleTOML = `
[envrun]
env_list = ["lint", "py311-unit", "py312-unit"]
labels = """
ci = lint, py311-unit, py312-unit
quick = lint
"""

[env]
runner = "virtual"
set_env = "PYTHONHASHSEED = 0"
commands = ["echo {env_name} {posargs:-q}"]

[env.lint]
description = "style checks"
commands = ["echo lint", "echo {env:HOME:none}"]

[env.py311-unit]
deps = ["pytest>=8", "coverage"]

[env.py312-unit]
deps = ["pytest>=8"]

[env.docs]
commands = ["echo docs"]
`

const sampleCUE = `
envrun: {
	env_list: ["lint", "unit"]
}
env: {
	runner: "virtual"
	lint: {
		description: "style checks"
		commands: ["echo lint"]
	}
	unit: {
		deps: ["pytest"]
		commands: ["echo unit {posargs}"]
	}
}
`

// wideProject returns a configuration with n environments.
func wideProject(n int) string {
	var b strings.Builder
	b.WriteString("[env]\nrunner = \"virtual\"\ncommands = [\"true\"]\n")
	for i := range n {
		fmt.Fprintf(&b, "\n[env.e%03d]\ndescription = \"environment %d\"\n", i, i)
	}
	return b.String()
}

func writeProject(b *testing.B, content string) string {
	b.Helper()
	dir := b.TempDir()
	if err := os.WriteFile(filepath.Join(dir, source.TOMLFileName), []byte(content), 0o644); err != nil {
		b.Fatalf("write project: %v", err)
	}
	return dir
}

func prepare(b *testing.B, root string, envs ...string) *session.Session {
	b.Helper()
	settings := config.DefaultConfig()
	s, err := session.New(b.Context(), session.Options{
		Root:     root,
		Envs:     envs,
		Parallel: -1,
		Settings: settings,
		Stdout:   io.Discard,
	}, session.NewRegistry(settings))
	if err != nil {
		b.Fatalf("session.New: %v", err)
	}
	return s
}

func BenchmarkParseTOML(b *testing.B) {
	data := []byte(sampleTOML)
	for b.Loop() {
		if _, err := source.ParseTOML(data); err != nil {
			b.Fatalf("ParseTOML: %v", err)
		}
	}
}

func BenchmarkParseCUE(b *testing.B) {
	data := []byte(sampleCUE)
	for b.Loop() {
		if _, err := source.ParseCUE(data, "envrun.cue"); err != nil {
			b.Fatalf("ParseCUE: %v", err)
		}
	}
}

// BenchmarkPrepare covers discovery, core configuration, plugin freezing,
// selection and graph construction.
func BenchmarkPrepare(b *testing.B) {
	for _, n := range []int{4, 64} {
		b.Run(fmt.Sprintf("envs=%d", n), func(b *testing.B) {
			content := sampleTOML
			if n > 4 {
				content = wideProject(n)
			}
			root := writeProject(b, content)
			for b.Loop() {
				prepare(b, root, session.AllEnvs)
			}
		})
	}
}

func BenchmarkExecute(b *testing.B) {
	executors := []execute.Executor{execute.NewVirtual()}
	if goruntime.GOOS != "windows" {
		executors = append(executors, execute.NewNative())
	}
	for _, ex := range executors {
		b.Run(ex.Name(), func(b *testing.B) {
			req := &execute.Request{
				Env:     "bench",
				Label:   "commands",
				Command: "echo hello; X=1; test $X = 1",
				Dir:     b.TempDir(),
				Environ: os.Environ(),
				Stdout:  io.Discard,
				Stderr:  io.Discard,
			}
			for b.Loop() {
				if res := ex.Execute(b.Context(), req); !res.Success() {
					b.Fatalf("Execute: exit %d, err %v", res.ExitCode, res.Err)
				}
			}
		})
	}
}

func BenchmarkFullRun(b *testing.B) {
	root := writeProject(b, wideProject(16))
	for _, parallel := range []int{1, 4} {
		b.Run(fmt.Sprintf("parallel=%d", parallel), func(b *testing.B) {
			for b.Loop() {
				settings := config.DefaultConfig()
				s, err := session.New(b.Context(), session.Options{
					Root:     root,
					Envs:     []string{session.AllEnvs},
					Parallel: parallel,
					Settings: settings,
					Stdout:   io.Discard,
				}, session.NewRegistry(settings))
				if err != nil {
					b.Fatalf("session.New: %v", err)
				}
				report, err := s.Run(b.Context())
				if err != nil {
					b.Fatalf("Run: %v", err)
				}
				if !report.Success() {
					b.Fatalf("run failed: %+v", report.Outcomes())
				}
			}
		})
	}
}
