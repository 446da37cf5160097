// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseTOML_Layout(t *testing.T) {
	t.Parallel()

	src, err := ParseTOML([]byte(`
[envrun]
env_list = ["py", "lint"]
skip_missing_interpreters = false
parallel = 4

[env]
pass_env = ["HOME", "CI"]

[env.py]
deps = ["a", "b"]
commands = ["echo hi"]

[env.lint]
runner = "virtual"
`))
	if err != nil {
		t.Fatalf("ParseTOML() error = %v", err)
	}

	core, ok := src.Section(CoreSection)
	if !ok {
		t.Fatal("core section missing")
	}
	if got, _ := core.Get("env_list"); got != "py\nlint" {
		t.Errorf("env_list = %q, want newline-joined list", got)
	}
	if got, _ := core.Get("skip_missing_interpreters"); got != "false" {
		t.Errorf("skip_missing_interpreters = %q, want %q", got, "false")
	}
	if got, _ := core.Get("parallel"); got != "4" {
		t.Errorf("parallel = %q, want %q", got, "4")
	}

	defaults, ok := src.Section(EnvDefaultsSection)
	if !ok {
		t.Fatal("env defaults section missing")
	}
	if got, _ := defaults.Get("pass_env"); got != "HOME\nCI" {
		t.Errorf("pass_env = %q", got)
	}

	py, ok := src.Section(EnvSection("py"))
	if !ok {
		t.Fatal("env:py section missing")
	}
	if got, _ := py.Get("deps"); got != "a\nb" {
		t.Errorf("deps = %q", got)
	}

	names := EnvNames(src)
	slices.Sort(names)
	if !slices.Equal(names, []string{"lint", "py"}) {
		t.Errorf("EnvNames() = %v", names)
	}
}

func TestParseTOML_RejectsUnknownTable(t *testing.T) {
	t.Parallel()

	if _, err := ParseTOML([]byte("[project]\nenv_list = \"py\"\n")); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestParseCUE_KeepsDeclarationOrder(t *testing.T) {
	t.Parallel()

	src, err := ParseCUE([]byte(`
envrun: {
	env_list: ["py"]
}
env: {
	set_env: ["A=1"]
	py: {
		zeta: "z"
		alpha: "a"
		deps: ["x", "y"]
		skip_install: true
	}
}
`), "envrun.cue")
	if err != nil {
		t.Fatalf("ParseCUE() error = %v", err)
	}

	py, ok := src.Section(EnvSection("py"))
	if !ok {
		t.Fatal("env:py missing")
	}
	if got := py.Keys(); !slices.Equal(got, []string{"zeta", "alpha", "deps", "skip_install"}) {
		t.Errorf("Keys() = %v, want declaration order", got)
	}
	if got, _ := py.Get("deps"); got != "x\ny" {
		t.Errorf("deps = %q", got)
	}
	if got, _ := py.Get("skip_install"); got != "true" {
		t.Errorf("skip_install = %q", got)
	}
	defaults, _ := src.Section(EnvDefaultsSection)
	if got, _ := defaults.Get("set_env"); got != "A=1" {
		t.Errorf("set_env = %q", got)
	}
}

func TestMemory_SetKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.SetEnv("py", "b", "1").SetEnv("py", "a", "2").SetEnv("py", "b", "3")

	section, _ := m.Section(EnvSection("py"))
	if got := section.Keys(); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("Keys() = %v", got)
	}
	if got, _ := section.Get("b"); got != "3" {
		t.Errorf("b = %q, want overwritten value", got)
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("prefers toml", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, TOMLFileName), "[envrun]\nenv_list = [\"a\"]\n")
		writeFile(t, filepath.Join(dir, CUEFileName), "envrun: env_list: [\"b\"]\n")

		src, err := Discover(dir, "")
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if filepath.Base(src.Path()) != TOMLFileName {
			t.Errorf("Path() = %q, want toml file", src.Path())
		}
	})

	t.Run("missing config", func(t *testing.T) {
		t.Parallel()
		_, err := Discover(t.TempDir(), "")
		if !errors.Is(err, ErrNoConfig) {
			t.Fatalf("Discover() error = %v, want ErrNoConfig", err)
		}
	})

	t.Run("explicit cue", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.cue")
		writeFile(t, path, "env: py: commands: [\"true\"]\n")
		src, err := Discover("", path)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if _, ok := src.Section(EnvSection("py")); !ok {
			t.Error("env:py missing")
		}
	})
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		section string
		want    string
		ok      bool
	}{
		{section: "env:py", want: "py", ok: true},
		{section: "env:.pkg", want: ".pkg", ok: true},
		{section: "env:", ok: false},
		{section: "env", ok: false},
		{section: "envrun", ok: false},
	}
	for _, tt := range tests {
		got, ok := EnvName(tt.section)
		if got != tt.want || ok != tt.ok {
			t.Errorf("EnvName(%q) = (%q, %v), want (%q, %v)", tt.section, got, ok, tt.want, tt.ok)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
