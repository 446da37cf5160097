// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	loaded, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	want := DefaultConfig()
	if loaded.DefaultRunner != want.DefaultRunner || loaded.Color != want.Color || loaded.LogLevel != want.LogLevel {
		t.Errorf("got %+v, want %+v", loaded.Config, want)
	}
	if loaded.Container.DefaultImage != DefaultContainerImage {
		t.Errorf("DefaultImage = %q", loaded.Container.DefaultImage)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := writeSettings(t, `
parallel: 4
default_runner: "virtual"
plugins: ["timing"]
container: default_image: "alpine:3"
`)
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", cfg.Parallel)
	}
	if cfg.DefaultRunner != RunnerVirtual {
		t.Errorf("DefaultRunner = %q", cfg.DefaultRunner)
	}
	if !slices.Equal(cfg.Plugins, []string{"timing"}) {
		t.Errorf("Plugins = %v", cfg.Plugins)
	}
	if cfg.Container.DefaultImage != "alpine:3" {
		t.Errorf("DefaultImage = %q", cfg.Container.DefaultImage)
	}
	// Unset keys keep their defaults.
	if cfg.Color != ColorAuto {
		t.Errorf("Color = %q, want auto", cfg.Color)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown runner", `default_runner: "ssh"`},
		{"negative parallel", `parallel: -1`},
		{"unknown field", `colour: "never"`},
		{"syntax", `parallel: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := writeSettings(t, tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), "load settings") {
				t.Errorf("error %q does not name the operation", err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Load() error = %v, want not found", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ENVRUN_PARALLEL", "8")
	t.Setenv("ENVRUN_CONTAINER_DEFAULT_IMAGE", "busybox")
	t.Setenv("ENVRUN_PLUGINS", "timing, journal")

	dir := writeSettings(t, "parallel: 2\n")
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel != 8 {
		t.Errorf("Parallel = %d, want 8", cfg.Parallel)
	}
	if cfg.Container.DefaultImage != "busybox" {
		t.Errorf("DefaultImage = %q", cfg.Container.DefaultImage)
	}
	if !slices.Equal(cfg.Plugins, []string{"timing", "journal"}) {
		t.Errorf("Plugins = %v", cfg.Plugins)
	}
}

func TestLoad_EnvOverrideInvalid(t *testing.T) {
	t.Setenv("ENVRUN_COLOR", "sometimes")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidColorMode) {
		t.Fatalf("Load() error = %v, want ErrInvalidColorMode", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error does not wrap ErrInvalidConfig")
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	cfg := DefaultConfig()
	cfg.Parallel = 3
	cfg.WorkDir = "/tmp/envs"
	cfg.Plugins = []string{"journal"}
	path, err := Save(cfg)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Save() wrote %q outside %q", path, dir)
	}

	got, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Parallel != 3 || got.WorkDir != "/tmp/envs" || !slices.Equal(got.Plugins, []string{"journal"}) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DefaultRunner = "ssh"
	cfg.LogLevel = "loud"
	cfg.Container.DefaultImage = " "

	err := cfg.Validate()
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("Validate() error = %v, want *InvalidConfigError", err)
	}
	if len(invalid.FieldErrors) != 3 {
		t.Errorf("FieldErrors = %v, want 3", invalid.FieldErrors)
	}
	if !errors.Is(err, ErrInvalidRunnerKind) || !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("error %v missing sentinels", err)
	}
	if DefaultConfig().Validate() != nil {
		t.Error("defaults do not validate")
	}
}
