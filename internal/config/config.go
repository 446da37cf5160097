// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/envrun/envrun/internal/issue"
	"github.com/envrun/envrun/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "envrun"
	// ConfigFileName is the name of the settings file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the settings file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override settings.
	EnvPrefix = "ENVRUN"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the envrun settings directory.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load settings canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("parallel", defaults.Parallel)
	v.SetDefault("default_runner", string(defaults.DefaultRunner))
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("color", string(defaults.Color))
	v.SetDefault("work_dir", defaults.WorkDir)
	v.SetDefault("plugins", defaults.Plugins)
	v.SetDefault("container.default_image", defaults.Container.DefaultImage)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFilePath
	if path == "" {
		dir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		if candidate := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt); fileExists(candidate) {
			path = candidate
		}
	} else if !fileExists(path) {
		return nil, "", issue.NewErrorContext().
			WithOperation("load settings").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Run 'envrun config settings' to see the default settings").
			WithIssue(issue.SettingsLoadFailedID).
			Wrap(fmt.Errorf("settings file not found: %s", path)).
			BuildError()
	}

	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the settings schema").
				WithIssue(issue.SettingsLoadFailedID).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse settings: %w", err)
	}
	// Comma-separated values from ENVRUN_PLUGINS arrive as a single element.
	cfg.Plugins = splitList(cfg.Plugins)

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate settings").
			WithResource(path).
			WithSuggestion("Check ENVRUN_* environment variables for typos").
			WithIssue(issue.SettingsLoadFailedID).
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

func configDirWithOverride(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates path against #Config and merges it into v.
// Fields are optional, so the unified value is validated non-concretely.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	cctx := cuecontext.New()
	schemaValue := cctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile settings schema: %w", schemaValue.Err())
	}
	userValue := cctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var m map[string]any
	if err := unified.Decode(&m); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes cfg to the settings directory.
func Save(cfg *Config) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create settings directory: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write settings file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a settings file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// envrun settings\n\n")
	fmt.Fprintf(&sb, "parallel: %d\n", cfg.Parallel)
	fmt.Fprintf(&sb, "default_runner: %q\n", cfg.DefaultRunner)
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)
	fmt.Fprintf(&sb, "color: %q\n", cfg.Color)
	if cfg.WorkDir != "" {
		fmt.Fprintf(&sb, "work_dir: %q\n", cfg.WorkDir)
	}
	if len(cfg.Plugins) > 0 {
		sb.WriteString("plugins: [")
		for i, p := range cfg.Plugins {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", p)
		}
		sb.WriteString("]\n")
	}
	sb.WriteString("\ncontainer: {\n")
	fmt.Fprintf(&sb, "\tdefault_image: %q\n", cfg.Container.DefaultImage)
	sb.WriteString("}\n")
	return sb.String()
}
