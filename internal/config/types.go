// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RunnerNative runs commands in the host shell.
	RunnerNative RunnerKind = "native"
	// RunnerVirtual runs commands in the embedded shell interpreter.
	RunnerVirtual RunnerKind = "virtual"
	// RunnerContainer runs commands inside a container.
	RunnerContainer RunnerKind = "container"

	// ColorAuto colors output when stdout is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colored output.
	ColorAlways ColorMode = "always"
	// ColorNever disables colored output.
	ColorNever ColorMode = "never"

	// DefaultContainerImage is used by container environments without an image.
	DefaultContainerImage = "debian:stable-slim"
)

var (
	// ErrInvalidRunnerKind is returned when a RunnerKind value is not recognized.
	ErrInvalidRunnerKind = errors.New("invalid runner kind")
	// ErrInvalidColorMode is returned when a ColorMode value is not recognized.
	ErrInvalidColorMode = errors.New("invalid color mode")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RunnerKind names the kind run environments use when they set no runner.
	RunnerKind string

	// ColorMode controls colored output.
	ColorMode string

	// LogLevel is the minimum level of log records shown.
	LogLevel string

	// InvalidValueError describes one rejected setting.
	InvalidValueError struct {
		Field string
		Value string
		Err   error
	}

	// InvalidConfigError collects the field-level errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the user settings.
	Config struct {
		// Parallel is the default worker count; 0 and 1 run sequentially.
		Parallel      int        `json:"parallel" mapstructure:"parallel"`
		DefaultRunner RunnerKind `json:"default_runner" mapstructure:"default_runner"`
		LogLevel      LogLevel   `json:"log_level" mapstructure:"log_level"`
		Color         ColorMode  `json:"color" mapstructure:"color"`
		// WorkDir overrides where environment directories are created.
		WorkDir string `json:"work_dir" mapstructure:"work_dir"`
		// Plugins enables optional plugins for every project.
		Plugins   []string        `json:"plugins" mapstructure:"plugins"`
		Container ContainerConfig `json:"container" mapstructure:"container"`
	}

	// ContainerConfig configures the container runner.
	ContainerConfig struct {
		DefaultImage string `json:"default_image" mapstructure:"default_image"`
	}
)

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Parallel:      0,
		DefaultRunner: RunnerNative,
		LogLevel:      "warn",
		Color:         ColorAuto,
		Plugins:       []string{},
		Container:     ContainerConfig{DefaultImage: DefaultContainerImage},
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Parallel < 0 {
		errs = append(errs, &InvalidValueError{Field: "parallel", Value: fmt.Sprint(c.Parallel), Err: errors.New("must not be negative")})
	}
	if err := c.DefaultRunner.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Color.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.LogLevel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Container.DefaultImage) == "" {
		errs = append(errs, &InvalidValueError{Field: "container.default_image", Value: c.Container.DefaultImage, Err: errors.New("must not be empty")})
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Validate rejects unknown runner kinds.
func (k RunnerKind) Validate() error {
	switch k {
	case RunnerNative, RunnerVirtual, RunnerContainer:
		return nil
	}
	return &InvalidValueError{Field: "default_runner", Value: string(k), Err: ErrInvalidRunnerKind}
}

// Validate rejects unknown color modes.
func (m ColorMode) Validate() error {
	switch m {
	case ColorAuto, ColorAlways, ColorNever:
		return nil
	}
	return &InvalidValueError{Field: "color", Value: string(m), Err: ErrInvalidColorMode}
}

// Validate rejects unknown levels.
func (l LogLevel) Validate() error {
	switch strings.ToLower(string(l)) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return &InvalidValueError{Field: "log_level", Value: string(l), Err: ErrInvalidLogLevel}
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid settings: %v", errors.Join(e.FieldErrors...))
}

func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
