// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/envrun/envrun/internal/plugins"
	"github.com/envrun/envrun/internal/scheduler"
)

type (
	// Result is the document written by WriteJSON.
	Result struct {
		RunID        string              `json:"run_id,omitempty"`
		Success      bool                `json:"success"`
		Interrupted  bool                `json:"interrupted"`
		Elapsed      float64             `json:"elapsed_seconds"`
		Environments []EnvironmentResult `json:"environments"`
	}

	// EnvironmentResult is the record of one environment.
	EnvironmentResult struct {
		Name        string                   `json:"name"`
		Role        string                   `json:"role"`
		Kind        string                   `json:"kind,omitempty"`
		State       scheduler.State          `json:"state"`
		Outcome     scheduler.OutcomeKind    `json:"outcome"`
		ExitCode    int                      `json:"exit_code"`
		Elapsed     float64                  `json:"elapsed_seconds"`
		Reason      string                   `json:"reason,omitempty"`
		Error       string                   `json:"error,omitempty"`
		Transitions []scheduler.Transition   `json:"transitions"`
		Commands    []plugins.JournalCommand `json:"commands,omitempty"`
	}
)

// NewResult assembles the JSON document from the report and journal.
func NewResult(runID string, report *scheduler.Report, journal []*plugins.JournalEntry) *Result {
	byEnv := make(map[string]*plugins.JournalEntry, len(journal))
	for _, e := range journal {
		byEnv[e.Env] = e
	}
	res := &Result{
		RunID:        runID,
		Success:      report.Success(),
		Interrupted:  report.Interrupted,
		Elapsed:      report.Elapsed.Seconds(),
		Environments: []EnvironmentResult{},
	}
	for _, o := range report.Outcomes() {
		env := EnvironmentResult{
			Name:        o.Env,
			Role:        string(o.Role),
			Kind:        o.EnvKind,
			State:       o.State,
			Outcome:     o.Kind,
			ExitCode:    o.ExitCode,
			Elapsed:     o.Elapsed.Seconds(),
			Reason:      o.Reason,
			Transitions: o.Transitions,
		}
		if o.Err != nil {
			env.Error = o.Err.Error()
		}
		if j, ok := byEnv[o.Env]; ok {
			env.Commands = j.Commands
		} else {
			for _, r := range o.Commands {
				c := plugins.JournalCommand{Label: r.Label, Command: r.Command, ExitCode: r.ExitCode, Elapsed: r.Elapsed.Seconds()}
				if r.Err != nil {
					c.Error = r.Err.Error()
				}
				env.Commands = append(env.Commands, c)
			}
		}
		res.Environments = append(res.Environments, env)
	}
	return res
}

// EncodeJSON writes res as indented JSON.
func EncodeJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteJSON writes the result document to path, replacing it atomically.
func WriteJSON(path, runID string, report *scheduler.Report, journal []*plugins.JournalEntry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create result directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".envrun-result-*.json")
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := EncodeJSON(tmp, NewResult(runID, report, journal)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
