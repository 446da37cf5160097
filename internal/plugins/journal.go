// SPDX-License-Identifier: MPL-2.0

package plugins

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/hook"

	"github.com/spf13/pflag"
)

// FlagResultJSON names the journal output flag.
const FlagResultJSON = "result-json"

type (
	// Journal records what every run environment executed.
	Journal struct {
		path string

		mu      sync.Mutex
		entries map[string]*JournalEntry
	}

	// JournalEntry is the record of one environment.
	JournalEntry struct {
		Env      string           `json:"env"`
		Kind     string           `json:"kind"`
		ExitCode int              `json:"exit_code"`
		Commands []JournalCommand `json:"commands"`
	}

	// JournalCommand is one executed command line.
	JournalCommand struct {
		Label    string  `json:"label"`
		Command  string  `json:"command"`
		ExitCode int     `json:"exit_code"`
		Elapsed  float64 `json:"elapsed_seconds"`
		Error    string  `json:"error,omitempty"`
	}
)

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{entries: make(map[string]*JournalEntry)}
}

// Name implements hook.Plugin.
func (j *Journal) Name() string { return "journal" }

// Hooks implements hook.Declarer.
func (j *Journal) Hooks() []hook.Point {
	return []hook.Point{hook.PointAddOption, hook.PointAfterRunCommands}
}

// AddOptions implements hook.OptionContributor.
func (j *Journal) AddOptions(flags *pflag.FlagSet) {
	if flags.Lookup(FlagResultJSON) != nil {
		return
	}
	flags.StringVar(&j.path, FlagResultJSON, "", "write a JSON journal of the run to `file`")
}

// Path returns the requested output file, empty when none was asked for.
func (j *Journal) Path() string { return j.path }

// SetPath sets the output file.
func (j *Journal) SetPath(path string) { j.path = path }

// AfterRunCommands implements hook.AfterRunObserver.
func (j *Journal) AfterRunCommands(_ context.Context, env environment.Environment, exitCode int, results []*execute.Result) {
	entry := &JournalEntry{Env: env.Name(), Kind: env.Kind(), ExitCode: exitCode, Commands: make([]JournalCommand, 0, len(results))}
	for _, r := range results {
		c := JournalCommand{Label: r.Label, Command: r.Command, ExitCode: r.ExitCode, Elapsed: r.Elapsed.Seconds()}
		if r.Err != nil {
			c.Error = r.Err.Error()
		}
		entry.Commands = append(entry.Commands, c)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[entry.Env] = entry
}

// Entries returns the records sorted by environment name.
func (j *Journal) Entries() []*JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*JournalEntry, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *JournalEntry) int { return cmp.Compare(a.Env, b.Env) })
	return out
}
