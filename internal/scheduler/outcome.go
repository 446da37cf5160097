// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"slices"
	"sync"
	"time"

	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/execute"
)

type (
	// Outcome is the record of one environment's run. It is not modified
	// after the environment reaches a terminal state.
	Outcome struct {
		Env         string
		Role        environment.Role
		EnvKind     string
		Kind        OutcomeKind
		State       State
		ExitCode    int
		Elapsed     time.Duration
		Output      string
		Err         error
		Reason      string
		Commands    []*execute.Result
		Transitions []Transition
	}

	// Report aggregates the outcomes of a run in terminal-completion order.
	Report struct {
		mu          sync.Mutex
		outcomes    []*Outcome
		Interrupted bool
		Elapsed     time.Duration
	}
)

func (o *Outcome) enter(state State, at time.Time) error {
	if o.State != stateUnrecognized && !CanTransition(o.State, state) {
		return &InvalidTransitionError{Env: o.Env, From: o.State, To: state}
	}
	o.State = state
	o.Transitions = append(o.Transitions, Transition{State: state, At: at})
	return nil
}

// States lists the states the environment went through.
func (o *Outcome) States() []State {
	out := make([]State, len(o.Transitions))
	for i, t := range o.Transitions {
		out[i] = t.State
	}
	return out
}

// Succeeded reports whether the environment reached succeeded.
func (o *Outcome) Succeeded() bool { return o.State == StateSucceeded }

// NewReport returns a report holding outcomes, for callers that assemble
// results outside a scheduler run.
func NewReport(outcomes ...*Outcome) *Report {
	return &Report{outcomes: slices.Clone(outcomes)}
}

func (r *Report) add(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// Outcomes returns the outcomes in the order environments finished.
func (r *Report) Outcomes() []*Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outcomes)
}

// Outcome returns the outcome of env.
func (r *Report) Outcome(env string) (*Outcome, bool) {
	for _, o := range r.Outcomes() {
		if o.Env == env {
			return o, true
		}
	}
	return nil, false
}

// Success reports whether every environment that was not skipped succeeded.
func (r *Report) Success() bool {
	for _, o := range r.Outcomes() {
		if o.State != StateSkipped && o.State != StateSucceeded {
			return false
		}
	}
	return true
}

// Counts returns how many environments ended in each terminal state.
func (r *Report) Counts() map[State]int {
	counts := make(map[State]int, 3)
	for _, o := range r.Outcomes() {
		counts[o.State]++
	}
	return counts
}
