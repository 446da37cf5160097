// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"fmt"
	"time"
)

// Lifecycle states.
const (
	StatePending      State = "pending"
	StateSettingUp    State = "setting-up"
	StateInstalling   State = "installing-dependencies"
	StatePackaging    State = "packaging"
	StateRunning      State = "running-commands"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateSkipped      State = "skipped"
	stateUnrecognized State = ""
)

// Outcome kinds.
const (
	KindSuccess        OutcomeKind = "success"
	KindCommandFailure OutcomeKind = "command-failure"
	KindSkipped        OutcomeKind = "skipped"
	KindSetupError     OutcomeKind = "setup-error"
)

type (
	// State is a lifecycle state of one environment.
	State string

	// OutcomeKind classifies how an environment ended.
	OutcomeKind string

	// Transition records entering a state.
	Transition struct {
		State State     `json:"state"`
		At    time.Time `json:"at"`
	}

	// InvalidTransitionError is returned when a state change would go backwards.
	InvalidTransitionError struct {
		Env  string
		From State
		To   State
	}
)

var transitions = map[State][]State{
	StatePending:    {StateSettingUp, StateSkipped},
	StateSettingUp:  {StateInstalling, StateFailed, StateSkipped},
	StateInstalling: {StatePackaging, StateRunning, StateFailed},
	StatePackaging:  {StateSucceeded, StateFailed},
	StateRunning:    {StateSucceeded, StateFailed},
}

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

// CanTransition reports whether from may be followed by to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("[%s] invalid transition %s -> %s", e.Env, e.From, e.To)
}
