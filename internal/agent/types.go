// Package agent owns the interaction state machine: utterance in,
// prompt out, generated code through confirmation, execution,
// dependency resolution, and the user-driven fix loop.
package agent

import (
	"context"
	"errors"
)

// State is a phase of the per-turn state machine. Idle is both the
// initial and the resting state.
type State string

const (
	StateIdle                 State = "idle"
	StatePrompting            State = "prompting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateFixLoop              State = "fix_loop"
)

// Decision is the user's answer at the confirmation boundary.
type Decision int

const (
	DecisionYes Decision = iota
	DecisionNo
	DecisionQuit
)

// Confirmer presents generated code to the user and returns their
// decision. The CLI implements this with an interactive prompt; tests
// use a scripted one.
type Confirmer interface {
	Confirm(code, explanation string) (Decision, error)
}

// Generator is the language-model collaborator: prompt in, text out.
// Implemented by providers.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome is the terminal result of handling one utterance.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomeSoftFailed marks an execution that raised no error but
	// produced no observable output. Fix-eligible, never auto-retried.
	OutcomeSoftFailed Outcome = "soft_failed"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeAbandoned  Outcome = "abandoned"
)

// TurnResult is what Handle returns to the REPL.
type TurnResult struct {
	Outcome     Outcome
	TurnID      string
	Code        string
	Output      string
	ErrorDetail string
}

var (
	// ErrNoData rejects analysis/forecast requests made before any
	// dataset artifact exists. No code generation is attempted.
	ErrNoData = errors.New("no data loaded: run 'analyze <path> <target_column> <series_id_column>' first")

	// ErrEmptyUtterance rejects blank input.
	ErrEmptyUtterance = errors.New("empty utterance")

	// ErrNothingToFix is returned for a fix command with no prior
	// failed or soft-failed attempt.
	ErrNothingToFix = errors.New("no previous failed execution to fix")

	// ErrNoInstructions is returned for a bare fix command.
	ErrNoInstructions = errors.New("fix requires instructions, e.g. 'fix write results to csv'")
)
