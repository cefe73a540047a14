package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dop251/goja"
)

// maxOutputBytes is the truncation limit for captured execution output
// kept in turn records and prompt context.
const maxOutputBytes = 16 * 1024

const defaultTimeout = 2 * time.Minute

// Result is the outcome of one execution.
type Result struct {
	StdoutSummary string
	Produced      []ProducedArtifact
	WroteFiles    []string
	// Empty flags an execution that raised no error but produced no
	// artifact, no output, and no file. The orchestrator treats this
	// as a soft-failure eligible for an explicit fix.
	Empty bool
	Err   *StructuredError
}

// Executor runs code strings against a namespace. Execution is
// synchronous; mutual exclusion on the namespace guarantees one run in
// flight per session.
type Executor struct {
	timeout time.Duration
}

// New creates an executor. timeout <= 0 uses the default.
func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Run executes code against ns in place. Raised errors are captured
// and classified, never propagated. A runaway script is interrupted at
// the executor timeout; cancellation mid-run is not supported beyond
// that.
func (e *Executor) Run(ctx context.Context, code string, ns *Namespace) Result {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.resetRun()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The watchdog must be fully drained before ClearInterrupt, and it
	// must never interrupt once the script has finished: a late
	// Interrupt would poison the next run.
	done := make(chan struct{})
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		select {
		case <-runCtx.Done():
			select {
			case <-done:
			default:
				ns.rt.Interrupt("execution timed out")
			}
		case <-done:
		}
	}()

	start := time.Now()
	_, err := ns.rt.RunString(code)
	close(done)
	<-watchdogDone
	ns.rt.ClearInterrupt()

	res := Result{
		StdoutSummary: truncate(ns.out.String()),
		Produced:      append([]ProducedArtifact(nil), ns.produced...),
		WroteFiles:    append([]string(nil), ns.files...),
	}

	if err != nil {
		res.Err = asStructured(err)
		slog.Debug("execution failed",
			"kind", res.Err.Kind, "elapsed", time.Since(start))
		return res
	}

	res.Empty = res.StdoutSummary == "" && len(res.Produced) == 0 && len(res.WroteFiles) == 0
	slog.Debug("execution finished",
		"artifacts", len(res.Produced), "empty", res.Empty, "elapsed", time.Since(start))
	return res
}

// asStructured converts a goja error into the taxonomy.
func asStructured(err error) *StructuredError {
	var ex *goja.Exception
	var ie *goja.InterruptedError

	msg := err.Error()
	switch {
	case errors.As(err, &ie):
		return &StructuredError{Kind: KindUnknown, Message: "execution interrupted: " + ie.String()}
	case errors.As(err, &ex):
		msg = ex.Value().String()
	}
	return &StructuredError{Kind: classify(msg), Message: msg}
}

// truncate caps output kept in records, appending a marker when cut.
func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "...[truncated]"
}
