package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/tsagent/internal/dataset"
	"github.com/nextlevelbuilder/tsagent/internal/executor"
	"github.com/nextlevelbuilder/tsagent/internal/modules"
	"github.com/nextlevelbuilder/tsagent/internal/resolver"
	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// failedAttempt remembers the last failed or soft-failed execution so
// an explicit fix command can reference it.
type failedAttempt struct {
	turnID string
	code   string
	detail string
}

// Orchestrator drives one utterance at a time through prompt,
// confirmation, execution, dependency resolution, and the fix loop.
// A single mutex serializes turns: namespace mutation is not safe to
// interleave, so one utterance is fully handled before the next.
type Orchestrator struct {
	mu sync.Mutex

	state   State
	mem     *session.Memory
	gen     Generator
	confirm Confirmer
	exec    *executor.Executor
	ns      *executor.Namespace
	res     *resolver.Resolver
	loader  *dataset.Loader

	lastFailed *failedAttempt
	now        func() time.Time
}

// New wires an orchestrator. The model identifier must already be
// selected on the generator before the first Handle call.
func New(mem *session.Memory, gen Generator, confirm Confirmer,
	exec *executor.Executor, ns *executor.Namespace,
	res *resolver.Resolver, loader *dataset.Loader) *Orchestrator {
	return &Orchestrator{
		state:   StateIdle,
		mem:     mem,
		gen:     gen,
		confirm: confirm,
		exec:    exec,
		ns:      ns,
		res:     res,
		loader:  loader,
		now:     time.Now,
	}
}

// State returns the current state-machine phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	slog.Debug("state transition", "state", s)
}

func (o *Orchestrator) newTurn(userText string) session.Turn {
	return session.Turn{
		ID:        uuid.NewString(),
		Timestamp: o.now().UTC(),
		UserText:  userText,
	}
}

// Analyze loads a dataset, binds it into the execution namespace, and
// registers the dataset artifact. All load failures are DataLoadError
// and leave the artifact map untouched.
func (o *Orchestrator) Analyze(ctx context.Context, path, target, seriesID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	userText := fmt.Sprintf("analyze %s %s %s", path, target, seriesID)
	turn := o.newTurn(userText)

	fr, err := o.loader.Load(path, target, seriesID)
	if err != nil {
		o.recordFailure(turn, "", err.Error())
		return "", err
	}

	analysis, err := dataset.Describe(fr)
	if err != nil {
		derr := &dataset.DataLoadError{Path: path, Reason: "analysis failed", Err: err}
		o.recordFailure(turn, "", derr.Error())
		return "", derr
	}

	name := dataset.ArtifactName(target, seriesID)
	o.ns.Bind(name, modules.WrapFrame(o.ns, fr))

	turn.Status = session.StatusSuccess
	turn.OutputSummary = fmt.Sprintf("dataset %s bound: %d rows, %d series", name, fr.Len(), analysis.TotalSeries)
	o.mem.Append(turn)
	o.mem.UpsertArtifact(session.Artifact{
		Name:            name,
		Kind:            session.KindDataset,
		CreatedByTurnID: turn.ID,
		ValueRef:        path,
	})
	o.persist()

	slog.Info("dataset analyzed", "artifact", name, "rows", fr.Len(), "series", analysis.TotalSeries)
	return analysis.Format(), nil
}

// Handle processes one natural-language utterance end to end.
func (o *Orchestrator) Handle(ctx context.Context, utterance string) (TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return TurnResult{}, ErrEmptyUtterance
	}
	if !o.mem.HasArtifactKind(session.KindDataset) {
		return TurnResult{}, ErrNoData
	}

	prompt := BuildPrompt(o.mem.ContextSnapshot(), utterance)
	return o.generateAndRun(ctx, utterance, prompt, "")
}

// HandleFix re-enters prompting with the prior failing code, its
// error or empty-output detail, and the user's instructions verbatim.
// The regenerated code replaces the prior attempt: on success the
// superseded turn's status is amended to fixed.
func (o *Orchestrator) HandleFix(ctx context.Context, instructions string) (TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return TurnResult{}, ErrNoInstructions
	}
	if o.lastFailed == nil {
		return TurnResult{}, ErrNothingToFix
	}

	prompt := BuildFixPrompt(o.mem.ContextSnapshot(),
		o.lastFailed.code, o.lastFailed.detail, instructions)
	return o.generateAndRun(ctx, "fix "+instructions, prompt, o.lastFailed.turnID)
}

// generateAndRun is the shared prompt → confirm → execute path.
// supersedes names the failed turn a successful fix amends.
func (o *Orchestrator) generateAndRun(ctx context.Context, userText, prompt, supersedes string) (TurnResult, error) {
	turn := o.newTurn(userText)

	o.setState(StatePrompting)
	resp, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		o.recordFailure(turn, "", err.Error())
		o.setState(StateIdle)
		return TurnResult{Outcome: OutcomeFailed, TurnID: turn.ID, ErrorDetail: err.Error()}, err
	}

	code, explanation := ParseResponse(resp)
	if code == "" {
		detail := "model returned no code"
		o.recordFailure(turn, "", detail)
		o.setState(StateIdle)
		return TurnResult{Outcome: OutcomeFailed, TurnID: turn.ID, ErrorDetail: detail}, fmt.Errorf("%s", detail)
	}
	turn.GeneratedCode = code

	o.setState(StateAwaitingConfirmation)
	decision, err := o.confirm.Confirm(code, explanation)
	if err != nil {
		o.setState(StateIdle)
		return TurnResult{}, fmt.Errorf("confirmation: %w", err)
	}

	switch decision {
	case DecisionNo:
		turn.Status = session.StatusSkipped
		o.mem.Append(turn)
		o.persist()
		o.setState(StateIdle)
		return TurnResult{Outcome: OutcomeSkipped, TurnID: turn.ID, Code: code}, nil

	case DecisionQuit:
		// Abandonment is logged but does not mutate session memory.
		slog.Info("turn abandoned at confirmation", "turn", turn.ID)
		o.setState(StateIdle)
		return TurnResult{Outcome: OutcomeAbandoned, TurnID: turn.ID, Code: code}, nil
	}

	o.setState(StateExecuting)
	res := o.exec.Run(ctx, code, o.ns)

	// One automatic dependency-triggered retry per execution attempt.
	if res.Err != nil && res.Err.Kind == executor.KindMissingDependency {
		if r := o.res.Resolve(o.ns, res.Err); r.Resolved {
			slog.Info("re-executing after dependency install", "package", r.Package)
			res = o.exec.Run(ctx, code, o.ns)
		}
	}

	switch {
	case res.Err != nil:
		o.recordFailure(turn, code, res.Err.Error())
		o.setState(StateFixLoop)
		return TurnResult{
			Outcome: OutcomeFailed, TurnID: turn.ID, Code: code,
			Output: res.StdoutSummary, ErrorDetail: res.Err.Error(),
		}, nil

	case res.Empty:
		detail := "execution completed but produced no output, no artifact, and no file"
		o.recordFailure(turn, code, detail)
		o.setState(StateFixLoop)
		return TurnResult{
			Outcome: OutcomeSoftFailed, TurnID: turn.ID, Code: code, ErrorDetail: detail,
		}, nil
	}

	turn.Status = session.StatusSuccess
	turn.OutputSummary = res.StdoutSummary
	o.mem.Append(turn)
	o.mirrorArtifacts(turn.ID, res.Produced)
	if supersedes != "" {
		o.mem.AmendStatus(supersedes, session.StatusFixed)
	}
	o.lastFailed = nil
	o.persist()
	o.setState(StateIdle)

	return TurnResult{
		Outcome: OutcomeSuccess, TurnID: turn.ID, Code: code, Output: res.StdoutSummary,
	}, nil
}

// recordFailure appends a failed turn, remembers it for the fix loop,
// and persists. No error silently disappears.
func (o *Orchestrator) recordFailure(turn session.Turn, code, detail string) {
	turn.Status = session.StatusFailed
	turn.GeneratedCode = code
	turn.ErrorDetail = detail
	o.mem.Append(turn)
	if code != "" {
		o.lastFailed = &failedAttempt{turnID: turn.ID, code: code, detail: detail}
	}
	o.persist()
}

// mirrorArtifacts copies artifacts produced in the namespace into the
// session map. Last write wins on name collisions.
func (o *Orchestrator) mirrorArtifacts(turnID string, produced []executor.ProducedArtifact) {
	for _, p := range produced {
		kind := p.Kind
		switch kind {
		case session.KindDataset, session.KindModel, session.KindForecast, session.KindFigure, session.KindTable:
		default:
			kind = session.KindTable
		}
		o.mem.UpsertArtifact(session.Artifact{
			Name:            dataset.NormalizeName(p.Name),
			Kind:            kind,
			CreatedByTurnID: turnID,
			ValueRef:        p.ValueRef,
		})
	}
}

func (o *Orchestrator) persist() {
	if err := o.mem.Persist(); err != nil {
		slog.Error("session persist failed", "error", err)
	}
}

// SetWindow forwards a config reload to the memory window.
func (o *Orchestrator) SetWindow(n int) { o.mem.SetWindow(n) }
