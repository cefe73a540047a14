package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/tsagent/internal/dataset"
	"github.com/nextlevelbuilder/tsagent/internal/executor"
	"github.com/nextlevelbuilder/tsagent/internal/modules"
	"github.com/nextlevelbuilder/tsagent/internal/resolver"
	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// scriptGen replays canned model responses and records the prompts it
// was sent.
type scriptGen struct {
	responses []string
	prompts   []string
	err       error
}

func (g *scriptGen) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", errors.New("scriptGen: out of responses")
	}
	r := g.responses[0]
	g.responses = g.responses[1:]
	return r, nil
}

// scriptConfirm replays canned confirmation decisions.
type scriptConfirm struct {
	decisions []Decision
	seenCode  []string
}

func (c *scriptConfirm) Confirm(code, explanation string) (Decision, error) {
	c.seenCode = append(c.seenCode, code)
	if len(c.decisions) == 0 {
		return DecisionYes, nil
	}
	d := c.decisions[0]
	c.decisions = c.decisions[1:]
	return d, nil
}

func fenced(code string) string {
	return "CODE:\n```javascript\n" + code + "\n```\nEXPLANATION: test code."
}

func newTestAgent(t *testing.T, gen Generator, confirm Confirmer) (*Orchestrator, *session.Memory, *executor.Namespace) {
	t.Helper()
	mem := session.NewMemory(session.NewSession(time.Now()), 10, nil)
	ns := executor.NewNamespace(t.TempDir())
	reg := modules.Builtin()
	if err := reg.InstallBaseline(ns); err != nil {
		t.Fatal(err)
	}
	o := New(mem, gen, confirm, executor.New(5*time.Second), ns, resolver.New(reg), dataset.NewLoader(4))
	return o, mem, ns
}

func writeSalesCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	data := "date,store_id,sales_amount\n" +
		"2026-01-01,s1,100\n2026-01-02,s1,110\n2026-01-03,s1,120\n" +
		"2026-01-01,s2,50\n2026-01-02,s2,55\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandle_RequiresDataFirst(t *testing.T) {
	o, _, _ := newTestAgent(t, &scriptGen{}, &scriptConfirm{})

	if _, err := o.Handle(context.Background(), "forecast sales"); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
	if _, err := o.Handle(context.Background(), "   "); !errors.Is(err, ErrEmptyUtterance) {
		t.Errorf("err = %v, want ErrEmptyUtterance", err)
	}
}

func TestAnalyze_MissingPath(t *testing.T) {
	o, mem, _ := newTestAgent(t, &scriptGen{}, &scriptConfirm{})

	_, err := o.Analyze(context.Background(), "/no/such/file.csv", "sales_amount", "store_id")
	var derr *dataset.DataLoadError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want DataLoadError", err)
	}
	if mem.HasArtifactKind(session.KindDataset) {
		t.Error("failed analyze registered a dataset artifact")
	}
	last, ok := mem.LastTurn()
	if !ok || last.Status != session.StatusFailed {
		t.Errorf("failed analyze not recorded: %+v", last)
	}
}

func TestAnalyze_BindsDatasetArtifact(t *testing.T) {
	o, mem, ns := newTestAgent(t, &scriptGen{}, &scriptConfirm{})

	out, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Total series: 2") {
		t.Errorf("analysis output:\n%s", out)
	}

	a, ok := mem.Artifact("sales_amount_by_store")
	if !ok || a.Kind != session.KindDataset {
		t.Fatalf("dataset artifact = %+v, ok=%v", a, ok)
	}
	if !ns.Has("sales_amount_by_store") {
		t.Error("frame not bound into namespace")
	}
	last, _ := mem.LastTurn()
	if last.Status != session.StatusSuccess {
		t.Errorf("analyze turn status = %s", last.Status)
	}
}

func TestHandle_Success(t *testing.T) {
	gen := &scriptGen{responses: []string{
		fenced(`console.log('mean is', 87); artifacts.put('summary', 'table', {mean: 87});`),
	}}
	o, mem, _ := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "summarize sales")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, detail = %s", res.Outcome, res.ErrorDetail)
	}
	if !strings.Contains(res.Output, "mean is 87") {
		t.Errorf("output = %q", res.Output)
	}

	// The prompt carried the bound artifact and the utterance.
	p := gen.prompts[0]
	if !strings.Contains(p, "sales_amount_by_store (dataset)") || !strings.Contains(p, "summarize sales") {
		t.Errorf("prompt missing context:\n%s", p)
	}

	if _, ok := mem.Artifact("summary"); !ok {
		t.Error("produced artifact not mirrored into session memory")
	}
	last, _ := mem.LastTurn()
	if last.Status != session.StatusSuccess || last.GeneratedCode == "" {
		t.Errorf("turn = %+v", last)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %s, want idle", o.State())
	}
}

func TestHandle_ArtifactNamesUsableAcrossTurns(t *testing.T) {
	gen := &scriptGen{responses: []string{
		fenced(`artifacts.put('My Forecast', 'forecast', [1, 2, 3]); console.log('stored');`),
		fenced(`console.log(artifacts.get('my_forecast').length);`),
	}}
	o, mem, _ := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "store a forecast")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, detail = %s", res.Outcome, res.ErrorDetail)
	}
	if _, ok := mem.Artifact("my_forecast"); !ok {
		t.Fatal("artifact not mirrored under its normalized name")
	}

	// The next prompt advertises exactly the name the namespace resolves.
	res, err = o.Handle(context.Background(), "how long is the forecast")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("second turn outcome = %s, detail = %s", res.Outcome, res.ErrorDetail)
	}
	if !strings.Contains(res.Output, "3") {
		t.Errorf("output = %q", res.Output)
	}
	if !strings.Contains(gen.prompts[1], "my_forecast (forecast)") {
		t.Errorf("second prompt missing stored artifact:\n%s", gen.prompts[1])
	}
}

func TestHandle_DependencyResolvedWithSingleRetry(t *testing.T) {
	code := `runs = (typeof runs === 'undefined') ? 1 : runs + 1;
var fc = require('forecast').linear(sales_amount_by_store.filter('s1'), 3);
artifacts.put('sales_forecast', 'forecast', fc.values);
console.log('forecast', fc.values.length, 'periods');`
	gen := &scriptGen{responses: []string{fenced(code)}}
	o, mem, ns := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "forecast s1 for 3 days")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, detail = %s", res.Outcome, res.ErrorDetail)
	}

	// First execution hit the missing module, the resolver installed it,
	// and exactly one re-execution ran.
	v, rerr := ns.Runtime().RunString("runs")
	if rerr != nil {
		t.Fatal(rerr)
	}
	if got := v.ToInteger(); got != 2 {
		t.Errorf("executions = %d, want 2", got)
	}
	if !ns.HasModule("forecast") {
		t.Error("forecast module not installed")
	}

	a, ok := mem.Artifact("sales_forecast")
	if !ok || a.Kind != session.KindForecast {
		t.Errorf("forecast artifact = %+v, ok=%v", a, ok)
	}
}

func TestHandle_UnresolvableDependencyFailsOnce(t *testing.T) {
	code := `tries = (typeof tries === 'undefined') ? 1 : tries + 1; require('prophet');`
	gen := &scriptGen{responses: []string{fenced(code)}}
	o, _, ns := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "use prophet")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if !strings.Contains(res.ErrorDetail, "Cannot find module 'prophet'") {
		t.Errorf("detail = %q", res.ErrorDetail)
	}

	// No package to install means no automatic re-execution.
	v, rerr := ns.Runtime().RunString("tries")
	if rerr != nil {
		t.Fatal(rerr)
	}
	if got := v.ToInteger(); got != 1 {
		t.Errorf("executions = %d, want 1", got)
	}
}

func TestHandle_DeclineSkips(t *testing.T) {
	gen := &scriptGen{responses: []string{fenced(`marker = true; console.log('ran');`)}}
	o, mem, ns := newTestAgent(t, gen, &scriptConfirm{decisions: []Decision{DecisionNo}})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}
	before := len(mem.Recent(100))

	res, err := o.Handle(context.Background(), "do something")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if ns.Has("marker") {
		t.Error("declined code was executed")
	}

	last, _ := mem.LastTurn()
	if last.Status != session.StatusSkipped || last.GeneratedCode == "" {
		t.Errorf("skipped turn = %+v", last)
	}
	if got := len(mem.Recent(100)); got != before+1 {
		t.Errorf("turn count = %d, want %d", got, before+1)
	}
}

func TestHandle_QuitLeavesMemoryUntouched(t *testing.T) {
	gen := &scriptGen{responses: []string{fenced(`console.log('ran')`)}}
	o, mem, _ := newTestAgent(t, gen, &scriptConfirm{decisions: []Decision{DecisionQuit}})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}
	before := len(mem.Recent(100))

	res, err := o.Handle(context.Background(), "do something")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeAbandoned {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if got := len(mem.Recent(100)); got != before {
		t.Errorf("abandonment mutated memory: %d turns, want %d", got, before)
	}
}

func TestHandle_FailureThenFix(t *testing.T) {
	gen := &scriptGen{responses: []string{
		fenced(`forcast.linear(sales_amount_by_store, 5)`), // typo: undefined name
		fenced(`var fc = require('forecast').linear(sales_amount_by_store.filter('s1'), 5); console.log(fc.values.join(','));`),
	}}
	o, mem, _ := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "forecast sales")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	failedID := res.TurnID
	if o.State() != StateFixLoop {
		t.Errorf("state = %s, want fix_loop", o.State())
	}

	fixRes, err := o.HandleFix(context.Background(), "use the forecast module")
	if err != nil {
		t.Fatal(err)
	}
	if fixRes.Outcome != OutcomeSuccess {
		t.Fatalf("fix outcome = %s, detail = %s", fixRes.Outcome, fixRes.ErrorDetail)
	}

	// The fix prompt carried the failing code, the error, and the
	// user's instructions verbatim.
	fixPrompt := gen.prompts[1]
	for _, want := range []string{
		"forcast.linear(sales_amount_by_store, 5)",
		"is not defined",
		"use the forecast module",
	} {
		if !strings.Contains(fixPrompt, want) {
			t.Errorf("fix prompt missing %q", want)
		}
	}

	// The superseded turn is amended, not deleted.
	var superseded *session.Turn
	for _, turn := range mem.Recent(100) {
		if turn.ID == failedID {
			superseded = &turn
			break
		}
	}
	if superseded == nil {
		t.Fatal("failed turn missing from log")
	}
	if superseded.Status != session.StatusFixed {
		t.Errorf("superseded status = %s, want fixed", superseded.Status)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %s, want idle", o.State())
	}
}

func TestHandle_SoftFailureIsFixEligible(t *testing.T) {
	gen := &scriptGen{responses: []string{
		fenced(`var fc = require('frames');`), // runs clean, produces nothing
		fenced(`console.log('now with output')`),
	}}
	o, _, _ := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "do the thing")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSoftFailed {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if !strings.Contains(res.ErrorDetail, "no output, no artifact, and no file") {
		t.Errorf("detail = %q", res.ErrorDetail)
	}

	fixRes, err := o.HandleFix(context.Background(), "print the result")
	if err != nil {
		t.Fatal(err)
	}
	if fixRes.Outcome != OutcomeSuccess {
		t.Fatalf("fix outcome = %s", fixRes.Outcome)
	}
	if !strings.Contains(gen.prompts[1], "no output, no artifact, and no file") {
		t.Error("fix prompt missing soft-failure detail")
	}
}

func TestHandleFix_Guards(t *testing.T) {
	o, _, _ := newTestAgent(t, &scriptGen{}, &scriptConfirm{})

	if _, err := o.HandleFix(context.Background(), ""); !errors.Is(err, ErrNoInstructions) {
		t.Errorf("err = %v, want ErrNoInstructions", err)
	}
	if _, err := o.HandleFix(context.Background(), "try again"); !errors.Is(err, ErrNothingToFix) {
		t.Errorf("err = %v, want ErrNothingToFix", err)
	}
}

func TestHandle_GeneratorFailure(t *testing.T) {
	gen := &scriptGen{err: errors.New("model endpoint unavailable")}
	o, mem, _ := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "forecast")
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s", res.Outcome)
	}
	last, _ := mem.LastTurn()
	if last.Status != session.StatusFailed {
		t.Errorf("turn status = %s", last.Status)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %s, want idle after generator failure", o.State())
	}
	// No generated code means nothing to fix.
	if _, err := o.HandleFix(context.Background(), "retry"); !errors.Is(err, ErrNothingToFix) {
		t.Errorf("err = %v, want ErrNothingToFix", err)
	}
}

func TestHandle_NoCodeResponse(t *testing.T) {
	// A non-fenced response falls back to whole-text-as-code, so only a
	// blank response exercises the no-code path.
	gen := &scriptGen{responses: []string{"   "}}
	o, _, _ := newTestAgent(t, gen, &scriptConfirm{})
	if _, err := o.Analyze(context.Background(), writeSalesCSV(t), "sales_amount", "store_id"); err != nil {
		t.Fatal(err)
	}

	res, err := o.Handle(context.Background(), "forecast")
	if err == nil {
		t.Fatal("expected error for empty model response")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %s, want idle after no-code response", o.State())
	}
}
