package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/tsagent/internal/session"
)

func TestParseResponse_Fenced(t *testing.T) {
	resp := "CODE:\n```javascript\nconsole.log(1);\n```\nEXPLANATION: prints one."
	code, expl := ParseResponse(resp)
	if code != "console.log(1);" {
		t.Errorf("code = %q", code)
	}
	if expl != "prints one." {
		t.Errorf("explanation = %q", expl)
	}
}

func TestParseResponse_JsFenceNoExplanation(t *testing.T) {
	code, expl := ParseResponse("```js\nvar x = 1;\n```")
	if code != "var x = 1;" {
		t.Errorf("code = %q", code)
	}
	if expl != "" {
		t.Errorf("explanation = %q", expl)
	}
}

func TestParseResponse_BareFence(t *testing.T) {
	code, _ := ParseResponse("```\nconsole.log('hi');\n```")
	if code != "console.log('hi');" {
		t.Errorf("code = %q", code)
	}
}

func TestParseResponse_NoFenceFallback(t *testing.T) {
	code, expl := ParseResponse("  console.log(42)  ")
	if code != "console.log(42)" || expl != "" {
		t.Errorf("code = %q, explanation = %q", code, expl)
	}
}

func TestParseResponse_Empty(t *testing.T) {
	if code, _ := ParseResponse("   "); code != "" {
		t.Errorf("code = %q, want empty", code)
	}
}

func TestBuildPrompt(t *testing.T) {
	snap := session.Snapshot{
		Turns: []session.Turn{
			{UserText: "forecast next week", Status: session.StatusFailed, ErrorDetail: "ReferenceError: fc is not defined"},
		},
		Artifacts: map[string]session.Artifact{
			"sales_amount_by_store": {Name: "sales_amount_by_store", Kind: session.KindDataset, ValueRef: "sales.csv"},
		},
	}

	p := BuildPrompt(snap, "plot the trend per store")
	for _, want := range []string{
		"plot the trend per store",
		"sales_amount_by_store (dataset) ref=sales.csv",
		"forecast next week",
		"ReferenceError: fc is not defined",
		"require('forecast')",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_NoArtifacts(t *testing.T) {
	p := BuildPrompt(session.Snapshot{}, "hello")
	if !strings.Contains(p, "No artifacts exist yet.") {
		t.Error("prompt missing empty-artifacts note")
	}
	if strings.Contains(p, "Previous interactions") {
		t.Error("empty history should render nothing")
	}
}

func TestBuildFixPrompt(t *testing.T) {
	p := BuildFixPrompt(session.Snapshot{},
		"forcast.linear(sales, 10)",
		"ReferenceError: forcast is not defined",
		"use the forecast module and write results to csv")
	for _, want := range []string{
		"forcast.linear(sales, 10)",
		"ReferenceError: forcast is not defined",
		"use the forecast module and write results to csv",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("fix prompt missing %q", want)
		}
	}
}

func TestFirstLines(t *testing.T) {
	in := "a\nb\nc\nd"
	if got := firstLines(in, 2); got != "a\nb\n..." {
		t.Errorf("firstLines = %q", got)
	}
	if got := firstLines(in, 10); got != in {
		t.Errorf("short input modified: %q", got)
	}
}

func TestHistoryContext_WindowOrder(t *testing.T) {
	now := time.Now()
	turns := []session.Turn{
		{UserText: "first", Status: session.StatusSuccess, Timestamp: now, OutputSummary: "ok"},
		{UserText: "second", Status: session.StatusFixed, Timestamp: now.Add(time.Minute)},
	}
	out := historyContext(turns)
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Error("history not in insertion order")
	}
	if !strings.Contains(out, "Status: fixed") {
		t.Error("amended status missing from history")
	}
}
