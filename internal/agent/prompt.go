package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// moduleDocs describes the host API available to generated code. Sent
// with every prompt so the model writes against real bindings instead
// of inventing libraries.
const moduleDocs = `Available runtime API (JavaScript):
- require('frames')   frame ops; frame methods: series(), filter(id), head(n), values([col]), column(name), toTable([n]); fields: columns, length, target, seriesId
- require('forecast') forecast.linear(frameOrValues, periods), forecast.seasonalNaive(frameOrValues, periods, season) -> {method, values}
- require('export')   export.writeCSV(name, rows) writes a CSV and registers a table artifact; export.print(...)
- console.log(...)    prints output
- artifacts.get(name) fetches an existing artifact value; artifacts.put(name, kind, value) registers a new one (kinds: dataset, model, forecast, figure, table)`

// datasetContext summarizes the bound dataset(s) for the prompt.
func datasetContext(arts map[string]session.Artifact) string {
	if len(arts) == 0 {
		return "No artifacts exist yet."
	}
	names := make([]string, 0, len(arts))
	for n := range arts {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Existing artifacts (reference them by name via the global binding or artifacts.get; do NOT reload data):\n")
	for _, n := range names {
		a := arts[n]
		fmt.Fprintf(&b, "- %s (%s)", n, a.Kind)
		if a.ValueRef != "" {
			fmt.Fprintf(&b, " ref=%s", a.ValueRef)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// historyContext renders the windowed recent turns, including errors,
// so the model can learn from failed attempts.
func historyContext(turns []session.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous interactions:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "User: %s\nStatus: %s\n", t.UserText, t.Status)
		if t.OutputSummary != "" {
			fmt.Fprintf(&b, "Output: %s\n", firstLines(t.OutputSummary, 5))
		}
		if t.ErrorDetail != "" {
			fmt.Fprintf(&b, "Error: %s\n", firstLines(t.ErrorDetail, 3))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPrompt assembles the context-enriched generation prompt for a
// fresh utterance.
func BuildPrompt(snap session.Snapshot, utterance string) string {
	return fmt.Sprintf(`You are a time-series analysis assistant. You answer by generating JavaScript code for an embedded runtime.

%s

%s
%s
User request: %s

Respond with:
CODE:
`+"```javascript"+`
<your code>
`+"```"+`
EXPLANATION: <one paragraph on what the code does>`,
		moduleDocs, datasetContext(snap.Artifacts), historyContext(snap.Turns), utterance)
}

// BuildFixPrompt assembles the regeneration prompt for an explicit fix
// command: prior failing code, its error or empty-output detail, and
// the user's instructions verbatim.
func BuildFixPrompt(snap session.Snapshot, priorCode, detail, instructions string) string {
	return fmt.Sprintf(`You are a time-series analysis assistant. A previous code attempt needs fixing.

%s

%s
Previous code:
`+"```javascript"+`
%s
`+"```"+`

Result of the previous attempt:
%s

User wants to: %s

Provide corrected code that keeps the core functionality and follows the user's instructions.

Respond with:
CODE:
`+"```javascript"+`
<fixed code>
`+"```"+`
EXPLANATION: <what was wrong and how the fix addresses it>`,
		moduleDocs, datasetContext(snap.Artifacts), priorCode, detail, instructions)
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:javascript|js)?\\s*\\n(.*?)```")

// ParseResponse extracts the code block and explanation from a model
// response. Falls back to treating the whole response as code when no
// fence is present (small models often skip the scaffolding).
func ParseResponse(text string) (code, explanation string) {
	if m := codeFenceRe.FindStringSubmatchIndex(text); m != nil {
		code = strings.TrimSpace(text[m[2]:m[3]])
		rest := text[m[1]:]
		if i := strings.Index(rest, "EXPLANATION:"); i >= 0 {
			explanation = strings.TrimSpace(rest[i+len("EXPLANATION:"):])
		}
		return code, explanation
	}
	return strings.TrimSpace(text), ""
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}
