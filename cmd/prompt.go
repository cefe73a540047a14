package cmd

import (
	"github.com/charmbracelet/huh"

	"github.com/nextlevelbuilder/tsagent/internal/agent"
)

// runWithHelp wraps a huh field in a form with help hints visible.
func runWithHelp(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).Run()
}

// promptSelect shows a single-select list and returns the chosen value.
func promptSelect[T comparable](title string, labels []string, values []T) (T, error) {
	var value T

	opts := make([]huh.Option[T], len(values))
	for i := range values {
		opts[i] = huh.NewOption(labels[i], values[i])
	}

	sel := huh.NewSelect[T]().
		Title(title).
		Options(opts...).
		Value(&value)

	if len(values) > 5 {
		sel = sel.Filtering(true)
	}

	if err := runWithHelp(sel); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// cliConfirmer implements agent.Confirmer with an interactive prompt.
type cliConfirmer struct{}

func (cliConfirmer) Confirm(code, explanation string) (agent.Decision, error) {
	printCode(code, explanation)
	return promptSelect("Execute this code?",
		[]string{"yes", "no", "quit"},
		[]agent.Decision{agent.DecisionYes, agent.DecisionNo, agent.DecisionQuit})
}
