package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	codeStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printCode(code, explanation string) {
	fmt.Println(dimStyle.Render("Generated code:"))
	fmt.Println(codeStyle.Render(code))
	if explanation != "" {
		fmt.Println(dimStyle.Render("Explanation: " + explanation))
	}
}
