package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the key bindings and the about box.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	version := m.version
	if version == "" {
		version = "dev"
	}
	b.WriteString(styles.Logo.Render("tunerwatch"))
	b.WriteString(" ")
	b.WriteString(styles.MutedText.Render(version))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("Terminal monitor for Mirakurun tuner servers"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 36)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning)).Width(12)
	groups := m.keys.FullHelp()
	for i, group := range groups {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		if i < len(groups)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("theme: " + m.theme.Name + "  •  any key closes"))

	return m.renderOverlay(styles.Modal.Width(44).Render(b.String()))
}
