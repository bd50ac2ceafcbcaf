package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (a AppView) renderHelpModal(width, height int) string {
	kb := a.keys

	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("wikichat - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	conversation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Conversation"),
		fmt.Sprintf("• %-13s Send message", kb.DisplayActionKey("send")),
		fmt.Sprintf("• %-13s New line", kb.DisplayActionKey("newline")),
		fmt.Sprintf("• %-13s Stop the reply", kb.DisplayActionKey("cancel")),
		fmt.Sprintf("• %-13s New conversation", kb.DisplayActionKey("reset")),
		fmt.Sprintf("• %-13s Open a thread", kb.DisplayActionKey("threads")),
	)

	transcript := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Transcript"),
		fmt.Sprintf("• %-13s Scroll up", kb.DisplayActionKey("scroll_up")),
		fmt.Sprintf("• %-13s Scroll down", kb.DisplayActionKey("scroll_down")),
		fmt.Sprintf("• %-13s Copy last reply", kb.DisplayActionKey("copy_reply")),
		fmt.Sprintf("• %-13s Export to JSON", kb.DisplayActionKey("export")),
		fmt.Sprintf("• %-13s Show/hide sources", kb.DisplayActionKey("toggle_sources")),
		fmt.Sprintf("• %-13s Quit", kb.DisplayActionKey("quit")),
	)

	connection := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Connection"),
		"• "+DimStyle.Render("API:    ")+a.apiURL,
		"• "+DimStyle.Render("Thread: ")+a.threadID,
	)

	columnStyle := lipgloss.NewStyle().Width(40).PaddingLeft(4)

	twoColumns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(conversation),
		"  ",
		columnStyle.Render(transcript),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("Press %s or Esc to close this help", kb.DisplayActionKey("help")))

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		twoColumns,
		"",
		connection,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(min(width-4, 92))

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
