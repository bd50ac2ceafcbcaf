package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ModalType determines the color and styling of a modal
type ModalType int

const (
	ModalTypeInfo ModalType = iota
	ModalTypeWarning
	ModalTypeError
)

func (t ModalType) color() lipgloss.Color {
	switch t {
	case ModalTypeWarning:
		return warningColor
	case ModalTypeError:
		return dangerColor
	default:
		return accentColor
	}
}

// RenderAcknowledgeModal renders a modal that requires only acknowledgement (Enter to dismiss)
func RenderAcknowledgeModal(title, message string, modalType ModalType, width, height int) string {
	return renderThreeSectionModal(title, message, "Press Enter to acknowledge", modalType, width, height)
}

// renderThreeSectionModal is the borderless title / message / footer layout
// shared by every modal.
func renderThreeSectionModal(title, message, footer string, modalType ModalType, width, height int) string {
	modalWidth := 60
	if width < modalWidth+10 {
		modalWidth = max(width-10, 10)
	}

	// Centred by hand so wide glyphs in the title line up
	titleWidth := runewidth.StringWidth(title)
	leftPad := max((modalWidth-titleWidth)/2, 0)
	rightPad := max(modalWidth-titleWidth-leftPad, 0)
	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(modalType.color()).
		Render(strings.Repeat(" ", leftPad) + title + strings.Repeat(" ", rightPad))

	messageStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	messageLines := []string{strings.Repeat(" ", modalWidth)}
	for _, line := range strings.Split(message, "\n") {
		messageLines = append(messageLines, messageStyle.Render(line))
	}
	messageLines = append(messageLines, strings.Repeat(" ", modalWidth))

	messageSection := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Width(modalWidth).
		Render(strings.Join(messageLines, "\n"))

	footerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footer)

	content := strings.Join([]string{titleSection, messageSection, footerSection}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
