package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"wikichat/storage"
)

// threadPicker lists locally recorded threads and filters them by title.
type threadPicker struct {
	active    bool
	loading   bool
	threads   []storage.Thread
	filtered  []storage.Thread
	selected  int
	filtering bool
	filter    textinput.Model
	// confirmDelete is set while a delete waits for y/n
	confirmDelete *storage.Thread
	err           error
}

func newThreadPicker() threadPicker {
	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64
	return threadPicker{filter: filter}
}

func (p *threadPicker) open() {
	p.active = true
	p.loading = true
	p.threads = nil
	p.filtered = nil
	p.selected = 0
	p.filtering = false
	p.filter.SetValue("")
	p.filter.Blur()
	p.confirmDelete = nil
	p.err = nil
}

func (p *threadPicker) close() {
	p.active = false
	p.filtering = false
	p.confirmDelete = nil
	p.filter.Blur()
}

func (p *threadPicker) setThreads(threads []storage.Thread, err error) {
	p.loading = false
	p.err = err
	p.threads = threads
	p.applyFilter()
}

// applyFilter narrows the list to fuzzy title matches, best match first.
func (p *threadPicker) applyFilter() {
	query := p.filter.Value()
	if query == "" {
		p.filtered = p.threads
	} else {
		targets := make([]string, len(p.threads))
		for i, t := range p.threads {
			targets[i] = t.Title
		}
		matches := fuzzy.Find(query, targets)
		p.filtered = make([]storage.Thread, len(matches))
		for i, match := range matches {
			p.filtered[i] = p.threads[match.Index]
		}
	}

	if p.selected >= len(p.filtered) {
		p.selected = max(len(p.filtered)-1, 0)
	}
}

func (p *threadPicker) move(delta int) {
	if len(p.filtered) == 0 {
		return
	}
	p.selected = min(max(p.selected+delta, 0), len(p.filtered)-1)
}

func (p *threadPicker) current() (storage.Thread, bool) {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return storage.Thread{}, false
	}
	return p.filtered[p.selected], true
}

func (p *threadPicker) remove(threadID string) {
	keep := p.threads[:0:0]
	for _, t := range p.threads {
		if t.ThreadID != threadID {
			keep = append(keep, t)
		}
	}
	p.threads = keep
	p.applyFilter()
}

func (p threadPicker) view(currentThreadID string, width, height int) string {
	if p.confirmDelete != nil {
		warningText := ErrorStyle.Render("The thread stays on the server.")
		return RenderConfirmationModal(ConfirmationState{
			Active:  true,
			Title:   "⚠ Forget Thread",
			Message: fmt.Sprintf("Remove from this list:\n\n\"%s\"\n\n%s", p.confirmDelete.Title, warningText),
		}, width, height)
	}

	modalWidth := min(width-10, 90)
	modalHeight := height - 6

	titleSection := TitleStyle.
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Threads")

	var header string
	switch {
	case p.filtering:
		header = p.filter.View()
	case len(p.filtered) == len(p.threads):
		header = fmt.Sprintf("%d threads", len(p.threads))
	default:
		header = fmt.Sprintf("%d of %d threads", len(p.filtered), len(p.threads))
	}
	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	var lines []string
	emptyStyle := lipgloss.NewStyle().
		Foreground(dimColor).
		Italic(true).
		Align(lipgloss.Center).
		Width(modalWidth)
	switch {
	case p.loading:
		lines = append(lines, emptyStyle.Render("Loading..."))
	case p.err != nil:
		lines = append(lines, ErrorStyle.Width(modalWidth).Align(lipgloss.Center).Render(p.err.Error()))
	case len(p.filtered) == 0 && p.filter.Value() != "":
		lines = append(lines, emptyStyle.Render("No matches found"))
	case len(p.filtered) == 0:
		lines = append(lines, emptyStyle.Render("No threads yet. Start chatting to create one!"))
	default:
		start, end := visibleRange(len(p.filtered), p.selected, modalHeight-8)
		for i := start; i < end; i++ {
			lines = append(lines, renderThreadLine(p.filtered[i], i == p.selected, p.filtered[i].ThreadID == currentThreadID, modalWidth))
		}
	}

	footer := FormatFooter("j/k", "Navigate", "Enter", "Open", "/", "Filter", "d", "Forget", "Esc", "Close")
	if p.filtering {
		footer = FormatFooter("Enter", "Apply", "Esc", "Clear")
	}
	footerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footer)

	content := strings.Join([]string{titleSection, headerSection, strings.Join(lines, "\n"), footerSection}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func renderThreadLine(t storage.Thread, selected, current bool, width int) string {
	marker := "  "
	if current {
		marker = "● "
	}
	age := formatTimeAgo(t.UpdatedAt)
	titleWidth := max(width-runewidth.StringWidth(marker)-len(age)-4, 8)

	title := t.Title
	if runewidth.StringWidth(title) > titleWidth {
		title = runewidth.Truncate(title, titleWidth, "...")
	}
	title = runewidth.FillRight(title, titleWidth)

	line := marker + title + "  " + DimStyle.Render(age)
	if selected {
		return SelectedStyle.Render("▸ ") + SelectedStyle.Render(marker+title) + "  " + DimStyle.Render(age)
	}
	return "  " + line
}

// visibleRange keeps the selection roughly centred in a window of size rows.
func visibleRange(n, selected, size int) (int, int) {
	if size <= 0 || n <= size {
		return 0, n
	}
	switch {
	case selected < size/2:
		return 0, size
	case selected >= n-size/2:
		return n - size, n
	default:
		start := selected - size/2
		return start, start + size
	}
}

func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	case duration < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	case duration < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(duration.Hours()/24/7))
	default:
		return fmt.Sprintf("%dmo ago", int(duration.Hours()/24/30))
	}
}
