package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"wikichat/model"
)

// Pre-compiled regex patterns for better performance
var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

const (
	codeBar     = "┃"
	cursorGlyph = "▋"
)

type markdownEntry struct {
	content  string
	width    int
	rendered string
}

// transcriptRenderer turns transcript messages into viewport text. Finished
// assistant messages are rendered as markdown once per content and width.
type transcriptRenderer struct {
	width       int
	showSources bool
	spinner     string
	cache       map[string]markdownEntry
}

func newTranscriptRenderer() *transcriptRenderer {
	return &transcriptRenderer{showSources: true, cache: make(map[string]markdownEntry)}
}

func (r *transcriptRenderer) render(msgs []model.Message) string {
	if len(msgs) == 0 {
		return "No messages yet. Ask something!"
	}

	var content strings.Builder
	seen := make(map[string]bool, len(msgs))
	for _, msg := range msgs {
		seen[msg.ID] = true
		content.WriteString(r.renderMessage(msg))
	}

	// Entries for messages no longer in the transcript are dropped
	for id := range r.cache {
		if !seen[id] {
			delete(r.cache, id)
		}
	}
	return content.String()
}

func (r *transcriptRenderer) renderMessage(msg model.Message) string {
	timestamp := ""
	if !msg.CreatedAt.IsZero() {
		timestamp = DimStyle.Render(msg.CreatedAt.Local().Format("[15:04]")) + " "
	}

	if msg.Role == model.RoleUser {
		return formatUserMessage(timestamp, UserStyle.Render("You"), msg.Content)
	}

	var body strings.Builder
	for _, tc := range msg.ToolCalls {
		body.WriteString(renderToolCall(tc))
		body.WriteString("\n")
	}
	body.WriteString(r.renderAssistantBody(msg))
	if r.showSources && len(msg.Sources) > 0 {
		body.WriteString("\n")
		body.WriteString(renderSources(msg.Sources))
	}

	return fmt.Sprintf("%s%s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), strings.TrimRight(body.String(), "\n"))
}

func (r *transcriptRenderer) renderAssistantBody(msg model.Message) string {
	switch {
	case msg.Status == model.StatusToolCalling:
		name := msg.ActiveToolName
		if name == "" {
			name = "tool"
		}
		return fmt.Sprintf("%s Calling %s...", r.spinner, ToolStyle.Render(name))
	case msg.Status == model.StatusStreaming && msg.Content == "":
		return r.spinner
	case msg.IsStreaming():
		return msg.Content + cursorGlyph
	case msg.Content == "":
		return ""
	}

	if e, ok := r.cache[msg.ID]; ok && e.content == msg.Content && e.width == r.width {
		return e.rendered
	}
	rendered := renderMarkdown(msg.Content, r.width)
	r.cache[msg.ID] = markdownEntry{content: msg.Content, width: r.width, rendered: rendered}
	return rendered
}

// renderToolCall draws one tool call as a small card.
func renderToolCall(tc model.ToolCall) string {
	mark := DimStyle.Render("…")
	if tc.Status == model.ToolCallCompleted {
		mark = UserStyle.Render("✓")
	}
	name := tc.Function.Name
	if name == "" {
		name = "tool"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s %s\n", DimStyle.Render("╭"), ToolStyle.Render(name), mark))
	if args := formatToolArguments(tc.Function.Arguments); args != "" {
		for _, line := range strings.Split(args, "\n") {
			b.WriteString(fmt.Sprintf("%s %s\n", DimStyle.Render("│"), line))
		}
	}
	b.WriteString(DimStyle.Render("╰─"))
	return b.String()
}

// formatToolArguments indents arguments that parse as JSON and returns
// anything else unchanged.
func formatToolArguments(args string) string {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" || trimmed == "{}" {
		return ""
	}
	if !json.Valid([]byte(trimmed)) {
		return args
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(trimmed), "", "  "); err != nil {
		return args
	}
	return out.String()
}

func renderSources(sources []model.Source) string {
	var b strings.Builder
	b.WriteString(DimStyle.Render("Sources:"))
	for i, s := range sources {
		n := i + 1
		if s.SourceIndex != nil {
			n = *s.SourceIndex
		}
		line := fmt.Sprintf("\n  [%d] %s", n, s.Title)
		if s.SiteName != "" {
			line += DimStyle.Render(" - " + s.SiteName)
		}
		b.WriteString(line)
	}
	return b.String()
}

func formatUserMessage(timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + codeBar + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s%s\n", bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")
	return result.String()
}

func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 80
	}

	// [text](url) becomes url so every link is shown as a plain red URL
	content = preprocessLinks(content)

	// Autolink stays off so terminals handle URL detection themselves
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return strings.TrimRight(postProcessMarkdown(string(rendered), width), "\n")
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = fixInlineCode(rendered)
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// fixInlineCode swaps the renderer's blue background for red text.
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func colorURLs(s string) string {
	redColor := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// Code block lines carry the bar prefix
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, redColor+"$1"+reset)
		}
	}
	return strings.Join(lines, "\n")
}

func frameCodeBlocks(s string, width int) string {
	darkGray := "\x1b[90m"
	reset := "\x1b[0m"

	lineLen := width - 4
	label := "[code]"
	leftLen := (lineLen - len(label)) / 2
	rightLen := lineLen - len(label) - leftLen
	top := darkGray + strings.Repeat("━", leftLen) + reset + label + darkGray + strings.Repeat("━", rightLen) + reset
	bottom := darkGray + strings.Repeat("━", lineLen) + reset

	var result []string
	inCodeBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inCodeBlock {
				inCodeBlock = true
				result = append(result, "", top, "")
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}
		if inCodeBlock {
			result = append(result, "", bottom, "")
			inCodeBlock = false
		}
		result = append(result, line)
	}
	if inCodeBlock {
		result = append(result, "", bottom, "")
	}
	return strings.Join(result, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	after := idx + len(codeBar)
	if after < len(line) && line[after] == ' ' {
		after++
	}
	return line[after:]
}
