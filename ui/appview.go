package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"wikichat/chat"
	"wikichat/config"
	"wikichat/model"
	"wikichat/storage"
)

// DraftStore persists unsent input per thread.
type DraftStore interface {
	storage.Saver
	Load(key string) (string, error)
}

// ThreadStore lists and forgets locally recorded threads.
type ThreadStore interface {
	List() ([]storage.Thread, error)
	Delete(threadID string) error
}

// Options wires the chat view to its collaborators. Controller is required.
type Options struct {
	Controller    *chat.Controller
	Threads       ThreadStore
	Drafts        DraftStore
	Keys          *config.KeyBindings
	APIURL        string
	AutosaveDelay time.Duration
	Logger        zerolog.Logger
}

type alertState struct {
	title     string
	message   string
	modalType ModalType
}

type AppView struct {
	ctrl    *chat.Controller
	threads ThreadStore
	drafts  DraftStore
	keys    *config.KeyBindings
	log     zerolog.Logger

	feed        *snapshotFeed
	unsubscribe func()

	// UI Components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	picker   threadPicker
	renderer *transcriptRenderer

	// Window state
	width  int
	height int
	ready  bool

	// Last snapshot seen
	messages []model.Message
	threadID string
	loading  bool

	draftKey      string
	autosaver     *storage.Autosaver
	autosaveDelay time.Duration

	apiURL   string
	showHelp bool
	status   string
	alert    *alertState
}

func NewAppView(opts Options) (AppView, error) {
	if opts.Controller == nil {
		return AppView{}, errors.New("chat controller is required")
	}

	ta := textarea.New()
	ta.Placeholder = "Ask the knowledge base..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Enter is handled by the view; the newline action inserts a line break
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys(opts.Keys.GetActionKey("newline")))

	// "> " for the first line, "| " for the rest
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	a := AppView{
		ctrl:          opts.Controller,
		threads:       opts.Threads,
		drafts:        opts.Drafts,
		keys:          opts.Keys,
		log:           opts.Logger.With().Str("component", "ui").Logger(),
		feed:          newSnapshotFeed(),
		viewport:      viewport.New(0, 0),
		textarea:      ta,
		spinner:       sp,
		picker:        newThreadPicker(),
		renderer:      newTranscriptRenderer(),
		autosaveDelay: opts.AutosaveDelay,
		apiURL:        opts.APIURL,
	}

	snap := a.ctrl.Snapshot()
	a.applySnapshot(snap)
	a.unsubscribe = a.ctrl.Subscribe(a.feed.push)
	return a, nil
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.spinner.Tick,
		waitForSnapshot(a.feed),
	)
}

// Close detaches the view from the controller and writes any pending draft.
// Call it after the program exits.
func (a AppView) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.autosaver != nil {
		if err := a.autosaver.Stop(); err != nil {
			a.log.Warn().Err(err).Msg("failed to save draft on exit")
		}
	}
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading wikichat..."
	}

	if a.alert != nil {
		return RenderAcknowledgeModal(a.alert.title, a.alert.message, a.alert.modalType, a.width, a.height)
	}
	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}
	if a.picker.active {
		return a.picker.view(a.threadID, a.width, a.height)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		a.viewport.View(),
		a.renderStatusLine(),
		a.textarea.View(),
	)
}

func (a AppView) renderStatusLine() string {
	left := TitleStyle.Render("wikichat") + DimStyle.Render(" · "+shortID(a.threadID))
	switch {
	case a.loading:
		left += " " + a.spinner.View() + DimStyle.Render(fmt.Sprintf(" answering, %s to stop", a.keys.DisplayActionKey("cancel")))
	case a.status != "":
		left += "  " + StatusStyle.Render(a.status)
	}

	right := DimStyle.Render(a.keys.DisplayActionKey("help") + " help")
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

// applySnapshot copies controller state into the view and moves the draft
// when the thread changed.
func (a *AppView) applySnapshot(s chat.Snapshot) {
	a.messages = s.Messages
	a.loading = s.Loading
	if s.ThreadID != a.threadID {
		a.threadID = s.ThreadID
		a.switchDraft(s.ThreadID)
	}
}

func (a *AppView) switchDraft(threadID string) {
	if a.drafts == nil {
		return
	}
	if a.autosaver != nil {
		if err := a.autosaver.Stop(); err != nil {
			a.log.Warn().Err(err).Str("key", a.draftKey).Msg("failed to save draft")
		}
	}

	a.draftKey = draftKey(threadID)
	saved, err := a.drafts.Load(a.draftKey)
	if err != nil {
		a.log.Warn().Err(err).Str("key", a.draftKey).Msg("failed to load draft")
		saved = ""
	}
	a.autosaver = storage.NewAutosaver(a.drafts, a.draftKey, saved, a.autosaveDelay, a.log)
	a.textarea.SetValue(saved)
}

func (a *AppView) updateViewportContent(gotoBottom bool) {
	a.renderer.width = a.width
	a.renderer.spinner = a.spinner.View()
	a.viewport.SetContent(a.renderer.render(a.messages))
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *AppView) resize(width, height int) {
	a.width = width
	a.height = height
	a.textarea.SetWidth(width)
	a.viewport.Width = width
	a.viewport.Height = max(height-a.textarea.Height()-1, 1)
	a.ready = true
	a.updateViewportContent(true)
}

func draftKey(threadID string) string {
	return "thread:" + threadID
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// lastReply returns the newest assistant content, if any.
func lastReply(msgs []model.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content, true
		}
	}
	return "", false
}
