package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"wikichat/chat"
	"wikichat/model"
	"wikichat/storage"
)

const loadTimeout = 30 * time.Second

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case snapshotMsg:
		follow := a.viewport.AtBottom() || a.viewport.TotalLineCount() == 0
		a.applySnapshot(chat.Snapshot(msg))
		if a.ready {
			a.updateViewportContent(follow)
		}
		return a, waitForSnapshot(a.feed)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.loading && a.ready {
			a.updateViewportContent(a.viewport.AtBottom())
		}
		return a, cmd

	case sendDoneMsg:
		if msg.err != nil {
			a.status = msg.err.Error()
		}
		return a, nil

	case threadsListedMsg:
		a.picker.setThreads(msg.threads, msg.err)
		return a, nil

	case threadLoadedMsg:
		if msg.err != nil {
			a.status = ""
			a.alert = &alertState{
				title:     "Could not open thread",
				message:   msg.err.Error(),
				modalType: ModalTypeError,
			}
			return a, nil
		}
		a.status = "Opened thread " + shortID(msg.threadID)
		return a, nil

	case threadDeletedMsg:
		if msg.err != nil {
			a.picker.err = msg.err
			return a, nil
		}
		a.picker.remove(msg.threadID)
		return a, nil

	case exportDoneMsg:
		if msg.err != nil {
			a.alert = &alertState{title: "Export failed", message: msg.err.Error(), modalType: ModalTypeError}
			return a, nil
		}
		a.status = "Exported to " + msg.path
		return a, nil

	case copyDoneMsg:
		if msg.err != nil {
			a.status = "Copy failed: " + msg.err.Error()
			return a, nil
		}
		a.status = "Copied last reply"
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()

	if a.keys.Is(k, "quit") {
		a.ctrl.Cancel()
		return a, tea.Quit
	}

	if a.alert != nil {
		if k == "enter" || k == "esc" {
			a.alert = nil
		}
		return a, nil
	}

	if a.showHelp {
		if k == "esc" || a.keys.Is(k, "help") {
			a.showHelp = false
		}
		return a, nil
	}

	if a.picker.active {
		return a.handlePickerKey(msg)
	}

	switch {
	case a.keys.Is(k, "help"):
		a.showHelp = true
		return a, nil

	case a.keys.Is(k, "send"):
		return a.submit()

	case a.keys.Is(k, "cancel"):
		if a.loading {
			a.ctrl.Cancel()
			a.status = "Stopped"
		}
		return a, nil

	case a.keys.Is(k, "reset"):
		a.ctrl.ResetMessages()
		a.status = "New conversation"
		return a, nil

	case a.keys.Is(k, "threads"):
		if a.threads == nil {
			a.status = "Thread history is unavailable"
			return a, nil
		}
		a.picker.open()
		return a, listThreads(a.threads)

	case a.keys.Is(k, "copy_reply"):
		reply, ok := lastReply(a.messages)
		if !ok {
			a.status = "Nothing to copy yet"
			return a, nil
		}
		return a, copyToClipboard(reply)

	case a.keys.Is(k, "export"):
		return a, exportTranscript(a.threadID, a.messages)

	case a.keys.Is(k, "toggle_sources"):
		a.renderer.showSources = !a.renderer.showSources
		a.updateViewportContent(false)
		return a, nil

	case a.keys.Is(k, "scroll_up"):
		a.viewport.HalfPageUp()
		return a, nil

	case a.keys.Is(k, "scroll_down"):
		a.viewport.HalfPageDown()
		return a, nil
	}

	var cmd tea.Cmd
	before := a.textarea.Value()
	a.textarea, cmd = a.textarea.Update(msg)
	if v := a.textarea.Value(); v != before && a.autosaver != nil {
		a.autosaver.Touch(v)
	}
	return a, cmd
}

func (a AppView) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.textarea.Value())
	if text == "" {
		return a, nil
	}
	if a.loading {
		a.status = fmt.Sprintf("Still answering, press %s to stop", a.keys.DisplayActionKey("cancel"))
		return a, nil
	}

	a.textarea.Reset()
	a.status = ""
	if a.autosaver != nil {
		a.autosaver.Touch("")
		if err := a.autosaver.Flush(); err != nil {
			a.log.Warn().Err(err).Msg("failed to clear draft")
		}
	}
	a.viewport.GotoBottom()
	return a, sendMessage(a.ctrl, text)
}

func (a AppView) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	p := &a.picker

	if p.confirmDelete != nil {
		switch k {
		case "y":
			id := p.confirmDelete.ThreadID
			p.confirmDelete = nil
			return a, forgetThread(a.threads, id)
		case "n", "esc":
			p.confirmDelete = nil
		}
		return a, nil
	}

	if p.filtering {
		switch k {
		case "esc":
			p.filtering = false
			p.filter.Blur()
			p.filter.SetValue("")
			p.applyFilter()
			return a, nil
		case "enter":
			p.filtering = false
			p.filter.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		p.filter, cmd = p.filter.Update(msg)
		p.applyFilter()
		return a, cmd
	}

	switch k {
	case "esc", "q":
		p.close()
	case "/":
		p.filtering = true
		p.filter.Focus()
		return a, textinput.Blink
	case "j", "down":
		p.move(1)
	case "k", "up":
		p.move(-1)
	case "d":
		if t, ok := p.current(); ok {
			p.confirmDelete = &t
		}
	case "enter":
		t, ok := p.current()
		if !ok {
			return a, nil
		}
		p.close()
		a.status = "Opening " + shortID(t.ThreadID) + "..."
		return a, loadThread(a.ctrl, t.ThreadID)
	}
	return a, nil
}

func waitForSnapshot(feed *snapshotFeed) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(feed.next())
	}
}

// sendMessage blocks in its own goroutine; progress arrives as snapshots.
func sendMessage(ctrl *chat.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.SendMessage(context.Background(), text)
		if errors.Is(err, chat.ErrEmptyMessage) {
			err = nil
		}
		return sendDoneMsg{err: err}
	}
}

func loadThread(ctrl *chat.Controller, threadID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		return threadLoadedMsg{threadID: threadID, err: ctrl.LoadSessionMessages(ctx, threadID)}
	}
}

func listThreads(store ThreadStore) tea.Cmd {
	return func() tea.Msg {
		threads, err := store.List()
		return threadsListedMsg{threads: threads, err: err}
	}
}

func forgetThread(store ThreadStore, threadID string) tea.Cmd {
	return func() tea.Msg {
		return threadDeletedMsg{threadID: threadID, err: store.Delete(threadID)}
	}
}

func exportTranscript(threadID string, msgs []model.Message) tea.Cmd {
	return func() tea.Msg {
		path := storage.DefaultExportPath(threadID)
		return exportDoneMsg{path: path, err: storage.ExportTranscript(path, threadID, msgs)}
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copyDoneMsg{err: clipboard.WriteAll(text)}
	}
}
