package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikichat/api"
	"wikichat/chat"
	"wikichat/config"
	"wikichat/model"
	"wikichat/storage"
)

type scriptedBackend struct {
	stream  string
	history *api.History
}

func (b *scriptedBackend) StreamChat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(b.stream)), nil
}

func (b *scriptedBackend) GetMessages(ctx context.Context, threadID string) (*api.History, error) {
	if b.history == nil {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	return b.history, nil
}

type memoryDrafts struct {
	mu    sync.Mutex
	data  map[string]string
	loads []string
}

func (d *memoryDrafts) Save(key, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == "" {
		delete(d.data, key)
		return nil
	}
	d.data[key] = text
	return nil
}

func (d *memoryDrafts) Load(key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads = append(d.loads, key)
	return d.data[key], nil
}

type memoryThreads struct {
	threads []storage.Thread
}

func (m *memoryThreads) List() ([]storage.Thread, error) { return m.threads, nil }

func (m *memoryThreads) Delete(threadID string) error { return nil }

func newTestView(t *testing.T, backend chat.Backend, drafts *memoryDrafts) AppView {
	t.Helper()
	n := 0
	ctrl, err := chat.New(chat.Options{
		Backend:   backend,
		VisitorID: "visitor-1",
		Seed:      []model.Message{{ID: "welcome", Role: model.RoleAssistant, Content: "Hi!"}},
		Logger:    zerolog.Nop(),
		NewThreadID: func() string {
			n++
			return fmt.Sprintf("thread-%d", n)
		},
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	opts := Options{
		Controller:    ctrl,
		Threads:       &memoryThreads{threads: []storage.Thread{{ThreadID: "old", Title: "Earlier chat", UpdatedAt: time.Now()}}},
		Keys:          config.NewKeyBindings(nil),
		APIURL:        "http://localhost:3000",
		AutosaveDelay: time.Hour,
		Logger:        zerolog.Nop(),
	}
	if drafts != nil {
		opts.Drafts = drafts
	}
	v, err := NewAppView(opts)
	require.NoError(t, err)
	t.Cleanup(v.Close)

	m, _ := v.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m.(AppView)
}

func press(t *testing.T, v AppView, msg tea.KeyMsg) (AppView, tea.Cmd) {
	t.Helper()
	m, cmd := v.Update(msg)
	return m.(AppView), cmd
}

func typeText(t *testing.T, v AppView, s string) AppView {
	t.Helper()
	v, _ = press(t, v, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return v
}

func TestNewAppViewRequiresController(t *testing.T) {
	_, err := NewAppView(Options{})
	assert.Error(t, err)
}

func TestSendFromTextarea(t *testing.T) {
	backend := &scriptedBackend{stream: `data: {"choices":[{"delta":{"content":"Use the installer."}}]}` + "\n" + "data: [DONE]\n"}
	v := newTestView(t, backend, nil)

	v = typeText(t, v, "how do I install?")
	assert.Equal(t, "how do I install?", v.textarea.Value())

	v, cmd := press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, v.textarea.Value())

	done, ok := cmd().(sendDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)

	msgs := v.ctrl.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "how do I install?", msgs[1].Content)
	assert.Equal(t, "Use the installer.", msgs[2].Content)

	m, _ := v.Update(snapshotMsg(v.ctrl.Snapshot()))
	v = m.(AppView)
	assert.Contains(t, v.viewport.View(), "installer")
}

func TestBlankEnterDoesNothing(t *testing.T) {
	v := newTestView(t, &scriptedBackend{}, nil)
	v = typeText(t, v, "   ")

	_, cmd := press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestDraftLoadedPerThread(t *testing.T) {
	drafts := &memoryDrafts{data: map[string]string{"thread:thread-1": "half written"}}
	v := newTestView(t, &scriptedBackend{}, drafts)

	assert.Equal(t, "half written", v.textarea.Value())
	assert.Equal(t, []string{"thread:thread-1"}, drafts.loads)

	v.ctrl.ResetMessages()
	m, _ := v.Update(snapshotMsg(v.ctrl.Snapshot()))
	v = m.(AppView)

	assert.Equal(t, "thread-2", v.threadID)
	assert.Empty(t, v.textarea.Value())
	assert.Equal(t, []string{"thread:thread-1", "thread:thread-2"}, drafts.loads)
	assert.Equal(t, "half written", drafts.data["thread:thread-1"], "switching threads keeps the old draft")
}

func TestHelpToggle(t *testing.T) {
	v := newTestView(t, &scriptedBackend{}, nil)

	v, _ = press(t, v, tea.KeyMsg{Type: tea.KeyF1})
	require.True(t, v.showHelp)
	assert.Contains(t, v.View(), "Keyboard Shortcuts")

	v, _ = press(t, v, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, v.showHelp)
}

func TestToggleSources(t *testing.T) {
	v := newTestView(t, &scriptedBackend{}, nil)
	require.True(t, v.renderer.showSources)

	v, _ = press(t, v, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.False(t, v.renderer.showSources)
}

func TestThreadPickerOpensAndLoads(t *testing.T) {
	backend := &scriptedBackend{history: &api.History{Messages: []model.RawMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}}}
	v := newTestView(t, backend, nil)

	v, cmd := press(t, v, tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, v.picker.active)
	require.NotNil(t, cmd)

	m, _ := v.Update(cmd())
	v = m.(AppView)
	require.Len(t, v.picker.filtered, 1)

	v, cmd = press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, v.picker.active)
	require.NotNil(t, cmd)

	loaded, ok := cmd().(threadLoadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.err)
	assert.Equal(t, "old", v.ctrl.ThreadID())
	assert.Len(t, v.ctrl.Messages(), 2)
}

func TestFailedLoadShowsAlert(t *testing.T) {
	v := newTestView(t, &scriptedBackend{}, nil)

	m, _ := v.Update(threadLoadedMsg{threadID: "gone", err: fmt.Errorf("not found")})
	v = m.(AppView)
	require.NotNil(t, v.alert)
	assert.Contains(t, v.View(), "not found")

	v, _ = press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, v.alert)
}

func TestQuitKey(t *testing.T) {
	v := newTestView(t, &scriptedBackend{}, nil)

	_, cmd := press(t, v, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
