// Package chat binds the event stream pipeline to one conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wikichat/api"
	"wikichat/model"
)

var (
	// ErrEmptyMessage is returned by SendMessage for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned by SendMessage while another send is in flight.
	ErrBusy = errors.New("a message is already being sent")
)

// Backend is the subset of api.Client the controller needs.
type Backend interface {
	StreamChat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
	GetMessages(ctx context.Context, threadID string) (*api.History, error)
}

// ThreadRecorder is told about the first message of every thread sent from
// this controller.
type ThreadRecorder interface {
	Record(threadID, title string) error
}

// Options configures a Controller. Backend and VisitorID are required.
type Options struct {
	Backend   Backend
	VisitorID string
	// SiteID restricts retrieval to one site when non-zero.
	SiteID int64
	// ThreadID resumes an existing thread; a new one is minted when empty.
	ThreadID string
	// Seed is the transcript a fresh conversation starts with, typically a
	// welcome message.
	Seed     []model.Message
	Recorder ThreadRecorder
	Logger   zerolog.Logger

	NewMessageID func() string
	NewThreadID  func() string
	Now          func() time.Time
}

// Snapshot is the observable state after a change. Messages is owned by the
// receiver.
type Snapshot struct {
	Version  uint64
	ThreadID string
	Messages []model.Message
	Loading  bool
}

// Controller owns one conversation transcript. All methods are safe for
// concurrent use; every change replaces the transcript slice and is
// published to subscribers.
type Controller struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	threadID string
	messages []model.Message
	loading  bool
	version  uint64
	// gen changes whenever the transcript is replaced or a send is
	// cancelled; a send only writes while gen matches its own.
	gen      uint64
	cancel   context.CancelFunc
	inflight *model.Turn
	recorded map[string]bool

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, errors.New("chat backend is required")
	}
	if opts.VisitorID == "" {
		return nil, errors.New("visitor id is required")
	}
	if opts.NewMessageID == nil {
		opts.NewMessageID = model.NewMessageID
	}
	if opts.NewThreadID == nil {
		opts.NewThreadID = model.NewThreadID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "chat").Logger(),
		threadID: opts.ThreadID,
		messages: model.CloneMessages(opts.Seed),
		recorded: make(map[string]bool),
		subs:     make(map[int]func(Snapshot)),
	}
	if c.threadID == "" {
		c.threadID = opts.NewThreadID()
	}
	return c, nil
}

// Messages returns a copy of the current transcript.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneMessages(c.messages)
}

func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// Snapshot returns the current state without waiting for a change.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to be called after every change. fn runs on the
// goroutine that made the change and must not block. The returned func
// removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// SendMessage appends a user message and an assistant placeholder, then
// streams the reply into the placeholder until the stream ends. It blocks
// for the duration of the stream. Transport failures are reported in the
// transcript, not returned; only ErrEmptyMessage and ErrBusy are.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}

	now := c.opts.Now()
	user := model.Message{ID: c.opts.NewMessageID(), Role: model.RoleUser, Content: text, CreatedAt: now}
	placeholder := model.Message{ID: c.opts.NewMessageID(), Role: model.RoleAssistant, CreatedAt: now}
	turn := model.NewTurn(placeholder)

	ctx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.inflight = &turn
	c.loading = true
	threadID := c.threadID
	firstInThread := !c.recorded[threadID] && !hasUserMessage(c.messages)
	c.recorded[threadID] = true

	n := len(c.messages)
	c.messages = append(c.messages[:n:n], user, placeholder)
	snap := c.changedLocked()
	c.mu.Unlock()
	c.publish(snap)
	defer cancel()

	if firstInThread && c.opts.Recorder != nil {
		if err := c.opts.Recorder.Record(threadID, text); err != nil {
			c.log.Warn().Err(err).Str("thread_id", threadID).Msg("failed to record thread")
		}
	}

	log := c.log.With().Str("thread_id", threadID).Str("message_id", placeholder.ID).Logger()
	err := c.stream(ctx, threadID, text, func(f model.Frame) bool {
		return c.apply(gen, func(t model.Turn) model.Turn { return model.ApplyFrame(t, f) })
	})

	switch {
	case err == nil:
		c.settle(gen, model.Finish)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		log.Debug().Msg("send cancelled")
		c.settle(gen, model.Finish)
	default:
		log.Error().Err(err).Msg("chat stream failed")
		c.settle(gen, model.Fail)
	}
	return nil
}

// stream runs one chat request and hands every recognised frame to apply,
// in order. It stops early when apply returns false.
func (c *Controller) stream(ctx context.Context, threadID, text string, apply func(model.Frame) bool) error {
	req := api.ChatRequest{
		ThreadID: threadID,
		Message:  text,
		User:     c.opts.VisitorID,
	}
	if c.opts.SiteID != 0 {
		req.Filter = &api.ChatFilter{SiteID: c.opts.SiteID}
	}

	body, err := c.opts.Backend.StreamChat(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to start chat stream: %w", err)
	}
	defer body.Close()

	errStale := errors.New("stale send")
	err = api.ReadEvents(ctx, body, func(payload []byte) error {
		f, err := model.ParseFrame(payload)
		if err != nil {
			c.log.Warn().Err(err).Bytes("payload", truncate(payload, 200)).Msg("skipping malformed frame")
			return nil
		}
		if f.Kind == model.FrameIgnored {
			return nil
		}
		if !apply(f) {
			return errStale
		}
		return nil
	})
	if errors.Is(err, errStale) {
		return context.Canceled
	}
	return err
}

// apply runs fn against the in-flight turn if gen is still current.
func (c *Controller) apply(gen uint64, fn func(model.Turn) model.Turn) bool {
	c.mu.Lock()
	if gen != c.gen || c.inflight == nil {
		c.mu.Unlock()
		return false
	}
	turn := fn(*c.inflight)
	c.inflight = &turn
	c.messages = model.ReplaceMessage(c.messages, turn.Message)
	snap := c.changedLocked()
	c.mu.Unlock()
	c.publish(snap)
	return true
}

// settle applies the terminal transition and clears the loading flag. It is
// a no-op when the send was superseded.
func (c *Controller) settle(gen uint64, fn func(model.Turn) model.Turn) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.inflight != nil {
		turn := fn(*c.inflight)
		c.messages = model.ReplaceMessage(c.messages, turn.Message)
	}
	c.inflight = nil
	c.cancel = nil
	c.loading = false
	snap := c.changedLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// Cancel aborts the in-flight send, if any. What already streamed stays in
// the transcript.
func (c *Controller) Cancel() {
	c.mu.Lock()
	changed := c.cancelLocked()
	var snap Snapshot
	if changed {
		snap = c.changedLocked()
	}
	c.mu.Unlock()
	if changed {
		c.publish(snap)
	}
}

// cancelLocked aborts the in-flight send and settles its message in place.
// It reports whether anything changed.
func (c *Controller) cancelLocked() bool {
	if !c.loading {
		return false
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	if c.inflight != nil {
		turn := model.Finish(*c.inflight)
		c.messages = model.ReplaceMessage(c.messages, turn.Message)
	}
	c.inflight = nil
	c.cancel = nil
	c.loading = false
	return true
}

// ResetMessages cancels any in-flight send, restores the seed transcript and
// starts a new thread. The abandoned thread is left on the server.
func (c *Controller) ResetMessages() {
	c.mu.Lock()
	c.cancelLocked()
	c.gen++
	c.messages = model.CloneMessages(c.opts.Seed)
	c.threadID = c.opts.NewThreadID()
	snap := c.changedLocked()
	c.mu.Unlock()

	c.log.Debug().Str("thread_id", snap.ThreadID).Msg("conversation reset")
	c.publish(snap)
}

// LoadSessionMessages cancels any in-flight send and replaces the transcript
// with the stored history of threadID. On failure the error is logged and
// returned, and the transcript and thread are left unchanged.
func (c *Controller) LoadSessionMessages(ctx context.Context, threadID string) error {
	if threadID == "" {
		return errors.New("thread id is required")
	}

	c.mu.Lock()
	cancelled := c.cancelLocked()
	gen := c.gen
	var snap Snapshot
	if cancelled {
		snap = c.changedLocked()
	}
	c.mu.Unlock()
	if cancelled {
		c.publish(snap)
	}

	log := c.log.With().Str("thread_id", threadID).Logger()
	history, err := c.opts.Backend.GetMessages(ctx, threadID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load session messages")
		return fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	msgs := model.BuildTranscript(history.Messages, history.Citations, c.opts.NewMessageID)

	c.mu.Lock()
	if gen != c.gen || c.loading {
		c.mu.Unlock()
		log.Debug().Msg("discarding history superseded by a newer change")
		return nil
	}
	c.gen++
	c.messages = msgs
	c.threadID = threadID
	c.recorded[threadID] = true
	snap = c.changedLocked()
	c.mu.Unlock()

	log.Debug().Int("messages", len(msgs)).Msg("session loaded")
	c.publish(snap)
	return nil
}

// Close cancels any in-flight send and drops all subscribers.
func (c *Controller) Close() {
	c.Cancel()
	c.subMu.Lock()
	c.subs = make(map[int]func(Snapshot))
	c.subMu.Unlock()
}

func (c *Controller) changedLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Version:  c.version,
		ThreadID: c.threadID,
		Messages: model.CloneMessages(c.messages),
		Loading:  c.loading,
	}
}

func (c *Controller) publish(snap Snapshot) {
	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func hasUserMessage(msgs []model.Message) bool {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			return true
		}
	}
	return false
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
