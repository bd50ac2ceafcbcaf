package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAutosaveDelay is the quiet period after the last edit before a
// draft is written.
const DefaultAutosaveDelay = 2 * time.Second

// Saver persists a draft.
type Saver interface {
	Save(key, text string) error
}

// Autosaver debounces draft writes: every Touch restarts the quiet period,
// and content equal to the last saved text is never written again.
type Autosaver struct {
	store Saver
	key   string
	delay time.Duration
	log   zerolog.Logger

	mu         sync.Mutex
	timer      *time.Timer
	seq        uint64
	pending    string
	hasPending bool
	last       string
	stopped    bool
}

// NewAutosaver starts a debouncer for key. saved is the text already in the
// store, so reopening a draft does not rewrite it.
func NewAutosaver(store Saver, key, saved string, delay time.Duration, logger zerolog.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{
		store: store,
		key:   key,
		delay: delay,
		log:   logger.With().Str("component", "autosave").Str("key", key).Logger(),
		last:  saved,
	}
}

// Touch records an edit and restarts the timer.
func (a *Autosaver) Touch(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	a.pending = text
	a.hasPending = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.seq++
	seq := a.seq
	a.timer = time.AfterFunc(a.delay, func() { a.fire(seq) })
}

func (a *Autosaver) fire(seq uint64) {
	a.mu.Lock()
	current := seq == a.seq
	a.mu.Unlock()
	if !current {
		return
	}
	if err := a.Flush(); err != nil {
		a.log.Warn().Err(err).Msg("autosave failed")
	}
}

// Flush writes the pending edit now, if any.
func (a *Autosaver) Flush() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.seq++
	if !a.hasPending || a.pending == a.last {
		a.hasPending = false
		a.mu.Unlock()
		return nil
	}
	text := a.pending
	a.hasPending = false
	a.mu.Unlock()

	if err := a.store.Save(a.key, text); err != nil {
		return err
	}

	a.mu.Lock()
	a.last = text
	a.mu.Unlock()
	a.log.Debug().Int("bytes", len(text)).Msg("draft saved")
	return nil
}

// Stop flushes any pending edit and ignores later ones.
func (a *Autosaver) Stop() error {
	err := a.Flush()
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	return err
}
