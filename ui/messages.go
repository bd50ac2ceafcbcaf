package ui

import (
	"sync"

	"wikichat/chat"
	"wikichat/storage"
)

// snapshotMsg carries controller state into the bubbletea loop.
type snapshotMsg chat.Snapshot

// sendDoneMsg is returned once SendMessage stops blocking.
type sendDoneMsg struct {
	err error
}

type threadsListedMsg struct {
	threads []storage.Thread
	err     error
}

type threadLoadedMsg struct {
	threadID string
	err      error
}

type threadDeletedMsg struct {
	threadID string
	err      error
}

type exportDoneMsg struct {
	path string
	err  error
}

type copyDoneMsg struct {
	err error
}

// snapshotFeed coalesces controller snapshots so a slow render loop only
// ever sees the newest one. push never blocks.
type snapshotFeed struct {
	mu     sync.Mutex
	latest chat.Snapshot
	has    bool
	ready  chan struct{}
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ready: make(chan struct{}, 1)}
}

func (f *snapshotFeed) push(s chat.Snapshot) {
	f.mu.Lock()
	if s.Version >= f.latest.Version {
		f.latest = s
		f.has = true
	}
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// next blocks until a snapshot newer than the last one taken is available.
func (f *snapshotFeed) next() chat.Snapshot {
	for {
		<-f.ready
		f.mu.Lock()
		if f.has {
			s := f.latest
			f.has = false
			f.mu.Unlock()
			return s
		}
		f.mu.Unlock()
	}
}
