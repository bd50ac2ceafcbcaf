package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wikichat/chat"
)

func TestSnapshotFeedKeepsNewest(t *testing.T) {
	f := newSnapshotFeed()
	f.push(chat.Snapshot{Version: 1})
	f.push(chat.Snapshot{Version: 3})
	f.push(chat.Snapshot{Version: 2})

	assert.Equal(t, uint64(3), f.next().Version)
}

func TestSnapshotFeedBlocksUntilPush(t *testing.T) {
	f := newSnapshotFeed()
	got := make(chan chat.Snapshot, 1)
	go func() { got <- f.next() }()

	select {
	case <-got:
		t.Fatal("next returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	f.push(chat.Snapshot{Version: 5})
	select {
	case s := <-got:
		assert.Equal(t, uint64(5), s.Version)
	case <-time.After(time.Second):
		t.Fatal("next did not return after push")
	}
}
