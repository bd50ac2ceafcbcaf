package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"wikichat/model"
)

const titleWidth = 40

// Thread is a conversation started from this machine.
type Thread struct {
	ThreadID  string    `json:"thread_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadIndex remembers locally started threads so they can be reopened.
// The backend keeps the messages; only metadata lives here.
type ThreadIndex struct {
	dir string
	now func() time.Time
}

func NewThreadIndex(dataDir string) (*ThreadIndex, error) {
	dir := filepath.Join(dataDir, "threads")

	// 0700 - user-only access
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create threads directory: %w", err)
	}

	return &ThreadIndex{dir: dir, now: time.Now}, nil
}

func (ti *ThreadIndex) path(threadID string) (string, error) {
	if threadID == "" || strings.ContainsAny(threadID, `/\`) || strings.Contains(threadID, "..") {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(ti.dir, threadID+".json"), nil
}

// Record adds threadID to the index, titled after its first message. An
// existing entry keeps its title and only has its timestamp bumped.
func (ti *ThreadIndex) Record(threadID, firstMessage string) error {
	now := ti.now()
	t, err := ti.Get(threadID)
	switch {
	case err == nil:
		t.UpdatedAt = now
	case errors.Is(err, os.ErrNotExist):
		t = &Thread{ThreadID: threadID, Title: ThreadTitle(firstMessage, now), CreatedAt: now, UpdatedAt: now}
	default:
		return err
	}
	return ti.save(t)
}

func (ti *ThreadIndex) save(t *Thread) error {
	p, err := ti.path(t.ThreadID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	// 0600 - titles are user questions
	if err := os.WriteFile(p, data, 0600); err != nil {
		return fmt.Errorf("failed to write thread file: %w", err)
	}
	return nil
}

// Get loads one entry. A missing entry yields an error matching os.ErrNotExist.
func (ti *ThreadIndex) Get(threadID string) (*Thread, error) {
	p, err := ti.path(threadID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread file: %w", err)
	}

	var t Thread
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}
	return &t, nil
}

// List returns all entries, most recently used first.
func (ti *ThreadIndex) List() ([]Thread, error) {
	entries, err := os.ReadDir(ti.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read threads directory: %w", err)
	}

	var threads []Thread
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(ti.dir, entry.Name()))
		if err != nil {
			continue // Skip unreadable files
		}

		var t Thread
		if err := json.Unmarshal(data, &t); err != nil || t.ThreadID == "" {
			continue // Skip corrupted files
		}
		threads = append(threads, t)
	}

	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

// Delete forgets threadID locally. Deleting an unknown thread is not an error.
func (ti *ThreadIndex) Delete(threadID string) error {
	p, err := ti.path(threadID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete thread file: %w", err)
	}
	return nil
}

// ThreadTitle derives a single-line title from the first user message.
func ThreadTitle(firstMessage string, now time.Time) string {
	name := strings.Join(strings.Fields(firstMessage), " ")
	if name == "" {
		return fmt.Sprintf("Conversation %s", now.Format("Jan 2, 3:04 PM"))
	}
	return runewidth.Truncate(name, titleWidth, "...")
}

// exportedTranscript is the on-disk format of ExportTranscript.
type exportedTranscript struct {
	ThreadID   string          `json:"thread_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []model.Message `json:"messages"`
}

// ExportTranscript writes msgs to path as indented JSON.
func ExportTranscript(path, threadID string, msgs []model.Message) error {
	data, err := json.MarshalIndent(exportedTranscript{
		ThreadID:   threadID,
		ExportedAt: time.Now(),
		Messages:   msgs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// 0600 - exports contain conversation content
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// DefaultExportPath returns a timestamped file name in the user's Downloads
// directory.
func DefaultExportPath(threadID string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	short := threadID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("wikichat-%s-%s.json", short, time.Now().Format("20060102-150405"))
	return filepath.Join(home, "Downloads", name)
}
