package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DraftStore keeps unsent composer text, keyed by thread.
type DraftStore struct {
	db *sql.DB
}

func NewDraftStore(dataDir string) (*DraftStore, error) {
	dbPath := filepath.Join(dataDir, "drafts.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &DraftStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (ds *DraftStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		key TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := ds.db.Exec(schema)
	return err
}

// Save stores text under key. Empty text removes the draft.
func (ds *DraftStore) Save(key, text string) error {
	if text == "" {
		return ds.Delete(key)
	}

	query := `
	INSERT INTO drafts (key, content, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
	`
	if _, err := ds.db.Exec(query, key, text, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Load returns the draft for key, or "" if there is none.
func (ds *DraftStore) Load(key string) (string, error) {
	var content string
	err := ds.db.QueryRowContext(context.Background(), `SELECT content FROM drafts WHERE key = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load draft: %w", err)
	}
	return content, nil
}

func (ds *DraftStore) Delete(key string) error {
	if _, err := ds.db.Exec(`DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func (ds *DraftStore) Close() error {
	return ds.db.Close()
}
