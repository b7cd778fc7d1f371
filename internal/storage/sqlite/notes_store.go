package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoBackup    = errors.New("no backup found")
	ErrInvalidJSON = errors.New("invalid JSON format")
)

// NotesStore keeps free-form notes per category. Every save snapshots the
// full set of notes first so the previous state can be restored.
type NotesStore struct {
	db  *DB
	now func() time.Time
}

// NewNotesStore creates a new SQLite-backed notes store.
func NewNotesStore(db *DB) *NotesStore {
	return &NotesStore{db: db, now: time.Now}
}

// Get returns the notes of a category, or "" when there are none.
func (s *NotesStore) Get(ctx context.Context, category string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, "SELECT content FROM notes WHERE category = ?", category).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get notes: %w", err)
	}
	return content, nil
}

// All returns every category's notes.
func (s *NotesStore) All(ctx context.Context) (map[string]string, error) {
	return allNotes(ctx, s.db)
}

// Save replaces the notes of a category after backing up all notes.
func (s *NotesStore) Save(ctx context.Context, category, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := allNotes(ctx, tx)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes_backup (id, snapshot, created_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot=excluded.snapshot, created_at=excluded.created_at`,
		string(snapshot), now); err != nil {
		return fmt.Errorf("save backup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes (category, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at`,
		category, content, now); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}

	return tx.Commit()
}

// RestoreBackup replaces all notes with the last backup.
func (s *NotesStore) RestoreBackup(ctx context.Context) error {
	var snapshot string
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM notes_backup WHERE id = 1").Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoBackup
	}
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}

	var notes map[string]string
	if err := json.Unmarshal([]byte(snapshot), &notes); err != nil {
		return fmt.Errorf("unmarshal backup: %w", err)
	}
	return s.replace(ctx, notes)
}

// Export returns all notes as indented JSON.
func (s *NotesStore) Export(ctx context.Context) ([]byte, error) {
	notes, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(notes, "", "  ")
}

// Import replaces all notes with a JSON object of category to content.
func (s *NotesStore) Import(ctx context.Context, data []byte) error {
	var notes map[string]string
	if err := json.Unmarshal(data, &notes); err != nil || notes == nil {
		return ErrInvalidJSON
	}
	return s.replace(ctx, notes)
}

func (s *NotesStore) replace(ctx context.Context, notes map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notes"); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	now := s.now().UTC()
	for category, content := range notes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO notes (category, content, updated_at) VALUES (?, ?, ?)",
			category, content, now); err != nil {
			return fmt.Errorf("insert notes: %w", err)
		}
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func allNotes(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT category, content FROM notes")
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make(map[string]string)
	for rows.Next() {
		var category, content string
		if err := rows.Scan(&category, &content); err != nil {
			return nil, fmt.Errorf("scan notes: %w", err)
		}
		notes[category] = content
	}
	return notes, rows.Err()
}
