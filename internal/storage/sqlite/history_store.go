package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codepractice/internal/practice"
)

// HistoryStore keeps the most recent finished sessions.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new SQLite-backed history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

const historyColumns = `id, category, level, exercises, results, correct, total, created_at`

// Save inserts a record, recomputing its score, and trims history to
// practice.MaxHistory entries.
func (s *HistoryStore) Save(ctx context.Context, rec *practice.Record) error {
	rec.Score = practice.ScoreResults(rec.Results)

	exercises, err := json.Marshal(rec.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category=excluded.category, level=excluded.level,
			exercises=excluded.exercises, results=excluded.results,
			correct=excluded.correct, total=excluded.total`,
		rec.ID, rec.Category, rec.Level, string(exercises), string(results),
		rec.Score.Correct, rec.Score.Total, rec.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, practice.MaxHistory); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return tx.Commit()
}

// List returns all records, newest first.
func (s *HistoryStore) List(ctx context.Context) ([]*practice.Record, error) {
	return s.query(ctx, `SELECT `+historyColumns+` FROM history ORDER BY created_at DESC, rowid DESC`)
}

// ListByCategory returns the records of one category, newest first.
func (s *HistoryStore) ListByCategory(ctx context.Context, category string) ([]*practice.Record, error) {
	return s.query(ctx, `SELECT `+historyColumns+` FROM history WHERE category = ?
		ORDER BY created_at DESC, rowid DESC`, category)
}

// Get retrieves a record by ID.
func (s *HistoryStore) Get(ctx context.Context, id string) (*practice.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM history WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, practice.ErrNotFound
	}
	return rec, err
}

// Delete removes a record.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return practice.ErrNotFound
	}
	return nil
}

// Clear removes all records.
func (s *HistoryStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *HistoryStore) query(ctx context.Context, query string, args ...any) ([]*practice.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	records := []*practice.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*practice.Record, error) {
	var rec practice.Record
	var exercises, results string

	if err := row.Scan(&rec.ID, &rec.Category, &rec.Level, &exercises, &results,
		&rec.Score.Correct, &rec.Score.Total, &rec.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history: %w", err)
	}

	if err := json.Unmarshal([]byte(exercises), &rec.Exercises); err != nil {
		return nil, fmt.Errorf("unmarshal exercises: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	return &rec, nil
}

var _ practice.HistoryStore = (*HistoryStore)(nil)
