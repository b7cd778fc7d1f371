package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/practice"
)

// ProgressStore tracks the level per category and the latest result per
// exercise.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Level returns the level of a category, 1 when never set.
func (s *ProgressStore) Level(ctx context.Context, category string) (int, error) {
	var level int
	err := s.db.QueryRowContext(ctx, "SELECT level FROM levels WHERE category = ?", category).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return exercise.MinLevel, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get level: %w", err)
	}
	return level, nil
}

// Levels returns the level of every built-in category plus any stored one.
func (s *ProgressStore) Levels(ctx context.Context) (map[string]int, error) {
	levels := make(map[string]int)
	for _, c := range exercise.Categories() {
		levels[c] = exercise.MinLevel
	}

	rows, err := s.db.QueryContext(ctx, "SELECT category, level FROM levels")
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var level int
		if err := rows.Scan(&category, &level); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		levels[category] = level
	}
	return levels, rows.Err()
}

// SetLevel stores the level of a category.
func (s *ProgressStore) SetLevel(ctx context.Context, category string, level int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO levels (category, level) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET level=excluded.level`, category, level)
	if err != nil {
		return fmt.Errorf("set level: %w", err)
	}
	return nil
}

// RecordResult stores the latest result for an exercise, replacing any
// earlier one.
func (s *ProgressStore) RecordResult(ctx context.Context, category string, r practice.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (category, exercise_id, question, user_answer, is_correct, message, feedback, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, exercise_id) DO UPDATE SET
			question=excluded.question, user_answer=excluded.user_answer,
			is_correct=excluded.is_correct, message=excluded.message,
			feedback=excluded.feedback, recorded_at=excluded.recorded_at`,
		category, r.ExerciseID, r.Question, r.Answer, r.IsCorrect, r.Message, r.Feedback, r.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Progress returns the latest result per exercise ID in a category.
func (s *ProgressStore) Progress(ctx context.Context, category string) (map[string]practice.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exercise_id, question, user_answer, is_correct, message, feedback, recorded_at
		FROM progress WHERE category = ?`, category)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	progress := make(map[string]practice.Result)
	for rows.Next() {
		var r practice.Result
		if err := rows.Scan(&r.ExerciseID, &r.Question, &r.Answer, &r.IsCorrect,
			&r.Message, &r.Feedback, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		progress[r.ExerciseID] = r
	}
	return progress, rows.Err()
}

var _ practice.ProgressStore = (*ProgressStore)(nil)
