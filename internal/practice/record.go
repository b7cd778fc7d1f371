package practice

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/codepractice/internal/exercise"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSessionFinished = errors.New("session already finished")
	ErrMaxLevel        = errors.New("already at the highest level")
)

// MaxHistory is the number of finished sessions kept in history
const MaxHistory = 100

// Result is the outcome of one submitted answer
type Result struct {
	ExerciseID string    `json:"exercise_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"user_answer"`
	IsCorrect  bool      `json:"is_correct"`
	Message    string    `json:"message,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Score counts correct answers against answered exercises
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Record is a finished session as kept in history
type Record struct {
	ID        string              `json:"id"`
	Category  string              `json:"category"`
	Level     int                 `json:"level"`
	Exercises []exercise.Exercise `json:"exercises"`
	Results   map[int]Result      `json:"results"`
	Timestamp time.Time           `json:"timestamp"`
	Score     Score               `json:"score"`
}

// ScoreResults computes the score of a result set
func ScoreResults(results map[int]Result) Score {
	s := Score{Total: len(results)}
	for _, r := range results {
		if r.IsCorrect {
			s.Correct++
		}
	}
	return s
}

// HistoryStore persists finished sessions, newest first
type HistoryStore interface {
	Save(ctx context.Context, rec *Record) error
	List(ctx context.Context) ([]*Record, error)
	ListByCategory(ctx context.Context, category string) ([]*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// ProgressStore persists levels and the latest result per exercise
type ProgressStore interface {
	Level(ctx context.Context, category string) (int, error)
	Levels(ctx context.Context) (map[string]int, error)
	SetLevel(ctx context.Context, category string, level int) error
	RecordResult(ctx context.Context, category string, r Result) error
	Progress(ctx context.Context, category string) (map[string]Result, error)
}
