// Package events publishes practice activity to a message broker so that
// other tools can follow a learner's progress.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queue names
const (
	AttemptQueueName = "codepractice.attempts"
	SessionQueueName = "codepractice.sessions"
)

// AttemptEvent is emitted for every checked answer
type AttemptEvent struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  string        `json:"session_id,omitempty"`
	Category   string        `json:"category,omitempty"`
	ExerciseID string        `json:"exercise_id"`
	Language   string        `json:"language"`
	IsCorrect  bool          `json:"is_correct"`
	Message    string        `json:"message"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SessionEvent is emitted when a practice session is finished
type SessionEvent struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"session_id"`
	Category   string    `json:"category"`
	Level      int       `json:"level"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishAttempt(ctx context.Context, e *AttemptEvent) error
	PublishSession(ctx context.Context, e *SessionEvent) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishAttempt(context.Context, *AttemptEvent) error { return nil }
func (Nop) PublishSession(context.Context, *SessionEvent) error { return nil }
func (Nop) Close() error                                        { return nil }

// stamp fills in the ID and creation time when unset
func stamp(id *uuid.UUID, at *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if at.IsZero() {
		*at = time.Now()
	}
}

var _ Publisher = Nop{}
