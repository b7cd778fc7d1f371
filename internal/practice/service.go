package practice

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codepractice/internal/checker"
	"github.com/felixgeelhaar/codepractice/internal/events"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/metrics"
)

// SessionSize is the number of exercises in a session
const SessionSize = 10

// Generator creates fresh exercises when the bank has none for a category
type Generator interface {
	GenerateExercises(ctx context.Context, category string, level int) ([]exercise.Exercise, error)
}

// Checker judges answers
type Checker interface {
	Check(ctx context.Context, req checker.Request) (*checker.Result, error)
}

// Summary is the outcome of a finished session
type Summary struct {
	Record     *Record `json:"record"`
	Percentage int     `json:"percentage"`
	Message    string  `json:"message"`
	CanLevelUp bool    `json:"can_level_up"`
}

// Service manages active practice sessions
type Service struct {
	mu       sync.Mutex
	sessions map[string]*Session

	bank      *exercise.Bank
	generator Generator
	checker   Checker
	history   HistoryStore
	progress  ProgressStore
	publisher events.Publisher
	logger    *slog.Logger

	rng *rand.Rand
	now func() time.Time
}

// ServiceConfig wires a Service. Bank and Generator are both optional but
// at least one must yield exercises for Start to succeed.
type ServiceConfig struct {
	Bank      *exercise.Bank
	Generator Generator
	Checker   Checker
	History   HistoryStore
	Progress  ProgressStore
	Publisher events.Publisher
	Logger    *slog.Logger
}

// NewService creates a practice service
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		sessions:  make(map[string]*Session),
		bank:      cfg.Bank,
		generator: cfg.Generator,
		checker:   cfg.Checker,
		history:   cfg.History,
		progress:  cfg.Progress,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:       time.Now,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start opens a session at the learner's current level for category
func (s *Service) Start(ctx context.Context, category string) (*Session, error) {
	category = exercise.Canonical(category)

	level, err := s.progress.Level(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("get level: %w", err)
	}

	exercises, err := s.exercises(ctx, category, level)
	if err != nil {
		return nil, err
	}

	sess := NewSession(uuid.NewString(), category, level, exercises, s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session started",
		"session_id", sess.ID,
		"category", category,
		"level", level,
		"exercises", len(exercises))

	return sess.clone(), nil
}

func (s *Service) exercises(ctx context.Context, category string, level int) ([]exercise.Exercise, error) {
	if s.bank != nil {
		s.mu.Lock()
		sample := s.bank.Sample(category, SessionSize, s.rng)
		s.mu.Unlock()
		if len(sample) > 0 {
			return sample, nil
		}
	}

	if s.generator == nil {
		return nil, fmt.Errorf("%w for %s", exercise.ErrNoExercises, category)
	}
	generated, err := s.generator.GenerateExercises(ctx, category, level)
	if err != nil {
		return nil, err
	}
	if len(generated) > SessionSize {
		generated = generated[:SessionSize]
	}
	return generated, nil
}

// Review reopens a finished session from history in read-only mode
func (s *Service) Review(ctx context.Context, id string) (*Session, error) {
	rec, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := NewSession(uuid.NewString(), rec.Category, rec.Level, rec.Exercises, s.now())
	sess.Results = rec.Results
	sess.Review = true

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.clone(), nil
}

// Get returns a snapshot of an active session
func (s *Service) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.clone(), nil
}

// Next moves the session to the following exercise
func (s *Service) Next(id string) (*Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Next()
		return nil
	})
}

// Previous moves the session to the preceding exercise
func (s *Service) Previous(id string) (*Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Previous()
		return nil
	})
}

// Reset clears the answers of a session
func (s *Service) Reset(id string) (*Session, error) {
	return s.update(id, func(sess *Session) error {
		if sess.Review {
			return ErrSessionFinished
		}
		sess.Reset()
		return nil
	})
}

func (s *Service) update(id string, fn func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

// Submit checks an answer to the current exercise and records the result
// in the session and in progress
func (s *Service) Submit(ctx context.Context, id, answer string) (*checker.Result, *Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	if sess.Review {
		s.mu.Unlock()
		return nil, nil, ErrSessionFinished
	}
	ex, ok := sess.Current()
	index, category := sess.Index, sess.Category
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: session has no exercises", exercise.ErrNotFound)
	}

	// The check runs without the lock; the result lands on the exercise
	// that was current when the answer was submitted.
	res, err := s.checker.Check(ctx, checker.Request{
		Exercise:  ex,
		Answer:    answer,
		SessionID: id,
		Category:  category,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("check answer: %w", err)
	}

	result := Result{
		ExerciseID: ex.ID,
		Question:   ex.Question,
		Answer:     answer,
		IsCorrect:  res.IsCorrect,
		Message:    res.Message,
		Feedback:   res.Feedback,
		Timestamp:  s.now(),
	}

	s.mu.Lock()
	sess, ok = s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	sess.Results[index] = result
	snapshot := sess.clone()
	s.mu.Unlock()

	if err := s.progress.RecordResult(ctx, category, result); err != nil {
		return nil, nil, fmt.Errorf("record progress: %w", err)
	}

	return res, snapshot, nil
}

// Finish saves the session to history and closes it
func (s *Service) Finish(ctx context.Context, id string) (*Summary, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	summary := &Summary{
		Record:     sess.Record(s.now()),
		Percentage: sess.Percentage(),
		CanLevelUp: sess.CanLevelUp(),
	}
	summary.Message = Message(summary.Percentage)

	// Reviewed sessions are already in history
	if sess.Review {
		return summary, nil
	}

	if err := s.history.Save(ctx, summary.Record); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	metrics.RecordSessionCompleted(sess.Category)

	score := summary.Record.Score
	if err := s.publisher.PublishSession(ctx, &events.SessionEvent{
		SessionID:  sess.ID,
		Category:   sess.Category,
		Level:      sess.Level,
		Correct:    score.Correct,
		Total:      score.Total,
		Percentage: summary.Percentage,
	}); err != nil {
		s.logger.Warn("failed to publish session", "session_id", sess.ID, "error", err)
	}

	s.logger.Info("session finished",
		"session_id", sess.ID,
		"category", sess.Category,
		"correct", score.Correct,
		"total", score.Total)

	return summary, nil
}

// LevelUp raises the level of a category by one, up to exercise.MaxLevel
func (s *Service) LevelUp(ctx context.Context, category string) (int, error) {
	category = exercise.Canonical(category)

	level, err := s.progress.Level(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("get level: %w", err)
	}
	if level >= exercise.MaxLevel {
		return level, ErrMaxLevel
	}

	level++
	if err := s.progress.SetLevel(ctx, category, level); err != nil {
		return 0, fmt.Errorf("set level: %w", err)
	}
	s.logger.Info("level up", "category", category, "level", level)
	return level, nil
}

// Active returns the number of open sessions
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
