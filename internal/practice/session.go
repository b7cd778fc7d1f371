package practice

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/codepractice/internal/exercise"
)

// LevelUpThreshold is the number of correct answers in one session that
// unlocks the next level
const LevelUpThreshold = 8

// Session is a run through a set of exercises in one category. A Session
// is not safe for concurrent use; Service serializes access.
type Session struct {
	ID        string              `json:"id"`
	Category  string              `json:"category"`
	Level     int                 `json:"level"`
	Exercises []exercise.Exercise `json:"exercises"`
	Index     int                 `json:"current"`
	Results   map[int]Result      `json:"results"`
	StartedAt time.Time           `json:"started_at"`

	// Review sessions are loaded from history and accept no answers
	Review bool `json:"review,omitempty"`
}

// NewSession creates a session positioned on the first exercise
func NewSession(id, category string, level int, exercises []exercise.Exercise, now time.Time) *Session {
	return &Session{
		ID:        id,
		Category:  category,
		Level:     level,
		Exercises: exercises,
		Results:   make(map[int]Result),
		StartedAt: now,
	}
}

// Current returns the exercise at the cursor
func (s *Session) Current() (exercise.Exercise, bool) {
	if s.Index < 0 || s.Index >= len(s.Exercises) {
		return exercise.Exercise{}, false
	}
	return s.Exercises[s.Index], true
}

// Next moves to the following exercise. It reports false at the last one.
func (s *Session) Next() bool {
	if s.Index >= len(s.Exercises)-1 {
		return false
	}
	s.Index++
	return true
}

// Previous moves to the preceding exercise. It reports false at the first one.
func (s *Session) Previous() bool {
	if s.Index <= 0 {
		return false
	}
	s.Index--
	return true
}

// Submit stores the result for the current exercise, replacing any earlier
// attempt
func (s *Session) Submit(r Result) {
	s.Results[s.Index] = r
}

// Result returns the result recorded for exercise i
func (s *Session) Result(i int) (Result, bool) {
	r, ok := s.Results[i]
	return r, ok
}

// AllResults returns the recorded results in exercise order
func (s *Session) AllResults() []Result {
	keys := lo.Keys(s.Results)
	slices.Sort(keys)
	return lo.Map(keys, func(i int, _ int) Result { return s.Results[i] })
}

// Score counts correct answers among answered exercises
func (s *Session) Score() Score {
	return ScoreResults(s.Results)
}

// Percentage is the rounded share of answered exercises that are correct
func (s *Session) Percentage() int {
	return s.Score().Percentage()
}

// CanLevelUp reports whether the session unlocks the next level
func (s *Session) CanLevelUp() bool {
	return s.Score().Correct >= LevelUpThreshold && s.Level < exercise.MaxLevel
}

// Reset clears all answers and returns to the first exercise
func (s *Session) Reset() {
	s.Index = 0
	s.Results = make(map[int]Result)
}

// Record converts the session into a history record
func (s *Session) Record(at time.Time) *Record {
	return &Record{
		ID:        s.ID,
		Category:  s.Category,
		Level:     s.Level,
		Exercises: slices.Clone(s.Exercises),
		Results:   maps.Clone(s.Results),
		Timestamp: at,
		Score:     s.Score(),
	}
}

func (s *Session) clone() *Session {
	c := *s
	c.Exercises = slices.Clone(s.Exercises)
	c.Results = maps.Clone(s.Results)
	return &c
}

// Percentage is the rounded share of correct answers, 0 when nothing was
// answered
func (sc Score) Percentage() int {
	if sc.Total == 0 {
		return 0
	}
	return int(math.Round(float64(sc.Correct) / float64(sc.Total) * 100))
}

// Message is the encouragement shown for a final percentage
func Message(pct int) string {
	switch {
	case pct >= 90:
		return "Outstanding work!"
	case pct >= 70:
		return "Great job!"
	case pct >= 50:
		return "Good effort!"
	default:
		return "Keep practicing!"
	}
}
