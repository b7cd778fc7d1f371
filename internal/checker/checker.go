// Package checker runs a learner's answer next to the reference solution
// and decides whether the two results match.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/codepractice/internal/budget"
	"github.com/felixgeelhaar/codepractice/internal/compare"
	"github.com/felixgeelhaar/codepractice/internal/events"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/metrics"
	"github.com/felixgeelhaar/codepractice/internal/runner"
)

const (
	msgEmptyAnswer     = "Please write some code before checking!"
	msgSolutionFailure = "Error in expected solution. Please contact support."
)

// Runner executes code in a language
type Runner interface {
	Execute(ctx context.Context, lang runner.Language, code string) (*runner.Output, error)
}

// Advisor explains mistakes. *tutor.Tutor satisfies it.
type Advisor interface {
	Feedback(ctx context.Context, question, answer, solution, errMsg string) (string, error)
}

// Request is an answer to check
type Request struct {
	Exercise  exercise.Exercise
	Answer    string
	SessionID string
	Category  string
}

// Result is the verdict on an answer
type Result struct {
	IsCorrect bool           `json:"is_correct"`
	Message   string         `json:"message"`
	Feedback  string         `json:"feedback,omitempty"`
	Actual    *runner.Output `json:"actual,omitempty"`
	Expected  *runner.Output `json:"expected,omitempty"`
}

// Checker implements the check flow
type Checker struct {
	runner    Runner
	advisor   Advisor
	publisher events.Publisher
	logger    *slog.Logger
}

// Option configures a Checker
type Option func(*Checker)

// WithAdvisor enables LLM feedback on wrong or failing answers
func WithAdvisor(a Advisor) Option {
	return func(c *Checker) { c.advisor = a }
}

// WithPublisher publishes an attempt event for every check
func WithPublisher(p events.Publisher) Option {
	return func(c *Checker) { c.publisher = p }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// New creates a checker
func New(r Runner, opts ...Option) *Checker {
	c := &Checker{
		runner:    r,
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the answer and the solution and compares their results. A Go
// error means the answer could not be judged at all (unknown language or no
// executor); mistakes in the learner's code are reported in the Result.
func (c *Checker) Check(ctx context.Context, req Request) (*Result, error) {
	ex := req.Exercise
	lang, err := runner.ParseLanguage(strings.ToLower(ex.Language))
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Answer) == "" {
		metrics.RecordCheck(lang.String(), "empty")
		return &Result{Message: msgEmptyAnswer}, nil
	}

	start := time.Now()
	res, err := c.judge(ctx, lang, req)
	if err != nil {
		metrics.RecordCheck(lang.String(), "unavailable")
		return nil, err
	}

	outcome := "incorrect"
	if res.IsCorrect {
		outcome = "correct"
	} else if res.Actual != nil && res.Actual.Failed() {
		outcome = "error"
	}
	metrics.RecordCheck(lang.String(), outcome)

	c.publish(ctx, req, lang, res, time.Since(start))
	return res, nil
}

func (c *Checker) judge(ctx context.Context, lang runner.Language, req Request) (*Result, error) {
	ex := req.Exercise

	actual, err := c.runner.Execute(ctx, lang, req.Answer)
	if err != nil {
		return nil, fmt.Errorf("run answer: %w", err)
	}
	if actual.Failed() {
		msg := fmt.Sprintf("%s Error: %s", displayName(lang), actual.Err)
		if fb := c.feedback(ctx, ex, req.Answer, actual.Err); fb != "" {
			msg = fb
		}
		return &Result{Message: msg, Actual: actual}, nil
	}

	expected, err := c.runner.Execute(ctx, lang, ex.Solution)
	if err != nil {
		return nil, fmt.Errorf("run solution: %w", err)
	}
	if expected.Failed() {
		c.logger.Error("reference solution failed",
			"exercise_id", ex.ID,
			"language", lang,
			"error", expected.Err)
		return &Result{Message: msgSolutionFailure, Actual: actual, Expected: expected}, nil
	}

	kind := lang.Kind()
	verdict := compare.Compare(actual.Result(kind), expected.Result(kind))
	res := &Result{
		IsCorrect: verdict.IsCorrect,
		Message:   verdict.Message,
		Actual:    actual,
		Expected:  expected,
	}
	if !res.IsCorrect {
		res.Feedback = c.feedback(ctx, ex, req.Answer, "")
	}
	return res, nil
}

// feedback asks the advisor for an explanation, returning "" when there is
// no advisor or it fails
func (c *Checker) feedback(ctx context.Context, ex exercise.Exercise, answer, errMsg string) string {
	if c.advisor == nil {
		return ""
	}
	fb, err := c.advisor.Feedback(ctx, ex.Question, answer, ex.Solution, errMsg)
	if err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			c.logger.Debug("skipping feedback, budget exhausted", "exercise_id", ex.ID)
		} else {
			c.logger.Warn("feedback failed", "exercise_id", ex.ID, "error", err)
		}
		return ""
	}
	return fb
}

func (c *Checker) publish(ctx context.Context, req Request, lang runner.Language, res *Result, d time.Duration) {
	err := c.publisher.PublishAttempt(ctx, &events.AttemptEvent{
		SessionID:  req.SessionID,
		Category:   req.Category,
		ExerciseID: req.Exercise.ID,
		Language:   lang.String(),
		IsCorrect:  res.IsCorrect,
		Message:    res.Message,
		Duration:   d,
	})
	if err != nil {
		c.logger.Warn("failed to publish attempt", "exercise_id", req.Exercise.ID, "error", err)
	}
}

func displayName(lang runner.Language) string {
	switch lang {
	case runner.LanguageSQL:
		return "SQL"
	case runner.LanguagePython:
		return "Python"
	default:
		return lang.String()
	}
}
