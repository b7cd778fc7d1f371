// Package tutor generates exercises, hints and feedback with an LLM while
// keeping usage inside the daily token budget.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/codepractice/internal/budget"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/llm"
	"github.com/felixgeelhaar/codepractice/internal/metrics"
)

var (
	ErrGenerate = errors.New("failed to generate exercises")
	ErrHint     = errors.New("failed to get hint")
	ErrFeedback = errors.New("failed to get feedback")
)

const (
	exerciseMaxTokens = 3000
	hintMaxTokens     = 200
	feedbackMaxTokens = 300
	temperature       = 0.7
)

// Tutor wraps an LLM provider with prompt building and budget accounting
type Tutor struct {
	provider llm.Provider
	budget   *budget.Budget
	logger   *slog.Logger
}

// New creates a tutor. A nil budget means unmetered use.
func New(provider llm.Provider, b *budget.Budget, logger *slog.Logger) *Tutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tutor{provider: provider, budget: b, logger: logger}
}

// GenerateExercises asks the model for a fresh set of exercises
func (t *Tutor) GenerateExercises(ctx context.Context, category string, level int) ([]exercise.Exercise, error) {
	text, err := t.complete(ctx, "exercises", exerciseSystemPrompt, ExercisesPrompt(category, level), exerciseMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	exercises, err := exercise.ParseGenerated(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	return exercises, nil
}

// GenerateBank asks for count exercises of mixed difficulty
func (t *Tutor) GenerateBank(ctx context.Context, category string, count int) ([]exercise.Exercise, error) {
	text, err := t.complete(ctx, "bank", exerciseSystemPrompt, BankPrompt(category, count), exerciseMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	exercises, err := exercise.ParseGenerated(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	return exercises, nil
}

// Hint returns a one or two sentence nudge
func (t *Tutor) Hint(ctx context.Context, question, answer, solution string) (string, error) {
	text, err := t.complete(ctx, "hint", hintSystemPrompt, HintPrompt(question, answer, solution), hintMaxTokens)
	if err != nil {
		t.logger.Error("hint failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrHint, err)
	}
	return strings.TrimSpace(text), nil
}

// Feedback reviews a wrong answer. errMsg is the execution error, if any.
func (t *Tutor) Feedback(ctx context.Context, question, answer, solution, errMsg string) (string, error) {
	text, err := t.complete(ctx, "feedback", feedbackSystemPrompt, FeedbackPrompt(question, answer, solution, errMsg), feedbackMaxTokens)
	if err != nil {
		t.logger.Error("feedback failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrFeedback, err)
	}
	return strings.TrimSpace(text), nil
}

func (t *Tutor) complete(ctx context.Context, feature, system, prompt string, maxTokens int) (string, error) {
	if t.budget != nil {
		ok, err := t.budget.HasRemaining(ctx, budget.DefaultEstimate)
		if err != nil {
			return "", err
		}
		if !ok {
			metrics.RecordBudgetRejected()
			return "", budget.ErrBudgetExceeded
		}
	}

	resp, err := t.provider.Generate(ctx, llm.UserPrompt(system, prompt, maxTokens, temperature))
	if err != nil {
		return "", err
	}

	tokens := resp.Usage.Total()
	metrics.RecordTokens(feature, tokens)
	t.logger.Debug("llm call", "feature", feature, "provider", t.provider.Name(), "tokens", tokens)

	if t.budget != nil {
		if err := t.budget.Record(ctx, tokens); err != nil {
			t.logger.Warn("failed to record token usage", "error", err)
		}
	}

	return resp.Content, nil
}
