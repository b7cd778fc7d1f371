package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/codepractice/internal/app"
	"github.com/felixgeelhaar/codepractice/internal/checker"
	"github.com/felixgeelhaar/codepractice/internal/compare"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/practice"
	"github.com/felixgeelhaar/codepractice/internal/tutor"
)

var errNoTutor = errors.New("hints need an LLM provider; set OPENAI_API_KEY or GEMINI_API_KEY")

// Server wraps the MCP server with practice functionality
type Server struct {
	mcpServer *server.Server
	bank      *exercise.Bank
	checker   *checker.Checker
	practice  *practice.Service
	tutor     *tutor.Tutor
}

// Config contains configuration for the MCP server. Tutor may be nil.
type Config struct {
	Bank     *exercise.Bank
	Checker  *checker.Checker
	Practice *practice.Service
	Tutor    *tutor.Tutor
}

// ConfigFromApp takes the MCP server's dependencies from a wired App
func ConfigFromApp(a *app.App) Config {
	return Config{
		Bank:     a.Bank,
		Checker:  a.Checker,
		Practice: a.Practice,
		Tutor:    a.Tutor,
	}
}

// NewServer creates a new MCP server
func NewServer(cfg Config) *Server {
	s := &Server{
		bank:     cfg.Bank,
		checker:  cfg.Checker,
		practice: cfg.Practice,
		tutor:    cfg.Tutor,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "codepractice",
		Version: "0.1.0",
	}, server.WithInstructions(`
codepractice runs SQL and Python exercises and judges answers by their results,
not their text.

Available tools:
- practice_exercises: List exercises in a category
- practice_check: Check an answer against an exercise's reference solution
- practice_compare: Compare two already-executed results
- practice_hint: Get a short hint without the solution
- practice_start: Start a ten exercise session
- practice_submit: Answer the current exercise of a session
- practice_next: Move a session to its next exercise
- practice_finish: Finish a session and save it to history

Categories: Data Engineering, Analytics Engineering, Data Analysis,
Data Science, General Programming.
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("practice_exercises").
		Description("List the exercises available in a category.").
		Handler(s.handleExercises)

	s.mcpServer.Tool("practice_check").
		Description("Run an answer and the reference solution, then compare their results.").
		Handler(s.handleCheck)

	s.mcpServer.Tool("practice_compare").
		Description("Compare an actual result with an expected one. SQL results are JSON arrays of rows, Python results are output text.").
		Handler(s.handleCompare)

	s.mcpServer.Tool("practice_hint").
		Description("Get a one or two sentence hint that does not reveal the solution.").
		Handler(s.handleHint)

	s.mcpServer.Tool("practice_start").
		Description("Start a practice session at the learner's level for a category.").
		Handler(s.handleStart)

	s.mcpServer.Tool("practice_submit").
		Description("Submit an answer for the current exercise of a session.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("practice_next").
		Description("Move a session to its next exercise.").
		Handler(s.handleNext)

	s.mcpServer.Tool("practice_finish").
		Description("Finish a session, save it to history and report the score.").
		Handler(s.handleFinish)
}

// Input/Output types for tools

type ExercisesInput struct {
	Category string `json:"category" jsonschema:"description=Exercise category, e.g. Data Analysis"`
}

type ExerciseSummary struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
}

type ExercisesOutput struct {
	Category  string            `json:"category"`
	Exercises []ExerciseSummary `json:"exercises"`
}

type CheckInput struct {
	Category   string `json:"category" jsonschema:"description=Exercise category"`
	ExerciseID string `json:"exercise_id" jsonschema:"description=Exercise ID from practice_exercises"`
	Answer     string `json:"answer" jsonschema:"description=SQL query or Python program to check"`
}

type CheckOutput struct {
	IsCorrect bool   `json:"is_correct"`
	Message   string `json:"message"`
	Feedback  string `json:"feedback,omitempty"`
}

type CompareInput struct {
	Language string `json:"language" jsonschema:"description=Result language,enum=sql,enum=python"`
	Actual   string `json:"actual" jsonschema:"description=Actual result: JSON array of row objects for sql or output text for python"`
	Expected string `json:"expected" jsonschema:"description=Expected result in the same format as actual"`
}

type HintInput struct {
	Category   string `json:"category" jsonschema:"description=Exercise category"`
	ExerciseID string `json:"exercise_id" jsonschema:"description=Exercise ID"`
	Answer     string `json:"answer,omitempty" jsonschema:"description=The learner's current attempt"`
}

type HintOutput struct {
	Hint string `json:"hint"`
}

type StartInput struct {
	Category string `json:"category" jsonschema:"description=Exercise category"`
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from practice_start"`
}

type SubmitInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from practice_start"`
	Answer    string `json:"answer" jsonschema:"description=Answer for the current exercise"`
}

type SessionOutput struct {
	SessionID  string `json:"session_id"`
	Category   string `json:"category"`
	Level      int    `json:"level"`
	Position   int    `json:"position"`
	Total      int    `json:"total"`
	ExerciseID string `json:"exercise_id,omitempty"`
	Question   string `json:"question,omitempty"`
	Language   string `json:"language,omitempty"`
	Correct    int    `json:"correct"`
	Answered   int    `json:"answered"`
}

type SubmitOutput struct {
	CheckOutput
	Session SessionOutput `json:"session"`
}

type FinishOutput struct {
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	CanLevelUp bool   `json:"can_level_up"`
}

// Tool handlers

func (s *Server) handleExercises(ctx context.Context, input ExercisesInput) (ExercisesOutput, error) {
	category := exercise.Canonical(input.Category)
	out := ExercisesOutput{Category: category, Exercises: []ExerciseSummary{}}
	for _, ex := range s.bank.ForCategory(category) {
		out.Exercises = append(out.Exercises, ExerciseSummary{
			ID:         ex.ID,
			Question:   ex.Question,
			Language:   ex.Language,
			Difficulty: ex.Difficulty,
		})
	}
	return out, nil
}

func (s *Server) handleCheck(ctx context.Context, input CheckInput) (CheckOutput, error) {
	ex, err := s.bank.Get(input.Category, input.ExerciseID)
	if err != nil {
		return CheckOutput{}, err
	}

	res, err := s.checker.Check(ctx, checker.Request{
		Exercise: ex,
		Answer:   input.Answer,
		Category: exercise.Canonical(input.Category),
	})
	if err != nil {
		return CheckOutput{}, fmt.Errorf("check answer: %w", err)
	}
	return checkOutput(res), nil
}

func (s *Server) handleCompare(ctx context.Context, input CompareInput) (compare.Outcome, error) {
	kind, err := compare.KindForLanguage(input.Language)
	if err != nil {
		return compare.Outcome{}, err
	}

	if kind == compare.KindTabular {
		return compare.CompareTabular(
			compare.DecodeTabular([]byte(input.Actual)),
			compare.DecodeTabular([]byte(input.Expected)),
		), nil
	}
	return compare.CompareTextual(&input.Actual, &input.Expected), nil
}

func (s *Server) handleHint(ctx context.Context, input HintInput) (HintOutput, error) {
	if s.tutor == nil {
		return HintOutput{}, errNoTutor
	}

	ex, err := s.bank.Get(input.Category, input.ExerciseID)
	if err != nil {
		return HintOutput{}, err
	}

	hint, err := s.tutor.Hint(ctx, ex.Question, input.Answer, ex.Solution)
	if err != nil {
		return HintOutput{}, err
	}
	return HintOutput{Hint: hint}, nil
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (SessionOutput, error) {
	sess, err := s.practice.Start(ctx, input.Category)
	if err != nil {
		return SessionOutput{}, fmt.Errorf("failed to start session: %w", err)
	}
	return sessionOutput(sess), nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	res, sess, err := s.practice.Submit(ctx, input.SessionID, input.Answer)
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("failed to submit answer: %w", err)
	}
	return SubmitOutput{
		CheckOutput: checkOutput(res),
		Session:     sessionOutput(sess),
	}, nil
}

func (s *Server) handleNext(ctx context.Context, input SessionInput) (SessionOutput, error) {
	sess, err := s.practice.Next(input.SessionID)
	if err != nil {
		return SessionOutput{}, fmt.Errorf("session not found: %w", err)
	}
	return sessionOutput(sess), nil
}

func (s *Server) handleFinish(ctx context.Context, input SessionInput) (FinishOutput, error) {
	summary, err := s.practice.Finish(ctx, input.SessionID)
	if err != nil {
		return FinishOutput{}, fmt.Errorf("failed to finish session: %w", err)
	}
	return FinishOutput{
		Correct:    summary.Record.Score.Correct,
		Total:      summary.Record.Score.Total,
		Percentage: summary.Percentage,
		Message:    summary.Message,
		CanLevelUp: summary.CanLevelUp,
	}, nil
}

func checkOutput(res *checker.Result) CheckOutput {
	return CheckOutput{
		IsCorrect: res.IsCorrect,
		Message:   res.Message,
		Feedback:  res.Feedback,
	}
}

func sessionOutput(sess *practice.Session) SessionOutput {
	score := sess.Score()
	out := SessionOutput{
		SessionID: sess.ID,
		Category:  sess.Category,
		Level:     sess.Level,
		Position:  sess.Index + 1,
		Total:     len(sess.Exercises),
		Correct:   score.Correct,
		Answered:  score.Total,
	}
	if ex, ok := sess.Current(); ok {
		out.ExerciseID = ex.ID
		out.Question = ex.Question
		out.Language = ex.Language
	}
	return out
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
