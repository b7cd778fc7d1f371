package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/codepractice/internal/app"
	"github.com/felixgeelhaar/codepractice/internal/budget"
	"github.com/felixgeelhaar/codepractice/internal/config"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/llm"
	"github.com/felixgeelhaar/codepractice/internal/practice"
	"github.com/felixgeelhaar/codepractice/internal/runner"
	"github.com/felixgeelhaar/codepractice/internal/storage/sqlite"
)

// Version is reported by the status endpoint and set at build time
var Version = "0.1.0"

var errNoTutor = errors.New("no LLM provider configured")

// Server represents the practice daemon HTTP server
type Server struct {
	cfg       *config.LocalConfig
	app       *app.App
	server    *http.Server
	router    *http.ServeMux
	limiter   *rateLimiter
	startedAt time.Time
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config  *config.LocalConfig
	DataDir string // SQLite location, defaults to ~/.codepractice/data

	// App is used as-is when set; otherwise one is built from Config
	App *app.App
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	a := cfg.App
	if a == nil {
		var err error
		a, err = app.NewApp(ctx, app.AppConfig{Config: cfg.Config, DataDir: cfg.DataDir})
		if err != nil {
			return nil, fmt.Errorf("create app: %w", err)
		}
	}

	s := &Server{
		cfg:       cfg.Config,
		app:       a,
		router:    http.NewServeMux(),
		startedAt: time.Now(),
	}
	if n := cfg.Config.Daemon.ExecPerMinute; n > 0 {
		s.limiter = newRateLimiter(n, time.Minute/time.Duration(n), n)
	}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // exercise generation can be slow
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return correlationIDMiddleware(recoveryMiddleware(loggingMiddleware(s.router)))
}

func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Exercises
	s.router.HandleFunc("GET /v1/exercises", s.handleListCategories)
	s.router.HandleFunc("GET /v1/exercises/{category}", s.handleListExercises)

	// Checking
	s.router.HandleFunc("POST /v1/compare", s.handleCompare)
	s.router.HandleFunc("POST /v1/run", s.limiter.limit(s.handleRun))
	s.router.HandleFunc("POST /v1/check", s.limiter.limit(s.handleCheck))
	s.router.HandleFunc("POST /v1/hint", s.limiter.limit(s.handleHint))

	// Sessions
	s.router.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("POST /v1/sessions/{id}/submit", s.limiter.limit(s.handleSubmit))
	s.router.HandleFunc("POST /v1/sessions/{id}/next", s.handleNext)
	s.router.HandleFunc("POST /v1/sessions/{id}/previous", s.handlePrevious)
	s.router.HandleFunc("POST /v1/sessions/{id}/reset", s.handleReset)
	s.router.HandleFunc("POST /v1/sessions/{id}/finish", s.handleFinish)

	// History
	s.router.HandleFunc("GET /v1/history", s.handleListHistory)
	s.router.HandleFunc("DELETE /v1/history", s.handleClearHistory)
	s.router.HandleFunc("GET /v1/history/{id}", s.handleGetHistory)
	s.router.HandleFunc("DELETE /v1/history/{id}", s.handleDeleteHistory)
	s.router.HandleFunc("POST /v1/history/{id}/review", s.handleReview)

	// Notes
	s.router.HandleFunc("GET /v1/notes", s.handleAllNotes)
	s.router.HandleFunc("GET /v1/notes/export", s.handleExportNotes)
	s.router.HandleFunc("POST /v1/notes/import", s.handleImportNotes)
	s.router.HandleFunc("POST /v1/notes/restore", s.handleRestoreNotes)
	s.router.HandleFunc("GET /v1/notes/{category}", s.handleGetNotes)
	s.router.HandleFunc("PUT /v1/notes/{category}", s.handleSaveNotes)

	// Progress
	s.router.HandleFunc("GET /v1/progress", s.handleLevels)
	s.router.HandleFunc("GET /v1/progress/{category}", s.handleProgress)
	s.router.HandleFunc("POST /v1/progress/{category}/level-up", s.handleLevelUp)

	// Token budget
	s.router.HandleFunc("GET /v1/usage", s.handleUsage)
	s.router.HandleFunc("POST /v1/usage/admin", s.handleActivateAdmin)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting practice daemon",
		"addr", s.server.Addr,
		"llm_providers", s.app.LLM.List(),
		"languages", s.app.Runners.SupportedLanguages(),
	)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the app's resources
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)
	if cerr := s.app.Close(); cerr != nil {
		slog.Warn("failed to close app", "error", cerr)
	}
	return err
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	jsonResponse(w, status, response)
}

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, practice.ErrNotFound),
		errors.Is(err, exercise.ErrNotFound),
		errors.Is(err, sqlite.ErrNoBackup):
		return http.StatusNotFound
	case errors.Is(err, practice.ErrSessionFinished),
		errors.Is(err, practice.ErrMaxLevel):
		return http.StatusConflict
	case errors.Is(err, budget.ErrBudgetExceeded),
		errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, runner.ErrUnsupportedLanguage),
		errors.Is(err, sqlite.ErrInvalidJSON):
		return http.StatusBadRequest
	case errors.Is(err, runner.ErrNoExecutor),
		errors.Is(err, exercise.ErrNoExercises),
		errors.Is(err, errNoTutor):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with the status errorStatus picks for it
func writeError(w http.ResponseWriter, message string, err error) {
	jsonError(w, errorStatus(err), message, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}
