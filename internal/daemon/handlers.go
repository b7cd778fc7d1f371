package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/codepractice/internal/checker"
	"github.com/felixgeelhaar/codepractice/internal/compare"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/practice"
	"github.com/felixgeelhaar/codepractice/internal/runner"
)

// maxNotesImport bounds the notes import body
const maxNotesImport = 1 << 20

// Health & status

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":           "running",
		"version":          Version,
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"llm_providers":    s.app.LLM.List(),
		"default_provider": s.app.LLM.DefaultName(),
		"languages":        s.app.Runners.SupportedLanguages(),
		"runner":           s.cfg.Runner.Executor,
		"bank":             s.app.Bank.Stats(),
		"active_sessions":  s.app.Practice.Active(),
	})
}

// Exercises

type categoryInfo struct {
	Name      string `json:"name"`
	Exercises int    `json:"exercises"`
	Context   string `json:"context"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := lo.Map(exercise.Categories(), func(name string, _ int) categoryInfo {
		return categoryInfo{
			Name:      name,
			Exercises: len(s.app.Bank.ForCategory(name)),
			Context:   exercise.CategoryContext(name),
		}
	})
	jsonResponse(w, http.StatusOK, map[string]any{
		"categories": categories,
		"stats":      s.app.Bank.Stats(),
	})
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	category := exercise.Canonical(r.PathValue("category"))
	exercises := s.app.Bank.ForCategory(category)
	if exercises == nil {
		exercises = []exercise.Exercise{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"category":  category,
		"exercises": exercises,
	})
}

// Checking

// CompareRequest carries two already-executed results. Actual and Expected
// are JSON arrays of row objects for sql and JSON strings for python.
type CompareRequest struct {
	Language string          `json:"language"`
	Actual   json.RawMessage `json:"actual"`
	Expected json.RawMessage `json:"expected"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	kind, err := compare.KindForLanguage(req.Language)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "unsupported language", err)
		return
	}

	jsonResponse(w, http.StatusOK, compare.Compare(decodeResult(kind, req.Actual), decodeResult(kind, req.Expected)))
}

func decodeResult(kind compare.Kind, data json.RawMessage) compare.Result {
	if kind == compare.KindTabular {
		return compare.Result{Kind: kind, Rows: compare.DecodeTabular(data)}
	}
	return compare.Result{Kind: kind, Text: compare.DecodeText(data)}
}

// RunRequest executes code without judging it
type RunRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lang, err := runner.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, "unsupported language", err)
		return
	}

	out, err := s.app.Runners.Execute(r.Context(), lang, req.Code)
	if err != nil {
		writeError(w, "execution failed", err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// ExerciseRef names a bank exercise or carries one inline
type ExerciseRef struct {
	Category   string             `json:"category"`
	ExerciseID string             `json:"exercise_id,omitempty"`
	Exercise   *exercise.Exercise `json:"exercise,omitempty"`
}

func (s *Server) resolve(ref ExerciseRef) (exercise.Exercise, error) {
	if ref.Exercise != nil {
		return *ref.Exercise, nil
	}
	if ref.ExerciseID == "" {
		return exercise.Exercise{}, fmt.Errorf("%w: exercise_id or exercise is required", exercise.ErrNotFound)
	}
	return s.app.Bank.Get(ref.Category, ref.ExerciseID)
}

// CheckRequest checks an answer against a single exercise
type CheckRequest struct {
	ExerciseRef
	Answer string `json:"answer"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ex, err := s.resolve(req.ExerciseRef)
	if err != nil {
		writeError(w, "exercise not found", err)
		return
	}

	res, err := s.app.Checker.Check(r.Context(), checker.Request{
		Exercise: ex,
		Answer:   req.Answer,
		Category: exercise.Canonical(req.Category),
	})
	if err != nil {
		writeError(w, "check failed", err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// HintRequest asks for a nudge on the learner's current answer
type HintRequest struct {
	ExerciseRef
	Answer string `json:"answer"`
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req HintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.app.Tutor == nil {
		writeError(w, "hints unavailable", errNoTutor)
		return
	}

	ex, err := s.resolve(req.ExerciseRef)
	if err != nil {
		writeError(w, "exercise not found", err)
		return
	}

	hint, err := s.app.Tutor.Hint(r.Context(), ex.Question, req.Answer, ex.Solution)
	if err != nil {
		writeError(w, "failed to get hint", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"hint": hint})
}

// Sessions

// SessionResponse is a session with its derived state
type SessionResponse struct {
	*practice.Session
	CurrentExercise *exercise.Exercise `json:"current_exercise,omitempty"`
	Score           practice.Score     `json:"score"`
	Percentage      int                `json:"percentage"`
	CanLevelUp      bool               `json:"can_level_up"`
}

func newSessionResponse(sess *practice.Session) SessionResponse {
	resp := SessionResponse{
		Session:    sess,
		Score:      sess.Score(),
		Percentage: sess.Percentage(),
		CanLevelUp: sess.CanLevelUp(),
	}
	if ex, ok := sess.Current(); ok {
		resp.CurrentExercise = &ex
	}
	return resp
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Category == "" {
		jsonError(w, http.StatusBadRequest, "category is required", nil)
		return
	}

	sess, err := s.app.Practice.Start(r.Context(), req.Category)
	if err != nil {
		writeError(w, "failed to start session", err)
		return
	}
	jsonResponse(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Practice.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, "session not found", err)
		return
	}
	jsonResponse(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	res, sess, err := s.app.Practice.Submit(r.Context(), r.PathValue("id"), req.Answer)
	if err != nil {
		writeError(w, "failed to submit answer", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"result":  res,
		"session": newSessionResponse(sess),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, s.app.Practice.Next)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, s.app.Practice.Previous)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, s.app.Practice.Reset)
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, move func(string) (*practice.Session, error)) {
	sess, err := move(r.PathValue("id"))
	if err != nil {
		writeError(w, "failed to update session", err)
		return
	}
	jsonResponse(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	summary, err := s.app.Practice.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "failed to finish session", err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// History

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	var (
		records []*practice.Record
		err     error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		records, err = s.app.History.ListByCategory(r.Context(), exercise.Canonical(category))
	} else {
		records, err = s.app.History.List(r.Context())
	}
	if err != nil {
		writeError(w, "failed to list history", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"history": records,
		"count":   len(records),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.History.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "history record not found", err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.app.History.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, "failed to delete history record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.app.History.Clear(r.Context()); err != nil {
		writeError(w, "failed to clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Practice.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "failed to open review", err)
		return
	}
	jsonResponse(w, http.StatusCreated, newSessionResponse(sess))
}

// Notes

func (s *Server) handleAllNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.app.Notes.All(r.Context())
	if err != nil {
		writeError(w, "failed to load notes", err)
		return
	}
	jsonResponse(w, http.StatusOK, notes)
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	category := exercise.Canonical(r.PathValue("category"))
	content, err := s.app.Notes.Get(r.Context(), category)
	if err != nil {
		writeError(w, "failed to load notes", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"category": category,
		"content":  content,
	})
}

func (s *Server) handleSaveNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	category := exercise.Canonical(r.PathValue("category"))
	if err := s.app.Notes.Save(r.Context(), category, req.Content); err != nil {
		writeError(w, "failed to save notes", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"category": category,
		"content":  req.Content,
	})
}

func (s *Server) handleRestoreNotes(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Notes.RestoreBackup(r.Context()); err != nil {
		writeError(w, "failed to restore notes", err)
		return
	}
	s.handleAllNotes(w, r)
}

func (s *Server) handleExportNotes(w http.ResponseWriter, r *http.Request) {
	data, err := s.app.Notes.Export(r.Context())
	if err != nil {
		writeError(w, "failed to export notes", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="notes.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleImportNotes(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxNotesImport))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}
	if err := s.app.Notes.Import(r.Context(), data); err != nil {
		writeError(w, "failed to import notes", err)
		return
	}
	s.handleAllNotes(w, r)
}

// Progress

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.app.Progress.Levels(r.Context())
	if err != nil {
		writeError(w, "failed to load levels", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"levels": levels})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	category := exercise.Canonical(r.PathValue("category"))

	level, err := s.app.Progress.Level(r.Context(), category)
	if err != nil {
		writeError(w, "failed to load level", err)
		return
	}
	results, err := s.app.Progress.Progress(r.Context(), category)
	if err != nil {
		writeError(w, "failed to load progress", err)
		return
	}

	correct := lo.CountBy(lo.Values(results), func(res practice.Result) bool { return res.IsCorrect })
	jsonResponse(w, http.StatusOK, map[string]any{
		"category":    category,
		"level":       level,
		"description": exercise.LevelDescription(level),
		"attempted":   len(results),
		"correct":     correct,
		"results":     results,
	})
}

func (s *Server) handleLevelUp(w http.ResponseWriter, r *http.Request) {
	category := exercise.Canonical(r.PathValue("category"))
	level, err := s.app.Practice.LevelUp(r.Context(), category)
	if err != nil {
		writeError(w, "failed to level up", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"category":    category,
		"level":       level,
		"description": exercise.LevelDescription(level),
	})
}

// Token budget

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.app.Budget.Usage(r.Context())
	if err != nil {
		writeError(w, "failed to load usage", err)
		return
	}
	hours, err := s.app.Budget.HoursUntilReset(r.Context())
	if err != nil {
		writeError(w, "failed to load usage", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"usage":             usage,
		"hours_until_reset": hours,
		"admin":             usage.Unlimited,
	})
}

func (s *Server) handleActivateAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ok, err := s.app.Budget.Activate(r.Context(), req.Secret)
	if err != nil {
		writeError(w, "failed to activate admin mode", err)
		return
	}
	if !ok {
		jsonError(w, http.StatusForbidden, "invalid admin secret", nil)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"admin": true})
}
