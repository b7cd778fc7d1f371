package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/codepractice/internal/config"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
)

const testBank = `{
  "Data Analysis": [
    {"id": "da-1", "question": "List US customer names", "language": "sql", "difficulty": "Beginner",
     "solution": "SELECT name FROM customers WHERE country = 'USA' ORDER BY id"},
    {"id": "da-2", "question": "Count customers", "language": "sql", "difficulty": "Beginner",
     "solution": "SELECT COUNT(*) AS n FROM customers"},
    {"id": "da-3", "question": "List countries", "language": "sql", "difficulty": "Intermediate",
     "solution": "SELECT DISTINCT country FROM customers ORDER BY country"}
  ]
}`

// setupTestServer creates a server on a temp data directory with an
// in-memory budget and a three exercise SQL bank
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	tmpDir := t.TempDir()
	bankFile := filepath.Join(tmpDir, "bank.json")
	if err := os.WriteFile(bankFile, []byte(testBank), 0644); err != nil {
		t.Fatalf("write bank: %v", err)
	}

	cfg := config.DefaultLocalConfig()
	cfg.Daemon.Port = 0
	cfg.LLM.Providers = nil
	cfg.Budget.Backend = "memory"
	cfg.Budget.AdminSecret = "open-sesame"
	cfg.Exercises = config.ExercisesConfig{BankFile: bankFile}

	server, err := NewServer(context.Background(), ServerConfig{
		Config:  cfg,
		DataDir: filepath.Join(tmpDir, "data"),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { server.app.Close() })

	return server
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/v1/health", nil)
	expectStatus(t, rec, http.StatusOK)

	if got := decodeJSON(t, rec)["status"]; got != "healthy" {
		t.Errorf("status = %v, want healthy", got)
	}
	if rec.Header().Get(CorrelationIDHeader) == "" {
		t.Error("missing correlation ID header")
	}
}

func TestHandleStatus(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/v1/status", nil)
	expectStatus(t, rec, http.StatusOK)

	body := decodeJSON(t, rec)
	if body["status"] != "running" {
		t.Errorf("status = %v, want running", body["status"])
	}
	if body["version"] != Version {
		t.Errorf("version = %v, want %s", body["version"], Version)
	}
	langs, _ := body["languages"].([]any)
	if len(langs) == 0 || langs[0] == nil {
		t.Errorf("languages = %v, want at least sql", body["languages"])
	}
}

func TestHandleMetrics(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go collector")
	}
}

func TestHandleExercises(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/v1/exercises", nil)
	expectStatus(t, rec, http.StatusOK)
	categories := decodeJSON(t, rec)["categories"].([]any)
	if len(categories) != len(exercise.Categories()) {
		t.Fatalf("got %d categories, want %d", len(categories), len(exercise.Categories()))
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/exercises/Data%20Analysis", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := len(decodeJSON(t, rec)["exercises"].([]any)); got != 3 {
		t.Errorf("got %d exercises, want 3", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/exercises/Data%20Science", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON(t, rec)["exercises"].([]any); len(got) != 0 {
		t.Errorf("got %d exercises, want none", len(got))
	}
}

func TestHandleCompare(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantCorrect bool
		wantMessage string
	}{
		{
			name:        "tabular match ignores key order",
			body:        `{"language":"sql","actual":[{"b":2,"a":1}],"expected":[{"a":1,"b":2}]}`,
			wantStatus:  http.StatusOK,
			wantCorrect: true,
			wantMessage: "Correct!",
		},
		{
			name:        "tabular invalid format",
			body:        `{"language":"sql","actual":null,"expected":[]}`,
			wantStatus:  http.StatusOK,
			wantMessage: "Invalid result format",
		},
		{
			name:        "textual numeric tolerance",
			body:        `{"language":"python","actual":"3.14159","expected":"3.1416"}`,
			wantStatus:  http.StatusOK,
			wantCorrect: true,
			wantMessage: "Correct!",
		},
		{
			name:       "unknown language",
			body:       `{"language":"ruby","actual":"1","expected":"1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/v1/compare", tt.body)
			expectStatus(t, rec, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := decodeJSON(t, rec)
			if body["is_correct"] != tt.wantCorrect {
				t.Errorf("is_correct = %v, want %v", body["is_correct"], tt.wantCorrect)
			}
			if !strings.HasPrefix(body["message"].(string), tt.wantMessage) {
				t.Errorf("message = %q, want prefix %q", body["message"], tt.wantMessage)
			}
		})
	}
}

func TestHandleRun(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/run", RunRequest{
		Language: "sql",
		Code:     "SELECT COUNT(*) AS n FROM customers",
	})
	expectStatus(t, rec, http.StatusOK)
	rows, _ := decodeJSON(t, rec)["rows"].([]any)
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1", len(rows))
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/run", RunRequest{Language: "cobol", Code: "x"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestExecRateLimit(t *testing.T) {
	s := setupTestServer(t)
	if s.limiter == nil {
		t.Fatal("expected a limiter with the default config")
	}
	s.limiter.burst = 1
	fakeClock(s.limiter)

	run := RunRequest{Language: "sql", Code: "SELECT 1 AS x"}
	expectStatus(t, doRequest(t, s, http.MethodPost, "/v1/run", run), http.StatusOK)

	rec := doRequest(t, s, http.MethodPost, "/v1/run", run)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// compare runs no code and is not limited
	rec = doRequest(t, s, http.MethodPost, "/v1/compare", map[string]any{
		"language": "python", "actual": "1", "expected": "1",
	})
	expectStatus(t, rec, http.StatusOK)
}

func TestHandleCheck(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name        string
		req         CheckRequest
		wantStatus  int
		wantCorrect bool
		wantMessage string
	}{
		{
			name: "correct bank exercise",
			req: CheckRequest{
				ExerciseRef: ExerciseRef{Category: "Data Analysis", ExerciseID: "da-2"},
				Answer:      "SELECT COUNT(id) AS n FROM customers",
			},
			wantStatus:  http.StatusOK,
			wantCorrect: true,
			wantMessage: "Correct!",
		},
		{
			name: "wrong rows",
			req: CheckRequest{
				ExerciseRef: ExerciseRef{Category: "Data Analysis", ExerciseID: "da-2"},
				Answer:      "SELECT 0 AS n",
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Results do not match",
		},
		{
			name: "sql error",
			req: CheckRequest{
				ExerciseRef: ExerciseRef{Category: "Data Analysis", ExerciseID: "da-2"},
				Answer:      "SELEC nothing",
			},
			wantStatus:  http.StatusOK,
			wantMessage: "SQL Error:",
		},
		{
			name: "empty answer",
			req: CheckRequest{
				ExerciseRef: ExerciseRef{Category: "Data Analysis", ExerciseID: "da-2"},
				Answer:      "   ",
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Please write some code before checking!",
		},
		{
			name: "inline exercise",
			req: CheckRequest{
				ExerciseRef: ExerciseRef{Exercise: &exercise.Exercise{
					ID: "inline", Language: "sql", Solution: "SELECT 1 AS one",
				}},
				Answer: "SELECT 1 AS one",
			},
			wantStatus:  http.StatusOK,
			wantCorrect: true,
			wantMessage: "Correct!",
		},
		{
			name: "unknown exercise",
			req: CheckRequest{
				ExerciseRef: ExerciseRef{Category: "Data Analysis", ExerciseID: "missing"},
				Answer:      "SELECT 1",
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/v1/check", tt.req)
			expectStatus(t, rec, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := decodeJSON(t, rec)
			if body["is_correct"] != tt.wantCorrect {
				t.Errorf("is_correct = %v, want %v", body["is_correct"], tt.wantCorrect)
			}
			if !strings.HasPrefix(body["message"].(string), tt.wantMessage) {
				t.Errorf("message = %q, want prefix %q", body["message"], tt.wantMessage)
			}
		})
	}
}

func TestHandleHint_NoProvider(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/hint", HintRequest{
		ExerciseRef: ExerciseRef{Category: "Data Analysis", ExerciseID: "da-1"},
	})
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestSessionLifecycle(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/sessions", map[string]string{"category": "Data Analysis"})
	expectStatus(t, rec, http.StatusCreated)
	sess := decodeJSON(t, rec)
	id := sess["id"].(string)
	if got := len(sess["exercises"].([]any)); got != 3 {
		t.Fatalf("got %d exercises, want 3", got)
	}

	// Answer the first exercise with its own solution
	current := sess["current_exercise"].(map[string]any)
	rec = doRequest(t, s, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]string{
		"answer": current["solution"].(string),
	})
	expectStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	if body["result"].(map[string]any)["is_correct"] != true {
		t.Fatalf("first answer should be correct: %v", body["result"])
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/sessions/"+id+"/next", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON(t, rec)["current"]; got != float64(1) {
		t.Fatalf("current = %v, want 1", got)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]string{
		"answer": "SELECT 'nope' AS wrong",
	})
	expectStatus(t, rec, http.StatusOK)
	body = decodeJSON(t, rec)
	if body["result"].(map[string]any)["is_correct"] != false {
		t.Fatalf("second answer should be incorrect: %v", body["result"])
	}
	if got := body["session"].(map[string]any)["percentage"]; got != float64(50) {
		t.Errorf("percentage = %v, want 50", got)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/sessions/"+id+"/finish", nil)
	expectStatus(t, rec, http.StatusOK)
	summary := decodeJSON(t, rec)
	if summary["percentage"] != float64(50) {
		t.Errorf("summary percentage = %v, want 50", summary["percentage"])
	}
	if summary["can_level_up"] != false {
		t.Error("two answers should not unlock the next level")
	}
	historyID := summary["record"].(map[string]any)["id"].(string)

	// Finished sessions are gone
	rec = doRequest(t, s, http.MethodGet, "/v1/sessions/"+id, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, s, http.MethodGet, "/v1/history?category=Data%20Analysis", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON(t, rec)["count"]; got != float64(1) {
		t.Fatalf("history count = %v, want 1", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/history/"+historyID, nil)
	expectStatus(t, rec, http.StatusOK)

	// Reviews are read-only
	rec = doRequest(t, s, http.MethodPost, "/v1/history/"+historyID+"/review", nil)
	expectStatus(t, rec, http.StatusCreated)
	review := decodeJSON(t, rec)
	if review["review"] != true {
		t.Errorf("review = %v, want true", review["review"])
	}
	rec = doRequest(t, s, http.MethodPost, "/v1/sessions/"+review["id"].(string)+"/submit", map[string]string{
		"answer": "SELECT 1",
	})
	expectStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, s, http.MethodGet, "/v1/progress/Data%20Analysis", nil)
	expectStatus(t, rec, http.StatusOK)
	progress := decodeJSON(t, rec)
	if progress["attempted"] != float64(2) || progress["correct"] != float64(1) {
		t.Errorf("progress = %v attempted / %v correct, want 2 / 1", progress["attempted"], progress["correct"])
	}

	rec = doRequest(t, s, http.MethodDelete, "/v1/history/"+historyID, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = doRequest(t, s, http.MethodDelete, "/v1/history/"+historyID, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestSessionErrors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing category", http.MethodPost, "/v1/sessions", map[string]string{}, http.StatusBadRequest},
		{"empty bank without generator", http.MethodPost, "/v1/sessions", map[string]string{"category": "Data Science"}, http.StatusServiceUnavailable},
		{"unknown session", http.MethodGet, "/v1/sessions/nope", nil, http.StatusNotFound},
		{"submit unknown session", http.MethodPost, "/v1/sessions/nope/submit", map[string]string{"answer": "x"}, http.StatusNotFound},
		{"finish unknown session", http.MethodPost, "/v1/sessions/nope/finish", nil, http.StatusNotFound},
		{"review unknown record", http.MethodPost, "/v1/history/nope/review", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, tt.method, tt.path, tt.body)
			expectStatus(t, rec, tt.want)

			body := decodeJSON(t, rec)
			if body["status"] != float64(tt.want) {
				t.Errorf("error body status = %v, want %d", body["status"], tt.want)
			}
		})
	}
}

func TestNotes(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/notes/restore", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, s, http.MethodPut, "/v1/notes/Data%20Science", map[string]string{"content": "first"})
	expectStatus(t, rec, http.StatusOK)
	rec = doRequest(t, s, http.MethodPut, "/v1/notes/Data%20Science", map[string]string{"content": "second"})
	expectStatus(t, rec, http.StatusOK)

	rec = doRequest(t, s, http.MethodGet, "/v1/notes/Data%20Science", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON(t, rec)["content"]; got != "second" {
		t.Errorf("content = %v, want second", got)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/notes/restore", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON(t, rec)["Data Science"]; got != "first" {
		t.Errorf("restored content = %v, want first", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/notes/export", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "notes.json") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/notes/import", `{"Data Engineering": "imported"}`)
	expectStatus(t, rec, http.StatusOK)
	notes := decodeJSON(t, rec)
	if len(notes) != 1 || notes["Data Engineering"] != "imported" {
		t.Errorf("notes after import = %v", notes)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/notes/import", `[1, 2]`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestLevelUp(t *testing.T) {
	s := setupTestServer(t)

	for want := 2; want <= exercise.MaxLevel; want++ {
		rec := doRequest(t, s, http.MethodPost, "/v1/progress/Data%20Analysis/level-up", nil)
		expectStatus(t, rec, http.StatusOK)
		if got := decodeJSON(t, rec)["level"]; got != float64(want) {
			t.Fatalf("level = %v, want %d", got, want)
		}
	}

	rec := doRequest(t, s, http.MethodPost, "/v1/progress/Data%20Analysis/level-up", nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, s, http.MethodGet, "/v1/progress", nil)
	expectStatus(t, rec, http.StatusOK)
	levels := decodeJSON(t, rec)["levels"].(map[string]any)
	if levels["Data Analysis"] != float64(exercise.MaxLevel) {
		t.Errorf("levels = %v", levels)
	}
}

func TestUsage(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/v1/usage", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	usage := body["usage"].(map[string]any)
	if usage["budget"] != float64(25000) || usage["used"] != float64(0) {
		t.Errorf("usage = %v", usage)
	}
	if body["admin"] != false {
		t.Error("admin should start disabled")
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/usage/admin", map[string]string{"secret": "wrong"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = doRequest(t, s, http.MethodPost, "/v1/usage/admin", map[string]string{"secret": "open-sesame"})
	expectStatus(t, rec, http.StatusOK)

	rec = doRequest(t, s, http.MethodGet, "/v1/usage", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON(t, rec)["admin"]; got != true {
		t.Errorf("admin = %v, want true", got)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no tutor", errNoTutor, http.StatusServiceUnavailable},
		{"wrapped no exercises", wrap(exercise.ErrNoExercises), http.StatusServiceUnavailable},
		{"exercise not found", wrap(exercise.ErrNotFound), http.StatusNotFound},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("%s: errorStatus() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func wrap(err error) error {
	return &wrappedError{err}
}

type wrappedError struct{ err error }

func (e *wrappedError) Error() string { return "wrapped: " + e.err.Error() }
func (e *wrappedError) Unwrap() error { return e.err }
