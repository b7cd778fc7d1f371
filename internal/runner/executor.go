package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/codepractice/internal/compare"
	"github.com/felixgeelhaar/codepractice/internal/metrics"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNoExecutor          = errors.New("no executor registered")
)

// Output is the result of executing a piece of code. Err carries errors
// raised by the code itself; a Go error from Execute means the executor
// could not run the code at all.
type Output struct {
	Rows     compare.TabularResult `json:"rows,omitempty"`
	Stdout   string                `json:"stdout,omitempty"`
	Err      string                `json:"error,omitempty"`
	Duration time.Duration         `json:"duration"`
}

// Failed reports whether the code raised an error
func (o *Output) Failed() bool {
	return o.Err != ""
}

// Result converts the output into a comparable result of the given kind
func (o *Output) Result(kind compare.Kind) compare.Result {
	switch kind {
	case compare.KindTabular:
		return compare.Tabular(o.Rows)
	default:
		return compare.Textual(o.Stdout)
	}
}

// Executor runs code for one language
type Executor interface {
	// Language returns the language this executor handles
	Language() Language

	// Execute runs code and captures its result
	Execute(ctx context.Context, code string) (*Output, error)
}

// Registry manages language executors and applies per-language timeouts
type Registry struct {
	mu        sync.RWMutex
	executors map[Language]Executor
	configs   map[Language]LanguageConfig
}

// NewRegistry creates a new executor registry
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[Language]Executor),
		configs:   DefaultLanguageConfigs(),
	}
}

// Register adds an executor to the registry, replacing any existing one
func (r *Registry) Register(exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[exec.Language()] = exec
}

// Get returns the executor for a language
func (r *Registry) Get(lang Language) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, lang)
	}
	return exec, nil
}

// SupportedLanguages returns all languages with registered executors
func (r *Registry) SupportedLanguages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]Language, 0, len(r.executors))
	for lang := range r.executors {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Execute runs code with the executor registered for lang
func (r *Registry) Execute(ctx context.Context, lang Language, code string) (*Output, error) {
	exec, err := r.Get(lang)
	if err != nil {
		return nil, err
	}

	if cfg, ok := r.configs[lang]; ok && cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := exec.Execute(ctx, code)
	if err != nil {
		metrics.RecordExecution(lang.String(), "unavailable", time.Since(start))
		return nil, err
	}

	status := "ok"
	if out.Failed() {
		status = "error"
		if out.Err == timeoutMessage {
			status = "timeout"
		}
	}
	metrics.RecordExecution(lang.String(), status, out.Duration)

	return out, nil
}

const timeoutMessage = "Execution timeout (10s)"

// createTempCodeDir writes files into a fresh temp directory
func createTempCodeDir(files map[string]string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "codepractice-run-*")
	if err != nil {
		return "", err
	}

	for filename, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, filename), []byte(content), 0644); err != nil {
			removeTempDir(tmpDir)
			return "", err
		}
	}

	return tmpDir, nil
}

func removeTempDir(dir string) {
	os.RemoveAll(dir)
}
