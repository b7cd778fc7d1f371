// Package app wires the practice services from configuration. The daemon
// and the stdio MCP server both run on an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/rueidis"

	"github.com/felixgeelhaar/codepractice/internal/budget"
	"github.com/felixgeelhaar/codepractice/internal/checker"
	"github.com/felixgeelhaar/codepractice/internal/config"
	"github.com/felixgeelhaar/codepractice/internal/events"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/llm"
	"github.com/felixgeelhaar/codepractice/internal/practice"
	"github.com/felixgeelhaar/codepractice/internal/runner"
	"github.com/felixgeelhaar/codepractice/internal/storage/sqlite"
	"github.com/felixgeelhaar/codepractice/internal/tutor"
)

// App holds all application dependencies
type App struct {
	Config    *config.LocalConfig
	DB        *sqlite.DB
	LLM       *llm.Registry
	Runners   *runner.Registry
	Bank      *exercise.Bank
	Budget    *budget.Budget
	Tutor     *tutor.Tutor // nil when no LLM provider is configured
	Checker   *checker.Checker
	Practice  *practice.Service
	History   *sqlite.HistoryStore
	Progress  *sqlite.ProgressStore
	Notes     *sqlite.NotesStore
	Publisher events.Publisher

	closers []func() error
}

// AppConfig holds configuration for application initialization
type AppConfig struct {
	Config *config.LocalConfig

	// DataDir holds the SQLite database. Defaults to ~/.codepractice/data.
	DataDir string
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	a := &App{Config: cfg.Config}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dataDir := cfg.DataDir
	if dataDir == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(dir, "data")
	}

	db, err := sqlite.Open(filepath.Join(dataDir, "practice.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a.History = sqlite.NewHistoryStore(db)
	a.Progress = sqlite.NewProgressStore(db)
	a.Notes = sqlite.NewNotesStore(db)

	store, err := a.budgetStore()
	if err != nil {
		return nil, err
	}
	a.Budget = budget.New(store, budget.Config{
		Limit:       cfg.Config.Budget.DailyTokens,
		AdminSecret: cfg.Config.Budget.AdminSecret,
	})

	a.LLM = llm.NewRegistry()
	a.setupLLMProviders()
	if provider, err := a.LLM.Default(); err == nil {
		a.Tutor = tutor.New(provider, a.Budget, slog.Default())
	} else {
		slog.Info("no LLM provider configured, hints and feedback disabled")
	}

	a.Runners = a.setupRunners()

	a.Bank = exercise.NewBank()
	if err := loadBank(a.Bank, cfg.Config.Exercises); err != nil {
		return nil, err
	}

	a.Publisher = a.setupPublisher()

	opts := []checker.Option{checker.WithPublisher(a.Publisher)}
	var generator practice.Generator
	if a.Tutor != nil {
		opts = append(opts, checker.WithAdvisor(a.Tutor))
		generator = a.Tutor
	}
	a.Checker = checker.New(a.Runners, opts...)

	a.Practice = practice.NewService(practice.ServiceConfig{
		Bank:      a.Bank,
		Generator: generator,
		Checker:   a.Checker,
		History:   a.History,
		Progress:  a.Progress,
		Publisher: a.Publisher,
	})

	ok = true
	return a, nil
}

func (a *App) budgetStore() (budget.Store, error) {
	switch a.Config.Budget.Backend {
	case "memory":
		return budget.NewMemoryStore(), nil
	case "redis":
		client, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{a.Config.Budget.RedisAddr},
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
		return budget.NewRedisStore(client), nil
	default:
		return sqlite.NewUsageStore(a.DB), nil
	}
}

// setupLLMProviders registers the enabled providers that have an API key,
// each wrapped with retries, a circuit breaker and rate limiting
func (a *App) setupLLMProviders() {
	cfg := a.Config
	for name, p := range cfg.EnabledProviders() {
		var provider llm.Provider
		switch name {
		case "openai":
			provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey:  p.APIKey,
				BaseURL: p.URL,
				Model:   p.Model,
			})
		case "gemini":
			provider = llm.NewGeminiProvider(llm.GeminiConfig{
				APIKey:  p.APIKey,
				BaseURL: p.URL,
				Model:   p.Model,
			})
		default:
			slog.Warn("unknown LLM provider in config", "name", name)
			continue
		}

		resilientCfg := llm.DefaultResilientConfig()
		resilientCfg.Logger = slog.Default()
		resilient := llm.NewResilientProvider(provider, resilientCfg)
		a.LLM.Register(name, resilient)
		a.closers = append(a.closers, resilient.Close)
		slog.Info("registered LLM provider", "name", name, "model", p.Model)
	}

	if cfg.LLM.DefaultProvider == "" {
		return
	}
	if err := a.LLM.SetDefault(cfg.LLM.DefaultProvider); err != nil {
		slog.Warn("default LLM provider unavailable", "provider", cfg.LLM.DefaultProvider, "error", err)
	}
}

func (a *App) setupRunners() *runner.Registry {
	registry := runner.NewRegistry()
	registry.Register(runner.NewSQLExecutor())

	if a.Config.Runner.Executor == "docker" {
		d := a.Config.Runner.Docker
		exec, err := runner.NewDockerPythonExecutor(runner.DockerConfig{
			Image:      d.Image,
			MemoryMB:   int64(d.MemoryMB),
			CPULimit:   d.CPULimit,
			NetworkOff: d.NetworkOff,
		})
		if err == nil {
			registry.Register(exec)
			a.closers = append(a.closers, exec.Close)
			return registry
		}
		slog.Warn("Docker executor not available, using local python", "error", err)
	}

	local := runner.NewPythonExecutor()
	if local.Available() {
		registry.Register(local)
	} else {
		slog.Warn("python3 not found, python exercises cannot be checked")
	}
	return registry
}

func (a *App) setupPublisher() events.Publisher {
	url := a.Config.Events.AMQPURL
	if url == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(url)
	if err != nil {
		slog.Warn("event broker unavailable, events disabled", "error", err)
		return events.Nop{}
	}
	a.closers = append(a.closers, pub.Close)
	return pub
}

// loadBank loads the pre-generated bank file and any YAML packs. Missing
// files leave the bank empty; sessions then fall back to generation.
func loadBank(bank *exercise.Bank, cfg config.ExercisesConfig) error {
	start := time.Now()

	if cfg.BankFile != "" {
		if err := bank.LoadJSON(cfg.BankFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load exercise bank: %w", err)
			}
			slog.Debug("no exercise bank file", "path", cfg.BankFile)
		}
	}

	if cfg.PacksDir != "" {
		if _, err := os.Stat(cfg.PacksDir); err == nil {
			if err := bank.LoadPacks(cfg.PacksDir); err != nil {
				return fmt.Errorf("load exercise packs: %w", err)
			}
		}
	}

	stats := bank.Stats()
	slog.Info("exercise bank loaded",
		"categories", stats.CategoryCount,
		"exercises", stats.ExerciseCount,
		"duration", time.Since(start))
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
