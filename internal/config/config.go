// Package config loads settings from ~/.codepractice/config.yaml,
// secrets.yaml, a .env file and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Env holds environment overrides. Zero values leave the file setting alone.
type Env struct {
	Port        int    `env:"CODEPRACTICE_PORT"`
	Bind        string `env:"CODEPRACTICE_BIND"`
	LogLevel    string `env:"CODEPRACTICE_LOG_LEVEL"`
	Provider    string `env:"CODEPRACTICE_LLM_PROVIDER"`
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIURL   string `env:"OPENAI_BASE_URL"`
	GeminiKey   string `env:"GEMINI_API_KEY"`
	DailyTokens int    `env:"CODEPRACTICE_DAILY_TOKENS"`
	AdminSecret string `env:"CODEPRACTICE_ADMIN_SECRET"`
	BudgetStore string `env:"CODEPRACTICE_BUDGET_BACKEND"`
	RedisAddr   string `env:"CODEPRACTICE_REDIS_ADDR"`
	AMQPURL     string `env:"CODEPRACTICE_AMQP_URL"`
	Executor    string `env:"CODEPRACTICE_EXECUTOR"`
	BankFile    string `env:"CODEPRACTICE_BANK_FILE"`
}

var (
	logLevels      = []string{"debug", "info", "warn", "error"}
	executors      = []string{"local", "docker"}
	budgetBackends = []string{"sqlite", "redis", "memory"}
)

// Load reads the local config and applies .env and environment overrides
func Load() (*LocalConfig, error) {
	LoadDotEnv()

	cfg, err := LoadLocalConfig()
	if err != nil {
		return nil, err
	}

	overrides, err := env.ParseAs[Env]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Apply(overrides)

	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no .env file loaded")
			return
		}
		slog.Warn("error loading .env file", "error", err)
	}
}

// Apply overlays non-zero environment values on cfg
func (c *LocalConfig) Apply(e Env) {
	if e.Port != 0 {
		c.Daemon.Port = e.Port
	}
	if e.Bind != "" {
		c.Daemon.Bind = e.Bind
	}
	if e.LogLevel != "" {
		c.Daemon.LogLevel = e.LogLevel
	}
	if e.Provider != "" {
		c.LLM.DefaultProvider = e.Provider
	}
	c.setProvider("openai", e.OpenAIKey, e.OpenAIURL)
	c.setProvider("gemini", e.GeminiKey, "")
	if e.DailyTokens != 0 {
		c.Budget.DailyTokens = e.DailyTokens
	}
	if e.AdminSecret != "" {
		c.Budget.AdminSecret = e.AdminSecret
	}
	if e.BudgetStore != "" {
		c.Budget.Backend = e.BudgetStore
	}
	if e.RedisAddr != "" {
		c.Budget.RedisAddr = e.RedisAddr
	}
	if e.AMQPURL != "" {
		c.Events.AMQPURL = e.AMQPURL
	}
	if e.Executor != "" {
		c.Runner.Executor = e.Executor
	}
	if e.BankFile != "" {
		c.Exercises.BankFile = e.BankFile
	}
}

func (c *LocalConfig) setProvider(name, key, url string) {
	if key == "" && url == "" {
		return
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = make(map[string]*ProviderConfig)
	}
	p, ok := c.LLM.Providers[name]
	if !ok {
		p = &ProviderConfig{Enabled: true}
		c.LLM.Providers[name] = p
	}
	if key != "" {
		p.APIKey = key
	}
	if url != "" {
		p.URL = url
	}
}

// Validate checks that the configuration is usable
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port < 1 || c.Daemon.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Daemon.Port)
	}
	if !slices.Contains(logLevels, c.Daemon.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.Daemon.LogLevel)
	}
	if c.Daemon.ExecPerMinute < 0 {
		return fmt.Errorf("exec_per_minute must not be negative, got %d", c.Daemon.ExecPerMinute)
	}
	if !slices.Contains(executors, c.Runner.Executor) {
		return fmt.Errorf("unknown executor %q", c.Runner.Executor)
	}
	if !slices.Contains(budgetBackends, c.Budget.Backend) {
		return fmt.Errorf("unknown budget backend %q", c.Budget.Backend)
	}
	if c.Budget.Backend == "redis" && c.Budget.RedisAddr == "" {
		return errors.New("CODEPRACTICE_REDIS_ADDR is required for the redis budget backend")
	}
	if c.Budget.DailyTokens <= 0 {
		return fmt.Errorf("daily token budget must be positive, got %d", c.Budget.DailyTokens)
	}
	if p := c.LLM.DefaultProvider; p != "auto" && p != "" {
		if _, ok := c.LLM.Providers[p]; !ok {
			return fmt.Errorf("default provider %q is not configured", p)
		}
	}
	return nil
}

// EnabledProviders returns the providers that are enabled and have a key
func (c *LocalConfig) EnabledProviders() map[string]*ProviderConfig {
	return lo.PickBy(c.LLM.Providers, func(_ string, p *ProviderConfig) bool {
		return p.Enabled && p.APIKey != ""
	})
}
