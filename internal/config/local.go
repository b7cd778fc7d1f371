package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the local daemon and CLI
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	LLM       LLMConfig       `yaml:"llm"`
	Budget    BudgetConfig    `yaml:"budget"`
	Runner    RunnerConfig    `yaml:"runner"`
	Exercises ExercisesConfig `yaml:"exercises"`
	Events    EventsConfig    `yaml:"events"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`

	// ExecPerMinute caps code-running requests per client; 0 disables it
	ExecPerMinute int `yaml:"exec_per_minute"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"`
	APIKey  string `yaml:"-"` // Loaded from secrets.yaml or the environment
}

// BudgetConfig holds the daily token allowance settings
type BudgetConfig struct {
	DailyTokens int    `yaml:"daily_tokens"`
	Backend     string `yaml:"backend"` // sqlite, redis, memory
	RedisAddr   string `yaml:"redis_addr,omitempty"`
	AdminSecret string `yaml:"-"`
}

// RunnerConfig holds code execution settings
type RunnerConfig struct {
	Executor string             `yaml:"executor"` // local, docker
	Docker   DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	Image          string  `yaml:"image"`
	MemoryMB       int     `yaml:"memory_mb"`
	CPULimit       float64 `yaml:"cpu_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	NetworkOff     bool    `yaml:"network_off"`
}

// ExercisesConfig locates the pre-generated exercise bank and YAML packs.
// Relative paths are resolved against the config directory.
type ExercisesConfig struct {
	BankFile string `yaml:"bank_file"`
	PacksDir string `yaml:"packs_dir"`
}

// EventsConfig holds broker settings. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url,omitempty"`
}

type apiKey struct {
	APIKey string `yaml:"api_key"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	Providers   map[string]apiKey `yaml:"providers"`
	AdminSecret string            `yaml:"admin_secret,omitempty"`
}

// Dir returns the path to ~/.codepractice
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".codepractice"), nil
}

// EnsureDir creates ~/.codepractice and its subdirectories
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "exercises", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:          7433,
			Bind:          "127.0.0.1",
			LogLevel:      "info",
			ExecPerMinute: 30,
		},
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"openai": {
					Enabled: true,
					Model:   "gpt-4o-mini",
				},
				"gemini": {
					Enabled: true,
					Model:   "gemini-2.5-flash",
				},
			},
		},
		Budget: BudgetConfig{
			DailyTokens: 25000,
			Backend:     "sqlite",
		},
		Runner: RunnerConfig{
			Executor: "local",
			Docker: DockerRunnerConfig{
				Image:          "python:3.12-alpine",
				MemoryMB:       256,
				CPULimit:       0.5,
				TimeoutSeconds: 10,
				NetworkOff:     true,
			},
		},
		Exercises: ExercisesConfig{
			BankFile: "exercises/bank.json",
			PacksDir: "exercises/packs",
		},
	}
}

// LoadLocalConfig loads configuration from ~/.codepractice/config.yaml,
// falling back to defaults when the file does not exist
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return loadFrom(dir)
}

func loadFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	cfg.Exercises.BankFile = resolve(dir, cfg.Exercises.BankFile)
	cfg.Exercises.PacksDir = resolve(dir, cfg.Exercises.PacksDir)
	return cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// loadSecrets loads API keys and the admin secret from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	if secrets.AdminSecret != "" {
		cfg.Budget.AdminSecret = secrets.AdminSecret
	}

	return nil
}

// SaveLocalConfig writes configuration to ~/.codepractice/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets writes API keys and the admin secret to
// ~/.codepractice/secrets.yaml, readable by the owner only
func SaveSecrets(keys map[string]string, adminSecret string) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	secrets := SecretsConfig{
		Providers:   make(map[string]apiKey, len(keys)),
		AdminSecret: adminSecret,
	}
	for name, key := range keys {
		secrets.Providers[name] = apiKey{APIKey: key}
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
