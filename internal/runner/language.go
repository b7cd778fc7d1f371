package runner

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/codepractice/internal/compare"
)

// Language represents an exercise language
type Language string

const (
	LanguageSQL    Language = "sql"
	LanguagePython Language = "python"
)

// IsValid checks if the language is supported
func (l Language) IsValid() bool {
	switch l {
	case LanguageSQL, LanguagePython:
		return true
	default:
		return false
	}
}

// String returns the language as a string
func (l Language) String() string {
	return string(l)
}

// Kind returns the result kind produced by code in this language
func (l Language) Kind() compare.Kind {
	kind, _ := compare.KindForLanguage(string(l))
	return kind
}

// ParseLanguage converts a string to a Language
func ParseLanguage(s string) (Language, error) {
	lang := Language(s)
	if !lang.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
	}
	return lang, nil
}

// LanguageConfig contains language-specific execution settings
type LanguageConfig struct {
	DockerImage string
	Timeout     time.Duration
}

// DefaultLanguageConfigs returns default configurations for all supported languages
func DefaultLanguageConfigs() map[Language]LanguageConfig {
	return map[Language]LanguageConfig{
		LanguageSQL: {
			Timeout: 10 * time.Second,
		},
		LanguagePython: {
			DockerImage: "python:3.12-alpine",
			Timeout:     10 * time.Second,
		},
	}
}
