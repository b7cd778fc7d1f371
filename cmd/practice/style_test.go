package main

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/codepractice/internal/compare"
)

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "[░░░░░░░░░░]"},
		{0.5, "[█████░░░░░]"},
		{1, "[██████████]"},
		{1.7, "[██████████]"},
		{-0.2, "[░░░░░░░░░░]"},
	}
	for _, tt := range tests {
		if got := renderProgressBar(tt.value, 10); got != tt.want {
			t.Errorf("renderProgressBar(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestVerdict(t *testing.T) {
	if got := verdict(true, "ok"); !strings.Contains(got, "✓ ok") {
		t.Errorf("verdict(true) = %q", got)
	}
	if got := verdict(false, "nope"); !strings.Contains(got, "✗ nope") {
		t.Errorf("verdict(false) = %q", got)
	}
}

func TestCompareFiles(t *testing.T) {
	tests := []struct {
		name     string
		kind     compare.Kind
		actual   string
		expected string
		want     bool
	}{
		{"rows", compare.KindTabular, `[{"n": 3}]`, "[{\"n\": 3}]\n", true},
		{"rows differ", compare.KindTabular, `[{"n": 2}]`, `[{"n": 3}]`, false},
		{"not json", compare.KindTabular, `n=3`, `[{"n": 3}]`, false},
		{"text trailing newline", compare.KindTextual, "42\n", "42", true},
		{"text differs", compare.KindTextual, "41", "42", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compareFiles(tt.kind, []byte(tt.actual), []byte(tt.expected))
			if out.IsCorrect != tt.want {
				t.Errorf("IsCorrect = %v, want %v (%s)", out.IsCorrect, tt.want, out.Message)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("  Count rows\nin the table"); got != "Count rows" {
		t.Errorf("firstLine() = %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := firstLine(long); len(got) != 70 || !strings.HasSuffix(got, "...") {
		t.Errorf("firstLine(long) = %q", got)
	}
}
