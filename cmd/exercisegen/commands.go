package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/felixgeelhaar/codepractice/internal/config"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/llm"
	"github.com/felixgeelhaar/codepractice/internal/tutor"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "exercisegen",
		Usage: "Generate the pre-built exercise bank with an LLM provider.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "provider",
				Usage: "LLM provider to generate with (openai or gemini).",
				Value: "gemini",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model override for the provider.",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exercises to request per category.",
				Value: 25,
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause between categories to stay under provider rate limits.",
				Value: 2 * time.Second,
			},
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Category to generate; repeat for several. Defaults to all.",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Bank file to write. Defaults to the configured bank_file.",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			provider, err := newProvider(cfg, c.String("provider"), c.String("model"))
			if err != nil {
				return err
			}

			categories := c.StringSlice("category")
			if len(categories) == 0 {
				categories = exercise.Categories()
			}

			output := c.String("output")
			if output == "" {
				output = cfg.Exercises.BankFile
			}

			t := tutor.New(provider, nil, slog.Default())
			bank := generateAll(ctx, t, categories, c.Int("count"), c.Duration("delay"))

			stats := bank.Stats()
			if stats.ExerciseCount == 0 {
				return fmt.Errorf("no exercises generated")
			}
			if err := bank.SaveJSON(output); err != nil {
				return err
			}

			fmt.Printf("\n✨ Done! Generated %d exercises across %d categories\n", stats.ExerciseCount, stats.CategoryCount)
			fmt.Printf("📁 Saved to: %s\n", filepath.Clean(output))
			return nil
		},
	}
}

// newProvider builds a single resilient provider from the loaded config
func newProvider(cfg *config.LocalConfig, name, model string) (llm.Provider, error) {
	p, ok := cfg.LLM.Providers[name]
	if !ok || p.APIKey == "" {
		return nil, fmt.Errorf("provider %q has no API key; set it in secrets.yaml or the environment", name)
	}
	if model == "" {
		model = p.Model
	}

	var provider llm.Provider
	switch name {
	case "openai":
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: p.APIKey, BaseURL: p.URL, Model: model})
	case "gemini":
		provider = llm.NewGeminiProvider(llm.GeminiConfig{APIKey: p.APIKey, BaseURL: p.URL, Model: model})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}

	rc := llm.DefaultResilientConfig()
	// one request per category, no need to throttle locally
	rc.EnableRateLimit = false
	return llm.NewResilientProvider(provider, rc), nil
}

// bankGenerator produces a batch of exercises for a category
type bankGenerator interface {
	GenerateBank(ctx context.Context, category string, count int) ([]exercise.Exercise, error)
}

// generateAll fills a bank one category at a time. A failed category is
// reported and left empty.
func generateAll(ctx context.Context, gen bankGenerator, categories []string, count int, delay time.Duration) *exercise.Bank {
	bank := exercise.NewBank()

	for i, category := range categories {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return bank
			case <-time.After(delay):
			}
		}

		fmt.Printf("🤖 Generating %d exercises for %s...\n", count, category)
		start := time.Now()
		exercises, err := gen.GenerateBank(ctx, category, count)
		if err != nil {
			fmt.Printf("❌ Error for %s: %v\n", category, err)
			continue
		}

		bank.Add(category, exercises...)
		fmt.Printf("✅ Generated %d exercises (%s)\n", len(exercises), time.Since(start).Round(time.Millisecond))
	}

	return bank
}
