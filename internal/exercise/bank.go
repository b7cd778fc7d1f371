package exercise

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// PackFile represents the YAML structure for an exercise pack
type PackFile struct {
	Category  string     `yaml:"category"`
	Exercises []Exercise `yaml:"exercises"`
}

// Bank holds exercises grouped by category
type Bank struct {
	mu         sync.RWMutex
	categories []string
	exercises  map[string][]Exercise
}

// NewBank creates an empty exercise bank
func NewBank() *Bank {
	return &Bank{exercises: make(map[string][]Exercise)}
}

// LoadJSON loads a pre-generated bank file of the form {category: [exercise]}
func (b *Bank) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bank file: %w", err)
	}

	var byCategory map[string][]Exercise
	if err := json.Unmarshal(data, &byCategory); err != nil {
		return fmt.Errorf("parse bank file: %w", err)
	}

	// Keep the built-in display order, then anything else alphabetically
	known := lo.Filter(Categories(), func(c string, _ int) bool {
		_, ok := byCategory[c]
		return ok
	})
	extra := lo.Without(lo.Keys(byCategory), known...)
	slices.Sort(extra)

	for _, cat := range append(known, extra...) {
		b.Add(cat, byCategory[cat]...)
	}
	return nil
}

// LoadPacks loads every *.yaml / *.yml pack file in dir
func (b *Bank) LoadPacks(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read packs directory: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read pack %s: %w", entry.Name(), err)
		}

		var pack PackFile
		if err := yaml.Unmarshal(data, &pack); err != nil {
			return fmt.Errorf("parse pack %s: %w", entry.Name(), err)
		}
		if pack.Category == "" {
			return fmt.Errorf("pack %s: missing category", entry.Name())
		}

		b.Add(pack.Category, pack.Exercises...)
	}

	return nil
}

// Add appends exercises to a category. Exercises without an ID get their
// position within the category.
func (b *Bank) Add(category string, exercises ...Exercise) {
	category = Canonical(category)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exercises[category]; !ok {
		b.categories = append(b.categories, category)
	}
	for _, ex := range exercises {
		if ex.ID == "" {
			ex.ID = strconv.Itoa(len(b.exercises[category]) + 1)
		}
		ex.Language = strings.ToLower(ex.Language)
		b.exercises[category] = append(b.exercises[category], ex)
	}
}

// Categories returns categories that have exercises, in load order
func (b *Bank) Categories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return lo.Filter(b.categories, func(c string, _ int) bool {
		return len(b.exercises[c]) > 0
	})
}

// ForCategory returns a copy of a category's exercises
func (b *Bank) ForCategory(category string) []Exercise {
	b.mu.RLock()
	defer b.mu.RUnlock()

	exercises := b.exercises[Canonical(category)]
	out := make([]Exercise, len(exercises))
	copy(out, exercises)
	return out
}

// Get returns an exercise by category and ID
func (b *Bank) Get(category, id string) (Exercise, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ex, ok := lo.Find(b.exercises[Canonical(category)], func(e Exercise) bool {
		return e.ID == id
	})
	if !ok {
		return Exercise{}, fmt.Errorf("%w: %s/%s", ErrNotFound, category, id)
	}
	return ex, nil
}

// Sample returns up to n exercises drawn at random from a category
func (b *Bank) Sample(category string, n int, rng *rand.Rand) []Exercise {
	exercises := b.ForCategory(category)
	rng.Shuffle(len(exercises), func(i, j int) {
		exercises[i], exercises[j] = exercises[j], exercises[i]
	})
	if n < len(exercises) {
		exercises = exercises[:n]
	}
	return exercises
}

// SaveJSON writes the bank in the pre-generated file format
func (b *Bank) SaveJSON(path string) error {
	b.mu.RLock()
	data, err := json.MarshalIndent(b.exercises, "", "  ")
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode bank: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create bank directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write bank file: %w", err)
	}
	return nil
}

// Stats returns statistics about loaded exercises
func (b *Bank) Stats() BankStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := lo.Flatten(lo.Values(b.exercises))
	return BankStats{
		CategoryCount: len(lo.PickBy(b.exercises, func(_ string, v []Exercise) bool { return len(v) > 0 })),
		ExerciseCount: len(all),
		ByLanguage:    lo.CountValuesBy(all, func(e Exercise) string { return e.Language }),
		ByDifficulty:  lo.CountValuesBy(all, func(e Exercise) string { return e.Difficulty }),
	}
}

// BankStats holds statistics about the bank
type BankStats struct {
	CategoryCount int            `json:"category_count"`
	ExerciseCount int            `json:"exercise_count"`
	ByLanguage    map[string]int `json:"by_language"`
	ByDifficulty  map[string]int `json:"by_difficulty"`
}
