package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/codepractice/internal/compare"
	"github.com/felixgeelhaar/codepractice/internal/exercise"
	"github.com/felixgeelhaar/codepractice/internal/practice"
)

// cmdExercises lists categories, or the exercises of one category
func cmdExercises(args []string) error {
	if len(args) == 0 {
		var resp struct {
			Categories []struct {
				Name      string `json:"name"`
				Exercises int    `json:"exercises"`
			} `json:"categories"`
		}
		if err := api.get("/v1/exercises", &resp); err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Categories"))
		for _, c := range resp.Categories {
			fmt.Printf("  %-24s %s\n", c.Name, mutedStyle.Render(fmt.Sprintf("%d exercises", c.Exercises)))
		}
		return nil
	}

	var resp struct {
		Category  string              `json:"category"`
		Exercises []exercise.Exercise `json:"exercises"`
	}
	if err := api.get("/v1/exercises/"+pathEscape(args[0]), &resp); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(resp.Category))
	if len(resp.Exercises) == 0 {
		fmt.Println(mutedStyle.Render("  No exercises in the bank; sessions will generate them."))
		return nil
	}
	for _, ex := range resp.Exercises {
		fmt.Printf("  %-12s %-8s %-13s %s\n", ex.ID, ex.Language, ex.Difficulty, firstLine(ex.Question))
	}
	return nil
}

// cmdCheck checks the answer in a file against a bank exercise
func cmdCheck(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: practice check <category> <exercise-id> <answer-file>")
	}

	answer, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}

	var res struct {
		IsCorrect bool   `json:"is_correct"`
		Message   string `json:"message"`
		Feedback  string `json:"feedback"`
	}
	if err := api.post("/v1/check", map[string]string{
		"category":    args[0],
		"exercise_id": args[1],
		"answer":      string(answer),
	}, &res); err != nil {
		return err
	}

	fmt.Println(verdict(res.IsCorrect, res.Message))
	if res.Feedback != "" {
		fmt.Println()
		fmt.Println(res.Feedback)
	}
	return nil
}

// cmdCompare compares two result files locally. SQL files hold JSON arrays
// of rows; Python files hold program output.
func cmdCompare(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: practice compare <sql|python> <actual-file> <expected-file>")
	}

	kind, err := compare.KindForLanguage(args[0])
	if err != nil {
		return err
	}
	actual, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read actual: %w", err)
	}
	expected, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("read expected: %w", err)
	}

	out := compareFiles(kind, actual, expected)
	fmt.Println(verdict(out.IsCorrect, out.Message))
	return nil
}

func compareFiles(kind compare.Kind, actual, expected []byte) compare.Outcome {
	if kind == compare.KindTabular {
		return compare.CompareTabular(compare.DecodeTabular(actual), compare.DecodeTabular(expected))
	}
	a, e := string(actual), string(expected)
	return compare.CompareTextual(&a, &e)
}

// cmdHistory lists finished sessions, or clears them
func cmdHistory(args []string) error {
	if len(args) > 0 && args[0] == "clear" {
		if err := api.delete("/v1/history"); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ History cleared"))
		return nil
	}

	path := "/v1/history"
	if len(args) > 0 {
		path += "?category=" + pathEscape(args[0])
	}

	var resp struct {
		History []*practice.Record `json:"history"`
	}
	if err := api.get(path, &resp); err != nil {
		return err
	}

	if len(resp.History) == 0 {
		fmt.Println("No finished sessions yet.")
		return nil
	}

	fmt.Println(titleStyle.Render("Session History"))
	for _, rec := range resp.History {
		pct := rec.Score.Percentage()
		fmt.Printf("  %s  %-22s L%d  %s %3d%%  %s\n",
			rec.Timestamp.Local().Format(time.DateTime),
			rec.Category,
			rec.Level,
			renderProgressBar(float64(pct)/100, 20),
			pct,
			mutedStyle.Render(fmt.Sprintf("%d/%d", rec.Score.Correct, rec.Score.Total)))
	}
	return nil
}

// cmdProgress shows levels, progress in one category, or levels up
func cmdProgress(args []string) error {
	switch {
	case len(args) == 0:
		var resp struct {
			Levels map[string]int `json:"levels"`
		}
		if err := api.get("/v1/progress", &resp); err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("Levels"))
		names := lo.Keys(resp.Levels)
		slices.Sort(names)
		for _, name := range names {
			level := resp.Levels[name]
			fmt.Printf("  %-24s L%d %s\n", name, level, mutedStyle.Render(exercise.LevelDescription(level)))
		}
		return nil

	case args[0] == "level-up":
		if len(args) != 2 {
			return fmt.Errorf("usage: practice progress level-up <category>")
		}
		var resp struct {
			Level       int    `json:"level"`
			Description string `json:"description"`
		}
		if err := api.post("/v1/progress/"+pathEscape(args[1])+"/level-up", nil, &resp); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Now at level %d: %s", resp.Level, resp.Description)))
		return nil

	default:
		var resp struct {
			Category    string `json:"category"`
			Level       int    `json:"level"`
			Description string `json:"description"`
			Attempted   int    `json:"attempted"`
			Correct     int    `json:"correct"`
		}
		if err := api.get("/v1/progress/"+pathEscape(args[0]), &resp); err != nil {
			return err
		}
		ratio := 0.0
		if resp.Attempted > 0 {
			ratio = float64(resp.Correct) / float64(resp.Attempted)
		}
		fmt.Println(titleStyle.Render(resp.Category))
		fmt.Printf("  Level:     %d (%s)\n", resp.Level, resp.Description)
		fmt.Printf("  Attempted: %d\n", resp.Attempted)
		fmt.Printf("  Correct:   %d %s\n", resp.Correct, renderProgressBar(ratio, 20))
		return nil
	}
}

// cmdNotes shows, exports, imports or restores notes
func cmdNotes(args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "export":
		if len(args) != 2 {
			return fmt.Errorf("usage: practice notes export <file>")
		}
		var data []byte
		if err := api.get("/v1/notes/export", &data); err != nil {
			return err
		}
		if err := os.WriteFile(args[1], data, 0644); err != nil {
			return fmt.Errorf("write notes: %w", err)
		}
		fmt.Println(successStyle.Render("✓ Notes exported to " + args[1]))
		return nil

	case "import":
		if len(args) != 2 {
			return fmt.Errorf("usage: practice notes import <file>")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read notes: %w", err)
		}
		var notes map[string]string
		if err := api.post("/v1/notes/import", data, &notes); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Imported notes for %d categories", len(notes))))
		return nil

	case "restore":
		var notes map[string]string
		if err := api.post("/v1/notes/restore", nil, &notes); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Notes restored from backup"))
		return nil

	case "":
		var notes map[string]string
		if err := api.get("/v1/notes", &notes); err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Println("No notes yet.")
			return nil
		}
		names := lo.Keys(notes)
		slices.Sort(names)
		for _, name := range names {
			printNotes(name, notes[name])
		}
		return nil

	default:
		var resp struct {
			Category string `json:"category"`
			Content  string `json:"content"`
		}
		if err := api.get("/v1/notes/"+pathEscape(sub), &resp); err != nil {
			return err
		}
		printNotes(resp.Category, resp.Content)
		return nil
	}
}

func printNotes(category, content string) {
	fmt.Println(titleStyle.Render(category))
	if strings.TrimSpace(content) == "" {
		fmt.Println(mutedStyle.Render("  (empty)"))
	} else {
		fmt.Println(content)
	}
	fmt.Println()
}

// cmdUsage shows the token budget, or activates admin mode
func cmdUsage(args []string) error {
	if len(args) > 0 && args[0] == "admin" {
		if len(args) != 2 {
			return fmt.Errorf("usage: practice usage admin <secret>")
		}
		if err := api.post("/v1/usage/admin", map[string]string{"secret": args[1]}, nil); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Admin mode active, no daily limit"))
		return nil
	}

	var resp struct {
		Usage struct {
			Used        int     `json:"used"`
			Budget      int     `json:"budget"`
			Remaining   int     `json:"remaining"`
			PercentUsed float64 `json:"percent_used"`
			Unlimited   bool    `json:"unlimited"`
		} `json:"usage"`
		HoursUntilReset int `json:"hours_until_reset"`
	}
	if err := api.get("/v1/usage", &resp); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Token Usage"))
	if resp.Usage.Unlimited {
		fmt.Println("  Unlimited (admin mode)")
		return nil
	}
	fmt.Printf("  %s %.0f%%\n", renderProgressBar(resp.Usage.PercentUsed/100, 30), resp.Usage.PercentUsed)
	fmt.Printf("  Used:      %d of %d\n", resp.Usage.Used, resp.Usage.Budget)
	fmt.Printf("  Remaining: %d\n", resp.Usage.Remaining)
	fmt.Printf("  Resets in: %dh\n", resp.HoursUntilReset)
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > 70 {
		line = line[:67] + "..."
	}
	return line
}
