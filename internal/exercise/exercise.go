package exercise

import "errors"

var (
	ErrNotFound    = errors.New("exercise not found")
	ErrNoExercises = errors.New("no exercises generated")
	ErrBadResponse = errors.New("invalid response format from API")
)

// Exercise is a single practice question with its reference solution
type Exercise struct {
	ID         string `json:"id" yaml:"id"`
	Question   string `json:"question" yaml:"question"`
	Solution   string `json:"solution" yaml:"solution"`
	Language   string `json:"language" yaml:"language"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
}

// Category names
const (
	CategoryDataEngineering      = "Data Engineering"
	CategoryAnalyticsEngineering = "Analytics Engineering"
	CategoryDataAnalysis         = "Data Analysis"
	CategoryDataScience          = "Data Science"
	CategoryGeneralProgramming   = "General Programming"
	CategoryOther                = "Other"
)

// Categories returns the built-in categories in display order
func Categories() []string {
	return []string{
		CategoryDataEngineering,
		CategoryAnalyticsEngineering,
		CategoryDataAnalysis,
		CategoryDataScience,
		CategoryGeneralProgramming,
	}
}

var categoryContext = map[string]string{
	CategoryDataEngineering:      "data pipelines, ETL processes, data storage, data modeling, and batch/stream processing",
	CategoryAnalyticsEngineering: "data transformation, SQL queries, data cleaning, aggregations, joins, and data quality",
	CategoryDataAnalysis:         "exploratory data analysis, pandas operations, statistical analysis, and data visualization concepts",
	CategoryDataScience:          "machine learning fundamentals, model evaluation, feature engineering, and predictive modeling",
	CategoryGeneralProgramming:   "algorithms, data structures, string manipulation, list operations, and problem solving",
}

// CategoryContext describes the topics a category covers. Unknown categories
// describe themselves.
func CategoryContext(category string) string {
	if ctx, ok := categoryContext[category]; ok {
		return ctx
	}
	return category
}

// Canonical maps the "Other" alias onto General Programming
func Canonical(category string) string {
	if category == CategoryOther {
		return CategoryGeneralProgramming
	}
	return category
}

// Levels
const (
	MinLevel = 1
	MaxLevel = 3
)

var levelDescriptions = map[int]string{
	1: "beginner (simple, single-concept problems)",
	2: "intermediate (multi-step problems combining concepts)",
	3: "advanced (complex scenarios with edge cases)",
}

// LevelDescription describes a difficulty level, falling back to level 1
func LevelDescription(level int) string {
	if d, ok := levelDescriptions[level]; ok {
		return d
	}
	return levelDescriptions[MinLevel]
}
