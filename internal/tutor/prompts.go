package tutor

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/codepractice/internal/exercise"
)

const (
	exerciseSystemPrompt = "You are an expert coding instructor. Always return valid JSON."
	hintSystemPrompt     = "You are a helpful coding tutor."
	feedbackSystemPrompt = "You are a helpful coding instructor."
)

const sqlTables = `For SQL exercises, assume these tables exist:
- customers (id, name, email, country, signup_date)
- orders (id, customer_id, product_id, quantity, order_date, total_amount)
- products (id, name, category, price, stock)`

const exerciseFormat = `Return ONLY valid JSON in this exact format, no other text:
[
  {
    "id": "unique-id-1",
    "question": "Clear exercise description with any necessary context",
    "solution": "expected code solution",
    "language": "python",
    "difficulty": "beginner"
  }
]

Make sure questions are clear, specific, and test practical skills.`

// ExercisesPrompt asks for ten exercises at one difficulty level
func ExercisesPrompt(category string, level int) string {
	return exercisesPrompt(category, 10, "- Difficulty level: "+exercise.LevelDescription(level))
}

// BankPrompt asks for count exercises of mixed difficulty, used when
// pre-generating the exercise bank
func BankPrompt(category string, count int) string {
	return exercisesPrompt(category, count,
		"- Mix of beginner (30%), intermediate (50%), and advanced (20%) difficulty")
}

func exercisesPrompt(category string, count int, difficulty string) string {
	var b strings.Builder
	b.WriteString("You are an expert coding instructor specializing in data skills.\n\n")
	fmt.Fprintf(&b, "Generate %d practice exercises focused on: %s\n\n", count, exercise.CategoryContext(category))
	b.WriteString("Requirements:\n")
	b.WriteString(difficulty + "\n")
	b.WriteString(`- Mix of Python (60%) and SQL (40%) exercises
- Each exercise should be completable in 2-5 minutes
- Include practical, real-world scenarios
- Provide the expected solution code

CRITICAL: Solutions MUST be syntactically valid and executable code:
- Python: NEVER split 'with' statement across lines - use nested with statements instead
- Python: Use proper line continuation (backslashes \) ONLY when absolutely necessary
- Python: Solutions must print their result or end with an expression
- SQL: Use standard SQL syntax that works in SQLite
- NO syntax errors, NO incomplete statements

`)
	b.WriteString(sqlTables + "\n\n")
	b.WriteString(exerciseFormat)
	return b.String()
}

// HintPrompt asks for a nudge that does not reveal the solution
func HintPrompt(question, answer, solution string) string {
	return fmt.Sprintf(`You are a helpful coding tutor. A student is stuck on this exercise.

Exercise: %s

Student's attempt:
%s

The correct solution (hidden from student):
%s

Provide a helpful hint (1-2 sentences) that guides them toward the right approach without giving away the full solution. Be encouraging and specific about what to consider next.

Return only the hint text, no extra formatting.`, question, answer, solution)
}

// FeedbackPrompt asks for a short review of a wrong answer. errMsg is
// included when the answer failed to run.
func FeedbackPrompt(question, answer, solution, errMsg string) string {
	errorContext := ""
	if errMsg != "" {
		errorContext = "\n\nError encountered:\n" + errMsg
	}

	return fmt.Sprintf(`You are a coding instructor reviewing a student's answer.

Exercise: %s

Student's answer:
%s

Expected answer:
%s%s

Provide brief, constructive feedback (2-3 sentences) on:
1. What's wrong or missing
2. How to improve

Be specific and encouraging. Return only the feedback text.`, question, answer, solution, errorContext)
}
