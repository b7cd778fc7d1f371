package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckTotal tracks answer checks by language and outcome (correct, incorrect, error)
	CheckTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepractice_check_total",
			Help: "Total number of answer checks by language and outcome",
		},
		[]string{"language", "outcome"},
	)

	// ExecutionTotal tracks code executions by language and status (ok, error, timeout)
	ExecutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepractice_execution_total",
			Help: "Total number of code executions by language and status",
		},
		[]string{"language", "status"},
	)

	// ExecutionDuration observes how long code executions take
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codepractice_execution_duration_seconds",
			Help:    "Duration of code executions in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"language"},
	)

	// LLMTokensTotal tracks tokens consumed by tutor feature (exercises, hint, feedback)
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepractice_llm_tokens_total",
			Help: "Total number of LLM tokens consumed by feature",
		},
		[]string{"feature"},
	)

	// BudgetRejectedTotal tracks LLM calls refused because the daily budget ran out
	BudgetRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codepractice_budget_rejected_total",
			Help: "Total number of LLM calls rejected by the daily token budget",
		},
	)

	// EventPublishedTotal tracks broker publishes by queue and status
	EventPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepractice_event_published_total",
			Help: "Total number of events published by queue and status",
		},
		[]string{"queue", "status"},
	)

	// SessionCompletedTotal tracks finished practice sessions by category
	SessionCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepractice_session_completed_total",
			Help: "Total number of completed practice sessions by category",
		},
		[]string{"category"},
	)
)

// RecordCheck records an answer check
func RecordCheck(language, outcome string) {
	CheckTotal.WithLabelValues(language, outcome).Inc()
}

// RecordExecution records a code execution and its duration
func RecordExecution(language, status string, d time.Duration) {
	ExecutionTotal.WithLabelValues(language, status).Inc()
	ExecutionDuration.WithLabelValues(language).Observe(d.Seconds())
}

// RecordTokens records LLM tokens consumed by a tutor feature
func RecordTokens(feature string, tokens int) {
	if tokens <= 0 {
		return
	}
	LLMTokensTotal.WithLabelValues(feature).Add(float64(tokens))
}

// RecordBudgetRejected records an LLM call refused by the budget
func RecordBudgetRejected() {
	BudgetRejectedTotal.Inc()
}

// RecordEvent records an event publish attempt
func RecordEvent(queue, status string) {
	EventPublishedTotal.WithLabelValues(queue, status).Inc()
}

// RecordSessionCompleted records a finished practice session
func RecordSessionCompleted(category string) {
	SessionCompletedTotal.WithLabelValues(category).Inc()
}
