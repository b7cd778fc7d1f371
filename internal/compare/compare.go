// Package compare decides whether a learner's executed output matches the
// output of the reference solution.
//
// Two result kinds exist: tabular results (rows returned by a SQL query) and
// textual results (captured standard output of a program). Both comparators
// are pure functions and never return errors; malformed input and unexpected
// failures are reported as a negative Outcome.
package compare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Messages reported by the comparators.
const (
	MsgInvalidFormat  = "Invalid result format"
	MsgNoRows         = "Correct! Query returned no rows as expected."
	MsgRowsMatch      = "Correct! Results match perfectly."
	MsgRowsMismatch   = "Results do not match expected output. Check your query logic."
	MsgOutputMatch    = "Correct! Output matches expected result."
	MsgNumericMatch   = "Correct! Numeric result matches."
	validationErrorFm = "Validation error: %s"
)

// Tolerance is the absolute difference under which two numeric outputs are
// considered equal.
const Tolerance = 0.0001

// Row maps a column name to a scalar value (float64/int64 number, string,
// bool or nil).
type Row map[string]any

// TabularResult is an ordered sequence of rows. A nil TabularResult means no
// result set was produced at all and is reported as an invalid format.
type TabularResult []Row

// Outcome is the verdict of a single comparison.
type Outcome struct {
	IsCorrect bool   `json:"is_correct"`
	Message   string `json:"message"`
}

func correct(msg string) Outcome   { return Outcome{IsCorrect: true, Message: msg} }
func incorrect(msg string) Outcome { return Outcome{IsCorrect: false, Message: msg} }

func validationError(v any) Outcome {
	return incorrect(fmt.Sprintf(validationErrorFm, v))
}

// CompareTabular reports whether actual and expected contain the same multiset
// of rows, ignoring row order and key order. Values are compared by their JSON
// encoding, so the string "5" and the number 5 are different.
func CompareTabular(actual, expected TabularResult) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = validationError(r)
		}
	}()

	if actual == nil || expected == nil {
		return incorrect(MsgInvalidFormat)
	}

	if len(actual) != len(expected) {
		return incorrect(fmt.Sprintf("Row count mismatch: expected %d, got %d", len(expected), len(actual)))
	}

	if len(actual) == 0 {
		return correct(MsgNoRows)
	}

	actualCols := columns(actual[0])
	expectedCols := columns(expected[0])
	if strings.Join(actualCols, "\x00") != strings.Join(expectedCols, "\x00") {
		return incorrect(fmt.Sprintf("Column mismatch. Expected: %s, Got: %s",
			strings.Join(expectedCols, ", "), strings.Join(actualCols, ", ")))
	}

	actualCanon, err := canonicalize(actual)
	if err != nil {
		return validationError(err.Error())
	}
	expectedCanon, err := canonicalize(expected)
	if err != nil {
		return validationError(err.Error())
	}

	if actualCanon == expectedCanon {
		return correct(MsgRowsMatch)
	}
	return incorrect(MsgRowsMismatch)
}

// columns returns the sorted column names of a row.
func columns(row Row) []string {
	cols := lo.Keys(row)
	sort.Strings(cols)
	return cols
}

// canonicalize serializes every row with sorted keys and joins the sorted
// serializations. encoding/json already writes map keys in sorted order.
func canonicalize(rows TabularResult) (string, error) {
	encoded := make([]string, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			row = Row{}
		}
		b, err := json.Marshal(map[string]any(row))
		if err != nil {
			return "", fmt.Errorf("row %d: %w", i, err)
		}
		encoded = append(encoded, string(b))
	}
	sort.Strings(encoded)
	return "[" + strings.Join(encoded, ",") + "]", nil
}
