package exercise

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseGenerated extracts the exercise list from an LLM response. Models
// often wrap JSON in prose or code fences, so everything between the first
// '[' and the last ']' is decoded.
func ParseGenerated(text string) ([]Exercise, error) {
	match := jsonArray.FindString(text)
	if match == "" {
		return nil, ErrBadResponse
	}

	var exercises []Exercise
	if err := json.Unmarshal([]byte(match), &exercises); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(exercises) == 0 {
		return nil, ErrNoExercises
	}

	return exercises, nil
}
