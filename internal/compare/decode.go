package compare

import (
	"bytes"
	"encoding/json"
)

// DecodeTabular decodes a JSON array of objects into a TabularResult.
// Anything else, including JSON null, yields nil so that CompareTabular
// reports an invalid format instead of the caller handling an error.
func DecodeTabular(data []byte) TabularResult {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}

	var rows TabularResult
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil
	}
	if rows == nil {
		rows = TabularResult{}
	}
	return rows
}

// DecodeText decodes a JSON string or null into a textual value.
func DecodeText(data []byte) *string {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		raw := string(data)
		return &raw
	}
	return s
}
