package compare

import "fmt"

// Kind identifies the shape of an executed result.
type Kind int

const (
	KindTabular Kind = iota + 1
	KindTextual
)

func (k Kind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindTextual:
		return "textual"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindForLanguage returns the result kind produced by exercises in the
// given language. SQL exercises produce rows; Python exercises produce text.
func KindForLanguage(language string) (Kind, error) {
	switch language {
	case "sql":
		return KindTabular, nil
	case "python":
		return KindTextual, nil
	default:
		return 0, fmt.Errorf("no result kind for language %q", language)
	}
}

// Result is an executed result of either kind. Rows is set for tabular
// results, Text for textual ones.
type Result struct {
	Kind Kind
	Rows TabularResult
	Text *string
}

// Tabular wraps rows as a tabular Result.
func Tabular(rows TabularResult) Result {
	return Result{Kind: KindTabular, Rows: rows}
}

// Textual wraps program output as a textual Result.
func Textual(text string) Result {
	return Result{Kind: KindTextual, Text: &text}
}

// Compare dispatches on the result kind. Mixed kinds are an invalid format.
func Compare(actual, expected Result) Outcome {
	if actual.Kind != expected.Kind {
		return incorrect(MsgInvalidFormat)
	}

	switch expected.Kind {
	case KindTabular:
		return CompareTabular(actual.Rows, expected.Rows)
	case KindTextual:
		return CompareTextual(actual.Text, expected.Text)
	default:
		return incorrect(MsgInvalidFormat)
	}
}
