package compare

import (
	"math/rand"
	"strings"
	"testing"
)

func strp(s string) *string { return &s }

func TestCompareTabular(t *testing.T) {
	tests := []struct {
		name     string
		actual   TabularResult
		expected TabularResult
		want     bool
		msg      string
	}{
		{
			name:     "both empty",
			actual:   TabularResult{},
			expected: TabularResult{},
			want:     true,
			msg:      MsgNoRows,
		},
		{
			name:     "nil actual",
			actual:   nil,
			expected: TabularResult{{"a": 1}},
			want:     false,
			msg:      MsgInvalidFormat,
		},
		{
			name:     "nil expected",
			actual:   TabularResult{},
			expected: nil,
			want:     false,
			msg:      MsgInvalidFormat,
		},
		{
			name:     "row count mismatch",
			actual:   TabularResult{{"a": 1}},
			expected: TabularResult{{"a": 1}, {"a": 2}},
			want:     false,
			msg:      "Row count mismatch: expected 2, got 1",
		},
		{
			name:     "key order irrelevant",
			actual:   TabularResult{{"a": 1, "b": 2}},
			expected: TabularResult{{"b": 2, "a": 1}},
			want:     true,
			msg:      MsgRowsMatch,
		},
		{
			name:     "string and number differ",
			actual:   TabularResult{{"a": "5"}},
			expected: TabularResult{{"a": 5}},
			want:     false,
			msg:      MsgRowsMismatch,
		},
		{
			name:     "int64 and float64 of same value match",
			actual:   TabularResult{{"n": int64(3)}},
			expected: TabularResult{{"n": 3.0}},
			want:     true,
			msg:      MsgRowsMatch,
		},
		{
			name:     "column mismatch lists sorted names",
			actual:   TabularResult{{"name": "x", "id": 1}},
			expected: TabularResult{{"name": "x", "total": 1}},
			want:     false,
			msg:      "Column mismatch. Expected: name, total, Got: id, name",
		},
		{
			name:     "row order irrelevant",
			actual:   TabularResult{{"id": 2, "v": nil}, {"id": 1, "v": true}},
			expected: TabularResult{{"id": 1, "v": true}, {"id": 2, "v": nil}},
			want:     true,
			msg:      MsgRowsMatch,
		},
		{
			name:     "duplicate rows count as a multiset",
			actual:   TabularResult{{"a": 1}, {"a": 1}},
			expected: TabularResult{{"a": 1}, {"a": 2}},
			want:     false,
			msg:      MsgRowsMismatch,
		},
		{
			name:     "null differs from empty string",
			actual:   TabularResult{{"a": nil}},
			expected: TabularResult{{"a": ""}},
			want:     false,
			msg:      MsgRowsMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareTabular(tt.actual, tt.expected)
			if got.IsCorrect != tt.want {
				t.Errorf("IsCorrect = %v, want %v (message %q)", got.IsCorrect, tt.want, got.Message)
			}
			if got.Message != tt.msg {
				t.Errorf("Message = %q, want %q", got.Message, tt.msg)
			}
		})
	}
}

func TestCompareTabular_UnserializableValue(t *testing.T) {
	got := CompareTabular(
		TabularResult{{"a": make(chan int)}},
		TabularResult{{"a": 1}},
	)
	if got.IsCorrect {
		t.Fatal("expected incorrect outcome")
	}
	if !strings.HasPrefix(got.Message, "Validation error: ") {
		t.Errorf("Message = %q, want Validation error prefix", got.Message)
	}
}

func TestCompareTabular_PermutationInvariance(t *testing.T) {
	rows := TabularResult{
		{"id": 1, "name": "Alice Johnson", "country": "USA"},
		{"id": 2, "name": "Bob Smith", "country": "Canada"},
		{"id": 3, "name": "Carol White", "country": "UK"},
		{"id": 4, "name": "David Lee", "country": "USA"},
		{"id": 5, "name": "Emma Davis", "country": nil},
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := make(TabularResult, len(rows))
		copy(shuffled, rows)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		if got := CompareTabular(shuffled, rows); !got.IsCorrect {
			t.Fatalf("permutation %d: got %q", i, got.Message)
		}
	}
}

func TestCompareTextual(t *testing.T) {
	tests := []struct {
		name     string
		actual   *string
		expected *string
		want     bool
		msg      string
	}{
		{"whitespace normalization", strp("  7\n"), strp("7"), true, MsgOutputMatch},
		{"internal whitespace collapsed", strp("a\t\tb\n c"), strp("a b c"), true, MsgOutputMatch},
		{"within tolerance", strp("3.00001"), strp("3.0"), true, MsgNumericMatch},
		{"outside tolerance", strp("3.01"), strp("3.0"), false, "Output mismatch.\nExpected: 3.0\nGot: 3.01"},
		{"nil equals empty", nil, strp(""), true, MsgOutputMatch},
		{"both nil", nil, nil, true, MsgOutputMatch},
		{"numeric prefix", strp("42 rows"), strp("42.00001"), true, MsgNumericMatch},
		{"non numeric mismatch", strp("hello"), strp("world"), false, "Output mismatch.\nExpected: world\nGot: hello"},
		{"nil actual mismatch", nil, strp("x"), false, "Output mismatch.\nExpected: x\nGot: "},
		{"raw strings kept in message", strp(" 1 2 "), strp("1  3"), true, MsgNumericMatch},
		{"byte order mark trimmed", strp("\ufeffhello"), strp("hello"), true, MsgOutputMatch},
		{"unicode separators collapsed", strp("a\u3000\u2028b "), strp("a b"), true, MsgOutputMatch},
		{"next line is not whitespace", strp("hello\u0085"), strp("hello"), false, "Output mismatch.\nExpected: hello\nGot: hello\u0085"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareTextual(tt.actual, tt.expected)
			if got.IsCorrect != tt.want {
				t.Errorf("IsCorrect = %v, want %v (message %q)", got.IsCorrect, tt.want, got.Message)
			}
			if got.Message != tt.msg {
				t.Errorf("Message = %q, want %q", got.Message, tt.msg)
			}
		})
	}
}

func TestParseLeadingFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3.0", 3, true},
		{"\ufeff  4", 4, true},
		{"\u00857", 0, false},
		{"  -2.5e3xyz", -2500, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"1e", 1, true},
		{"+7", 7, true},
		{"abc", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"\n\t12\n", 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLeadingFloat(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseLeadingFloat(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseLeadingFloat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLeadingFloat_Infinity(t *testing.T) {
	v, ok := ParseLeadingFloat("-Infinity and beyond")
	if !ok || v > 0 {
		t.Errorf("ParseLeadingFloat(-Infinity) = %v, %v", v, ok)
	}
}

func TestCompare_Dispatch(t *testing.T) {
	rows := TabularResult{{"a": 1}}

	if got := Compare(Tabular(rows), Tabular(rows)); !got.IsCorrect {
		t.Errorf("tabular dispatch: %q", got.Message)
	}
	if got := Compare(Textual("1"), Textual(" 1 ")); !got.IsCorrect {
		t.Errorf("textual dispatch: %q", got.Message)
	}
	if got := Compare(Textual("1"), Tabular(rows)); got.IsCorrect || got.Message != MsgInvalidFormat {
		t.Errorf("mixed kinds = %+v, want invalid format", got)
	}
	if got := Compare(Result{}, Result{}); got.IsCorrect {
		t.Error("zero Result should not compare as correct")
	}
}

func TestKindForLanguage(t *testing.T) {
	tests := []struct {
		lang    string
		want    Kind
		wantErr bool
	}{
		{"sql", KindTabular, false},
		{"python", KindTextual, false},
		{"rust", 0, true},
	}

	for _, tt := range tests {
		got, err := KindForLanguage(tt.lang)
		if (err != nil) != tt.wantErr {
			t.Errorf("KindForLanguage(%q) error = %v, wantErr %v", tt.lang, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("KindForLanguage(%q) = %v, want %v", tt.lang, got, tt.want)
		}
	}
}

func TestDecodeTabular(t *testing.T) {
	if got := DecodeTabular([]byte(`{"a":1}`)); got != nil {
		t.Errorf("object should decode to nil, got %v", got)
	}
	if got := DecodeTabular([]byte(`null`)); got != nil {
		t.Errorf("null should decode to nil, got %v", got)
	}
	got := DecodeTabular([]byte(` [] `))
	if got == nil || len(got) != 0 {
		t.Errorf("empty array should decode to empty result, got %#v", got)
	}

	rows := DecodeTabular([]byte(`[{"a":"5"},{"a":5}]`))
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if _, ok := rows[0]["a"].(string); !ok {
		t.Errorf("rows[0][a] = %T, want string", rows[0]["a"])
	}
	if _, ok := rows[1]["a"].(float64); !ok {
		t.Errorf("rows[1][a] = %T, want float64", rows[1]["a"])
	}
}

func TestDecodeText(t *testing.T) {
	if got := DecodeText([]byte(`null`)); got != nil {
		t.Errorf("null should decode to nil, got %q", *got)
	}
	if got := DecodeText([]byte(`"7\n"`)); got == nil || *got != "7\n" {
		t.Errorf("string decode = %v", got)
	}
	if got := DecodeText([]byte(`42`)); got == nil || *got != "42" {
		t.Errorf("number decode = %v", got)
	}
}
