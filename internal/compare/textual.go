package compare

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// isSpace matches the whitespace set of ECMAScript trim and \s: the ASCII
// controls \t \n \v \f \r, space, the Unicode Zs separators, the line and
// paragraph separators and the byte order mark. U+0085 is not included.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

// normalizeOutput maps nil to "", trims and collapses runs of whitespace.
func normalizeOutput(s *string) string {
	if s == nil {
		return ""
	}
	return strings.Join(strings.FieldsFunc(*s, isSpace), " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CompareTextual reports whether two program outputs match, first after
// whitespace normalization and then as numbers within Tolerance.
func CompareTextual(actual, expected *string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = validationError(r)
		}
	}()

	if normalizeOutput(actual) == normalizeOutput(expected) {
		return correct(MsgOutputMatch)
	}

	a, aok := ParseLeadingFloat(deref(actual))
	e, eok := ParseLeadingFloat(deref(expected))
	if aok && eok && math.Abs(a-e) < Tolerance {
		return correct(MsgNumericMatch)
	}

	return incorrect(fmt.Sprintf("Output mismatch.\nExpected: %s\nGot: %s", deref(expected), deref(actual)))
}

// ParseLeadingFloat parses the longest decimal prefix of s after leading
// whitespace, the way a lenient float parser does ("3.5 apples" is 3.5).
// It reports false when s has no numeric prefix.
func ParseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, isSpace)
	if s == "" {
		return 0, false
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}

	// exponent only counts when followed by at least one digit
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}

	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		// out of range still yields ±Inf
		if errors.Is(err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
