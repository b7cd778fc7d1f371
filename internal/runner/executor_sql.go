package runner

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/codepractice/internal/compare"
	_ "github.com/mattn/go-sqlite3"
)

// SampleSchema creates and fills the customers, products and orders tables
// every SQL exercise runs against.
//
//go:embed sampledata.sql
var SampleSchema string

// SQLExecutor runs SQL against a private in-memory SQLite database seeded
// with SampleSchema. Every execution starts from a fresh database.
type SQLExecutor struct {
	seed string
}

// NewSQLExecutor creates a new SQL executor
func NewSQLExecutor() *SQLExecutor {
	return &SQLExecutor{seed: SampleSchema}
}

// Language returns the language this executor handles
func (e *SQLExecutor) Language() Language {
	return LanguageSQL
}

// Execute runs every statement in code. Rows of the first statement that
// yields at least one row become the output; no such statement yields an
// empty result.
func (e *SQLExecutor) Execute(ctx context.Context, code string) (*Output, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	// one connection keeps a single in-memory database alive
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, e.seed); err != nil {
		return nil, fmt.Errorf("seed sample data: %w", err)
	}

	start := time.Now()
	out := &Output{Rows: compare.TabularResult{}}
	captured := false

	for _, stmt := range SplitStatements(code) {
		rows, err := runStatement(ctx, conn, stmt)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				out.Err = timeoutMessage
			} else {
				out.Err = err.Error()
			}
			out.Rows = nil
			break
		}
		if !captured && len(rows) > 0 {
			out.Rows = rows
			captured = true
		}
	}

	out.Duration = time.Since(start)
	return out, nil
}

func runStatement(ctx context.Context, conn *sql.Conn, stmt string) (compare.TabularResult, error) {
	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result compare.TabularResult
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(compare.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// normalizeValue maps driver values onto JSON scalars. Text stays text, so
// DATE columns come back exactly as stored. Blobs that are not valid UTF-8
// become hex literals (x'ff00'), since JSON would replace their bytes with
// U+FFFD and make different blobs equal.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		if !utf8.Valid(val) {
			return "x'" + hex.EncodeToString(val) + "'"
		}
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	default:
		return val
	}
}

// SplitStatements splits a SQL script on semicolons that are outside string
// literals, quoted identifiers and comments. Blank statements are dropped.
func SplitStatements(script string) []string {
	var (
		stmts []string
		buf   strings.Builder
	)

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" && !onlyComments(s) {
			stmts = append(stmts, s)
		}
		buf.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := i + 1
			for j < len(script) {
				if script[j] == closer {
					// doubled quote is an escaped quote
					if closer != ']' && j+1 < len(script) && script[j+1] == closer {
						j += 2
						continue
					}
					break
				}
				j++
			}
			end := min(j+1, len(script))
			buf.WriteString(script[i:end])
			i = end - 1
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			j := strings.IndexByte(script[i:], '\n')
			if j < 0 {
				j = len(script) - i
			}
			buf.WriteString(script[i : i+j])
			i += j - 1
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			j := strings.Index(script[i+2:], "*/")
			end := len(script)
			if j >= 0 {
				end = i + 2 + j + 2
			}
			buf.WriteString(script[i:end])
			i = end - 1
		case c == ';':
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	flush()

	return stmts
}

func onlyComments(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
			continue
		}
		return false
	}
	return true
}

var _ Executor = (*SQLExecutor)(nil)
