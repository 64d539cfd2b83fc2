package query

import (
	"context"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/catalog"
)

// NullText is how SQL NULL is rendered in result rows.
const NullText = "NULL"

type Request struct {
	Profile  catalog.Profile
	Database string
	SQL      string
	// RowLimit stops reading after this many rows when positive.
	RowLimit int
}

type Result struct {
	Columns   []string      `json:"columns"`
	Rows      [][]string    `json:"rows"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"duration_ns"`
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// ExecutionError carries the driver's message for a statement that failed
// to run.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FormatResultText renders the header and every row as tab-delimited lines.
func FormatResultText(result Result) string {
	if len(result.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, "\t"))
	b.WriteByte('\n')
	for _, row := range result.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}
