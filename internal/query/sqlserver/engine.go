package sqlserver

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/askdb/askdb/internal/catalog"
	catalogsqlserver "github.com/askdb/askdb/internal/catalog/sqlserver"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
)

// Engine runs each statement on its own connection, closed after use.
type Engine struct {
	open         catalogsqlserver.OpenFunc
	queryTimeout time.Duration
}

func NewEngine(cfg catalogsqlserver.DBConfig) *Engine {
	return NewEngineWithOpener(cfg, func(ctx context.Context, profile catalog.Profile, database string) (*sql.DB, error) {
		return catalogsqlserver.Open(ctx, cfg, profile, database)
	})
}

func NewEngineWithOpener(cfg catalogsqlserver.DBConfig, open catalogsqlserver.OpenFunc) *Engine {
	return &Engine{open: open, queryTimeout: cfg.QueryTimeout}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (result query.Result, err error) {
	start := time.Now()
	defer func() {
		outcome := observability.OutcomeOK
		if err != nil {
			outcome = observability.OutcomeError
		}
		observability.ObserveQueryExecution(outcome, time.Since(start))
	}()

	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, &query.ExecutionError{Err: fmt.Errorf("sql is required")}
	}

	db, err := e.open(ctx, request.Profile, request.Database)
	if err != nil {
		return query.Result{}, &query.ExecutionError{Err: err}
	}
	defer func() { _ = db.Close() }()

	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	rows, err := db.QueryContext(ctx, request.SQL)
	if err != nil {
		return query.Result{}, &query.ExecutionError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, &query.ExecutionError{Err: err}
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return query.Result{}, &query.ExecutionError{Err: err}
	}
	databaseTypes := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		databaseTypes[i] = strings.ToUpper(columnType.DatabaseTypeName())
	}

	resultRows := make([][]string, 0)
	truncated := false
	for rows.Next() {
		if request.RowLimit > 0 && len(resultRows) == request.RowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, &query.ExecutionError{Err: err}
		}
		resultRows = append(resultRows, renderValues(values, databaseTypes))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, &query.ExecutionError{Err: err}
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func renderValues(values []any, databaseTypes []string) []string {
	rendered := make([]string, len(values))
	for i, value := range values {
		databaseType := ""
		if i < len(databaseTypes) {
			databaseType = databaseTypes[i]
		}
		rendered[i] = renderValue(value, databaseType)
	}
	return rendered
}

func renderValue(value any, databaseType string) string {
	switch typed := value.(type) {
	case nil:
		return query.NullText
	case []byte:
		return renderBytes(typed, databaseType)
	case string:
		return typed
	case time.Time:
		return typed.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

// renderBytes prints uniqueidentifier values in canonical GUID form and
// binary columns as 0x-prefixed hex. Other byte values (decimal, money,
// character data) are already text.
func renderBytes(raw []byte, databaseType string) string {
	switch databaseType {
	case "UNIQUEIDENTIFIER":
		var id mssql.UniqueIdentifier
		if err := id.Scan(raw); err == nil {
			return id.String()
		}
		return "0x" + strings.ToUpper(hex.EncodeToString(raw))
	case "BINARY", "VARBINARY", "IMAGE", "TIMESTAMP", "ROWVERSION":
		return "0x" + strings.ToUpper(hex.EncodeToString(raw))
	default:
		return string(raw)
	}
}
