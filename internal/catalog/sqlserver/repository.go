package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/observability"
)

// Repository answers catalog questions over one open connection.
type Repository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewRepository(db *sql.DB, queryTimeout time.Duration) *Repository {
	return &Repository{db: db, queryTimeout: queryTimeout}
}

func (r *Repository) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := r.listNames(ctx, `
SELECT name
FROM sys.databases
WHERE database_id > 4
ORDER BY database_id`)
	if err != nil {
		observability.ObserveCatalogRequest("list_databases", observability.OutcomeError)
		return nil, &catalog.ConnectivityError{Op: "list databases", Err: err}
	}
	observability.ObserveCatalogRequest("list_databases", outcomeFor(len(names)))
	return names, nil
}

func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	names, err := r.listNames(ctx, `
SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_SCHEMA, TABLE_NAME`)
	if err != nil {
		observability.ObserveCatalogRequest("list_tables", observability.OutcomeError)
		return nil, &catalog.ConnectivityError{Op: "list tables", Err: err}
	}
	observability.ObserveCatalogRequest("list_tables", outcomeFor(len(names)))
	return names, nil
}

// ResolveSchema returns the schema owning table, or dbo when none matches.
// A name present in several schemas resolves to the alphabetically first.
func (r *Repository) ResolveSchema(ctx context.Context, table string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
SELECT TOP (1) TABLE_SCHEMA
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_NAME = @p1
ORDER BY TABLE_SCHEMA`
	var schema string
	if err := r.db.QueryRowContext(ctx, query, table).Scan(&schema); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			observability.ObserveCatalogRequest("resolve_schema", observability.OutcomeEmpty)
			return catalog.DefaultSchema, nil
		}
		observability.ObserveCatalogRequest("resolve_schema", observability.OutcomeError)
		return "", &catalog.ConnectivityError{Op: "resolve schema", Err: err}
	}
	observability.ObserveCatalogRequest("resolve_schema", observability.OutcomeOK)
	return schema, nil
}

func (r *Repository) ListColumns(ctx context.Context, table, schema string) ([]catalog.Column, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = @p1 AND TABLE_SCHEMA = @p2
ORDER BY ORDINAL_POSITION`, table, schema)
	if err != nil {
		observability.ObserveCatalogRequest("list_columns", observability.OutcomeError)
		return nil, &catalog.ConnectivityError{Op: "list columns", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns := make([]catalog.Column, 0)
	for rows.Next() {
		var column catalog.Column
		if err := rows.Scan(&column.Name, &column.DataType); err != nil {
			observability.ObserveCatalogRequest("list_columns", observability.OutcomeError)
			return nil, &catalog.ConnectivityError{Op: "scan column row", Err: err}
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		observability.ObserveCatalogRequest("list_columns", observability.OutcomeError)
		return nil, &catalog.ConnectivityError{Op: "iterate column rows", Err: err}
	}
	observability.ObserveCatalogRequest("list_columns", outcomeFor(len(columns)))
	return columns, nil
}

func (r *Repository) DescribeTable(ctx context.Context, table string) (catalog.TableSchema, error) {
	schema, err := r.ResolveSchema(ctx, table)
	if err != nil {
		return catalog.TableSchema{}, err
	}
	columns, err := r.ListColumns(ctx, table, schema)
	if err != nil {
		return catalog.TableSchema{}, err
	}
	if len(columns) == 0 {
		return catalog.TableSchema{}, fmt.Errorf("no columns found for table %s.%s: %w", schema, table, catalog.ErrNotFound)
	}
	return catalog.TableSchema{
		SchemaName: schema,
		Table:      table,
		Columns:    columns,
	}, nil
}

func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) listNames(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate name rows: %w", err)
	}
	return names, nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func outcomeFor(count int) string {
	if count == 0 {
		return observability.OutcomeEmpty
	}
	return observability.OutcomeOK
}
