package catalog

import (
	"context"
	"errors"
	"fmt"
)

const DefaultSchema = "dbo"

var (
	// ErrNotFound reports a table whose column lookup came back empty.
	ErrNotFound = errors.New("catalog: not found")
	// ErrEmpty reports a database or table listing with no entries.
	ErrEmpty = errors.New("catalog: empty")
)

// ConnectivityError wraps a driver or network failure. Its message is shown
// to the user verbatim.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

type Profile struct {
	Host     string
	Port     string
	Username string
	Password string
}

type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type TableSchema struct {
	SchemaName string   `json:"schema_name"`
	Table      string   `json:"table"`
	Columns    []Column `json:"columns"`
}

// Browser is a live connection to one database.
type Browser interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context) ([]string, error)
	ResolveSchema(ctx context.Context, table string) (string, error)
	ListColumns(ctx context.Context, table, schema string) ([]Column, error)
	DescribeTable(ctx context.Context, table string) (TableSchema, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, profile Profile, database string) (Browser, error)
}

// IsWarning reports errors that should be shown as warnings and leave the
// session state as it was.
func IsWarning(err error) bool {
	return errors.Is(err, ErrEmpty) || errors.Is(err, ErrNotFound)
}
