package nl2sql

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/catalog"
)

// TableContext is the single table a question is interpreted against.
type TableContext struct {
	Database   string           `json:"database"`
	SchemaName string           `json:"schema_name"`
	Table      string           `json:"table"`
	Columns    []catalog.Column `json:"columns"`
}

func (c TableContext) QualifiedName() string {
	return c.Database + "." + c.SchemaName + "." + c.Table
}

func BuildQueryPrompt(tc TableContext, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a SQL Server expert. Here is the schema for table '%s' in database '%s' with schema '%s':\n",
		tc.Table, tc.Database, tc.SchemaName)
	for _, column := range tc.Columns {
		fmt.Fprintf(&b, "%s (%s)\n", column.Name, column.DataType)
	}
	fmt.Fprintf(&b, "\nWrite a SQL Server query for this request: %s\n", question)
	b.WriteString("\nRules:\n")
	b.WriteString("- Only use columns from the schema above.\n")
	fmt.Fprintf(&b, "- Only reference the table '%s'.\n", tc.QualifiedName())
	b.WriteString("- Only return the SQL query, do not include any explanation.\n")
	b.WriteString("- Use SQL Server (T-SQL) syntax.\n")
	b.WriteString("- Use square brackets [] for identifiers, NOT backticks. For example: [ColumnName] not `ColumnName`.\n")
	b.WriteString("- Do not use any comments or other symbols in the query, just return the SQL code.\n")
	return b.String()
}

func BuildSummaryPrompt(question, database, table, resultText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Database: %s\n", database)
	fmt.Fprintf(&b, "Table: %s\n", table)
	fmt.Fprintf(&b, "SQL Result:\n%s\n", resultText)
	b.WriteString("Summarize the result above in exactly one plain-language sentence for a non-technical user.")
	return b.String()
}
