package nl2sql

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced block with backtick identifier",
			raw:  "```sql\nSELECT * FROM `Orders`\n```",
			want: "SELECT * FROM [Orders]",
		},
		{
			name: "introduction and trailing commentary around fence",
			raw:  "Here's the SQL query:\n```sql\nSELECT TOP 5 `Name`\nFROM [dbo].[Customers]\n```\nThis query returns the top five customers.",
			want: "SELECT TOP 5 [Name] FROM [dbo].[Customers]",
		},
		{
			name: "label prefix",
			raw:  "SQL: SELECT COUNT(*) FROM [Orders]",
			want: "SELECT COUNT(*) FROM [Orders]",
		},
		{
			name: "stacked prefixes",
			raw:  "Sure! Here is the query:\nQuery: SELECT 1",
			want: "SELECT 1",
		},
		{
			name: "sure followed by sql on same line",
			raw:  "Sure, SELECT [Name] FROM [Customers]",
			want: "SELECT [Name] FROM [Customers]",
		},
		{
			name: "unlabelled fence",
			raw:  "```\nSELECT [Amount] FROM [Orders]\n```",
			want: "SELECT [Amount] FROM [Orders]",
		},
		{
			name: "single line fence with tag",
			raw:  "```sql SELECT 1```",
			want: "SELECT 1",
		},
		{
			name: "dangling closing fence",
			raw:  "SELECT [Amount] FROM [Orders]\n```\nLet me know if you need more.",
			want: "SELECT [Amount] FROM [Orders]",
		},
		{
			name: "wrapped in backticks",
			raw:  "`SELECT 1`",
			want: "SELECT 1",
		},
		{
			name: "wrapped in brackets",
			raw:  "[SELECT [Name] FROM [Customers]]",
			want: "SELECT [Name] FROM [Customers]",
		},
		{
			name: "bracketed identifiers are not a wrapper",
			raw:  "[dbo].[Orders]",
			want: "[dbo].[Orders]",
		},
		{
			name: "comment lines and notes dropped",
			raw:  "-- total sales\nSELECT SUM([Amount])\n# grouped\nFROM [Orders]\nNote: amounts are in USD",
			want: "SELECT SUM([Amount]) FROM [Orders]",
		},
		{
			name: "block comment dropped",
			raw:  "/* orders\n   by region */\nSELECT [Region] FROM [Orders]",
			want: "SELECT [Region] FROM [Orders]",
		},
		{
			name: "inline comment cut",
			raw:  "SELECT [Name] -- customer name\nFROM [Customers]",
			want: "SELECT [Name] FROM [Customers]",
		},
		{
			name: "dash inside string literal kept",
			raw:  "SELECT * FROM [Orders] WHERE [Code] = 'A--1'",
			want: "SELECT * FROM [Orders] WHERE [Code] = 'A--1'",
		},
		{
			name: "prose before sql skipped",
			raw:  "To find the total, use the following statement\nSELECT SUM([Amount]) FROM [Orders]",
			want: "SELECT SUM([Amount]) FROM [Orders]",
		},
		{
			name: "prose after sql stops collection",
			raw:  "SELECT *\nFROM [Orders]\nWHERE [Amount] > 10\nThis returns every large order.\nSELECT 2",
			want: "SELECT * FROM [Orders] WHERE [Amount] > 10",
		},
		{
			name: "capitalized sentence after sql stops collection",
			raw:  "SELECT [Name] FROM [Customers]\nIt lists customer names alphabetically.",
			want: "SELECT [Name] FROM [Customers]",
		},
		{
			name: "column per line with prose-like names",
			raw:  "SELECT Id,\nNotes\nFROM [Orders]",
			want: "SELECT Id, Notes FROM [Orders]",
		},
		{
			name: "replace function on its own line",
			raw:  "SELECT\nREPLACE(Name, 'a', 'b') AS N\nFROM [Customers]",
			want: "SELECT REPLACE(Name, 'a', 'b') AS N FROM [Customers]",
		},
		{
			name: "predicate on column starting with a prose word",
			raw:  "SELECT Id FROM [Orders] WHERE\nPleaseCall = 1",
			want: "SELECT Id FROM [Orders] WHERE PleaseCall = 1",
		},
		{
			name: "explanation and note columns",
			raw:  "SELECT\n  Id,\n  Explanation,\n  Note\nFROM [Tickets]\nORDER BY Id",
			want: "SELECT Id, Explanation, Note FROM [Tickets] ORDER BY Id",
		},
		{
			name: "prose lead needs a sentence ending",
			raw:  "SELECT Id\nFROM [Orders]\nThis query returns every order id.",
			want: "SELECT Id FROM [Orders]",
		},
		{
			name: "replace advice after sql stops collection",
			raw:  "SELECT [Name] FROM [Customers]\nReplace the table name if needed.",
			want: "SELECT [Name] FROM [Customers]",
		},
		{
			name: "sentence with a keyword as its verb stops collection",
			raw:  "SELECT [Name] FROM [Customers]\nIt is sorted by name.",
			want: "SELECT [Name] FROM [Customers]",
		},
		{
			name: "common table expression",
			raw:  "WITH totals AS (\nSELECT [Region], SUM([Amount]) AS total FROM [Orders] GROUP BY [Region]\n)\nSELECT * FROM totals",
			want: "WITH totals AS ( SELECT [Region], SUM([Amount]) AS total FROM [Orders] GROUP BY [Region] ) SELECT * FROM totals",
		},
		{
			name: "no sql falls back to non-comment lines",
			raw:  "I cannot answer that\n-- sorry",
			want: "I cannot answer that",
		},
		{
			name: "crlf line endings",
			raw:  "SELECT 1\r\nFROM [Orders]\r\n",
			want: "SELECT 1 FROM [Orders]",
		},
		{
			name: "empty fence",
			raw:  "```sql\n```",
			want: "",
		},
		{
			name: "whitespace only",
			raw:  "  \n\t ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.raw); got != tt.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT * FROM `Orders`\n```",
		"Here is the query:\n`SELECT 1`",
		"[[SELECT 1]]",
		"SELECT [a]\n-- comment\nFROM [t]\nThis query is simple.",
		"Sure\n```\nSELECT `x`, `y` FROM `z`\n```",
		"no sql here at all",
		"SELECT 'unterminated",
	}
	for _, input := range inputs {
		once := Sanitize(input)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestSanitizeRewritesEveryBacktickPair(t *testing.T) {
	for n := 1; n <= 6; n++ {
		names := make([]string, n)
		for i := range names {
			names[i] = "`col" + strings.Repeat("x", i) + "`"
		}
		raw := "SELECT " + strings.Join(names, ", ") + " FROM [t]"

		got := Sanitize(raw)
		if strings.Contains(got, "`") {
			t.Fatalf("Sanitize(%q) = %q still contains backticks", raw, got)
		}
		if count := strings.Count(got, "[col"); count != n {
			t.Fatalf("Sanitize(%q) produced %d bracket pairs, want %d", raw, count, n)
		}
	}
}

func TestSanitizeNeverContainsFenceOrLineBreak(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT 1\nFROM t\n```",
		"Query:\n```\nSELECT\n  1\n```\n",
		"SELECT 1\n\n\nFROM t",
	}
	for _, input := range inputs {
		got := Sanitize(input)
		if strings.Contains(got, fence) || strings.ContainsAny(got, "\r\n") {
			t.Fatalf("Sanitize(%q) = %q", input, got)
		}
	}
}
