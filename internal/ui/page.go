package ui

import (
	"fmt"
	"time"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/session"
)

type noticeLevel string

const (
	levelInfo    noticeLevel = "info"
	levelWarning noticeLevel = "warning"
	levelError   noticeLevel = "error"
)

type notice struct {
	Level   noticeLevel
	Message string
}

type pageModel struct {
	Snapshot    session.Snapshot
	History     []history.Record
	GridColumns int
	Notice      notice
}

func consolePage(m pageModel, csrf string) gomponents.Node {
	return pageShell("askdb",
		contextBanner(m.Snapshot),
		noticeNode(m.Notice),
		html.Div(
			html.Class("columns"),
			html.Div(
				html.Class("sidebar"),
				connectForm(m.Snapshot, csrf),
				databaseForm(m.Snapshot, csrf),
			),
			html.Div(
				html.Class("workspace"),
				tableGrid(m.Snapshot, m.GridColumns, csrf),
				schemaTable(m.Snapshot),
				questionForm(m.Snapshot, csrf),
				historyList(m.History, csrf),
			),
		),
	)
}

func pageShell(title string, body ...gomponents.Node) gomponents.Node {
	return html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text(title)),
			html.Link(html.Rel("icon"), html.Href("data:,")),
			html.Link(html.Rel("stylesheet"), html.Href("/static/app.css")),
		),
		html.Body(
			html.Main(html.Class("layout"), gomponents.Group(body)),
		),
	)
}

func errorPage(title, message string) gomponents.Node {
	return pageShell(title+" | askdb",
		html.H1(gomponents.Text(title)),
		html.P(gomponents.Text(message)),
		html.P(html.A(html.Href("/"), gomponents.Text("Back to console"))),
	)
}

func contextBanner(s session.Snapshot) gomponents.Node {
	text := "Not connected"
	switch s.Phase {
	case session.PhaseConnected:
		text = fmt.Sprintf("Connected to %s as %s", s.Host, s.Username)
	case session.PhaseDatabaseSelected:
		text = fmt.Sprintf("%s / %s", s.Host, s.Context.Database)
	case session.PhaseTableSelected:
		text = fmt.Sprintf("%s / %s.%s.%s", s.Host, s.Context.Database, s.Context.SchemaName, s.Context.Table)
	}
	return html.Div(
		html.Class("banner phase-"+string(s.Phase)),
		html.Strong(gomponents.Text("Context: ")),
		gomponents.Text(text),
	)
}

func noticeNode(n notice) gomponents.Node {
	if n.Message == "" {
		return nil
	}
	return html.P(html.Class("notice notice-"+string(n.Level)), gomponents.Text(n.Message))
}

func connectForm(s session.Snapshot, csrf string) gomponents.Node {
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Server")),
		html.Form(
			html.Class("stack-form"),
			html.Method("post"),
			html.Action("/connect"),
			formTokenInput(csrf),
			html.Label(gomponents.Text("Host")),
			html.Input(html.Type("text"), html.Name("host"), html.Value(s.Host), html.Placeholder(`HOST or HOST\INSTANCE`), html.Required()),
			html.Label(gomponents.Text("Port")),
			html.Input(html.Type("text"), html.Name("port"), html.Value(s.Port), html.Placeholder("optional")),
			html.Label(gomponents.Text("Username")),
			html.Input(html.Type("text"), html.Name("username"), html.Value(s.Username), html.Required()),
			html.Label(gomponents.Text("Password")),
			html.Input(html.Type("password"), html.Name("password"), html.AutoComplete("current-password")),
			html.Button(html.Type("submit"), html.Class("btn btn-primary"), gomponents.Text("Connect")),
		),
	)
}

func databaseForm(s session.Snapshot, csrf string) gomponents.Node {
	if len(s.Databases) == 0 {
		return nil
	}
	options := make([]gomponents.Node, 0, len(s.Databases))
	for _, name := range s.Databases {
		options = append(options, optionSelected(name, s.Context.Database))
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Database")),
		html.Form(
			html.Class("stack-form"),
			html.Method("post"),
			html.Action("/database"),
			formTokenInput(csrf),
			html.Select(html.Name("database"), gomponents.Group(options)),
			html.Button(html.Type("submit"), html.Class("btn"), gomponents.Text("Load Tables")),
		),
	)
}

// tableGrid lays the tables out in rows of columns cells; the current table
// is highlighted.
func tableGrid(s session.Snapshot, columns int, csrf string) gomponents.Node {
	if len(s.Tables) == 0 {
		return nil
	}
	rows := make([]gomponents.Node, 0, len(s.Tables)/columns+1)
	for start := 0; start < len(s.Tables); start += columns {
		end := min(start+columns, len(s.Tables))
		cells := make([]gomponents.Node, 0, columns)
		for _, name := range s.Tables[start:end] {
			className := "btn btn-table"
			if name == s.Context.Table {
				className += " active"
			}
			cells = append(cells, html.Td(html.Form(
				html.Method("post"),
				html.Action("/table"),
				formTokenInput(csrf),
				html.Input(html.Type("hidden"), html.Name("table"), html.Value(name)),
				html.Button(html.Type("submit"), html.Class(className), gomponents.Text(name)),
			)))
		}
		rows = append(rows, html.Tr(gomponents.Group(cells)))
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Tables in "+s.Context.Database)),
		html.Table(html.Class("table-grid"), html.TBody(gomponents.Group(rows))),
	)
}

func schemaTable(s session.Snapshot) gomponents.Node {
	if s.Phase != session.PhaseTableSelected {
		return nil
	}
	rows := make([]gomponents.Node, 0, len(s.Context.Columns))
	for _, column := range s.Context.Columns {
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(column.Name)),
			html.Td(gomponents.Text(column.DataType)),
		))
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Schema of "+s.Context.SchemaName+"."+s.Context.Table)),
		html.Table(
			html.THead(html.Tr(html.Th(gomponents.Text("Column")), html.Th(gomponents.Text("Type")))),
			html.TBody(gomponents.Group(rows)),
		),
	)
}

func questionForm(s session.Snapshot, csrf string) gomponents.Node {
	if s.Phase != session.PhaseTableSelected {
		return html.Div(
			html.Class("card"),
			html.P(html.Class("muted"), gomponents.Text("Select a table to ask questions about it.")),
		)
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Ask")),
		html.Form(
			html.Class("stack-form"),
			html.Method("post"),
			html.Action("/ask"),
			formTokenInput(csrf),
			html.Textarea(html.Name("question"), html.Required(), html.Placeholder("e.g. total sales by region")),
			html.Button(html.Type("submit"), html.Class("btn btn-primary"), gomponents.Text("Ask")),
		),
	)
}

func historyList(records []history.Record, csrf string) gomponents.Node {
	if len(records) == 0 {
		return nil
	}
	items := make([]gomponents.Node, 0, len(records))
	for _, record := range records {
		className := "history-item"
		if record.Failed {
			className += " failed"
		}
		items = append(items, html.Li(
			html.Class(className),
			html.P(html.Class("muted"), gomponents.Text(record.Database+"."+record.Table+" at "+record.CreatedAt.Format(time.RFC3339))),
			html.P(html.Strong(gomponents.Text(record.Question))),
			html.Pre(gomponents.Text(record.SQL)),
			gomponents.If(record.ResultText != "", html.Pre(html.Class("result"), gomponents.Text(record.ResultText))),
			gomponents.If(record.Summary != "", html.P(html.Class("summary"), gomponents.Text(record.Summary))),
		))
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("History")),
		html.Form(
			html.Method("post"),
			html.Action("/history/clear"),
			formTokenInput(csrf),
			html.Button(html.Type("submit"), html.Class("btn btn-danger"), gomponents.Text("Clear history")),
		),
		html.Ul(html.Class("history"), gomponents.Group(items)),
	)
}

func optionSelected(value, selected string) gomponents.Node {
	if value == selected {
		return html.Option(html.Value(value), html.Selected(), gomponents.Text(value))
	}
	return html.Option(html.Value(value), gomponents.Text(value))
}
