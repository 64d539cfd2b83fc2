package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/session"
)

type Session interface {
	Connect(ctx context.Context, profile catalog.Profile) (session.Snapshot, error)
	SelectDatabase(ctx context.Context, name string) (session.Snapshot, error)
	SelectTable(ctx context.Context, name string) (session.Snapshot, error)
	Ask(ctx context.Context, question string) (history.Record, error)
	Snapshot() session.Snapshot
	History() []history.Record
	ClearHistory()
}

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

type PasswordFunc func(prompt string) (string, error)

type Shell struct {
	session     Session
	lines       LineReader
	password    PasswordFunc
	out         io.Writer
	gridColumns int
	logger      *slog.Logger
}

type Options struct {
	Password    PasswordFunc
	Stdout      io.Writer
	GridColumns int
	Logger      *slog.Logger
}

func New(s Session, lines LineReader, opts Options) *Shell {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	password := opts.Password
	if password == nil {
		password = TerminalPassword(out)
	}
	columns := opts.GridColumns
	if columns <= 0 {
		columns = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Shell{
		session:     s,
		lines:       lines,
		password:    password,
		out:         out,
		gridColumns: columns,
		logger:      logger,
	}
}

// NewReadline opens the interactive line editor used by askdb-shell.
func NewReadline() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "askdb> ",
		HistoryLimit:      500,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete:      completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize readline: %w", err)
	}
	return rl, nil
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		items = append(items, readline.PcItem(c.name))
	}
	return readline.NewPrefixCompleter(items...)
}

// TerminalPassword reads a password from stdin without echoing it.
func TerminalPassword(out io.Writer) PasswordFunc {
	return func(prompt string) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
}

// Run reads lines until /quit, EOF, interrupt or context cancellation.
func (s *Shell) Run(ctx context.Context) error {
	defer func() { _ = s.lines.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.lines.Close()
		case <-done:
		}
	}()

	s.printf("%s", pterm.DefaultHeader.Sprint("askdb"))
	s.println(pterm.Info.Sprint("Type /help for commands. Anything else is a question about the selected table."))

	for {
		line, err := s.lines.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.println("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/") {
			s.ask(ctx, input)
			continue
		}
		if quit := s.dispatch(ctx, input); quit {
			s.println("Goodbye!")
			return nil
		}
	}
}

type command struct {
	name  string
	usage string
	help  string
	run   func(s *Shell, ctx context.Context, args []string) bool
}

var commands []command

func init() {
	commands = []command{
		{name: "/connect", usage: "/connect <host[,port]> <username> [port]", help: "Connect to a SQL Server and list its databases", run: (*Shell).connect},
		{name: "/databases", usage: "/databases", help: "List databases on the server", run: (*Shell).databases},
		{name: "/use", usage: "/use <database>", help: "Select a database and list its tables", run: (*Shell).use},
		{name: "/tables", usage: "/tables", help: "List tables in the selected database", run: (*Shell).tables},
		{name: "/table", usage: "/table <name>", help: "Select a table and load its columns", run: (*Shell).table},
		{name: "/schema", usage: "/schema", help: "Show the columns of the selected table", run: (*Shell).schema},
		{name: "/history", usage: "/history", help: "Show answered questions, newest first", run: (*Shell).history},
		{name: "/clear", usage: "/clear", help: "Delete all history records", run: (*Shell).clear},
		{name: "/help", usage: "/help", help: "Show this help", run: (*Shell).help},
		{name: "/quit", usage: "/quit", help: "Leave the shell", run: func(*Shell, context.Context, []string) bool { return true }},
	}
}

func (s *Shell) dispatch(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	if name == "/exit" {
		name = "/quit"
	}
	for _, c := range commands {
		if c.name == name {
			return c.run(s, ctx, fields[1:])
		}
	}
	s.println(pterm.Error.Sprintf("Unknown command: %s (type /help for available commands)", fields[0]))
	return false
}

func (s *Shell) connect(ctx context.Context, args []string) bool {
	if len(args) < 2 || len(args) > 3 {
		s.usage("/connect")
		return false
	}
	profile := catalog.Profile{Host: args[0], Username: args[1]}
	if len(args) == 3 {
		profile.Port = args[2]
	}
	password, err := s.password("Password: ")
	if err != nil {
		s.reportError(err)
		return false
	}
	profile.Password = password

	snapshot, err := s.session.Connect(ctx, profile)
	if err != nil {
		s.reportError(err)
		return false
	}
	s.println(pterm.Success.Sprintf("Connected to %s as %s", snapshot.Host, snapshot.Username))
	s.printList("Databases", snapshot.Databases)
	return false
}

func (s *Shell) databases(context.Context, []string) bool {
	snapshot := s.session.Snapshot()
	if !snapshot.Phase.AtLeast(session.PhaseConnected) {
		s.println(pterm.Warning.Sprint("Not connected. Use /connect first."))
		return false
	}
	s.printList("Databases", snapshot.Databases)
	return false
}

func (s *Shell) use(ctx context.Context, args []string) bool {
	if len(args) != 1 {
		s.usage("/use")
		return false
	}
	snapshot, err := s.session.SelectDatabase(ctx, args[0])
	if err != nil {
		s.reportError(err)
		return false
	}
	s.println(pterm.Success.Sprintf("Using database %s", snapshot.Context.Database))
	s.printGrid(snapshot.Tables, "")
	return false
}

func (s *Shell) tables(context.Context, []string) bool {
	snapshot := s.session.Snapshot()
	if !snapshot.Phase.AtLeast(session.PhaseDatabaseSelected) {
		s.println(pterm.Warning.Sprint("No database selected. Use /use <database> first."))
		return false
	}
	s.printGrid(snapshot.Tables, snapshot.Context.Table)
	return false
}

func (s *Shell) table(ctx context.Context, args []string) bool {
	if len(args) != 1 {
		s.usage("/table")
		return false
	}
	snapshot, err := s.session.SelectTable(ctx, args[0])
	if err != nil {
		s.reportError(err)
		return false
	}
	s.println(pterm.Success.Sprintf("Selected %s.%s.%s", snapshot.Context.Database, snapshot.Context.SchemaName, snapshot.Context.Table))
	s.printSchema(snapshot.Context.Columns)
	return false
}

func (s *Shell) schema(context.Context, []string) bool {
	snapshot := s.session.Snapshot()
	if snapshot.Phase != session.PhaseTableSelected {
		s.println(pterm.Warning.Sprint("No table selected. Use /table <name> first."))
		return false
	}
	s.printSchema(snapshot.Context.Columns)
	return false
}

func (s *Shell) history(context.Context, []string) bool {
	records := s.session.History()
	if len(records) == 0 {
		s.println(pterm.Info.Sprint("No questions asked yet."))
		return false
	}
	for _, record := range history.NewestFirst(records) {
		s.printRecord(record)
	}
	return false
}

func (s *Shell) clear(context.Context, []string) bool {
	s.session.ClearHistory()
	s.println(pterm.Success.Sprint("History cleared."))
	return false
}

func (s *Shell) help(context.Context, []string) bool {
	data := pterm.TableData{{"Command", "Description"}}
	for _, c := range commands {
		data = append(data, []string{c.usage, c.help})
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		s.reportError(err)
		return false
	}
	s.println(rendered)
	return false
}

func (s *Shell) ask(ctx context.Context, question string) {
	record, err := s.session.Ask(ctx, question)
	if err != nil {
		s.reportError(err)
		return
	}
	s.printRecord(record)
}

func (s *Shell) printRecord(record history.Record) {
	s.println(pterm.DefaultSection.Sprint(record.Question))
	s.println(pterm.Gray(fmt.Sprintf("%s.%s  %s", record.Database, record.Table, record.CreatedAt.Local().Format("2006-01-02 15:04:05"))))
	if record.SQL != "" {
		s.println(pterm.FgCyan.Sprint(record.SQL))
	}
	if record.Failed {
		s.println(pterm.Error.Sprint(record.Summary))
		return
	}
	if record.ResultText != "" {
		s.printf("%s", record.ResultText)
	}
	if record.Summary != "" {
		s.println(pterm.Info.Sprint(record.Summary))
	}
}

func (s *Shell) printList(title string, items []string) {
	s.println(pterm.DefaultSection.Sprint(title))
	for _, item := range items {
		s.println("  " + item)
	}
}

// printGrid lays names out row by row, marking the current one.
func (s *Shell) printGrid(names []string, current string) {
	if len(names) == 0 {
		return
	}
	data := pterm.TableData{}
	for start := 0; start < len(names); start += s.gridColumns {
		end := min(start+s.gridColumns, len(names))
		row := make([]string, 0, s.gridColumns)
		for _, name := range names[start:end] {
			if name == current {
				name = pterm.Bold.Sprint("*" + name)
			}
			row = append(row, name)
		}
		for len(row) < s.gridColumns {
			row = append(row, "")
		}
		data = append(data, row)
	}
	rendered, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		s.reportError(err)
		return
	}
	s.println(rendered)
}

func (s *Shell) printSchema(columns []catalog.Column) {
	data := pterm.TableData{{"Column", "Type"}}
	for _, col := range columns {
		data = append(data, []string{col.Name, col.DataType})
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		s.reportError(err)
		return
	}
	s.println(rendered)
}

func (s *Shell) usage(name string) {
	for _, c := range commands {
		if c.name == name {
			s.println(pterm.Warning.Sprintf("Usage: %s", c.usage))
			return
		}
	}
}

func (s *Shell) reportError(err error) {
	if catalog.IsWarning(err) {
		s.println(pterm.Warning.Sprint(err.Error()))
		return
	}
	s.logger.Debug("shell command failed", slog.Any("error", err))
	s.println(pterm.Error.Sprint(err.Error()))
}

func (s *Shell) println(text string) {
	_, _ = fmt.Fprintln(s.out, strings.TrimRight(text, "\n"))
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
