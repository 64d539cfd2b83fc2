package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
)

// ErrInvalidInput reports a request that is malformed before any I/O.
var ErrInvalidInput = errors.New("session: invalid input")

type Asker interface {
	Ask(ctx context.Context, profile catalog.Profile, tc nl2sql.TableContext, question string) (history.Record, error)
}

type Options struct {
	// SystemDatabase is the catalog database used to probe the server.
	SystemDatabase string
}

// Session is the single conversation a process serves. Every method holds
// the session lock for the whole interaction, so calls never interleave.
type Session struct {
	mu      sync.Mutex
	state   State
	browser catalog.Browser

	dialer         catalog.Dialer
	asker          Asker
	ledger         *history.Ledger
	systemDatabase string
	logger         *slog.Logger
}

func New(dialer catalog.Dialer, asker Asker, ledger *history.Ledger, opts Options, logger *slog.Logger) *Session {
	systemDatabase := strings.TrimSpace(opts.SystemDatabase)
	if systemDatabase == "" {
		systemDatabase = "master"
	}
	if ledger == nil {
		ledger = history.NewLedger()
	}
	return &Session{
		state:          NewState(),
		dialer:         dialer,
		asker:          asker,
		ledger:         ledger,
		systemDatabase: systemDatabase,
		logger:         observability.LoggerOrDiscard(logger),
	}
}

// Connect probes the server's system catalog and lists its user databases.
// On any failure the current state is kept.
func (s *Session) Connect(ctx context.Context, profile catalog.Profile) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.Host = strings.TrimSpace(profile.Host)
	profile.Port = strings.TrimSpace(profile.Port)
	profile.Username = strings.TrimSpace(profile.Username)
	if profile.Host == "" || profile.Username == "" {
		return s.state.Snapshot(), fmt.Errorf("%w: host and username are required", ErrInvalidInput)
	}

	probe, err := s.dialer.Dial(ctx, profile, s.systemDatabase)
	if err != nil {
		return s.state.Snapshot(), err
	}
	defer func() { _ = probe.Close() }()

	databases, err := probe.ListDatabases(ctx)
	if err != nil {
		return s.state.Snapshot(), err
	}
	if len(databases) == 0 {
		return s.state.Snapshot(), fmt.Errorf("no user databases on %s: %w", profile.Host, catalog.ErrEmpty)
	}

	if err := s.transition(ctx, Connected{Profile: profile, Databases: databases}); err != nil {
		return s.state.Snapshot(), err
	}
	s.replaceBrowser(nil)
	return s.state.Snapshot(), nil
}

// SelectDatabase opens a browse connection to name and lists its tables.
// The browse connection replaces the previous one only on success.
func (s *Session) SelectDatabase(ctx context.Context, name string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return s.state.Snapshot(), fmt.Errorf("%w: database name is required", ErrInvalidInput)
	}
	if !s.state.Phase.AtLeast(PhaseConnected) {
		return s.state.Snapshot(), fmt.Errorf("%w: connect to a server first", ErrInvalidTransition)
	}

	browser, err := s.dialer.Dial(ctx, s.state.Profile, name)
	if err != nil {
		return s.state.Snapshot(), err
	}
	tables, err := browser.ListTables(ctx)
	if err == nil && len(tables) == 0 {
		err = fmt.Errorf("no tables in database %s: %w", name, catalog.ErrEmpty)
	}
	if err == nil {
		err = s.transition(ctx, DatabaseSelected{Name: name, Tables: tables})
	}
	if err != nil {
		_ = browser.Close()
		return s.state.Snapshot(), err
	}
	s.replaceBrowser(browser)
	return s.state.Snapshot(), nil
}

// SelectTable resolves the table's schema and columns. A table without
// columns leaves the previous context in place.
func (s *Session) SelectTable(ctx context.Context, name string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return s.state.Snapshot(), fmt.Errorf("%w: table name is required", ErrInvalidInput)
	}
	if !s.state.Phase.AtLeast(PhaseDatabaseSelected) || s.browser == nil {
		return s.state.Snapshot(), fmt.Errorf("%w: select a database first", ErrInvalidTransition)
	}

	schema, err := s.browser.DescribeTable(ctx, name)
	if err != nil {
		return s.state.Snapshot(), err
	}
	if err := s.transition(ctx, TableSelected{Schema: schema}); err != nil {
		return s.state.Snapshot(), err
	}
	return s.state.Snapshot(), nil
}

// Ask answers question against the selected table and appends the outcome
// to the history. Generation failures append nothing.
func (s *Session) Ask(ctx context.Context, question string) (history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseTableSelected {
		return history.Record{}, fmt.Errorf("%w: select a table first", ErrInvalidTransition)
	}
	record, err := s.asker.Ask(ctx, s.state.Profile, s.state.Context.TableContext(), question)
	if err != nil {
		return history.Record{}, err
	}
	return s.ledger.Append(record), nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// History returns the records oldest first.
func (s *Session) History() []history.Record {
	return s.ledger.Records()
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Clear()
	s.logger.Info("history cleared")
}

// Close releases the browse connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceBrowser(nil)
}

func (s *Session) transition(ctx context.Context, event Event) error {
	next, err := Apply(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	observability.IncrementSessionTransition(string(next.Phase))
	s.logger.Info("session transition",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("phase", string(next.Phase)),
		slog.String("host", next.Profile.Host),
		slog.String("database", next.Context.Database),
		slog.String("schema", next.Context.SchemaName),
		slog.String("table", next.Context.Table),
	)
	return nil
}

func (s *Session) replaceBrowser(browser catalog.Browser) error {
	previous := s.browser
	s.browser = browser
	if previous == nil || previous == browser {
		return nil
	}
	return previous.Close()
}
