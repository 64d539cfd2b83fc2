package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/nl2sql"
)

type Phase string

const (
	PhaseDisconnected     Phase = "disconnected"
	PhaseConnected        Phase = "connected"
	PhaseDatabaseSelected Phase = "database_selected"
	PhaseTableSelected    Phase = "table_selected"
)

var ErrInvalidTransition = errors.New("session: invalid transition")

func (p Phase) rank() int {
	switch p {
	case PhaseConnected:
		return 1
	case PhaseDatabaseSelected:
		return 2
	case PhaseTableSelected:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether p has reached other.
func (p Phase) AtLeast(other Phase) bool {
	return p.rank() >= other.rank()
}

// Context is the table questions are interpreted against. Table and Columns
// are set together or not at all.
type Context struct {
	Database   string           `json:"database,omitempty"`
	SchemaName string           `json:"schema_name"`
	Table      string           `json:"table,omitempty"`
	Columns    []catalog.Column `json:"columns,omitempty"`
}

func (c Context) TableContext() nl2sql.TableContext {
	return nl2sql.TableContext{
		Database:   c.Database,
		SchemaName: c.SchemaName,
		Table:      c.Table,
		Columns:    slices.Clone(c.Columns),
	}
}

type State struct {
	Phase     Phase
	Profile   catalog.Profile
	Databases []string
	Tables    []string
	Context   Context
}

func NewState() State {
	return State{Phase: PhaseDisconnected, Context: Context{SchemaName: catalog.DefaultSchema}}
}

// Event is one of Connected, DatabaseSelected or TableSelected.
type Event interface {
	apply(State) (State, error)
}

// Connected replaces the profile and resets everything below it.
type Connected struct {
	Profile   catalog.Profile
	Databases []string
}

// DatabaseSelected switches database and clears any table context, even when
// the name matches the current database.
type DatabaseSelected struct {
	Name   string
	Tables []string
}

// TableSelected sets schema, table and columns from one lookup.
type TableSelected struct {
	Schema catalog.TableSchema
}

// Apply returns the state after event. The input state is never modified and
// a rejected event leaves no partial write.
func Apply(state State, event Event) (State, error) {
	if event == nil {
		return state, fmt.Errorf("%w: nil event", ErrInvalidTransition)
	}
	return event.apply(state)
}

func (e Connected) apply(state State) (State, error) {
	if strings.TrimSpace(e.Profile.Host) == "" {
		return state, fmt.Errorf("%w: connect without host", ErrInvalidTransition)
	}
	next := NewState()
	next.Phase = PhaseConnected
	next.Profile = e.Profile
	next.Databases = slices.Clone(e.Databases)
	return next, nil
}

func (e DatabaseSelected) apply(state State) (State, error) {
	if !state.Phase.AtLeast(PhaseConnected) {
		return state, fmt.Errorf("%w: select database while %s", ErrInvalidTransition, state.Phase)
	}
	if strings.TrimSpace(e.Name) == "" {
		return state, fmt.Errorf("%w: empty database name", ErrInvalidTransition)
	}
	next := state.clone()
	next.Phase = PhaseDatabaseSelected
	next.Tables = slices.Clone(e.Tables)
	next.Context = Context{Database: e.Name, SchemaName: catalog.DefaultSchema}
	return next, nil
}

func (e TableSelected) apply(state State) (State, error) {
	if !state.Phase.AtLeast(PhaseDatabaseSelected) {
		return state, fmt.Errorf("%w: select table while %s", ErrInvalidTransition, state.Phase)
	}
	if strings.TrimSpace(e.Schema.Table) == "" || len(e.Schema.Columns) == 0 {
		return state, fmt.Errorf("%w: table requires a name and columns", ErrInvalidTransition)
	}
	schemaName := e.Schema.SchemaName
	if schemaName == "" {
		schemaName = catalog.DefaultSchema
	}
	next := state.clone()
	next.Phase = PhaseTableSelected
	next.Context = Context{
		Database:   state.Context.Database,
		SchemaName: schemaName,
		Table:      e.Schema.Table,
		Columns:    slices.Clone(e.Schema.Columns),
	}
	return next, nil
}

func (s State) clone() State {
	s.Databases = slices.Clone(s.Databases)
	s.Tables = slices.Clone(s.Tables)
	s.Context.Columns = slices.Clone(s.Context.Columns)
	return s
}

// Snapshot is the externally visible view of a state. It never carries the
// password.
type Snapshot struct {
	Phase     Phase    `json:"phase"`
	Host      string   `json:"host,omitempty"`
	Port      string   `json:"port,omitempty"`
	Username  string   `json:"username,omitempty"`
	Databases []string `json:"databases"`
	Tables    []string `json:"tables"`
	Context   Context  `json:"context"`
}

func (s State) Snapshot() Snapshot {
	c := s.clone()
	if c.Databases == nil {
		c.Databases = []string{}
	}
	if c.Tables == nil {
		c.Tables = []string{}
	}
	return Snapshot{
		Phase:     c.Phase,
		Host:      c.Profile.Host,
		Port:      c.Profile.Port,
		Username:  c.Profile.Username,
		Databases: c.Databases,
		Tables:    c.Tables,
		Context:   c.Context,
	}
}
