package session

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/askdb/askdb/internal/catalog"
)

func tableSelectedState(t *testing.T) State {
	t.Helper()
	state := NewState()
	steps := []Event{
		Connected{Profile: catalog.Profile{Host: "db1", Username: "sa"}, Databases: []string{"Shop", "HR"}},
		DatabaseSelected{Name: "Shop", Tables: []string{"Orders", "Customers"}},
		TableSelected{Schema: catalog.TableSchema{
			SchemaName: "sales",
			Table:      "Orders",
			Columns:    []catalog.Column{{Name: "OrderID", DataType: "int"}},
		}},
	}
	for _, event := range steps {
		next, err := Apply(state, event)
		if err != nil {
			t.Fatalf("Apply(%T) error = %v", event, err)
		}
		state = next
	}
	return state
}

func TestApplyWalksAllPhases(t *testing.T) {
	state := tableSelectedState(t)
	if state.Phase != PhaseTableSelected {
		t.Fatalf("Phase = %s", state.Phase)
	}
	want := Context{
		Database:   "Shop",
		SchemaName: "sales",
		Table:      "Orders",
		Columns:    []catalog.Column{{Name: "OrderID", DataType: "int"}},
	}
	if diff := cmp.Diff(want, state.Context); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectedResetsContextFromAnyPhase(t *testing.T) {
	state := tableSelectedState(t)
	next, err := Apply(state, Connected{Profile: catalog.Profile{Host: "db2", Username: "u"}, Databases: []string{"Ops"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if next.Phase != PhaseConnected {
		t.Fatalf("Phase = %s", next.Phase)
	}
	if diff := cmp.Diff(Context{SchemaName: catalog.DefaultSchema}, next.Context); diff != "" {
		t.Fatalf("context not reset (-want +got):\n%s", diff)
	}
	if next.Tables != nil {
		t.Fatalf("Tables = %v, want cleared", next.Tables)
	}
	if diff := cmp.Diff([]string{"Ops"}, next.Databases); diff != "" {
		t.Fatalf("databases mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabaseSelectedAlwaysClearsTable(t *testing.T) {
	state := tableSelectedState(t)
	for _, name := range []string{"Shop", "HR"} {
		next, err := Apply(state, DatabaseSelected{Name: name, Tables: []string{"T"}})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		want := Context{Database: name, SchemaName: catalog.DefaultSchema}
		if diff := cmp.Diff(want, next.Context); diff != "" {
			t.Fatalf("reselect %s mismatch (-want +got):\n%s", name, diff)
		}
		if next.Phase != PhaseDatabaseSelected {
			t.Fatalf("Phase = %s", next.Phase)
		}
	}
}

func TestApplyRejectsOutOfOrderEvents(t *testing.T) {
	disconnected := NewState()
	connected, err := Apply(disconnected, Connected{Profile: catalog.Profile{Host: "h"}, Databases: []string{"a"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "database before connect", state: disconnected, event: DatabaseSelected{Name: "a"}},
		{name: "table before connect", state: disconnected, event: TableSelected{Schema: catalog.TableSchema{Table: "t", Columns: []catalog.Column{{Name: "c"}}}}},
		{name: "table before database", state: connected, event: TableSelected{Schema: catalog.TableSchema{Table: "t", Columns: []catalog.Column{{Name: "c"}}}}},
		{name: "connect without host", state: connected, event: Connected{}},
		{name: "empty database name", state: connected, event: DatabaseSelected{Name: " "}},
		{name: "nil event", state: connected, event: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Apply(tt.state, tt.event)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("error = %v, want ErrInvalidTransition", err)
			}
			if diff := cmp.Diff(tt.state, next); diff != "" {
				t.Fatalf("state changed on rejected event (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTableSelectedIsAtomic(t *testing.T) {
	state := tableSelectedState(t)
	for _, schema := range []catalog.TableSchema{
		{Table: "Orders"},
		{Columns: []catalog.Column{{Name: "c", DataType: "int"}}},
	} {
		next, err := Apply(state, TableSelected{Schema: schema})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("error = %v, want ErrInvalidTransition", err)
		}
		if (next.Context.Table == "") != (len(next.Context.Columns) == 0) {
			t.Fatalf("table and columns out of sync: %#v", next.Context)
		}
	}
}

func TestTableSelectedDefaultsSchema(t *testing.T) {
	state := tableSelectedState(t)
	next, err := Apply(state, TableSelected{Schema: catalog.TableSchema{Table: "Log", Columns: []catalog.Column{{Name: "id", DataType: "int"}}}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if next.Context.SchemaName != catalog.DefaultSchema {
		t.Fatalf("SchemaName = %q", next.Context.SchemaName)
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	state := tableSelectedState(t)
	next, err := Apply(state, DatabaseSelected{Name: "HR", Tables: []string{"People"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	next.Databases[0] = "mutated"
	if state.Databases[0] != "Shop" {
		t.Fatalf("input state mutated: %v", state.Databases)
	}
	if state.Context.Table != "Orders" {
		t.Fatalf("input context mutated: %#v", state.Context)
	}
}

func TestSnapshotOmitsPassword(t *testing.T) {
	state, err := Apply(NewState(), Connected{Profile: catalog.Profile{Host: "h", Username: "u", Password: "hunter2"}, Databases: []string{"a"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	snapshot := state.Snapshot()
	want := Snapshot{
		Phase:     PhaseConnected,
		Host:      "h",
		Username:  "u",
		Databases: []string{"a"},
		Tables:    []string{},
		Context:   Context{SchemaName: catalog.DefaultSchema},
	}
	if diff := cmp.Diff(want, snapshot); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
