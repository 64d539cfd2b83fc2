package history

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAppendPreservesOrderAndStampsRecords(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ledger := NewLedgerWithClock(func() time.Time { return now })

	first := ledger.Append(Record{Question: "q1", SQL: "SELECT 1"})
	second := ledger.Append(Record{Question: "q1", SQL: "SELECT 1"})

	if first.ID == "" || second.ID == "" || first.ID == second.ID {
		t.Fatalf("ids = %q, %q", first.ID, second.ID)
	}
	if !first.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %s", first.CreatedAt)
	}
	if ledger.Len() != 2 {
		t.Fatalf("Len() = %d, duplicates must be kept", ledger.Len())
	}
	if diff := cmp.Diff([]Record{first, second}, ledger.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	ledger := NewLedger()
	ledger.Append(Record{Question: "original"})

	records := ledger.Records()
	records[0].Question = "mutated"

	if got := ledger.Records()[0].Question; got != "original" {
		t.Fatalf("stored record mutated: %q", got)
	}
}

func TestNewestFirstReversesOrder(t *testing.T) {
	ledger := NewLedger()
	for _, question := range []string{"a", "b", "c"} {
		ledger.Append(Record{Question: question})
	}
	var got []string
	for _, record := range NewestFirst(ledger.Records()) {
		got = append(got, record.Question)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestClearEmptiesLedger(t *testing.T) {
	ledger := NewLedger()
	ledger.Append(Record{Question: "a"})
	ledger.Clear()
	if ledger.Len() != 0 || len(ledger.Records()) != 0 {
		t.Fatalf("ledger not empty after Clear: %d", ledger.Len())
	}
	ledger.Append(Record{Question: "b"})
	if ledger.Len() != 1 {
		t.Fatalf("Len() = %d after append following Clear", ledger.Len())
	}
}
