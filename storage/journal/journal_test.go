package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dsn, err := FileDSN(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	j, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	first, err := j.Record(ctx, Entry{Operation: "deposit", Caller: "rbv1abc", Details: map[string]string{"amount": "100"}})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID == "" || first.Status != StatusCommitted {
		t.Fatalf("expected defaults to be filled, got %+v", first)
	}
	if _, err := j.Record(ctx, Entry{Operation: "swap", Status: StatusRejected, Error: "amm: slippage exceeded", Timestamp: time.Unix(1700000000, 0)}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != "swap" || entries[0].Status != StatusRejected {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}
	if entries[1].Details["amount"] != "100" {
		t.Fatalf("details not preserved: %+v", entries[1].Details)
	}
}

func TestRecordRequiresOperation(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Record(context.Background(), Entry{}); err == nil {
		t.Fatalf("expected error for empty operation")
	}
	if _, err := Open(" "); err != ErrPathRequired {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}
