package events

import (
	"testing"

	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

func TestBufferFlushesOnlyOnDemand(t *testing.T) {
	var buf Buffer
	recorder := NewRecorder(4)

	buf.Emit(Rebased{Previous: uint256.NewInt(1), Reserve: uint256.NewInt(2)})
	if got := len(recorder.Recent(0)); got != 0 {
		t.Fatalf("expected no events before flush, got %d", got)
	}
	buf.Flush(recorder)
	events := recorder.Recent(0)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Attributes["reserve"] != "2" {
		t.Fatalf("unexpected reserve attribute %q", events[0].Attributes["reserve"])
	}

	buf.Emit(Rebased{})
	buf.Reset()
	buf.Flush(recorder)
	if got := len(recorder.Recent(0)); got != 1 {
		t.Fatalf("reset events must not be flushed, have %d", got)
	}
}

func TestRecorderBounded(t *testing.T) {
	recorder := NewRecorder(2)
	addr := crypto.ModuleAddress("test")
	for i := 0; i < 5; i++ {
		recorder.Emit(LedgerMinted{Recipient: addr, Amount: uint256.NewInt(uint64(i)), Shares: uint256.NewInt(uint64(i))})
	}
	events := recorder.Recent(10)
	if len(events) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(events))
	}
	if events[1].Attributes["amount"] != "4" {
		t.Fatalf("expected newest event last, got %q", events[1].Attributes["amount"])
	}
}
