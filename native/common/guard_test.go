package common

import (
	"errors"
	"testing"
)

func TestGuardHonoursPauses(t *testing.T) {
	pauses := StaticPauses{"amm": true}
	if err := Guard(pauses, "rebase"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	err := Guard(pauses, "AMM")
	if !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(nil, "amm"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
}
