package reserve

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Holdings is the reserve book's view of where the backing asset sits.
type Holdings struct {
	// Liquid is the backing asset held directly by the reserve account.
	Liquid *uint256.Int
	// Deployed is the value currently working in the yield strategy as last
	// reported by the strategy.
	Deployed *uint256.Int
	// Pending is the portion of Liquid received for deposits that have not yet
	// been credited to the ledger.
	Pending *uint256.Int
}

// NewHoldings returns zeroed holdings.
func NewHoldings() Holdings {
	return Holdings{Liquid: new(uint256.Int), Deployed: new(uint256.Int), Pending: new(uint256.Int)}
}

// Clone returns a deep copy so callers can mutate freely.
func (h Holdings) Clone() Holdings {
	clone := NewHoldings()
	if h.Liquid != nil {
		clone.Liquid.Set(h.Liquid)
	}
	if h.Deployed != nil {
		clone.Deployed.Set(h.Deployed)
	}
	if h.Pending != nil {
		clone.Pending.Set(h.Pending)
	}
	return clone
}

// Backing computes liquid + deployed - pending. It fails rather than wrapping
// or clamping when the figure is not representable.
func (h Holdings) Backing() (*uint256.Int, error) {
	h = h.Clone()
	gross, overflow := new(uint256.Int).AddOverflow(h.Liquid, h.Deployed)
	if overflow {
		return nil, ErrHoldingsOverflow
	}
	if h.Pending.Gt(gross) {
		return nil, fmt.Errorf("%w: pending %s, holdings %s", ErrPendingExceedsHoldings, h.Pending.Dec(), gross.Dec())
	}
	return gross.Sub(gross, h.Pending), nil
}
