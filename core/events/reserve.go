package events

import (
	"github.com/holiman/uint256"

	"rebasevault/core/types"
)

// TypeHoldingsUpdated is emitted whenever the reserve book changes.
const TypeHoldingsUpdated = "reserve.holdings_updated"

// HoldingsUpdated captures the reserve book after a mutation.
type HoldingsUpdated struct {
	Action   string
	Amount   *uint256.Int
	Liquid   *uint256.Int
	Deployed *uint256.Int
	Pending  *uint256.Int
}

func (HoldingsUpdated) EventType() string { return TypeHoldingsUpdated }

func (e HoldingsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeHoldingsUpdated,
		Attributes: map[string]string{
			"action":   e.Action,
			"amount":   formatAmount(e.Amount),
			"liquid":   formatAmount(e.Liquid),
			"deployed": formatAmount(e.Deployed),
			"pending":  formatAmount(e.Pending),
		},
	}
}
