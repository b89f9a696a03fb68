package events

import (
	"strconv"

	"rebasevault/core/types"
)

// TypePausesUpdated is emitted when an administrator changes the module
// pause switches.
const TypePausesUpdated = "params.pauses_updated"

// PausesUpdated captures the switches after the change.
type PausesUpdated struct {
	Rebase bool
	Bank   bool
	AMM    bool
}

func (PausesUpdated) EventType() string { return TypePausesUpdated }

func (e PausesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypePausesUpdated,
		Attributes: map[string]string{
			"rebase": strconv.FormatBool(e.Rebase),
			"bank":   strconv.FormatBool(e.Bank),
			"amm":    strconv.FormatBool(e.AMM),
		},
	}
}
