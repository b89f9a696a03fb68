package events

import (
	"strings"

	"github.com/holiman/uint256"

	"rebasevault/core/types"
	"rebasevault/crypto"
)

const (
	// TypeRebased is emitted whenever the ledger refreshes its cached reserve.
	TypeRebased = "rebase.rebased"
	// TypeLedgerMinted is emitted when backing is credited as new shares.
	TypeLedgerMinted = "rebase.minted"
	// TypeLedgerBurned is emitted when shares are redeemed against backing.
	TypeLedgerBurned = "rebase.burned"
	// TypeLedgerTransfer is emitted when shares change hands.
	TypeLedgerTransfer = "rebase.transfer"
)

// Rebased records the reserve before and after a rebase.
type Rebased struct {
	Previous *uint256.Int
	Reserve  *uint256.Int
}

func (Rebased) EventType() string { return TypeRebased }

func (e Rebased) Event() *types.Event {
	return &types.Event{
		Type: TypeRebased,
		Attributes: map[string]string{
			"previous": formatAmount(e.Previous),
			"reserve":  formatAmount(e.Reserve),
		},
	}
}

// LedgerMinted captures a mint against the rebasing ledger.
type LedgerMinted struct {
	Recipient crypto.Address
	Amount    *uint256.Int
	Shares    *uint256.Int
}

func (LedgerMinted) EventType() string { return TypeLedgerMinted }

func (e LedgerMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeLedgerMinted,
		Attributes: map[string]string{
			"recipient": formatAddress(e.Recipient),
			"amount":    formatAmount(e.Amount),
			"shares":    formatAmount(e.Shares),
		},
	}
}

// LedgerBurned captures a burn against the rebasing ledger.
type LedgerBurned struct {
	Owner  crypto.Address
	Amount *uint256.Int
	Shares *uint256.Int
}

func (LedgerBurned) EventType() string { return TypeLedgerBurned }

func (e LedgerBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeLedgerBurned,
		Attributes: map[string]string{
			"owner":  formatAddress(e.Owner),
			"amount": formatAmount(e.Amount),
			"shares": formatAmount(e.Shares),
		},
	}
}

// LedgerTransfer captures a share movement between two holders.
type LedgerTransfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount *uint256.Int
	Shares *uint256.Int
	Memo   string
}

func (LedgerTransfer) EventType() string { return TypeLedgerTransfer }

func (e LedgerTransfer) Event() *types.Event {
	attrs := map[string]string{
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
		"shares": formatAmount(e.Shares),
	}
	if memo := strings.TrimSpace(e.Memo); memo != "" {
		attrs["memo"] = memo
	}
	return &types.Event{Type: TypeLedgerTransfer, Attributes: attrs}
}
