package rebase

import (
	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

// LedgerState captures the ledger-wide share accounting.
type LedgerState struct {
	// TotalShares is the number of shares issued and not yet redeemed.
	TotalShares *uint256.Int
	// Reserve is the cached total backing. Only a rebase overwrites it;
	// mint and burn adjust it by the backing they add or remove.
	Reserve *uint256.Int
}

// NewLedgerState returns the genesis state: no shares, no reserve.
func NewLedgerState() *LedgerState {
	return &LedgerState{TotalShares: new(uint256.Int), Reserve: new(uint256.Int)}
}

// Clone returns a deep copy of the ledger state.
func (s *LedgerState) Clone() *LedgerState {
	clone := NewLedgerState()
	if s == nil {
		return clone
	}
	if s.TotalShares != nil {
		clone.TotalShares.Set(s.TotalShares)
	}
	if s.Reserve != nil {
		clone.Reserve.Set(s.Reserve)
	}
	return clone
}

// ShareAccount records the shares owned by a single holder.
type ShareAccount struct {
	Owner  crypto.Address
	Shares *uint256.Int
}

// Metadata describes the token surface exposed by the ledger.
type Metadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

type storedAccount struct {
	Prefix string
	Owner  []byte
	Shares *uint256.Int
}

func (a *storedAccount) toAccount() ShareAccount {
	shares := new(uint256.Int)
	if a.Shares != nil {
		shares.Set(a.Shares)
	}
	return ShareAccount{
		Owner:  crypto.NewAddress(crypto.AddressPrefix(a.Prefix), a.Owner),
		Shares: shares,
	}
}
