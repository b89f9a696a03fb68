package rebase

import (
	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

// Token exposes the ledger through the generic token capability set used by
// pools. Balances are read at the cached reserve; pools call Rebase before
// pricing so the cached figure is current.
type Token struct {
	engine *Engine
}

// Token returns the capability adapter for the engine.
func (e *Engine) Token() *Token { return &Token{engine: e} }

func (t *Token) Transfer(from, to crypto.Address, amount *uint256.Int, memo string) error {
	_, err := t.engine.Transfer(from, to, amount, memo)
	return err
}

func (t *Token) Balance(addr crypto.Address) (*uint256.Int, error) {
	return t.engine.BalanceOf(addr)
}

func (t *Token) TotalSupply() (*uint256.Int, error) { return t.engine.TotalSupply() }

func (t *Token) Decimals() uint8 { return t.engine.Decimals() }

func (t *Token) Symbol() string { return t.engine.Metadata().Symbol }

// IsDust reports whether amount converts to zero shares at the cached
// reserve, in which case Transfer would reject it.
func (t *Token) IsDust(amount *uint256.Int) (bool, error) {
	if amount == nil || amount.IsZero() {
		return false, nil
	}
	shares, err := t.engine.TokensToShares(amount)
	if err != nil {
		return false, err
	}
	return shares.IsZero(), nil
}

// Rebase refreshes the ledger reserve from the oracle.
func (t *Token) Rebase() (*uint256.Int, error) { return t.engine.Rebase() }
