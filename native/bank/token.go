package bank

import (
	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

// Token binds the ledger to a single asset, satisfying the pool token
// capability set.
type Token struct {
	ledger   *Ledger
	symbol   string
	decimals uint8
}

// Token returns an adapter for symbol. The asset must be registered.
func (l *Ledger) Token(symbol string) (*Token, error) {
	asset, err := l.Asset(symbol)
	if err != nil {
		return nil, err
	}
	return &Token{ledger: l, symbol: asset.Symbol, decimals: asset.Decimals}, nil
}

func (t *Token) Transfer(from, to crypto.Address, amount *uint256.Int, memo string) error {
	return t.ledger.Transfer(t.symbol, from, to, amount, memo)
}

func (t *Token) Balance(addr crypto.Address) (*uint256.Int, error) {
	return t.ledger.Balance(t.symbol, addr)
}

func (t *Token) TotalSupply() (*uint256.Int, error) { return t.ledger.TotalSupply(t.symbol) }

func (t *Token) Decimals() uint8 { return t.decimals }

func (t *Token) Symbol() string { return t.symbol }
