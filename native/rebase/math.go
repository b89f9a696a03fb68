package rebase

import "github.com/holiman/uint256"

// mulDiv computes floor(x*y/d), failing when x*y does not fit in 256 bits.
// d must be non-zero.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return product.Div(product, d), nil
}

// tokensToShares converts a token amount into shares at the state's price,
// rounding down. With no shares or no reserve the rate is 1:1.
func tokensToShares(amount *uint256.Int, s *LedgerState) (*uint256.Int, error) {
	if s.TotalShares.IsZero() || s.Reserve.IsZero() {
		return new(uint256.Int).Set(amount), nil
	}
	return mulDiv(amount, s.TotalShares, s.Reserve)
}

// sharesToTokens converts shares into tokens at the state's price, rounding
// down. With no shares outstanding the rate is 1:1.
func sharesToTokens(shares *uint256.Int, s *LedgerState) (*uint256.Int, error) {
	if s.TotalShares.IsZero() {
		return new(uint256.Int).Set(shares), nil
	}
	return mulDiv(shares, s.Reserve, s.TotalShares)
}

func addChecked(x, y *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}
