package amm

import "github.com/holiman/uint256"

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return product, nil
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// mulDiv computes floor(x*y/d); d must be non-zero.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, err := mul(x, y)
	if err != nil {
		return nil, err
	}
	return product.Div(product, d), nil
}

// mulDivUp computes ceil(x*y/d); d must be non-zero.
func mulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, err := mul(x, y)
	if err != nil {
		return nil, err
	}
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(product, d, rem)
	if !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return quo, nil
}

func minInt(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x
	}
	return y
}

// amountOut prices a constant-product swap. The fee is taken from the input
// first, then the remainder is priced against the reserves:
//
//	afterFee = floor(in*(1e6-fee)/1e6)
//	out      = floor(rOut*afterFee/(rIn+afterFee))
func amountOut(amountIn, reserveIn, reserveOut *uint256.Int, feePPM uint32) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrPoolDrained
	}
	afterFee, err := inputAfterFee(amountIn, feePPM)
	if err != nil {
		return nil, err
	}
	if afterFee.IsZero() {
		return nil, ErrZeroAmount
	}
	denominator, err := add(reserveIn, afterFee)
	if err != nil {
		return nil, err
	}
	out, err := mulDiv(reserveOut, afterFee, denominator)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, ErrZeroAmount
	}
	if !out.Lt(reserveOut) {
		return nil, ErrPoolDrained
	}
	return out, nil
}

func inputAfterFee(amountIn *uint256.Int, feePPM uint32) (*uint256.Int, error) {
	return mulDiv(amountIn, uint256.NewInt(uint64(feeDenominator-feePPM)), uint256.NewInt(feeDenominator))
}

// checkInvariant reports whether after.A*after.B >= before.A*before.B.
func checkInvariant(before, after Reserves) error {
	kBefore, err := mul(before.A, before.B)
	if err != nil {
		return err
	}
	kAfter, err := mul(after.A, after.B)
	if err != nil {
		return err
	}
	if kAfter.Lt(kBefore) {
		return ErrInvariantViolated
	}
	return nil
}
