package core

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"rebasevault/crypto"
	"rebasevault/native/amm"
	"rebasevault/native/params"
)

func amountDetail(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

// Deposit records amount of new backing and mints the matching rebasing
// tokens to account in one step. The minted share count is returned.
func (v *Vault) Deposit(ctx context.Context, account crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	op := opInfo{name: "deposit", caller: account, details: map[string]string{"amount": amountDetail(amount)}}
	err := v.execute(ctx, op, func(u *unit) error {
		if err := u.book.RecordDeposit(amount); err != nil {
			return err
		}
		shares, err := u.ledger.Mint(account, amount)
		if err != nil {
			return err
		}
		minted = shares
		return u.book.Credit(amount)
	})
	return minted, err
}

// Withdraw burns amount of the caller's tokens and pays the backing out of
// the liquid reserve. The burned share count is returned.
func (v *Vault) Withdraw(ctx context.Context, account crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	return v.burnAndPay(ctx, "withdraw", account, amount)
}

// WithdrawAll redeems every share account holds, leaving no dust, and pays
// the backing out of the liquid reserve. The redeemed token amount is
// returned.
func (v *Vault) WithdrawAll(ctx context.Context, account crypto.Address) (*uint256.Int, error) {
	var redeemed *uint256.Int
	err := v.execute(ctx, opInfo{name: "withdraw_all", caller: account}, func(u *unit) error {
		amount, err := u.ledger.BurnAll(account)
		if err != nil {
			return err
		}
		redeemed = amount
		if amount.IsZero() {
			return nil
		}
		return u.book.Payout(amount)
	})
	return redeemed, err
}

// Mint credits tokens against backing previously queued with
// RecordPendingDeposit.
func (v *Vault) Mint(ctx context.Context, recipient crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	op := opInfo{name: "mint", caller: recipient, details: map[string]string{"amount": amountDetail(amount)}}
	err := v.execute(ctx, op, func(u *unit) error {
		shares, err := u.ledger.Mint(recipient, amount)
		if err != nil {
			return err
		}
		minted = shares
		return u.book.Credit(amount)
	})
	return minted, err
}

// Burn redeems owner's tokens on an administrator's behalf, paying the
// backing out of the liquid reserve.
func (v *Vault) Burn(ctx context.Context, owner crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	return v.burnAndPay(ctx, "burn", owner, amount)
}

func (v *Vault) burnAndPay(ctx context.Context, name string, owner crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	var burned *uint256.Int
	op := opInfo{name: name, caller: owner, details: map[string]string{"amount": amountDetail(amount)}}
	err := v.execute(ctx, op, func(u *unit) error {
		shares, err := u.ledger.Burn(owner, amount)
		if err != nil {
			return err
		}
		burned = shares
		return u.book.Payout(amount)
	})
	return burned, err
}

// Transfer moves rebasing tokens between holders. The moved share count is
// returned.
func (v *Vault) Transfer(ctx context.Context, from, to crypto.Address, amount *uint256.Int, memo string) (*uint256.Int, error) {
	var moved *uint256.Int
	op := opInfo{name: "transfer", caller: from, details: map[string]string{
		"to":     to.String(),
		"amount": amountDetail(amount),
	}}
	err := v.execute(ctx, op, func(u *unit) error {
		shares, err := u.ledger.Transfer(from, to, amount, memo)
		moved = shares
		return err
	})
	return moved, err
}

// TransferAsset moves a plain asset between accounts.
func (v *Vault) TransferAsset(ctx context.Context, symbol string, from, to crypto.Address, amount *uint256.Int, memo string) error {
	op := opInfo{name: "transfer_asset", caller: from, details: map[string]string{
		"asset":  symbol,
		"to":     to.String(),
		"amount": amountDetail(amount),
	}}
	return v.execute(ctx, op, func(u *unit) error {
		return u.bank.Transfer(symbol, from, to, amount, memo)
	})
}

// Rebase refreshes the ledger reserve from the reserve book.
func (v *Vault) Rebase(ctx context.Context) (*uint256.Int, error) {
	var reserveValue *uint256.Int
	err := v.execute(ctx, opInfo{name: "rebase"}, func(u *unit) error {
		value, err := u.ledger.Rebase()
		reserveValue = value
		return err
	})
	return reserveValue, err
}

// Swap executes a swap on the named pool.
func (v *Vault) Swap(ctx context.Context, poolID string, trader crypto.Address, amountIn, minOut *uint256.Int, dir amm.Direction) (*amm.Quote, error) {
	var quote *amm.Quote
	op := opInfo{name: "swap", caller: trader, details: map[string]string{
		"pool":      poolID,
		"direction": dir.String(),
		"amountIn":  amountDetail(amountIn),
		"minOut":    amountDetail(minOut),
	}}
	err := v.execute(ctx, op, func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		quote, err = pool.Swap(trader, amountIn, minOut, dir)
		return err
	})
	if err == nil {
		v.metrics.RecordSwap(poolID, dir.String(), amountIn)
	}
	return quote, err
}

// SwapAToB pays the plain asset in for the rebasing token.
func (v *Vault) SwapAToB(ctx context.Context, poolID string, trader crypto.Address, amountIn, minOut *uint256.Int) (*amm.Quote, error) {
	return v.Swap(ctx, poolID, trader, amountIn, minOut, amm.AToB)
}

// SwapBToA pays the rebasing token in for the plain asset.
func (v *Vault) SwapBToA(ctx context.Context, poolID string, trader crypto.Address, amountIn, minOut *uint256.Int) (*amm.Quote, error) {
	return v.Swap(ctx, poolID, trader, amountIn, minOut, amm.BToA)
}

// AddLiquidity deposits both sides into the named pool.
func (v *Vault) AddLiquidity(ctx context.Context, poolID string, provider crypto.Address, amountA, amountB, minLP *uint256.Int) (*amm.LiquidityResult, error) {
	var result *amm.LiquidityResult
	op := opInfo{name: "add_liquidity", caller: provider, details: map[string]string{
		"pool":    poolID,
		"amountA": amountDetail(amountA),
		"amountB": amountDetail(amountB),
	}}
	err := v.execute(ctx, op, func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		result, err = pool.AddLiquidity(provider, amountA, amountB, minLP)
		return err
	})
	return result, err
}

// RemoveLiquidity redeems LP shares from the named pool.
func (v *Vault) RemoveLiquidity(ctx context.Context, poolID string, provider crypto.Address, lp, minA, minB *uint256.Int) (*amm.LiquidityResult, error) {
	var result *amm.LiquidityResult
	op := opInfo{name: "remove_liquidity", caller: provider, details: map[string]string{
		"pool": poolID,
		"lp":   amountDetail(lp),
	}}
	err := v.execute(ctx, op, func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		result, err = pool.RemoveLiquidity(provider, lp, minA, minB)
		return err
	})
	return result, err
}

// RecordPendingDeposit queues backing that has arrived but not yet been
// credited as tokens. Total backing is unchanged until Mint credits it.
func (v *Vault) RecordPendingDeposit(ctx context.Context, amount *uint256.Int) error {
	return v.reserveOp(ctx, "record_pending", amount, func(u *unit) error { return u.book.RecordDeposit(amount) })
}

// Deploy moves liquid backing into the yield strategy.
func (v *Vault) Deploy(ctx context.Context, amount *uint256.Int) error {
	return v.reserveOp(ctx, "deploy", amount, func(u *unit) error { return u.book.Deploy(amount) })
}

// Recall returns deployed backing to the liquid balance.
func (v *Vault) Recall(ctx context.Context, amount *uint256.Int) error {
	return v.reserveOp(ctx, "recall", amount, func(u *unit) error { return u.book.Recall(amount) })
}

// ReportDeployed marks the strategy's current value, realising yield or loss.
// Holders see the change at the next rebase.
func (v *Vault) ReportDeployed(ctx context.Context, value *uint256.Int) error {
	return v.reserveOp(ctx, "report_deployed", value, func(u *unit) error { return u.book.ReportDeployed(value) })
}

func (v *Vault) reserveOp(ctx context.Context, name string, amount *uint256.Int, fn func(u *unit) error) error {
	op := opInfo{name: name, details: map[string]string{"amount": amountDetail(amount)}}
	return v.execute(ctx, op, func(u *unit) error {
		if err := fn(u); err != nil {
			return fmt.Errorf("reserve %s: %w", name, err)
		}
		return nil
	})
}

// SetPauses replaces the module pause switches. The change is persisted and
// survives restarts; configured switches no longer apply afterwards.
func (v *Vault) SetPauses(ctx context.Context, pauses params.Pauses) error {
	op := opInfo{name: "set_pauses", details: map[string]string{
		"rebase": fmt.Sprint(pauses.Rebase),
		"bank":   fmt.Sprint(pauses.Bank),
		"amm":    fmt.Sprint(pauses.AMM),
	}}
	return v.execute(ctx, op, func(u *unit) error {
		return u.params.SetPauses(pauses)
	})
}
