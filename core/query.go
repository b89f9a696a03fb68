package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	vaulterrors "rebasevault/core/errors"
	"rebasevault/crypto"
	"rebasevault/native/amm"
	"rebasevault/native/bank"
	"rebasevault/native/params"
	"rebasevault/native/rebase"
	"rebasevault/native/reserve"
	"rebasevault/storage/journal"
)

// BalanceOf returns the committed token balance of addr. It reflects the last
// rebase; use Rebase or a fresh quote to observe pending yield.
func (v *Vault) BalanceOf(ctx context.Context, addr crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.read(func(u *unit) (err error) {
		out, err = u.ledger.BalanceOf(addr)
		return err
	})
	return out, err
}

// SharesOf returns the shares held by addr.
func (v *Vault) SharesOf(ctx context.Context, addr crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.read(func(u *unit) (err error) {
		out, err = u.ledger.SharesOf(addr)
		return err
	})
	return out, err
}

// TotalSupply returns the cached reserve.
func (v *Vault) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.read(func(u *unit) (err error) {
		out, err = u.ledger.TotalSupply()
		return err
	})
	return out, err
}

// LedgerState returns the committed ledger accounting.
func (v *Vault) LedgerState(ctx context.Context) (*rebase.LedgerState, error) {
	var out *rebase.LedgerState
	err := v.read(func(u *unit) (err error) {
		out, err = u.ledger.State()
		return err
	})
	return out, err
}

// Accounts lists every rebasing token holder.
func (v *Vault) Accounts(ctx context.Context) ([]rebase.ShareAccount, error) {
	var out []rebase.ShareAccount
	err := v.read(func(u *unit) (err error) {
		out, err = u.ledger.Accounts()
		return err
	})
	return out, err
}

// Holdings returns the reserve book.
func (v *Vault) Holdings(ctx context.Context) (reserve.Holdings, error) {
	var out reserve.Holdings
	err := v.read(func(u *unit) (err error) {
		out, err = u.book.Holdings()
		return err
	})
	return out, err
}

// AssetBalance returns a plain asset balance.
func (v *Vault) AssetBalance(ctx context.Context, symbol string, addr crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.read(func(u *unit) (err error) {
		out, err = u.bank.Balance(symbol, addr)
		return err
	})
	return out, err
}

// Asset returns the registry entry of a plain asset.
func (v *Vault) Asset(ctx context.Context, symbol string) (*bank.Asset, error) {
	var out *bank.Asset
	err := v.read(func(u *unit) (err error) {
		out, err = u.bank.Asset(symbol)
		return err
	})
	return out, err
}

// PoolConfig returns the configuration of a pool.
func (v *Vault) PoolConfig(poolID string) (PoolConfig, error) {
	cfg, ok := v.pools[strings.TrimSpace(poolID)]
	if !ok {
		return PoolConfig{}, fmt.Errorf("%w: %s", vaulterrors.ErrUnknownPool, poolID)
	}
	return cfg, nil
}

// Providers lists the LP accounts of a pool.
func (v *Vault) Providers(ctx context.Context, poolID string) ([]amm.LPAccount, error) {
	var out []amm.LPAccount
	err := v.read(func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		out, err = pool.Providers()
		return err
	})
	return out, err
}

// PoolState returns the persisted accounting of a pool.
func (v *Vault) PoolState(ctx context.Context, poolID string) (*amm.PoolState, error) {
	var out *amm.PoolState
	err := v.read(func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		out, err = pool.State()
		return err
	})
	return out, err
}

// LiveReserves returns both committed pool reserves.
func (v *Vault) LiveReserves(ctx context.Context, poolID string) (amm.Reserves, error) {
	var out amm.Reserves
	err := v.read(func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		out, err = pool.LiveReserves()
		return err
	})
	return out, err
}

// LPBalance returns the LP shares held by addr in a pool.
func (v *Vault) LPBalance(ctx context.Context, poolID string, addr crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.read(func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		out, err = pool.LPBalance(addr)
		return err
	})
	return out, err
}

// QuoteSwap prices a swap. A fresh quote rebases first inside a throwaway
// unit of work, so it reflects yield the committed state has not seen yet.
// Nothing is ever committed.
func (v *Vault) QuoteSwap(ctx context.Context, poolID string, amountIn *uint256.Int, dir amm.Direction, fresh bool) (*amm.Quote, error) {
	var out *amm.Quote
	err := v.read(func(u *unit) error {
		pool, err := u.pool(poolID)
		if err != nil {
			return err
		}
		if fresh {
			if err := pool.Refresh(); err != nil {
				return err
			}
		}
		out, err = pool.QuoteSwap(amountIn, dir)
		return err
	})
	return out, err
}

// Journal returns the most recent journaled operations, or nil when no
// journal is configured.
func (v *Vault) Journal(ctx context.Context, limit int) ([]journal.Entry, error) {
	if v.journal == nil {
		return nil, nil
	}
	return v.journal.Recent(ctx, limit)
}

// Pauses reports the module pause switches currently in force.
func (v *Vault) Pauses(ctx context.Context) (params.Pauses, error) {
	var out params.Pauses
	err := v.read(func(u *unit) error {
		pauses, err := u.params.Pauses()
		out = pauses
		return err
	})
	return out, err
}
