package events

import (
	"strings"

	"github.com/holiman/uint256"

	"rebasevault/core/types"
	"rebasevault/crypto"
)

const (
	// TypePoolSwap is emitted for every executed swap.
	TypePoolSwap = "amm.swap"
	// TypeLiquidityAdded is emitted when LP shares are issued.
	TypeLiquidityAdded = "amm.liquidity_added"
	// TypeLiquidityRemoved is emitted when LP shares are redeemed.
	TypeLiquidityRemoved = "amm.liquidity_removed"
)

// PoolSwap captures an executed swap.
type PoolSwap struct {
	PoolID    string
	Trader    crypto.Address
	Direction string
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Fee       *uint256.Int
}

func (PoolSwap) EventType() string { return TypePoolSwap }

func (e PoolSwap) Event() *types.Event {
	return &types.Event{
		Type: TypePoolSwap,
		Attributes: map[string]string{
			"pool":      strings.TrimSpace(e.PoolID),
			"trader":    formatAddress(e.Trader),
			"direction": e.Direction,
			"amountIn":  formatAmount(e.AmountIn),
			"amountOut": formatAmount(e.AmountOut),
			"fee":       formatAmount(e.Fee),
		},
	}
}

// LiquidityAdded captures an LP deposit.
type LiquidityAdded struct {
	PoolID   string
	Provider crypto.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
	LPShares *uint256.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

func (e LiquidityAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityAdded,
		Attributes: map[string]string{
			"pool":     strings.TrimSpace(e.PoolID),
			"provider": formatAddress(e.Provider),
			"amountA":  formatAmount(e.AmountA),
			"amountB":  formatAmount(e.AmountB),
			"lpShares": formatAmount(e.LPShares),
		},
	}
}

// LiquidityRemoved captures an LP redemption.
type LiquidityRemoved struct {
	PoolID   string
	Provider crypto.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
	LPShares *uint256.Int
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

func (e LiquidityRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityRemoved,
		Attributes: map[string]string{
			"pool":     strings.TrimSpace(e.PoolID),
			"provider": formatAddress(e.Provider),
			"amountA":  formatAmount(e.AmountA),
			"amountB":  formatAmount(e.AmountB),
			"lpShares": formatAmount(e.LPShares),
		},
	}
}
