package amm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

// Direction selects which side of the pair a swap pays in.
type Direction uint8

const (
	// AToB pays the plain asset in and receives the rebasing token.
	AToB Direction = iota + 1
	// BToA pays the rebasing token in and receives the plain asset.
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return "unknown"
	}
}

// ParseDirection accepts the canonical names plus the short "ab"/"ba" forms.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "a_to_b", "atob", "ab":
		return AToB, nil
	case "b_to_a", "btoa", "ba":
		return BToA, nil
	default:
		return 0, fmt.Errorf("amm: unknown swap direction %q", raw)
	}
}

// DefaultFeePPM is the swap fee in parts per million (0.3%).
const DefaultFeePPM uint32 = 3_000

const feeDenominator = 1_000_000

// Config describes a pool.
type Config struct {
	ID     string
	FeePPM uint32
}

// PoolState is the persisted pool accounting. The rebasing side has no stored
// reserve; it is always read from the ledger balance of the pool account.
type PoolState struct {
	LPTotalShares *uint256.Int
	PlainReserve  *uint256.Int
}

func newPoolState() *PoolState {
	return &PoolState{LPTotalShares: new(uint256.Int), PlainReserve: new(uint256.Int)}
}

// Clone returns a deep copy.
func (s *PoolState) Clone() *PoolState {
	clone := newPoolState()
	if s == nil {
		return clone
	}
	if s.LPTotalShares != nil {
		clone.LPTotalShares.Set(s.LPTotalShares)
	}
	if s.PlainReserve != nil {
		clone.PlainReserve.Set(s.PlainReserve)
	}
	return clone
}

// LPAccount records a provider's pool shares.
type LPAccount struct {
	Owner  crypto.Address
	Shares *uint256.Int
}

type storedLP struct {
	Prefix string
	Owner  []byte
	Shares *uint256.Int
}

// Reserves is a snapshot of both sides of the pool.
type Reserves struct {
	A *uint256.Int
	B *uint256.Int
}

// Quote is the priced outcome of a swap against a reserve snapshot.
type Quote struct {
	Direction  Direction
	AmountIn   *uint256.Int
	AmountOut  *uint256.Int
	Fee        *uint256.Int
	ReserveIn  *uint256.Int
	ReserveOut *uint256.Int
}

// LiquidityResult reports what an add or remove actually moved.
type LiquidityResult struct {
	LPShares *uint256.Int
	AmountA  *uint256.Int
	AmountB  *uint256.Int
}

// DustReporter is implemented by tokens that cannot move every non-zero
// amount, such as a share ledger whose smallest unit is worth more than one
// token.
type DustReporter interface {
	IsDust(amount *uint256.Int) (bool, error)
}
