package core

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	vaulterrors "rebasevault/core/errors"
	"rebasevault/core/events"
	"rebasevault/core/genesis"
	"rebasevault/crypto"
	"rebasevault/native/amm"
	nativecommon "rebasevault/native/common"
	"rebasevault/native/params"
	"rebasevault/native/rebase"
	"rebasevault/native/reserve"
	"rebasevault/storage"
	"rebasevault/storage/journal"
)

const testPool = "rusd-usdc"

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type harness struct {
	vault    *Vault
	recorder *events.Recorder
	journal  *journal.Journal
	alice    crypto.Address
	bob      crypto.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	recorder := events.NewRecorder(1024)

	vault, err := New(db, Config{
		Token: rebase.Metadata{Symbol: "rUSD", Name: "Rebasing USD", Decimals: 6},
		Pools: []PoolConfig{{ID: testPool, PlainAsset: "usdc", FeePPM: amm.DefaultFeePPM}},
	}, WithJournal(j), WithEmitter(recorder))
	require.NoError(t, err)

	h := &harness{vault: vault, recorder: recorder, journal: j, alice: addr(1), bob: addr(2)}
	require.NoError(t, vault.ApplyGenesis(context.Background(), &genesis.Resolved{
		Assets: []genesis.AssetSpec{{Symbol: "USDC", Name: "USD Coin", Decimals: 6}},
		Allocations: []genesis.Allocation{
			{Address: h.alice, Symbol: "USDC", Amount: u(1_000_000)},
			{Address: h.bob, Symbol: "USDC", Amount: u(1_000_000)},
		},
		Deposits: []genesis.Deposit{{Address: h.alice, Amount: u(2_000_000)}},
		Liquid:   new(uint256.Int),
		Deployed: new(uint256.Int),
		Pending:  new(uint256.Int),
	}))
	return h
}

func (h *harness) balance(t *testing.T, who crypto.Address) uint64 {
	t.Helper()
	bal, err := h.vault.BalanceOf(context.Background(), who)
	require.NoError(t, err)
	return bal.Uint64()
}

func TestGenesisSeedsLedgerAndBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.Equal(t, uint64(2_000_000), h.balance(t, h.alice))
	holdings, err := h.vault.Holdings(ctx)
	require.NoError(t, err)
	backing, err := holdings.Backing()
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), backing.Uint64())
	require.True(t, holdings.Pending.IsZero())

	applied, err := h.vault.Initialised(ctx)
	require.NoError(t, err)
	require.True(t, applied)
	require.ErrorIs(t, h.vault.ApplyGenesis(ctx, &genesis.Resolved{}), vaulterrors.ErrGenesisApplied)
}

func TestYieldReachesHoldersAfterRebase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.vault.Deploy(ctx, u(1_000_000)))
	require.NoError(t, h.vault.ReportDeployed(ctx, u(1_100_000)))
	// Committed balances only move on rebase.
	require.Equal(t, uint64(2_000_000), h.balance(t, h.alice))

	reserveValue, err := h.vault.Rebase(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2_100_000), reserveValue.Uint64())
	require.Equal(t, uint64(2_100_000), h.balance(t, h.alice))

	shares, err := h.vault.Transfer(ctx, h.alice, h.bob, u(21_000), "split")
	require.NoError(t, err)
	require.Equal(t, uint64(20_000), shares.Uint64())
	require.Equal(t, uint64(21_000), h.balance(t, h.bob))
}

func TestDepositAndWithdrawKeepBackingInStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	minted, err := h.vault.Deposit(ctx, h.bob, u(500_000))
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), minted.Uint64())

	_, err = h.vault.Withdraw(ctx, h.alice, u(250_000))
	require.NoError(t, err)

	state, err := h.vault.LedgerState(ctx)
	require.NoError(t, err)
	holdings, err := h.vault.Holdings(ctx)
	require.NoError(t, err)
	backing, err := holdings.Backing()
	require.NoError(t, err)
	require.True(t, state.Reserve.Eq(backing), "reserve %s backing %s", state.Reserve, backing)
	require.Equal(t, uint64(2_250_000), backing.Uint64())

	// A queued deposit does not change backing until it is minted.
	require.NoError(t, h.vault.RecordPendingDeposit(ctx, u(1_000)))
	_, err = h.vault.Mint(ctx, h.bob, u(1_000))
	require.NoError(t, err)
	require.Equal(t, uint64(501_000), h.balance(t, h.bob))
	_, err = h.vault.Mint(ctx, h.bob, u(1))
	require.ErrorIs(t, err, reserve.ErrInsufficientPending)
}

func TestFailedSecondLegRollsBackWholeOperation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.vault.Deploy(ctx, u(2_000_000)))
	before := h.recorder.Recent(0)

	// The burn succeeds inside the unit of work but no liquid backing is
	// available to pay out.
	_, err := h.vault.Withdraw(ctx, h.alice, u(10))
	require.ErrorIs(t, err, reserve.ErrInsufficientLiquid)

	shares, err := h.vault.SharesOf(ctx, h.alice)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), shares.Uint64())
	supply, err := h.vault.TotalSupply(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), supply.Uint64())
	require.Len(t, h.recorder.Recent(0), len(before), "events from a discarded operation were published")

	entries, err := h.vault.Journal(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "withdraw", entries[0].Operation)
	require.Equal(t, journal.StatusRejected, entries[0].Status)
}

func seedPool(t *testing.T, h *harness) {
	t.Helper()
	result, err := h.vault.AddLiquidity(context.Background(), testPool, h.alice, u(500_000), u(500_000), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), result.LPShares.Uint64())
}

func TestSwapThroughVault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPool(t, h)

	quote, err := h.vault.QuoteSwap(ctx, testPool, u(10_000), amm.AToB, false)
	require.NoError(t, err)
	require.Equal(t, uint64(9_775), quote.AmountOut.Uint64())

	executed, err := h.vault.SwapAToB(ctx, testPool, h.bob, u(10_000), quote.AmountOut)
	require.NoError(t, err)
	require.Equal(t, uint64(9_775), executed.AmountOut.Uint64())
	require.Equal(t, uint64(9_775), h.balance(t, h.bob))

	usdc, err := h.vault.AssetBalance(ctx, "USDC", h.bob)
	require.NoError(t, err)
	require.Equal(t, uint64(990_000), usdc.Uint64())

	reserves, err := h.vault.LiveReserves(ctx, testPool)
	require.NoError(t, err)
	require.Equal(t, uint64(510_000), reserves.A.Uint64())
	require.Equal(t, uint64(500_000-9_775), reserves.B.Uint64())

	lp, err := h.vault.LPBalance(ctx, testPool, h.alice)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), lp.Uint64())
}

func TestSlippageRejectedSwapLeavesPoolUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPool(t, h)
	before, err := h.vault.LiveReserves(ctx, testPool)
	require.NoError(t, err)

	quote, err := h.vault.QuoteSwap(ctx, testPool, u(10_000), amm.BToA, true)
	require.NoError(t, err)
	_, err = h.vault.SwapBToA(ctx, testPool, h.alice, u(10_000), new(uint256.Int).AddUint64(quote.AmountOut, 1))
	require.ErrorIs(t, err, amm.ErrSlippageExceeded)

	after, err := h.vault.LiveReserves(ctx, testPool)
	require.NoError(t, err)
	require.True(t, before.A.Eq(after.A))
	require.True(t, before.B.Eq(after.B))
}

func TestFreshQuoteSeesPendingYieldWithoutCommitting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPool(t, h)
	require.NoError(t, h.vault.Deploy(ctx, u(1_000_000)))
	require.NoError(t, h.vault.ReportDeployed(ctx, u(1_200_000)))

	stale, err := h.vault.QuoteSwap(ctx, testPool, u(10_000), amm.AToB, false)
	require.NoError(t, err)
	fresh, err := h.vault.QuoteSwap(ctx, testPool, u(10_000), amm.AToB, true)
	require.NoError(t, err)
	require.True(t, fresh.ReserveOut.Gt(stale.ReserveOut))
	require.Equal(t, uint64(550_000), fresh.ReserveOut.Uint64())
	require.True(t, fresh.AmountOut.Gt(stale.AmountOut))

	state, err := h.vault.LedgerState(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), state.Reserve.Uint64(), "fresh quote committed a rebase")

	// The swap itself rebases, so it prices at the fresh reserves. Paying out
	// 10752 at 1.1 per share moves 9774 shares, worth 10751 to bob.
	require.Equal(t, uint64(10_752), fresh.AmountOut.Uint64())
	minOut := new(uint256.Int).SubUint64(fresh.AmountOut, 1)
	executed, err := h.vault.SwapAToB(ctx, testPool, h.bob, u(10_000), minOut)
	require.NoError(t, err)
	require.Equal(t, uint64(10_751), executed.AmountOut.Uint64())
	require.Equal(t, uint64(10_751), h.balance(t, h.bob))
}

// yieldPool seeds the pool and lifts backing from 2M to 3M, so one ledger
// share is worth 1.5 tokens.
func yieldPool(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	seedPool(t, h)
	require.NoError(t, h.vault.Deploy(ctx, u(1_000_000)))
	require.NoError(t, h.vault.ReportDeployed(ctx, u(2_000_000)))
	_, err := h.vault.Rebase(ctx)
	require.NoError(t, err)
}

func TestSwapAfterYieldEnforcesDeliveredMinimum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	yieldPool(t, h)

	quote, err := h.vault.QuoteSwap(ctx, testPool, u(1_000), amm.AToB, false)
	require.NoError(t, err)
	require.Equal(t, uint64(1_492), quote.AmountOut.Uint64())

	// 1492 tokens move as 994 shares, which bob can only redeem for 1491.
	_, err = h.vault.SwapAToB(ctx, testPool, h.bob, u(1_000), quote.AmountOut)
	require.ErrorIs(t, err, amm.ErrSlippageExceeded)
	require.Zero(t, h.balance(t, h.bob))
	usdc, err := h.vault.AssetBalance(ctx, "USDC", h.bob)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), usdc.Uint64())

	executed, err := h.vault.SwapAToB(ctx, testPool, h.bob, u(1_000), u(1_491))
	require.NoError(t, err)
	require.Equal(t, uint64(1_491), executed.AmountOut.Uint64())
	require.Equal(t, uint64(1_491), h.balance(t, h.bob))
}

func TestRemoveLiquidityAfterYieldLeavesShareDust(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	yieldPool(t, h)

	// One LP redeems 1 A and 1.5 B; a single token is less than one share.
	result, err := h.vault.RemoveLiquidity(ctx, testPool, h.alice, u(1), nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.AmountA.Uint64())
	require.True(t, result.AmountB.IsZero())

	reserves, err := h.vault.LiveReserves(ctx, testPool)
	require.NoError(t, err)
	require.Equal(t, uint64(499_999), reserves.A.Uint64())
	require.Equal(t, uint64(750_000), reserves.B.Uint64())

	before := h.balance(t, h.alice)
	result, err = h.vault.RemoveLiquidity(ctx, testPool, h.alice, u(1_000), nil, u(1_500))
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), result.AmountA.Uint64())
	require.Equal(t, uint64(1_500), result.AmountB.Uint64())
	require.Equal(t, before+1_500, h.balance(t, h.alice))
}

func TestRemoveLiquidityThroughVault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPool(t, h)

	result, err := h.vault.RemoveLiquidity(ctx, testPool, h.alice, u(250_000), u(250_000), u(250_000))
	require.NoError(t, err)
	require.Equal(t, uint64(250_000), result.AmountA.Uint64())
	require.Equal(t, uint64(250_000), result.AmountB.Uint64())

	state, err := h.vault.PoolState(ctx, testPool)
	require.NoError(t, err)
	require.Equal(t, uint64(250_000), state.LPTotalShares.Uint64())
	require.Equal(t, uint64(250_000), state.PlainReserve.Uint64())
}

func TestUnknownPoolAndClosedVault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.vault.QuoteSwap(ctx, "missing", u(1), amm.AToB, false)
	require.ErrorIs(t, err, vaulterrors.ErrUnknownPool)

	h.vault.Close()
	_, err = h.vault.Rebase(ctx)
	require.True(t, errors.Is(err, vaulterrors.ErrVaultClosed))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	_, err := New(db, Config{})
	require.ErrorIs(t, err, vaulterrors.ErrInvalidConfig)
	_, err = New(db, Config{
		Token: rebase.Metadata{Symbol: "rUSD"},
		Pools: []PoolConfig{{ID: "a", PlainAsset: "USDC"}, {ID: "a", PlainAsset: "USDC"}},
	})
	require.ErrorIs(t, err, vaulterrors.ErrInvalidConfig)
}

func TestRuntimePausesOverrideConfigAndPersist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pauses, err := h.vault.Pauses(ctx)
	require.NoError(t, err)
	require.Equal(t, params.Pauses{}, pauses)

	require.NoError(t, h.vault.SetPauses(ctx, params.Pauses{Rebase: true}))
	_, err = h.vault.Transfer(ctx, h.alice, h.bob, u(100), "")
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.Equal(t, uint64(0), h.balance(t, h.bob))

	// plain asset transfers stay open
	require.NoError(t, h.vault.TransferAsset(ctx, "USDC", h.alice, h.bob, u(5), ""))

	require.NoError(t, h.vault.SetPauses(ctx, params.Pauses{}))
	_, err = h.vault.Transfer(ctx, h.alice, h.bob, u(100), "")
	require.NoError(t, err)
	require.Equal(t, uint64(100), h.balance(t, h.bob))

	var sawUpdate bool
	for _, evt := range h.recorder.Recent(0) {
		if evt.Type == events.TypePausesUpdated {
			sawUpdate = true
		}
	}
	require.True(t, sawUpdate)
}

func TestConfiguredPausesApplyUntilOverridden(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	vault, err := New(db, Config{
		Token:  rebase.Metadata{Symbol: "rUSD", Decimals: 6},
		Pauses: nativecommon.StaticPauses{"rebase": true},
	})
	require.NoError(t, err)
	ctx := context.Background()

	pauses, err := vault.Pauses(ctx)
	require.NoError(t, err)
	require.True(t, pauses.Rebase)
	alice := addr(1)
	_, err = vault.Deposit(ctx, alice, u(10))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.NoError(t, vault.SetPauses(ctx, params.Pauses{}))
	_, err = vault.Deposit(ctx, alice, u(10))
	require.NoError(t, err)
	bal, err := vault.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal.Uint64())
}

func TestWithdrawAllLeavesNoDust(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.vault.Deposit(ctx, h.bob, u(1_000))
	require.NoError(t, err)
	require.NoError(t, h.vault.Deploy(ctx, u(3)))
	require.NoError(t, h.vault.ReportDeployed(ctx, u(4)))
	_, err = h.vault.Rebase(ctx)
	require.NoError(t, err)

	redeemed, err := h.vault.WithdrawAll(ctx, h.bob)
	require.NoError(t, err)
	require.False(t, redeemed.IsZero())

	shares, err := h.vault.SharesOf(ctx, h.bob)
	require.NoError(t, err)
	require.True(t, shares.IsZero())

	_, err = h.vault.WithdrawAll(ctx, h.bob)
	require.ErrorIs(t, err, rebase.ErrInsufficientBalance)
}
