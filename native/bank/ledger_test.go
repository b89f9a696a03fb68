package bank

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"rebasevault/core/events"
	"rebasevault/core/state"
	"rebasevault/crypto"
	nativecommon "rebasevault/native/common"
	"rebasevault/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	ledger := NewLedger()
	ledger.SetState(state.NewManager(db))
	require.NoError(t, ledger.RegisterAsset(Asset{Symbol: "usdc", Name: "USD Coin", Decimals: 6}))
	return ledger
}

func TestCreditTransferDebit(t *testing.T) {
	ledger := newTestLedger(t)
	buf := &events.Buffer{}
	ledger.SetEmitter(buf)

	require.NoError(t, ledger.Credit("USDC", addr(1), uint256.NewInt(1_000)))
	require.NoError(t, ledger.Transfer("usdc", addr(1), addr(2), uint256.NewInt(400), "invoice"))
	require.NoError(t, ledger.Debit("USDC", addr(2), uint256.NewInt(100)))

	a, err := ledger.Balance("USDC", addr(1))
	require.NoError(t, err)
	require.Equal(t, uint64(600), a.Uint64())
	b, err := ledger.Balance("USDC", addr(2))
	require.NoError(t, err)
	require.Equal(t, uint64(300), b.Uint64())
	supply, err := ledger.TotalSupply("USDC")
	require.NoError(t, err)
	require.Equal(t, uint64(900), supply.Uint64())

	require.Len(t, buf.Events(), 1)
	require.Equal(t, "USDC", buf.Events()[0].Event().Attributes["asset"])
}

func TestLedgerRejections(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Credit("USDC", addr(1), uint256.NewInt(10)))

	require.ErrorIs(t, ledger.Transfer("USDC", addr(1), addr(2), uint256.NewInt(11), ""), ErrInsufficientBalance)
	require.ErrorIs(t, ledger.Transfer("USDC", addr(1), addr(2), uint256.NewInt(0), ""), ErrZeroAmount)
	require.ErrorIs(t, ledger.Debit("USDC", addr(2), uint256.NewInt(1)), ErrInsufficientBalance)
	require.ErrorIs(t, ledger.Credit("DAI", addr(1), uint256.NewInt(1)), ErrUnknownAsset)
	require.ErrorIs(t, ledger.RegisterAsset(Asset{Symbol: "USDC"}), ErrAssetExists)

	max := new(uint256.Int).SetAllOne()
	require.ErrorIs(t, ledger.Credit("USDC", addr(1), max), ErrOverflow)

	ledger.SetPauses(nativecommon.StaticPauses{ModuleName: true})
	require.ErrorIs(t, ledger.Credit("USDC", addr(1), uint256.NewInt(1)), nativecommon.ErrModulePaused)
}

func TestTokenAdapter(t *testing.T) {
	ledger := newTestLedger(t)
	token, err := ledger.Token("usdc")
	require.NoError(t, err)
	require.Equal(t, uint8(6), token.Decimals())
	require.Equal(t, "USDC", token.Symbol())

	require.NoError(t, ledger.Credit("USDC", addr(1), uint256.NewInt(50)))
	require.NoError(t, token.Transfer(addr(1), addr(3), uint256.NewInt(20), ""))
	bal, err := token.Balance(addr(3))
	require.NoError(t, err)
	require.Equal(t, uint64(20), bal.Uint64())

	_, err = ledger.Token("EUR")
	require.ErrorIs(t, err, ErrUnknownAsset)
}
