package genesis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"rebasevault/crypto"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[19] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestLoadResolvesSortedGenesis(t *testing.T) {
	doc := strings.Join([]string{
		"assets:",
		"  - symbol: usdc",
		"    name: USD Coin",
		"    decimals: 6",
		"  - symbol: DAI",
		"    name: Dai",
		"    decimals: 18",
		"alloc:",
		"  " + addr(2).String() + ":",
		"    USDC: \"500\"",
		"  " + addr(1).String() + ":",
		"    usdc: \"1000\"",
		"    DAI: \"0\"",
		"deposits:",
		"  " + addr(3).String() + ": \"250\"",
		"reserve:",
		"  liquid: \"100\"",
		"  deployed: \"50\"",
	}, "\n")
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	resolved, err := Load(path)
	require.NoError(t, err)
	require.Len(t, resolved.Assets, 2)
	require.Equal(t, "DAI", resolved.Assets[0].Symbol)
	require.Equal(t, "USDC", resolved.Assets[1].Symbol)

	require.Len(t, resolved.Allocations, 2)
	require.True(t, resolved.Allocations[0].Address.Equal(addr(1)))
	require.Equal(t, uint64(1000), resolved.Allocations[0].Amount.Uint64())

	require.Len(t, resolved.Deposits, 1)
	require.Equal(t, uint64(250), resolved.Deposits[0].Amount.Uint64())
	require.Equal(t, uint64(100), resolved.Liquid.Uint64())
	require.Equal(t, uint64(50), resolved.Deployed.Uint64())
	require.True(t, resolved.Pending.IsZero())
}

func TestParseRejectsInvalidGenesis(t *testing.T) {
	_, err := Parse([]byte("assets:\n  - symbol: USDC\n  - symbol: usdc\n"))
	require.ErrorContains(t, err, "duplicate asset")

	_, err = Parse([]byte("alloc:\n  " + addr(1).String() + ":\n    EUR: \"1\"\n"))
	require.ErrorContains(t, err, "unknown asset")

	_, err = Parse([]byte("deposits:\n  " + addr(1).String() + ": \"-4\"\n"))
	require.ErrorContains(t, err, "invalid amount")

	_, err = Parse([]byte("chainId: 7\n"))
	require.Error(t, err)
}
