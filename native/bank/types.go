package bank

import (
	"strings"

	"github.com/holiman/uint256"
)

// Asset describes a registered plain asset.
type Asset struct {
	Symbol   string
	Name     string
	Decimals uint8
}

type storedBalance struct {
	Amount *uint256.Int
}

var (
	assetPrefix   = []byte("bank/asset/")
	supplyPrefix  = []byte("bank/supply/")
	balancePrefix = []byte("bank/balance/")
)

// NormalizeSymbol canonicalises an asset ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func assetKey(symbol string) []byte {
	return append(append([]byte(nil), assetPrefix...), symbol...)
}

func supplyKey(symbol string) []byte {
	return append(append([]byte(nil), supplyPrefix...), symbol...)
}

func balanceKey(symbol string, owner []byte) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+len(owner))
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, '/')
	return append(buf, owner...)
}
