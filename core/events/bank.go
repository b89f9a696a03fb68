package events

import (
	"strings"

	"github.com/holiman/uint256"

	"rebasevault/core/types"
	"rebasevault/crypto"
)

// TypeAssetTransfer is emitted for plain asset movements.
const TypeAssetTransfer = "bank.transfer"

// AssetTransfer captures a plain asset balance movement.
type AssetTransfer struct {
	Asset  string
	From   crypto.Address
	To     crypto.Address
	Amount *uint256.Int
	Memo   string
}

func (AssetTransfer) EventType() string { return TypeAssetTransfer }

func (e AssetTransfer) Event() *types.Event {
	attrs := map[string]string{
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	if memo := strings.TrimSpace(e.Memo); memo != "" {
		attrs["memo"] = memo
	}
	return &types.Event{Type: TypeAssetTransfer, Attributes: attrs}
}
