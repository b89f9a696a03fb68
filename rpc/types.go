package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"rebasevault/crypto"
	"rebasevault/native/amm"
	"rebasevault/storage/journal"
)

// Amount renders a base-unit quantity alongside its human-readable decimal
// form.
type Amount struct {
	Value     string `json:"value"`
	Formatted string `json:"formatted"`
}

func newAmount(v *uint256.Int, decimals uint8) Amount {
	if v == nil {
		v = new(uint256.Int)
	}
	return Amount{Value: v.Dec(), Formatted: FormatUnits(v, decimals)}
}

// FormatUnits renders v scaled down by decimals, without trailing zeros.
func FormatUnits(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

// ParseUnits converts a human-readable decimal such as "12.5" into base units.
// Precision beyond decimals is rejected rather than rounded.
func ParseUnits(raw string, decimals uint8) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", raw)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", raw, decimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("invalid amount %q: overflows 256 bits", raw)
	}
	return out, nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, badRequest{fmt.Errorf("%s required", field)}
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, badRequest{fmt.Errorf("%s: invalid base-unit amount %q", field, raw)}
	}
	return v, nil
}

// parseOptionalAmount treats an empty field as zero, used for slippage floors.
func parseOptionalAmount(field, raw string) (*uint256.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return new(uint256.Int), nil
	}
	return parseAmount(field, raw)
}

func parseAddress(field, raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, badRequest{fmt.Errorf("%s required", field)}
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, badRequest{fmt.Errorf("%s: %w", field, err)}
	}
	return addr, nil
}

func parseDirection(raw string) (amm.Direction, error) {
	dir, err := amm.ParseDirection(raw)
	if err != nil {
		return 0, badRequest{err}
	}
	return dir, nil
}

var errNoCaller = errors.New("caller identity required")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type accountRequest struct {
	Account string `json:"account"`
}

type redeemedResponse struct {
	Amount Amount `json:"amount"`
}

type accountAmountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type assetTransferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type swapRequest struct {
	Direction string `json:"direction"`
	AmountIn  string `json:"amountIn"`
	MinOut    string `json:"minOut"`
}

type addLiquidityRequest struct {
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
	MinLP   string `json:"minLP"`
}

type removeLiquidityRequest struct {
	LP   string `json:"lp"`
	MinA string `json:"minA"`
	MinB string `json:"minB"`
}

type tokenInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

type ledgerResponse struct {
	Token       tokenInfo `json:"token"`
	TotalSupply Amount    `json:"totalSupply"`
	TotalShares string    `json:"totalShares"`
	Holders     int       `json:"holders"`
}

type accountResponse struct {
	Address string  `json:"address"`
	Balance Amount  `json:"balance"`
	Shares  string  `json:"shares"`
	Assets  []asset `json:"assets,omitempty"`
}

type asset struct {
	Symbol  string `json:"symbol"`
	Balance Amount `json:"balance"`
}

type sharesResponse struct {
	Shares string `json:"shares"`
}

type rebaseResponse struct {
	Reserve Amount `json:"reserve"`
}

type holdingsResponse struct {
	Liquid   Amount `json:"liquid"`
	Deployed Amount `json:"deployed"`
	Pending  Amount `json:"pending"`
	Backing  Amount `json:"backing"`
}

type poolResponse struct {
	ID            string `json:"id"`
	Address       string `json:"address"`
	PlainAsset    string `json:"plainAsset"`
	FeePPM        uint32 `json:"feePpm"`
	DecimalsA     uint8  `json:"decimalsA"`
	DecimalsB     uint8  `json:"decimalsB"`
	ReserveA      Amount `json:"reserveA"`
	ReserveB      Amount `json:"reserveB"`
	LPTotalShares string `json:"lpTotalShares"`
	Providers     int    `json:"providers"`
}

type quoteResponse struct {
	Direction  string `json:"direction"`
	AmountIn   Amount `json:"amountIn"`
	AmountOut  Amount `json:"amountOut"`
	Fee        Amount `json:"fee"`
	ReserveIn  Amount `json:"reserveIn"`
	ReserveOut Amount `json:"reserveOut"`
}

type liquidityResponse struct {
	LPShares string `json:"lpShares"`
	AmountA  Amount `json:"amountA"`
	AmountB  Amount `json:"amountB"`
}

type lpResponse struct {
	Address string `json:"address"`
	Shares  string `json:"shares"`
}

type journalResponse struct {
	Entries []journal.Entry `json:"entries"`
}
