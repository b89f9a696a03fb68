package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"rebasevault/core"
	"rebasevault/core/events"
	"rebasevault/core/genesis"
	"rebasevault/crypto"
	"rebasevault/gateway/middleware"
	"rebasevault/native/amm"
	"rebasevault/native/rebase"
	"rebasevault/storage"
	"rebasevault/storage/journal"
)

const (
	testSecret = "rpc-test-secret"
	testPool   = "rusd-usdc"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

type fixture struct {
	vault   *core.Vault
	handler http.Handler
	alice   crypto.Address
	bob     crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	recorder := events.NewRecorder(64)

	vault, err := core.New(db, core.Config{
		Token: rebase.Metadata{Symbol: "rUSD", Name: "Rebasing USD", Decimals: 6},
		Pools: []core.PoolConfig{{ID: testPool, PlainAsset: "USDC", FeePPM: amm.DefaultFeePPM}},
	}, core.WithJournal(j), core.WithEmitter(recorder))
	require.NoError(t, err)

	f := &fixture{vault: vault, alice: addr(1), bob: addr(2)}
	require.NoError(t, vault.ApplyGenesis(context.Background(), &genesis.Resolved{
		Assets: []genesis.AssetSpec{{Symbol: "USDC", Name: "USD Coin", Decimals: 6}},
		Allocations: []genesis.Allocation{
			{Address: f.alice, Symbol: "USDC", Amount: uint256.NewInt(1_000_000)},
			{Address: f.bob, Symbol: "USDC", Amount: uint256.NewInt(1_000_000)},
		},
		Deposits: []genesis.Deposit{{Address: f.alice, Amount: uint256.NewInt(2_000_000)}},
		Liquid:   new(uint256.Int),
		Deployed: new(uint256.Int),
		Pending:  new(uint256.Int),
	}))

	server := NewServer(vault, recorder, nil)
	f.handler = server.Router(RouterConfig{
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{Enabled: true, HMACSecret: testSecret}, nil),
	})
	return f
}

func token(t *testing.T, who crypto.Address, scopes ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": who.String(), "exp": time.Now().Add(time.Hour).Unix()}
	if len(scopes) > 0 {
		claims["scope"] = strings.Join(scopes, " ")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

func TestHealthAndLedger(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Header().Get(requestIDHeader))

	res = f.do(t, http.MethodGet, "/v1/ledger", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	ledger := decode[ledgerResponse](t, res)
	require.Equal(t, "2000000", ledger.TotalSupply.Value)
	require.Equal(t, "2", ledger.TotalSupply.Formatted)
	require.Equal(t, "2000000", ledger.TotalShares)
	require.Equal(t, 1, ledger.Holders)
	require.Equal(t, uint8(6), ledger.Token.Decimals)
}

func TestTransferUsesTokenSubject(t *testing.T) {
	f := newFixture(t)
	transfer := transferRequest{To: f.bob.String(), Amount: "500000"}

	res := f.do(t, http.MethodPost, "/v1/ledger/transfer", "", transfer)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.do(t, http.MethodPost, "/v1/ledger/transfer", token(t, f.alice), transfer)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "500000", decode[sharesResponse](t, res).Shares)

	res = f.do(t, http.MethodGet, "/v1/ledger/accounts/"+f.bob.String(), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	account := decode[accountResponse](t, res)
	require.Equal(t, "500000", account.Balance.Value)
	require.Equal(t, "0.5", account.Balance.Formatted)
	require.Len(t, account.Assets, 1)
	require.Equal(t, "USDC", account.Assets[0].Symbol)
	require.Equal(t, "1000000", account.Assets[0].Balance.Value)

	// bob holds only 500,000
	res = f.do(t, http.MethodPost, "/v1/ledger/transfer", token(t, f.bob), transferRequest{To: f.alice.String(), Amount: "500001"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Equal(t, codeInsufficientBalance, decode[errorResponse](t, res).Code)

	res = f.do(t, http.MethodPost, "/v1/ledger/transfer", token(t, f.bob), transferRequest{To: f.alice.String(), Amount: "0"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, codeZeroAmount, decode[errorResponse](t, res).Code)
}

func TestAdminRoutesRequireScope(t *testing.T) {
	f := newFixture(t)
	deposit := accountAmountRequest{Account: f.bob.String(), Amount: "1000000"}

	res := f.do(t, http.MethodPost, "/v1/reserve/deposit", token(t, f.alice), deposit)
	require.Equal(t, http.StatusForbidden, res.Code)

	admin := token(t, f.alice, "vault:write", middleware.ScopeAdmin)
	res = f.do(t, http.MethodPost, "/v1/reserve/deposit", admin, deposit)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "1000000", decode[sharesResponse](t, res).Shares)

	res = f.do(t, http.MethodPost, "/v1/reserve/deploy", admin, amountRequest{Amount: "1500000"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	holdings := decode[holdingsResponse](t, res)
	require.Equal(t, "1500000", holdings.Deployed.Value)
	require.Equal(t, "3000000", holdings.Backing.Value)

	res = f.do(t, http.MethodPost, "/v1/reserve/report", admin, amountRequest{Amount: "1800000"})
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodPost, "/v1/ledger/rebase", admin, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "3300000", decode[rebaseResponse](t, res).Reserve.Value)

	// liquid holds 1.5M, a larger withdrawal must be refused and rolled back
	res = f.do(t, http.MethodPost, "/v1/reserve/withdraw", admin, accountAmountRequest{Account: f.alice.String(), Amount: "1600000"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Equal(t, codeReserveRejected, decode[errorResponse](t, res).Code)

	res = f.do(t, http.MethodGet, "/v1/ledger", "", nil)
	require.Equal(t, "3300000", decode[ledgerResponse](t, res).TotalSupply.Value)
}

func TestPoolLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := token(t, f.alice)
	bob := token(t, f.bob)
	base := "/v1/pools/" + testPool

	res := f.do(t, http.MethodPost, base+"/liquidity/add", alice, addLiquidityRequest{AmountA: "500000", AmountB: "500000"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "500000", decode[liquidityResponse](t, res).LPShares)

	res = f.do(t, http.MethodGet, base+"/quote?amountIn=10000&direction=a_to_b", "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	quote := decode[quoteResponse](t, res)
	require.Equal(t, "9775", quote.AmountOut.Value)
	require.Equal(t, "30", quote.Fee.Value)

	res = f.do(t, http.MethodPost, base+"/swap", bob, swapRequest{Direction: "a_to_b", AmountIn: "10000", MinOut: "9776"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Equal(t, codeSlippageExceeded, decode[errorResponse](t, res).Code)

	res = f.do(t, http.MethodPost, base+"/swap", bob, swapRequest{Direction: "a_to_b", AmountIn: "10000", MinOut: "9775"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "9775", decode[quoteResponse](t, res).AmountOut.Value)

	res = f.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	pool := decode[poolResponse](t, res)
	require.Equal(t, "510000", pool.ReserveA.Value)
	require.Equal(t, "490225", pool.ReserveB.Value)
	require.Equal(t, 1, pool.Providers)
	require.Equal(t, amm.PoolAddress(testPool).String(), pool.Address)

	res = f.do(t, http.MethodGet, base+"/lp/"+f.alice.String(), "", nil)
	require.Equal(t, "500000", decode[lpResponse](t, res).Shares)

	res = f.do(t, http.MethodPost, base+"/liquidity/remove", alice, removeLiquidityRequest{LP: "250000"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	removed := decode[liquidityResponse](t, res)
	require.Equal(t, "255000", removed.AmountA.Value)

	res = f.do(t, http.MethodGet, "/v1/pools", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, decode[[]poolResponse](t, res), 1)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	alice := token(t, f.alice)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown pool", http.MethodGet, "/v1/pools/nope", nil, http.StatusNotFound, codeNotFound},
		{"bad direction", http.MethodGet, "/v1/pools/" + testPool + "/quote?amountIn=5&direction=up", nil, http.StatusBadRequest, codeInvalidRequest},
		{"missing amount", http.MethodGet, "/v1/pools/" + testPool + "/quote?direction=a_to_b", nil, http.StatusBadRequest, codeInvalidRequest},
		{"bad address", http.MethodGet, "/v1/ledger/accounts/alice", nil, http.StatusBadRequest, codeInvalidRequest},
		{"decimal amount", http.MethodPost, "/v1/ledger/transfer", transferRequest{To: addr(2).String(), Amount: "1.5"}, http.StatusBadRequest, codeInvalidRequest},
		{"unknown field", http.MethodPost, "/v1/ledger/transfer", map[string]string{"to": addr(2).String(), "amount": "1", "extra": "x"}, http.StatusBadRequest, codeInvalidRequest},
		{"self transfer", http.MethodPost, "/v1/ledger/transfer", transferRequest{To: addr(1).String(), Amount: "1"}, http.StatusBadRequest, codeInvalidRequest},
		{"bad limit", http.MethodGet, "/v1/journal?limit=-1", nil, http.StatusBadRequest, codeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.do(t, tc.method, tc.path, alice, tc.body)
			require.Equal(t, tc.status, res.Code, res.Body.String())
			require.Equal(t, tc.code, decode[errorResponse](t, res).Code)
		})
	}
}

func TestJournalAndEvents(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/v1/ledger/transfer", token(t, f.alice), transferRequest{To: f.bob.String(), Amount: "10"})
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodGet, "/v1/journal?limit=1", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	entries := decode[journalResponse](t, res).Entries
	require.Len(t, entries, 1)
	require.Equal(t, "transfer", entries[0].Operation)
	require.Equal(t, journal.StatusCommitted, entries[0].Status)

	res = f.do(t, http.MethodGet, "/v1/events?limit=1", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	evts := decode[map[string][]map[string]interface{}](t, res)["events"]
	require.Len(t, evts, 1)
	require.Equal(t, events.TypeLedgerTransfer, evts[0]["type"])
}

func TestUnitsConversion(t *testing.T) {
	v, err := ParseUnits("12.5", 6)
	require.NoError(t, err)
	require.Equal(t, uint64(12_500_000), v.Uint64())
	require.Equal(t, "12.5", FormatUnits(v, 6))
	require.Equal(t, "0.000001", FormatUnits(uint256.NewInt(1), 6))

	_, err = ParseUnits("0.0000001", 6)
	require.Error(t, err)
	_, err = ParseUnits("-1", 6)
	require.Error(t, err)
	_, err = ParseUnits("abc", 6)
	require.Error(t, err)
}

func TestWithdrawAllRedeemsWholeBalance(t *testing.T) {
	f := newFixture(t)
	admin := token(t, f.alice, middleware.ScopeAdmin)

	res := f.do(t, http.MethodPost, "/v1/reserve/withdraw-all", admin, accountRequest{Account: f.alice.String()})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "2000000", decode[redeemedResponse](t, res).Amount.Value)

	res = f.do(t, http.MethodGet, "/v1/ledger", "", nil)
	ledger := decode[ledgerResponse](t, res)
	require.Equal(t, "0", ledger.TotalShares)
	require.Equal(t, 0, ledger.Holders)
}
