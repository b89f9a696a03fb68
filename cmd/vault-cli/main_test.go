package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
	caller string
	auth   string
}

func fakeVaultd(t *testing.T, calls *[]recorded) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			caller: r.Header.Get("X-Vault-Caller"),
			auth:   r.Header.Get("Authorization"),
		}
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&call.body))
		}
		*calls = append(*calls, call)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/ledger":
			_, _ = w.Write([]byte(`{"token":{"symbol":"RUSD","decimals":18}}`))
		case "/v1/pools/rusd-usdc":
			_, _ = w.Write([]byte(`{"id":"rusd-usdc","decimalsA":6,"decimalsB":18}`))
		case "/v1/pools/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"unknown pool","code":"not_found"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"--rpc", srv.URL, "--caller", "rbv1caller"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSwapConvertsUnitsPerSide(t *testing.T) {
	var calls []recorded
	srv := fakeVaultd(t, &calls)
	defer srv.Close()

	out, err := runCLI(t, srv, "swap", "rusd-usdc", "1.5", "--direction", "ab", "--min-out", "1.25")
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)

	require.Len(t, calls, 2)
	swap := calls[1]
	assert.Equal(t, "/v1/pools/rusd-usdc/swap", swap.path)
	assert.Equal(t, "rbv1caller", swap.caller)
	assert.Equal(t, "1500000", swap.body["amountIn"])
	assert.Equal(t, "1250000000000000000", swap.body["minOut"])
	assert.Equal(t, "a_to_b", swap.body["direction"])
}

func TestQuoteBuildsQuery(t *testing.T) {
	var calls []recorded
	srv := fakeVaultd(t, &calls)
	defer srv.Close()

	_, err := runCLI(t, srv, "quote", "rusd-usdc", "2", "--direction", "b_to_a", "--fresh")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "/v1/pools/rusd-usdc/quote", calls[1].path)
	assert.Contains(t, calls[1].query, "amountIn=2000000000000000000")
	assert.Contains(t, calls[1].query, "direction=b_to_a")
	assert.Contains(t, calls[1].query, "fresh=true")
}

func TestReserveDeploySendsToken(t *testing.T) {
	var calls []recorded
	srv := fakeVaultd(t, &calls)
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"--rpc", srv.URL, "--token", "abc", "reserve", "deploy", "10"})
	require.NoError(t, root.Execute())

	require.Len(t, calls, 2)
	assert.Equal(t, "/v1/reserve/deploy", calls[1].path)
	assert.Equal(t, "Bearer abc", calls[1].auth)
	assert.Equal(t, "10000000000000000000", calls[1].body["amount"])
}

func TestExcessPrecisionRejectedLocally(t *testing.T) {
	var calls []recorded
	srv := fakeVaultd(t, &calls)
	defer srv.Close()

	_, err := runCLI(t, srv, "add-liquidity", "rusd-usdc", "0.0000001", "1")
	require.Error(t, err)
	require.Len(t, calls, 1, "nothing posted after a conversion failure")
}

func TestAPIErrorSurfacesCode(t *testing.T) {
	var calls []recorded
	srv := fakeVaultd(t, &calls)
	defer srv.Close()

	_, err := runCLI(t, srv, "pools", "missing")
	require.Error(t, err)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Contains(t, err.Error(), "unknown pool")
}

func TestPausesSetPostsEverySwitch(t *testing.T) {
	var calls []recorded
	srv := fakeVaultd(t, &calls)
	defer srv.Close()

	_, err := runCLI(t, srv, "pauses", "set", "--amm")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "/v1/pauses", calls[0].path)
	assert.Equal(t, true, calls[0].body["amm"])
	assert.Equal(t, false, calls[0].body["rebase"])
}
