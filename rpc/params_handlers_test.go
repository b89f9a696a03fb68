package rpc

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"rebasevault/gateway/middleware"
)

func TestPauseSwitchesThroughAPI(t *testing.T) {
	f := newFixture(t)
	admin := token(t, f.alice, middleware.ScopeAdmin)

	res := f.do(t, http.MethodGet, "/v1/pauses", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, pausesPayload{}, decode[pausesPayload](t, res))

	res = f.do(t, http.MethodPost, "/v1/pauses", token(t, f.alice), pausesPayload{AMM: true})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, http.MethodPost, "/v1/pauses", admin, pausesPayload{Rebase: true})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/ledger/transfer", token(t, f.alice), transferRequest{To: f.bob.String(), Amount: "10"})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, codePaused, decode[errorResponse](t, res).Code)

	res = f.do(t, http.MethodGet, "/v1/pauses", "", nil)
	require.True(t, decode[pausesPayload](t, res).Rebase)

	res = f.do(t, http.MethodPost, "/v1/pauses", admin, pausesPayload{})
	require.Equal(t, http.StatusOK, res.Code)
	res = f.do(t, http.MethodPost, "/v1/ledger/transfer", token(t, f.alice), transferRequest{To: f.bob.String(), Amount: "10"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
}
