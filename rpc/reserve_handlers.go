package rpc

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"
)

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.vault.Holdings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	backing, err := holdings.Backing()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	decimals := s.tokenDecimals()
	writeJSON(w, http.StatusOK, holdingsResponse{
		Liquid:   newAmount(holdings.Liquid, decimals),
		Deployed: newAmount(holdings.Deployed, decimals),
		Pending:  newAmount(holdings.Pending, decimals),
		Backing:  newAmount(backing, decimals),
	})
}

// handleReserveAmount serves the reserve-book administration endpoints, which
// all take a single amount and answer with the updated holdings.
func (s *Server) handleReserveAmount(op func(ctx context.Context, amount *uint256.Int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := op(r.Context(), amount); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.handleHoldings(w, r)
	}
}

func (s *Server) handleWithdrawAll(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	redeemed, err := s.vault.WithdrawAll(r.Context(), account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redeemedResponse{Amount: newAmount(redeemed, s.tokenDecimals())})
}
