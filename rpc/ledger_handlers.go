package rpc

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

func (s *Server) tokenDecimals() uint8 { return s.vault.Metadata().Decimals }

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := s.vault.LedgerState(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holders, err := s.vault.Accounts(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meta := s.vault.Metadata()
	writeJSON(w, http.StatusOK, ledgerResponse{
		Token:       tokenInfo{Symbol: meta.Symbol, Name: meta.Name, Decimals: meta.Decimals},
		TotalSupply: newAmount(state.Reserve, meta.Decimals),
		TotalShares: state.TotalShares.Dec(),
		Holders:     len(holders),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.vault.BalanceOf(ctx, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shares, err := s.vault.SharesOf(ctx, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := accountResponse{
		Address: addr.String(),
		Balance: newAmount(balance, s.tokenDecimals()),
		Shares:  shares.Dec(),
	}
	seen := make(map[string]struct{})
	for _, pool := range s.vault.Pools() {
		if _, dup := seen[pool.PlainAsset]; dup {
			continue
		}
		seen[pool.PlainAsset] = struct{}{}
		meta, err := s.vault.Asset(ctx, pool.PlainAsset)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		held, err := s.vault.AssetBalance(ctx, pool.PlainAsset, addr)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Assets = append(resp.Assets, asset{Symbol: meta.Symbol, Balance: newAmount(held, meta.Decimals)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	from, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shares, err := s.vault.Transfer(r.Context(), from, to, amount, req.Memo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sharesResponse{Shares: shares.Dec()})
}

func (s *Server) handleAssetTransfer(w http.ResponseWriter, r *http.Request) {
	from, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req assetTransferRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.vault.TransferAsset(r.Context(), req.Asset, from, to, amount, req.Memo); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountAmountOp func(ctx context.Context, account crypto.Address, amount *uint256.Int) (*uint256.Int, error)

// handleAccountAmount decodes an {account, amount} body and reports the share
// count op returns.
func (s *Server) handleAccountAmount(op accountAmountOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountAmountRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		account, err := parseAddress("account", req.Account)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		shares, err := op(r.Context(), account, amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sharesResponse{Shares: shares.Dec()})
	}
}

func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request) {
	reserveValue, err := s.vault.Rebase(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rebaseResponse{Reserve: newAmount(reserveValue, s.tokenDecimals())})
}
