package rpc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rebasevault/core"
	"rebasevault/native/amm"
)

// poolDecimals returns the display decimals of the plain (A) and rebasing (B)
// sides of a pool.
func (s *Server) poolDecimals(ctx context.Context, cfg core.PoolConfig) (uint8, uint8, error) {
	asset, err := s.vault.Asset(ctx, cfg.PlainAsset)
	if err != nil {
		return 0, 0, err
	}
	return asset.Decimals, s.tokenDecimals(), nil
}

func (s *Server) describePool(ctx context.Context, cfg core.PoolConfig) (poolResponse, error) {
	decA, decB, err := s.poolDecimals(ctx, cfg)
	if err != nil {
		return poolResponse{}, err
	}
	state, err := s.vault.PoolState(ctx, cfg.ID)
	if err != nil {
		return poolResponse{}, err
	}
	reserves, err := s.vault.LiveReserves(ctx, cfg.ID)
	if err != nil {
		return poolResponse{}, err
	}
	providers, err := s.vault.Providers(ctx, cfg.ID)
	if err != nil {
		return poolResponse{}, err
	}
	return poolResponse{
		ID:            cfg.ID,
		Address:       amm.PoolAddress(cfg.ID).String(),
		PlainAsset:    cfg.PlainAsset,
		FeePPM:        cfg.FeePPM,
		DecimalsA:     decA,
		DecimalsB:     decB,
		ReserveA:      newAmount(reserves.A, decA),
		ReserveB:      newAmount(reserves.B, decB),
		LPTotalShares: state.LPTotalShares.Dec(),
		Providers:     len(providers),
	}, nil
}

func (s *Server) poolParam(r *http.Request) (core.PoolConfig, error) {
	return s.vault.PoolConfig(chi.URLParam(r, "id"))
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	pools := s.vault.Pools()
	out := make([]poolResponse, 0, len(pools))
	for _, cfg := range pools {
		desc, err := s.describePool(r.Context(), cfg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, desc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	desc, err := s.describePool(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) renderQuote(ctx context.Context, cfg core.PoolConfig, quote *amm.Quote) (quoteResponse, error) {
	decA, decB, err := s.poolDecimals(ctx, cfg)
	if err != nil {
		return quoteResponse{}, err
	}
	decIn, decOut := decA, decB
	if quote.Direction == amm.BToA {
		decIn, decOut = decB, decA
	}
	return quoteResponse{
		Direction:  quote.Direction.String(),
		AmountIn:   newAmount(quote.AmountIn, decIn),
		AmountOut:  newAmount(quote.AmountOut, decOut),
		Fee:        newAmount(quote.Fee, decIn),
		ReserveIn:  newAmount(quote.ReserveIn, decIn),
		ReserveOut: newAmount(quote.ReserveOut, decOut),
	}, nil
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query := r.URL.Query()
	amountIn, err := parseAmount("amountIn", query.Get("amountIn"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dir, err := parseDirection(query.Get("direction"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fresh := false
	if raw := strings.TrimSpace(query.Get("fresh")); raw != "" {
		if fresh, err = strconv.ParseBool(raw); err != nil {
			s.writeError(w, r, badRequest{fmt.Errorf("fresh must be a boolean")})
			return
		}
	}
	quote, err := s.vault.QuoteSwap(ctx, cfg.ID, amountIn, dir, fresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.renderQuote(ctx, cfg, quote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trader, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req swapRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minOut, err := parseOptionalAmount("minOut", req.MinOut)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quote, err := s.vault.Swap(ctx, cfg.ID, trader, amountIn, minOut, dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.renderQuote(ctx, cfg, quote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) renderLiquidity(ctx context.Context, cfg core.PoolConfig, result *amm.LiquidityResult) (liquidityResponse, error) {
	decA, decB, err := s.poolDecimals(ctx, cfg)
	if err != nil {
		return liquidityResponse{}, err
	}
	return liquidityResponse{
		LPShares: result.LPShares.Dec(),
		AmountA:  newAmount(result.AmountA, decA),
		AmountB:  newAmount(result.AmountB, decB),
	}, nil
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addLiquidityRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amountA, err := parseAmount("amountA", req.AmountA)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amountB, err := parseAmount("amountB", req.AmountB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minLP, err := parseOptionalAmount("minLP", req.MinLP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.vault.AddLiquidity(ctx, cfg.ID, provider, amountA, amountB, minLP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.renderLiquidity(ctx, cfg, result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req removeLiquidityRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	lp, err := parseAmount("lp", req.LP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minA, err := parseOptionalAmount("minA", req.MinA)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minB, err := parseOptionalAmount("minB", req.MinB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.vault.RemoveLiquidity(ctx, cfg.ID, provider, lp, minA, minB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.renderLiquidity(ctx, cfg, result)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLPBalance(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.poolParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shares, err := s.vault.LPBalance(r.Context(), cfg.ID, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lpResponse{Address: addr.String(), Shares: shares.Dec()})
}
