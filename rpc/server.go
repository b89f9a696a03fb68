package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rebasevault/core"
	"rebasevault/core/types"
	"rebasevault/crypto"
	"rebasevault/gateway/middleware"
)

const (
	maxRequestBytes     = 1 << 16
	defaultJournalLimit = 50
	maxJournalLimit     = 500
	requestIDHeader     = "X-Request-ID"
)

// EventSource serves recently committed events.
type EventSource interface {
	Recent(n int) []types.Event
}

// Server exposes a Vault over HTTP.
type Server struct {
	vault  *core.Vault
	events EventSource
	logger *slog.Logger
}

func NewServer(vault *core.Vault, events EventSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{vault: vault, events: events, logger: logger}
}

// RouterConfig carries the middleware applied per route group. Nil
// components are skipped.
type RouterConfig struct {
	ServiceName   string
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// Router builds the HTTP handler. Reads are public, holder operations need a
// token whose subject names the caller, and reserve administration needs the
// admin scope.
func (s *Server) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORS))
	}

	r.Get("/healthz", s.handleHealth)
	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	group := func(key string, auth func(http.Handler) http.Handler) func(chi.Router) {
		return func(g chi.Router) {
			if cfg.RateLimiter != nil {
				g.Use(cfg.RateLimiter.Middleware(key))
			}
			if auth != nil {
				g.Use(auth)
			}
			if cfg.Observability != nil {
				g.Use(cfg.Observability.Middleware(key))
			}
		}
	}
	var holderAuth, adminAuth func(http.Handler) http.Handler
	if cfg.Authenticator != nil {
		holderAuth = cfg.Authenticator.Middleware()
		adminAuth = cfg.Authenticator.Middleware(middleware.ScopeAdmin)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(g chi.Router) {
			group("read", nil)(g)
			g.Get("/ledger", s.handleLedger)
			g.Get("/ledger/accounts/{address}", s.handleAccount)
			g.Get("/reserve", s.handleHoldings)
			g.Get("/pools", s.handlePools)
			g.Get("/pools/{id}", s.handlePool)
			g.Get("/pools/{id}/quote", s.handleQuote)
			g.Get("/pools/{id}/lp/{address}", s.handleLPBalance)
			g.Get("/journal", s.handleJournal)
			g.Get("/events", s.handleEvents)
			g.Get("/pauses", s.handlePauses)
		})
		v1.Group(func(g chi.Router) {
			group("write", holderAuth)(g)
			g.Post("/ledger/transfer", s.handleTransfer)
			g.Post("/assets/transfer", s.handleAssetTransfer)
			g.Post("/pools/{id}/swap", s.handleSwap)
			g.Post("/pools/{id}/liquidity/add", s.handleAddLiquidity)
			g.Post("/pools/{id}/liquidity/remove", s.handleRemoveLiquidity)
		})
		v1.Group(func(g chi.Router) {
			group("admin", adminAuth)(g)
			g.Post("/ledger/mint", s.handleAccountAmount(s.vault.Mint))
			g.Post("/ledger/burn", s.handleAccountAmount(s.vault.Burn))
			g.Post("/ledger/rebase", s.handleRebase)
			g.Post("/reserve/deposit", s.handleAccountAmount(s.vault.Deposit))
			g.Post("/reserve/withdraw", s.handleAccountAmount(s.vault.Withdraw))
			g.Post("/reserve/withdraw-all", s.handleWithdrawAll)
			g.Post("/reserve/deploy", s.handleReserveAmount(s.vault.Deploy))
			g.Post("/reserve/recall", s.handleReserveAmount(s.vault.Recall))
			g.Post("/reserve/report", s.handleReserveAmount(s.vault.ReportDeployed))
			g.Post("/reserve/pending", s.handleReserveAmount(s.vault.RecordPendingDeposit))
			g.Post("/pauses", s.handleSetPauses)
		})
	})

	name := cfg.ServiceName
	if name == "" {
		name = "vaultd"
	}
	return otelhttp.NewHandler(r, name)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.vault.LedgerState(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func callerOf(r *http.Request) (crypto.Address, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return crypto.Address{}, errNoCaller
	}
	return caller, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequest{fmt.Errorf("decode request: %w", err)}
	}
	return nil
}

func parseLimit(raw string, fallback, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, badRequest{fmt.Errorf("limit must be a positive integer")}
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	var br badRequest
	switch {
	case errors.As(err, &br):
		status, code = http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, errNoCaller):
		status, code = http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, context.Canceled):
		status, code = http.StatusServiceUnavailable, codeUnavailable
	default:
		status, code = classify(err)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", w.Header().Get(requestIDHeader)),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}
