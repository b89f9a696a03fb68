package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	vaulterrors "rebasevault/core/errors"
	"rebasevault/core/events"
	"rebasevault/core/state"
	"rebasevault/crypto"
	"rebasevault/native/amm"
	"rebasevault/native/bank"
	nativecommon "rebasevault/native/common"
	"rebasevault/native/params"
	"rebasevault/native/rebase"
	"rebasevault/native/reserve"
	"rebasevault/observability"
	"rebasevault/storage"
	"rebasevault/storage/journal"
)

// The ledger token lets pools leave sub-share dust behind on removal.
var _ amm.DustReporter = (*rebase.Token)(nil)

// PoolConfig binds a pool to the plain asset it trades against the rebasing
// token.
type PoolConfig struct {
	ID         string
	PlainAsset string
	FeePPM     uint32
}

// Config describes the assets and pools served by a vault.
type Config struct {
	Token rebase.Metadata
	Pools []PoolConfig
	// Pauses holds the configured switches. Switches persisted through
	// SetPauses take precedence.
	Pauses nativecommon.PauseView
}

// Option customises a Vault.
type Option func(*Vault)

// WithJournal records every operation outcome in the supplied journal.
func WithJournal(j *journal.Journal) Option {
	return func(v *Vault) { v.journal = j }
}

// WithEmitter forwards committed events downstream.
func WithEmitter(emitter events.Emitter) Option {
	return func(v *Vault) {
		if emitter != nil {
			v.emitter = emitter
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Vault is the atomic operation boundary. Every mutation runs alone inside a
// fresh unit of work that either commits as a single batch or is discarded,
// so no caller ever observes a partial operation. Reads share the lock and
// see only committed state.
type Vault struct {
	mu      sync.RWMutex
	db      storage.Database
	cfg     Config
	pools   map[string]PoolConfig
	journal *journal.Journal
	emitter events.Emitter
	metrics *observability.VaultMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
	closed  bool
}

// New constructs a vault over db.
func New(db storage.Database, cfg Config, opts ...Option) (*Vault, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database required", vaulterrors.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Token.Symbol) == "" {
		return nil, fmt.Errorf("%w: token symbol required", vaulterrors.ErrInvalidConfig)
	}
	pools := make(map[string]PoolConfig, len(cfg.Pools))
	for _, pool := range cfg.Pools {
		id := strings.TrimSpace(pool.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: pool id required", vaulterrors.ErrInvalidConfig)
		}
		if _, dup := pools[id]; dup {
			return nil, fmt.Errorf("%w: duplicate pool %s", vaulterrors.ErrInvalidConfig, id)
		}
		pool.ID = id
		pool.PlainAsset = bank.NormalizeSymbol(pool.PlainAsset)
		if pool.PlainAsset == "" {
			return nil, fmt.Errorf("%w: pool %s missing plain asset", vaulterrors.ErrInvalidConfig, id)
		}
		pools[id] = pool
	}
	v := &Vault{
		db:      db,
		cfg:     cfg,
		pools:   pools,
		emitter: events.NoopEmitter{},
		metrics: observability.Vault(),
		tracer:  otel.Tracer("rebasevault/core"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Metadata returns the rebasing token description.
func (v *Vault) Metadata() rebase.Metadata { return v.cfg.Token }

// Pools returns the configured pools.
func (v *Vault) Pools() []PoolConfig {
	out := make([]PoolConfig, 0, len(v.cfg.Pools))
	for _, pool := range v.cfg.Pools {
		out = append(out, v.pools[strings.TrimSpace(pool.ID)])
	}
	return out
}

// Close marks the vault closed. The database is owned by the caller.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

// unit binds every engine to one state.Manager so a single Commit or Discard
// covers all of them.
type unit struct {
	vault   *Vault
	manager *state.Manager
	events  *events.Buffer
	params  *params.Store
	book    *reserve.Book
	bank    *bank.Ledger
	ledger  *rebase.Engine
	pools   map[string]*amm.Pool
}

func (v *Vault) newUnit() *unit {
	manager := state.NewManager(v.db)
	buffer := &events.Buffer{}

	switches := params.NewStore(manager, v.cfg.Pauses)
	switches.SetEmitter(buffer)

	book := reserve.NewBook(manager)
	book.SetEmitter(buffer)

	plain := bank.NewLedger()
	plain.SetState(manager)
	plain.SetPauses(switches)
	plain.SetEmitter(buffer)

	ledger := rebase.NewEngine(v.cfg.Token)
	ledger.SetState(manager)
	ledger.SetOracle(book)
	ledger.SetPauses(switches)
	ledger.SetEmitter(buffer)

	return &unit{
		vault:   v,
		manager: manager,
		events:  buffer,
		params:  switches,
		book:    book,
		bank:    plain,
		ledger:  ledger,
		pools:   make(map[string]*amm.Pool),
	}
}

// pool binds the named pool to this unit, resolving its plain asset.
func (u *unit) pool(id string) (*amm.Pool, error) {
	id = strings.TrimSpace(id)
	if pool, ok := u.pools[id]; ok {
		return pool, nil
	}
	cfg, ok := u.vault.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vaulterrors.ErrUnknownPool, id)
	}
	plain, err := u.bank.Token(cfg.PlainAsset)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	pool, err := amm.NewPool(amm.Config{ID: cfg.ID, FeePPM: cfg.FeePPM}, plain, u.ledger.Token())
	if err != nil {
		return nil, err
	}
	pool.SetState(u.manager)
	pool.SetPauses(u.params)
	pool.SetEmitter(u.events)
	u.pools[id] = pool
	return pool, nil
}

// opInfo labels an operation for tracing, logging and the journal.
type opInfo struct {
	name    string
	caller  crypto.Address
	details map[string]string
}

func (o opInfo) callerString() string {
	if len(o.caller.Bytes()) == 0 {
		return ""
	}
	return o.caller.String()
}

// execute runs fn as one atomic operation.
func (v *Vault) execute(ctx context.Context, op opInfo, fn func(u *unit) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "vault."+op.name, trace.WithAttributes(
		attribute.String("vault.operation", op.name),
		attribute.String("vault.caller", op.callerString()),
	))
	defer span.End()

	v.mu.Lock()
	err := v.commitUnit(ctx, op, fn)
	v.mu.Unlock()

	duration := time.Since(start)
	v.metrics.Observe(op.name, duration, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		v.logger.Warn("vault operation rejected",
			slog.String("op", op.name),
			slog.String("outcome", "rejected"),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return err
	}
	v.logger.Info("vault operation committed",
		slog.String("op", op.name),
		slog.String("outcome", "committed"),
		slog.Duration("duration", duration))
	return nil
}

// commitUnit must be called with the write lock held. Events, the journal
// entry and gauges are published in commit order.
func (v *Vault) commitUnit(ctx context.Context, op opInfo, fn func(u *unit) error) error {
	if v.closed {
		return vaulterrors.ErrVaultClosed
	}
	u := v.newUnit()
	err := fn(u)
	if err != nil {
		u.manager.Discard()
	} else if err = u.manager.Commit(); err != nil {
		err = fmt.Errorf("vault: %s: %w", op.name, err)
	}
	if err != nil {
		v.record(ctx, op, journal.StatusRejected, err)
		return err
	}
	for _, evt := range u.events.Events() {
		observability.Events().RecordEvent(evt.EventType())
	}
	u.events.Flush(v.emitter)
	v.record(ctx, op, journal.StatusCommitted, nil)
	v.refreshGauges()
	return nil
}

func (v *Vault) record(ctx context.Context, op opInfo, status journal.Status, opErr error) {
	if v.journal == nil {
		return
	}
	entry := journal.Entry{
		Operation: op.name,
		Caller:    op.callerString(),
		Status:    status,
		Details:   op.details,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	if _, err := v.journal.Record(ctx, entry); err != nil {
		v.logger.Error("journal write failed", slog.String("op", op.name), slog.String("error", err.Error()))
	}
}

// refreshGauges mirrors committed state into metrics. Failures only affect
// observability and are logged.
func (v *Vault) refreshGauges() {
	u := v.newUnit()
	defer u.manager.Discard()
	if ledger, err := u.ledger.State(); err == nil {
		v.metrics.SetLedger(ledger.Reserve, ledger.TotalShares)
	}
	for id := range v.pools {
		pool, err := u.pool(id)
		if err != nil {
			continue
		}
		if reserves, err := pool.LiveReserves(); err == nil {
			v.metrics.SetPoolReserves(id, reserves.A, reserves.B)
		}
	}
}

// read runs fn against committed state. Anything fn stages is discarded.
func (v *Vault) read(fn func(u *unit) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return vaulterrors.ErrVaultClosed
	}
	u := v.newUnit()
	defer u.manager.Discard()
	return fn(u)
}
