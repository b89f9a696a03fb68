package reserve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"rebasevault/core/events"
)

var (
	ErrPendingExceedsHoldings = errors.New("reserve: pending deposits exceed liquid and deployed holdings")
	ErrHoldingsOverflow       = errors.New("reserve: holdings overflow")
	ErrInsufficientLiquid     = errors.New("reserve: insufficient liquid holdings")
	ErrInsufficientDeployed   = errors.New("reserve: insufficient deployed holdings")
	ErrInsufficientPending    = errors.New("reserve: insufficient pending deposits")
	ErrInvalidAmount          = errors.New("reserve: amount must be positive")

	errNilState = errors.New("reserve book: state not configured")
)

var holdingsKey = []byte("reserve/holdings")

// Storage abstracts the subset of state manager functionality required by the
// reserve book.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedHoldings struct {
	Liquid   *uint256.Int
	Deployed *uint256.Int
	Pending  *uint256.Int
}

// Book persists the reserve holdings and serves as the ledger's Oracle.
type Book struct {
	store   Storage
	emitter events.Emitter
}

// NewBook constructs a book bound to the provided storage backend.
func NewBook(store Storage) *Book {
	return &Book{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink for holdings updates.
func (b *Book) SetEmitter(emitter events.Emitter) {
	if b == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	b.emitter = emitter
}

// Holdings returns the persisted holdings, zeroed when nothing was stored.
func (b *Book) Holdings() (Holdings, error) {
	if b == nil || b.store == nil {
		return Holdings{}, errNilState
	}
	var stored storedHoldings
	ok, err := b.store.KVGet(holdingsKey, &stored)
	if err != nil {
		return Holdings{}, fmt.Errorf("reserve: load holdings: %w", err)
	}
	if !ok {
		return NewHoldings(), nil
	}
	return Holdings{Liquid: stored.Liquid, Deployed: stored.Deployed, Pending: stored.Pending}.Clone(), nil
}

// TotalBacking implements Oracle.
func (b *Book) TotalBacking() (*uint256.Int, error) {
	holdings, err := b.Holdings()
	if err != nil {
		return nil, err
	}
	return holdings.Backing()
}

// SetHoldings overwrites the book, validating the pending invariant.
func (b *Book) SetHoldings(h Holdings) error {
	return b.persist("set", nil, h.Clone())
}

// RecordDeposit registers backing received for a deposit that is queued but
// not yet credited: liquid and pending grow together so backing is unchanged.
func (b *Book) RecordDeposit(amount *uint256.Int) error {
	return b.mutate("deposit", amount, func(h *Holdings) error {
		if _, overflow := h.Liquid.AddOverflow(h.Liquid, amount); overflow {
			return ErrHoldingsOverflow
		}
		if _, overflow := h.Pending.AddOverflow(h.Pending, amount); overflow {
			return ErrHoldingsOverflow
		}
		return nil
	})
}

// Credit releases a queued deposit into backing.
func (b *Book) Credit(amount *uint256.Int) error {
	return b.mutate("credit", amount, func(h *Holdings) error {
		if h.Pending.Lt(amount) {
			return ErrInsufficientPending
		}
		h.Pending.Sub(h.Pending, amount)
		return nil
	})
}

// Payout removes liquid backing paid out to a redeeming holder.
func (b *Book) Payout(amount *uint256.Int) error {
	return b.mutate("payout", amount, func(h *Holdings) error {
		if h.Liquid.Lt(amount) {
			return ErrInsufficientLiquid
		}
		h.Liquid.Sub(h.Liquid, amount)
		return nil
	})
}

// Deploy moves liquid backing into the yield strategy.
func (b *Book) Deploy(amount *uint256.Int) error {
	return b.mutate("deploy", amount, func(h *Holdings) error {
		if h.Liquid.Lt(amount) {
			return ErrInsufficientLiquid
		}
		h.Liquid.Sub(h.Liquid, amount)
		if _, overflow := h.Deployed.AddOverflow(h.Deployed, amount); overflow {
			return ErrHoldingsOverflow
		}
		return nil
	})
}

// Recall returns backing from the yield strategy to liquid holdings.
func (b *Book) Recall(amount *uint256.Int) error {
	return b.mutate("recall", amount, func(h *Holdings) error {
		if h.Deployed.Lt(amount) {
			return ErrInsufficientDeployed
		}
		h.Deployed.Sub(h.Deployed, amount)
		if _, overflow := h.Liquid.AddOverflow(h.Liquid, amount); overflow {
			return ErrHoldingsOverflow
		}
		return nil
	})
}

// ReportDeployed records the strategy's current valuation of deployed funds.
// Yield raises it and losses lower it; zero is a valid report.
func (b *Book) ReportDeployed(value *uint256.Int) error {
	if value == nil {
		return ErrInvalidAmount
	}
	h, err := b.Holdings()
	if err != nil {
		return err
	}
	h.Deployed.Set(value)
	return b.persist("report", value, h)
}

func (b *Book) mutate(action string, amount *uint256.Int, apply func(*Holdings) error) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	h, err := b.Holdings()
	if err != nil {
		return err
	}
	if err := apply(&h); err != nil {
		return err
	}
	return b.persist(action, amount, h)
}

func (b *Book) persist(action string, amount *uint256.Int, h Holdings) error {
	if b == nil || b.store == nil {
		return errNilState
	}
	if _, err := h.Backing(); err != nil {
		return err
	}
	stored := storedHoldings{Liquid: h.Liquid, Deployed: h.Deployed, Pending: h.Pending}
	if err := b.store.KVPut(holdingsKey, &stored); err != nil {
		return fmt.Errorf("reserve: store holdings: %w", err)
	}
	recorded := new(uint256.Int)
	if amount != nil {
		recorded.Set(amount)
	}
	b.emitter.Emit(events.HoldingsUpdated{
		Action:   action,
		Amount:   recorded,
		Liquid:   new(uint256.Int).Set(h.Liquid),
		Deployed: new(uint256.Int).Set(h.Deployed),
		Pending:  new(uint256.Int).Set(h.Pending),
	})
	return nil
}
