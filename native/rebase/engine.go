package rebase

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"rebasevault/core/events"
	"rebasevault/crypto"
	nativecommon "rebasevault/native/common"
	"rebasevault/native/reserve"
)

var (
	ErrInsufficientBalance = errors.New("rebase: insufficient balance")
	ErrZeroAmount          = errors.New("rebase: amount must be positive")
	ErrOracleUnavailable   = errors.New("rebase: reserve oracle unavailable")
	ErrOverflow            = errors.New("rebase: arithmetic overflow")
	ErrSelfTransfer        = errors.New("rebase: transfer to self is not meaningful")
	ErrReserveDepleted     = errors.New("rebase: reserve is zero while shares are outstanding")
	ErrInvalidAddress      = errors.New("rebase: account address required")

	errNilState  = errors.New("rebase engine: state not configured")
	errNilOracle = errors.New("rebase engine: reserve oracle not configured")
)

// ModuleName identifies the ledger for pause switches.
const ModuleName = "rebase"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Engine owns the share accounting of the rebasing token. Balances are derived
// from shares at the cached reserve; every mutation refreshes the reserve from
// the oracle before any conversion.
type Engine struct {
	state   engineState
	oracle  reserve.Oracle
	pauses  nativecommon.PauseView
	emitter events.Emitter
	meta    Metadata
}

// NewEngine constructs a ledger engine exposing the provided token metadata.
func NewEngine(meta Metadata) *Engine {
	return &Engine{meta: meta, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle configures the source of truth for total backing.
func (e *Engine) SetOracle(oracle reserve.Oracle) { e.oracle = oracle }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// Metadata returns the token description.
func (e *Engine) Metadata() Metadata {
	if e == nil {
		return Metadata{}
	}
	return e.meta
}

// Decimals returns the number of display decimals of the token.
func (e *Engine) Decimals() uint8 {
	if e == nil {
		return 0
	}
	return e.meta.Decimals
}

// Rebase refreshes the cached reserve from the oracle, persists it and
// returns the new value. An oracle failure leaves the reserve untouched.
func (e *Engine) Rebase() (*uint256.Int, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	ledger, previous, err := e.refresh()
	if err != nil {
		return nil, err
	}
	if err := e.storeState(ledger); err != nil {
		return nil, err
	}
	e.emitRebased(previous, ledger)
	return new(uint256.Int).Set(ledger.Reserve), nil
}

// Mint credits amount of newly backed tokens to recipient. Shares are priced
// against the freshly rebased reserve before the minted amount is added to it.
// The minted share count is returned.
func (e *Engine) Mint(recipient crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if len(recipient.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}

	ledger, previous, err := e.refresh()
	if err != nil {
		return nil, err
	}
	if !ledger.TotalShares.IsZero() && ledger.Reserve.IsZero() {
		return nil, ErrReserveDepleted
	}
	minted, err := tokensToShares(amount, ledger)
	if err != nil {
		return nil, err
	}
	if minted.IsZero() {
		return nil, fmt.Errorf("%w: %s tokens convert to zero shares", ErrZeroAmount, amount.Dec())
	}

	account, err := e.loadAccount(recipient)
	if err != nil {
		return nil, err
	}
	if account.Shares, err = addChecked(account.Shares, minted); err != nil {
		return nil, err
	}
	if ledger.TotalShares, err = addChecked(ledger.TotalShares, minted); err != nil {
		return nil, err
	}
	if ledger.Reserve, err = addChecked(ledger.Reserve, amount); err != nil {
		return nil, err
	}

	if err := e.storeAccount(account); err != nil {
		return nil, err
	}
	if err := e.storeState(ledger); err != nil {
		return nil, err
	}
	e.emitRebased(previous, ledger)
	e.emitter.Emit(events.LedgerMinted{
		Recipient: recipient,
		Amount:    new(uint256.Int).Set(amount),
		Shares:    new(uint256.Int).Set(minted),
	})
	return minted, nil
}

// Burn redeems amount tokens from owner, removing the corresponding shares and
// the amount from the reserve. The burned share count is returned.
func (e *Engine) Burn(owner crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	ledger, previous, err := e.refresh()
	if err != nil {
		return nil, err
	}
	burned, err := tokensToShares(amount, ledger)
	if err != nil {
		return nil, err
	}
	account, err := e.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	if err := e.checkSpend(account, amount, burned, ledger); err != nil {
		return nil, err
	}
	return burned, e.applyBurn(account, amount, burned, ledger, previous)
}

// BurnAll redeems every share held by owner and returns the token amount
// redeemed. Unlike Burn it leaves no residual share dust on the account.
func (e *Engine) BurnAll(owner crypto.Address) (*uint256.Int, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	ledger, previous, err := e.refresh()
	if err != nil {
		return nil, err
	}
	account, err := e.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	if account.Shares.IsZero() {
		return nil, ErrInsufficientBalance
	}
	amount, err := sharesToTokens(account.Shares, ledger)
	if err != nil {
		return nil, err
	}
	burned := new(uint256.Int).Set(account.Shares)
	if err := e.applyBurn(account, amount, burned, ledger, previous); err != nil {
		return nil, err
	}
	return amount, nil
}

func (e *Engine) applyBurn(account *ShareAccount, amount, burned *uint256.Int, ledger *LedgerState, previous *uint256.Int) error {
	account.Shares.Sub(account.Shares, burned)
	ledger.TotalShares.Sub(ledger.TotalShares, burned)
	ledger.Reserve.Sub(ledger.Reserve, amount)

	if err := e.storeAccount(account); err != nil {
		return err
	}
	if err := e.storeState(ledger); err != nil {
		return err
	}
	e.emitRebased(previous, ledger)
	e.emitter.Emit(events.LedgerBurned{
		Owner:  account.Owner,
		Amount: new(uint256.Int).Set(amount),
		Shares: new(uint256.Int).Set(burned),
	})
	return nil
}

// Transfer moves the shares worth amount tokens from one holder to another.
// Total shares and the reserve are unchanged. The moved share count is
// returned.
func (e *Engine) Transfer(from, to crypto.Address, amount *uint256.Int, memo string) (*uint256.Int, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if len(to.Bytes()) == 0 || len(from.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}
	if from.Equal(to) {
		return nil, ErrSelfTransfer
	}

	ledger, previous, err := e.refresh()
	if err != nil {
		return nil, err
	}
	moved, err := tokensToShares(amount, ledger)
	if err != nil {
		return nil, err
	}
	sender, err := e.loadAccount(from)
	if err != nil {
		return nil, err
	}
	if err := e.checkSpend(sender, amount, moved, ledger); err != nil {
		return nil, err
	}
	receiver, err := e.loadAccount(to)
	if err != nil {
		return nil, err
	}
	if receiver.Shares, err = addChecked(receiver.Shares, moved); err != nil {
		return nil, err
	}
	sender.Shares.Sub(sender.Shares, moved)

	if err := e.storeAccount(sender); err != nil {
		return nil, err
	}
	if err := e.storeAccount(receiver); err != nil {
		return nil, err
	}
	if err := e.storeState(ledger); err != nil {
		return nil, err
	}
	e.emitRebased(previous, ledger)
	e.emitter.Emit(events.LedgerTransfer{
		From:   from,
		To:     to,
		Amount: new(uint256.Int).Set(amount),
		Shares: new(uint256.Int).Set(moved),
		Memo:   memo,
	})
	return moved, nil
}

// checkSpend validates that account can part with amount tokens, represented
// by shares at the current price.
func (e *Engine) checkSpend(account *ShareAccount, amount, shares *uint256.Int, ledger *LedgerState) error {
	balance, err := sharesToTokens(account.Shares, ledger)
	if err != nil {
		return err
	}
	if amount.Gt(balance) || shares.Gt(account.Shares) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	if shares.IsZero() {
		return fmt.Errorf("%w: %s tokens convert to zero shares", ErrZeroAmount, amount.Dec())
	}
	return nil
}

// BalanceOf returns the token balance of addr at the cached reserve. It does
// not rebase; callers that need a fresh figure must Rebase first.
func (e *Engine) BalanceOf(addr crypto.Address) (*uint256.Int, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	ledger, err := e.loadState()
	if err != nil {
		return nil, err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return sharesToTokens(account.Shares, ledger)
}

// SharesOf returns the shares held by addr.
func (e *Engine) SharesOf(addr crypto.Address) (*uint256.Int, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Shares, nil
}

// TotalSupply returns the cached reserve, which is the token supply.
func (e *Engine) TotalSupply() (*uint256.Int, error) {
	ledger, err := e.State()
	if err != nil {
		return nil, err
	}
	return ledger.Reserve, nil
}

// TotalShares returns the number of shares outstanding.
func (e *Engine) TotalShares() (*uint256.Int, error) {
	ledger, err := e.State()
	if err != nil {
		return nil, err
	}
	return ledger.TotalShares, nil
}

// State returns a copy of the persisted ledger state.
func (e *Engine) State() (*LedgerState, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.loadState()
}

// TokensToShares converts amount to shares at the cached reserve.
func (e *Engine) TokensToShares(amount *uint256.Int) (*uint256.Int, error) {
	ledger, err := e.State()
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return new(uint256.Int), nil
	}
	return tokensToShares(amount, ledger)
}

// SharesToTokens converts shares to tokens at the cached reserve.
func (e *Engine) SharesToTokens(shares *uint256.Int) (*uint256.Int, error) {
	ledger, err := e.State()
	if err != nil {
		return nil, err
	}
	if shares == nil {
		return new(uint256.Int), nil
	}
	return sharesToTokens(shares, ledger)
}

// Accounts lists every holder with a non-zero share balance in first-credit
// order.
func (e *Engine) Accounts() ([]ShareAccount, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	var owners [][]byte
	if err := e.state.KVGetList(accountIndexKey, &owners); err != nil {
		return nil, fmt.Errorf("rebase: load account index: %w", err)
	}
	accounts := make([]ShareAccount, 0, len(owners))
	for _, owner := range owners {
		var stored storedAccount
		ok, err := e.state.KVGet(shareAccountKey(owner), &stored)
		if err != nil {
			return nil, fmt.Errorf("rebase: load account: %w", err)
		}
		if !ok {
			continue
		}
		accounts = append(accounts, stored.toAccount())
	}
	return accounts, nil
}

func (e *Engine) ready(needOracle bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if needOracle && e.oracle == nil {
		return errNilOracle
	}
	return nil
}

// refresh loads the ledger state and overwrites its reserve with the oracle's
// backing. Nothing is persisted; the previous reserve is returned alongside.
func (e *Engine) refresh() (*LedgerState, *uint256.Int, error) {
	ledger, err := e.loadState()
	if err != nil {
		return nil, nil, err
	}
	backing, err := e.oracle.TotalBacking()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if backing == nil {
		return nil, nil, fmt.Errorf("%w: oracle returned no value", ErrOracleUnavailable)
	}
	previous := new(uint256.Int).Set(ledger.Reserve)
	ledger.Reserve = new(uint256.Int).Set(backing)
	return ledger, previous, nil
}

func (e *Engine) emitRebased(previous *uint256.Int, ledger *LedgerState) {
	if previous == nil || previous.Eq(ledger.Reserve) {
		return
	}
	e.emitter.Emit(events.Rebased{
		Previous: new(uint256.Int).Set(previous),
		Reserve:  new(uint256.Int).Set(ledger.Reserve),
	})
}

func (e *Engine) loadState() (*LedgerState, error) {
	stored := NewLedgerState()
	if _, err := e.state.KVGet(ledgerStateKey, stored); err != nil {
		return nil, fmt.Errorf("rebase: load ledger state: %w", err)
	}
	return stored.Clone(), nil
}

func (e *Engine) storeState(ledger *LedgerState) error {
	if err := e.state.KVPut(ledgerStateKey, ledger.Clone()); err != nil {
		return fmt.Errorf("rebase: store ledger state: %w", err)
	}
	return nil
}

func (e *Engine) loadAccount(owner crypto.Address) (*ShareAccount, error) {
	if len(owner.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}
	var stored storedAccount
	ok, err := e.state.KVGet(shareAccountKey(owner.Bytes()), &stored)
	if err != nil {
		return nil, fmt.Errorf("rebase: load account: %w", err)
	}
	if !ok {
		return &ShareAccount{Owner: owner, Shares: new(uint256.Int)}, nil
	}
	account := stored.toAccount()
	return &account, nil
}

// storeAccount persists the account, deleting it and dropping it from the
// holder index once its shares reach zero.
func (e *Engine) storeAccount(account *ShareAccount) error {
	owner := account.Owner.Bytes()
	key := shareAccountKey(owner)
	if account.Shares.IsZero() {
		if err := e.state.KVDelete(key); err != nil {
			return fmt.Errorf("rebase: delete account: %w", err)
		}
		if err := e.state.KVRemove(accountIndexKey, owner); err != nil {
			return fmt.Errorf("rebase: update account index: %w", err)
		}
		return nil
	}
	stored := storedAccount{
		Prefix: string(account.Owner.Prefix()),
		Owner:  append([]byte(nil), owner...),
		Shares: new(uint256.Int).Set(account.Shares),
	}
	if err := e.state.KVPut(key, &stored); err != nil {
		return fmt.Errorf("rebase: store account: %w", err)
	}
	if err := e.state.KVAppend(accountIndexKey, owner); err != nil {
		return fmt.Errorf("rebase: update account index: %w", err)
	}
	return nil
}
