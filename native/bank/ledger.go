package bank

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"rebasevault/core/events"
	"rebasevault/crypto"
	nativecommon "rebasevault/native/common"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrZeroAmount          = errors.New("bank: amount must be positive")
	ErrUnknownAsset        = errors.New("bank: unknown asset")
	ErrAssetExists         = errors.New("bank: asset already registered")
	ErrOverflow            = errors.New("bank: arithmetic overflow")
	ErrInvalidAddress      = errors.New("bank: account address required")

	errNilState = errors.New("bank ledger: state not configured")
)

// ModuleName identifies the plain asset ledger for pause switches.
const ModuleName = "bank"

// Storage is the persistence surface required by the ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Ledger tracks non-rebasing asset balances keyed by symbol.
type Ledger struct {
	state   Storage
	pauses  nativecommon.PauseView
	emitter events.Emitter
}

func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetState(state Storage) { l.state = state }

func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// RegisterAsset records a new plain asset with zero supply.
func (l *Ledger) RegisterAsset(asset Asset) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	asset.Symbol = NormalizeSymbol(asset.Symbol)
	if asset.Symbol == "" {
		return fmt.Errorf("bank: asset symbol required")
	}
	ok, err := l.state.KVGet(assetKey(asset.Symbol), new(Asset))
	if err != nil {
		return fmt.Errorf("bank: load asset: %w", err)
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrAssetExists, asset.Symbol)
	}
	if err := l.state.KVPut(assetKey(asset.Symbol), &asset); err != nil {
		return fmt.Errorf("bank: store asset: %w", err)
	}
	return nil
}

// Asset returns the registration for symbol.
func (l *Ledger) Asset(symbol string) (*Asset, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	symbol = NormalizeSymbol(symbol)
	var asset Asset
	ok, err := l.state.KVGet(assetKey(symbol), &asset)
	if err != nil {
		return nil, fmt.Errorf("bank: load asset: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return &asset, nil
}

// Credit issues amount of symbol to addr, growing the supply. Used for genesis
// allocations and settled external deposits.
func (l *Ledger) Credit(symbol string, addr crypto.Address, amount *uint256.Int) error {
	asset, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	if len(addr.Bytes()) == 0 {
		return ErrInvalidAddress
	}
	balance, err := l.balance(asset.Symbol, addr)
	if err != nil {
		return err
	}
	supply, err := l.supply(asset.Symbol)
	if err != nil {
		return err
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return ErrOverflow
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrOverflow
	}
	if err := l.storeBalance(asset.Symbol, addr, newBalance); err != nil {
		return err
	}
	return l.storeSupply(asset.Symbol, newSupply)
}

// Debit withdraws amount of symbol from addr, shrinking the supply.
func (l *Ledger) Debit(symbol string, addr crypto.Address, amount *uint256.Int) error {
	asset, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	balance, err := l.balance(asset.Symbol, addr)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	supply, err := l.supply(asset.Symbol)
	if err != nil {
		return err
	}
	if err := l.storeBalance(asset.Symbol, addr, balance.Sub(balance, amount)); err != nil {
		return err
	}
	return l.storeSupply(asset.Symbol, supply.Sub(supply, amount))
}

// Transfer moves amount of symbol between two accounts.
func (l *Ledger) Transfer(symbol string, from, to crypto.Address, amount *uint256.Int, memo string) error {
	asset, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	if len(from.Bytes()) == 0 || len(to.Bytes()) == 0 {
		return ErrInvalidAddress
	}
	fromBalance, err := l.balance(asset.Symbol, from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), amount.Dec())
	}
	if !from.Equal(to) {
		toBalance, err := l.balance(asset.Symbol, to)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
		if overflow {
			return ErrOverflow
		}
		if err := l.storeBalance(asset.Symbol, from, fromBalance.Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := l.storeBalance(asset.Symbol, to, credited); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.AssetTransfer{
		Asset:  asset.Symbol,
		From:   from,
		To:     to,
		Amount: new(uint256.Int).Set(amount),
		Memo:   memo,
	})
	return nil
}

// Balance returns the balance of addr in symbol.
func (l *Ledger) Balance(symbol string, addr crypto.Address) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	asset, err := l.Asset(symbol)
	if err != nil {
		return nil, err
	}
	return l.balance(asset.Symbol, addr)
}

// TotalSupply returns the outstanding supply of symbol.
func (l *Ledger) TotalSupply(symbol string) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	asset, err := l.Asset(symbol)
	if err != nil {
		return nil, err
	}
	return l.supply(asset.Symbol)
}

func (l *Ledger) prepare(symbol string, amount *uint256.Int) (*Asset, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	return l.Asset(symbol)
}

func (l *Ledger) balance(symbol string, addr crypto.Address) (*uint256.Int, error) {
	if len(addr.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}
	var stored storedBalance
	ok, err := l.state.KVGet(balanceKey(symbol, addr.Bytes()), &stored)
	if err != nil {
		return nil, fmt.Errorf("bank: load balance: %w", err)
	}
	if !ok || stored.Amount == nil {
		return new(uint256.Int), nil
	}
	return stored.Amount, nil
}

func (l *Ledger) storeBalance(symbol string, addr crypto.Address, amount *uint256.Int) error {
	key := balanceKey(symbol, addr.Bytes())
	if amount.IsZero() {
		if err := l.state.KVDelete(key); err != nil {
			return fmt.Errorf("bank: delete balance: %w", err)
		}
		return nil
	}
	if err := l.state.KVPut(key, &storedBalance{Amount: new(uint256.Int).Set(amount)}); err != nil {
		return fmt.Errorf("bank: store balance: %w", err)
	}
	return nil
}

func (l *Ledger) supply(symbol string) (*uint256.Int, error) {
	var stored storedBalance
	ok, err := l.state.KVGet(supplyKey(symbol), &stored)
	if err != nil {
		return nil, fmt.Errorf("bank: load supply: %w", err)
	}
	if !ok || stored.Amount == nil {
		return new(uint256.Int), nil
	}
	return stored.Amount, nil
}

func (l *Ledger) storeSupply(symbol string, amount *uint256.Int) error {
	if err := l.state.KVPut(supplyKey(symbol), &storedBalance{Amount: new(uint256.Int).Set(amount)}); err != nil {
		return fmt.Errorf("bank: store supply: %w", err)
	}
	return nil
}
