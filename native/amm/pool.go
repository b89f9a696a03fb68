package amm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"rebasevault/core/events"
	"rebasevault/crypto"
	nativecommon "rebasevault/native/common"
)

var (
	ErrZeroAmount          = errors.New("amm: amount must be positive")
	ErrSlippageExceeded    = errors.New("amm: slippage exceeded")
	ErrPoolDrained         = errors.New("amm: swap would drain pool reserve")
	ErrOverflow            = errors.New("amm: arithmetic overflow")
	ErrInvariantViolated   = errors.New("amm: constant product decreased")
	ErrInsufficientBalance = errors.New("amm: insufficient LP shares")
	ErrInvalidDirection    = errors.New("amm: invalid swap direction")
	ErrInvalidAddress      = errors.New("amm: account address required")

	errNilState  = errors.New("amm pool: state not configured")
	errNilTokens = errors.New("amm pool: tokens not configured")
)

// ModuleName identifies the AMM for pause switches.
const ModuleName = "amm"

// Token is the capability set a pool needs from each side of its pair. The
// pool never sees how a token represents balances internally.
type Token interface {
	Transfer(from, to crypto.Address, amount *uint256.Int, memo string) error
	Balance(addr crypto.Address) (*uint256.Int, error)
	TotalSupply() (*uint256.Int, error)
	Decimals() uint8
}

// Refresher is implemented by tokens whose balances drift with an external
// reserve. Pools refresh such tokens before any pricing.
type Refresher interface {
	Rebase() (*uint256.Int, error)
}

type poolState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Pool is a constant-product market between a plain asset (A) and a rebasing
// token (B). The B reserve is the live ledger balance of the pool account so
// accrued yield flows to liquidity providers.
type Pool struct {
	id      string
	feePPM  uint32
	address crypto.Address
	tokenA  Token
	tokenB  Token
	state   poolState
	pauses  nativecommon.PauseView
	emitter events.Emitter
}

// PoolAddress returns the module account that holds a pool's reserves.
func PoolAddress(id string) crypto.Address {
	return crypto.ModuleAddress("amm/" + strings.TrimSpace(id))
}

// NewPool binds a pool configuration to its pair of tokens.
func NewPool(cfg Config, tokenA, tokenB Token) (*Pool, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return nil, fmt.Errorf("amm: pool id required")
	}
	if tokenA == nil || tokenB == nil {
		return nil, errNilTokens
	}
	if cfg.FeePPM >= feeDenominator {
		return nil, fmt.Errorf("amm: fee %d ppm must be below %d", cfg.FeePPM, feeDenominator)
	}
	return &Pool{
		id:      id,
		feePPM:  cfg.FeePPM,
		address: PoolAddress(id),
		tokenA:  tokenA,
		tokenB:  tokenB,
		emitter: events.NoopEmitter{},
	}, nil
}

func (p *Pool) SetState(state poolState) { p.state = state }

func (p *Pool) SetPauses(pauses nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = pauses
}

func (p *Pool) SetEmitter(emitter events.Emitter) {
	if p == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p.emitter = emitter
}

func (p *Pool) ID() string { return p.id }

func (p *Pool) FeePPM() uint32 { return p.feePPM }

func (p *Pool) Address() crypto.Address { return p.address }

// Refresh rebases every refreshable token of the pair.
func (p *Pool) Refresh() error {
	for _, token := range []Token{p.tokenA, p.tokenB} {
		if refresher, ok := token.(Refresher); ok {
			if _, err := refresher.Rebase(); err != nil {
				return err
			}
		}
	}
	return nil
}

// State returns a copy of the persisted pool accounting.
func (p *Pool) State() (*PoolState, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.loadState()
}

// LiveReserves returns the plain reserve and the pool's current balance of the
// rebasing token. No refresh is performed.
func (p *Pool) LiveReserves() (Reserves, error) {
	if err := p.ready(); err != nil {
		return Reserves{}, err
	}
	state, err := p.loadState()
	if err != nil {
		return Reserves{}, err
	}
	return p.reserves(state)
}

// QuoteSwap prices amountIn against the current reserves without refreshing
// or mutating anything.
func (p *Pool) QuoteSwap(amountIn *uint256.Int, dir Direction) (*Quote, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	reserves, err := p.LiveReserves()
	if err != nil {
		return nil, err
	}
	return p.quote(amountIn, dir, reserves)
}

func (p *Pool) quote(amountIn *uint256.Int, dir Direction, reserves Reserves) (*Quote, error) {
	var reserveIn, reserveOut *uint256.Int
	switch dir {
	case AToB:
		reserveIn, reserveOut = reserves.A, reserves.B
	case BToA:
		reserveIn, reserveOut = reserves.B, reserves.A
	default:
		return nil, ErrInvalidDirection
	}
	out, err := amountOut(amountIn, reserveIn, reserveOut, p.feePPM)
	if err != nil {
		return nil, err
	}
	afterFee, err := inputAfterFee(amountIn, p.feePPM)
	if err != nil {
		return nil, err
	}
	fee := new(uint256.Int).Sub(amountIn, afterFee)
	return &Quote{
		Direction:  dir,
		AmountIn:   new(uint256.Int).Set(amountIn),
		AmountOut:  out,
		Fee:        fee,
		ReserveIn:  new(uint256.Int).Set(reserveIn),
		ReserveOut: new(uint256.Int).Set(reserveOut),
	}, nil
}

// SwapAToB pays the plain asset in for the rebasing token.
func (p *Pool) SwapAToB(trader crypto.Address, amountIn, minOut *uint256.Int) (*Quote, error) {
	return p.Swap(trader, amountIn, minOut, AToB)
}

// SwapBToA pays the rebasing token in for the plain asset.
func (p *Pool) SwapBToA(trader crypto.Address, amountIn, minOut *uint256.Int) (*Quote, error) {
	return p.Swap(trader, amountIn, minOut, BToA)
}

// Swap refreshes the pair, collects amountIn from trader and pays out the
// constant-product amount. Share rounding on the rebasing side can cost a
// unit in either leg, so the output is priced on what the pool actually
// received and minOut is checked against what the trader actually received.
// The returned quote reports the delivered amount. Any failure leaves the
// caller's unit of work to be discarded.
func (p *Pool) Swap(trader crypto.Address, amountIn, minOut *uint256.Int, dir Direction) (*Quote, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(p.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	if len(trader.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}
	if dir != AToB && dir != BToA {
		return nil, ErrInvalidDirection
	}
	if minOut == nil {
		minOut = new(uint256.Int)
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	state, err := p.loadState()
	if err != nil {
		return nil, err
	}
	before, err := p.reserves(state)
	if err != nil {
		return nil, err
	}
	// Reject against the nominal quote before moving any funds.
	nominal, err := p.quote(amountIn, dir, before)
	if err != nil {
		return nil, err
	}
	if nominal.AmountOut.Lt(minOut) {
		return nil, fmt.Errorf("%w: quoted %s, minimum %s", ErrSlippageExceeded, nominal.AmountOut.Dec(), minOut.Dec())
	}

	tokenIn, tokenOut := p.tokenA, p.tokenB
	if dir == BToA {
		tokenIn, tokenOut = p.tokenB, p.tokenA
	}
	memo := "amm:" + p.id + ":" + dir.String()
	if err := tokenIn.Transfer(trader, p.address, amountIn, memo); err != nil {
		return nil, err
	}

	received := amountIn
	if dir == BToA {
		liveB, err := p.tokenB.Balance(p.address)
		if err != nil {
			return nil, err
		}
		if !liveB.Gt(before.B) {
			return nil, ErrZeroAmount
		}
		received = new(uint256.Int).Sub(liveB, before.B)
	}
	quote, err := p.quote(received, dir, before)
	if err != nil {
		return nil, err
	}
	if quote.AmountOut.Lt(minOut) {
		return nil, fmt.Errorf("%w: received %s, minimum %s", ErrSlippageExceeded, quote.AmountOut.Dec(), minOut.Dec())
	}
	delivered, err := p.deliver(tokenOut, trader, quote.AmountOut, memo)
	if err != nil {
		return nil, err
	}
	if delivered.Lt(minOut) {
		return nil, fmt.Errorf("%w: delivered %s, minimum %s", ErrSlippageExceeded, delivered.Dec(), minOut.Dec())
	}

	if dir == AToB {
		state.PlainReserve, err = add(state.PlainReserve, amountIn)
		if err != nil {
			return nil, err
		}
	} else {
		state.PlainReserve = new(uint256.Int).Sub(state.PlainReserve, quote.AmountOut)
	}
	after, err := p.reserves(state)
	if err != nil {
		return nil, err
	}
	if err := checkInvariant(before, after); err != nil {
		return nil, err
	}
	if err := p.storeState(state); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.PoolSwap{
		PoolID:    p.id,
		Trader:    trader,
		Direction: dir.String(),
		AmountIn:  new(uint256.Int).Set(amountIn),
		AmountOut: new(uint256.Int).Set(delivered),
		Fee:       new(uint256.Int).Set(quote.Fee),
	})
	quote.AmountIn = new(uint256.Int).Set(amountIn)
	quote.AmountOut = delivered
	return quote, nil
}

// AddLiquidity deposits up to amountA and amountB. The first deposit issues
// isqrt(a*b) LP shares; later deposits issue min(T*a/ra, T*b/rb) and pull only
// the proportional amounts, rounded up in the pool's favour.
func (p *Pool) AddLiquidity(provider crypto.Address, amountA, amountB, minLP *uint256.Int) (*LiquidityResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(p.pauses, ModuleName); err != nil {
		return nil, err
	}
	if amountA == nil || amountA.IsZero() || amountB == nil || amountB.IsZero() {
		return nil, ErrZeroAmount
	}
	if len(provider.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	state, err := p.loadState()
	if err != nil {
		return nil, err
	}
	reserves, err := p.reserves(state)
	if err != nil {
		return nil, err
	}

	var issued, usedA, usedB *uint256.Int
	if state.LPTotalShares.IsZero() {
		product, err := mul(amountA, amountB)
		if err != nil {
			return nil, err
		}
		issued = new(uint256.Int).Sqrt(product)
		usedA, usedB = new(uint256.Int).Set(amountA), new(uint256.Int).Set(amountB)
	} else {
		if reserves.A.IsZero() || reserves.B.IsZero() {
			return nil, ErrPoolDrained
		}
		total := state.LPTotalShares
		byA, err := mulDiv(total, amountA, reserves.A)
		if err != nil {
			return nil, err
		}
		byB, err := mulDiv(total, amountB, reserves.B)
		if err != nil {
			return nil, err
		}
		issued = minInt(byA, byB)
		if !issued.IsZero() {
			if usedA, err = mulDivUp(issued, reserves.A, total); err != nil {
				return nil, err
			}
			if usedB, err = mulDivUp(issued, reserves.B, total); err != nil {
				return nil, err
			}
		}
	}
	if issued.IsZero() {
		return nil, fmt.Errorf("%w: deposit issues no LP shares", ErrZeroAmount)
	}
	if minLP != nil && issued.Lt(minLP) {
		return nil, fmt.Errorf("%w: issued %s LP, minimum %s", ErrSlippageExceeded, issued.Dec(), minLP.Dec())
	}

	memo := "amm:" + p.id + ":add_liquidity"
	if err := p.tokenA.Transfer(provider, p.address, usedA, memo); err != nil {
		return nil, err
	}
	if err := p.tokenB.Transfer(provider, p.address, usedB, memo); err != nil {
		return nil, err
	}

	account, err := p.loadLP(provider)
	if err != nil {
		return nil, err
	}
	if account.Shares, err = add(account.Shares, issued); err != nil {
		return nil, err
	}
	if state.LPTotalShares, err = add(state.LPTotalShares, issued); err != nil {
		return nil, err
	}
	if state.PlainReserve, err = add(state.PlainReserve, usedA); err != nil {
		return nil, err
	}
	if err := p.storeLP(account); err != nil {
		return nil, err
	}
	if err := p.storeState(state); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.LiquidityAdded{
		PoolID:   p.id,
		Provider: provider,
		AmountA:  new(uint256.Int).Set(usedA),
		AmountB:  new(uint256.Int).Set(usedB),
		LPShares: new(uint256.Int).Set(issued),
	})
	return &LiquidityResult{LPShares: issued, AmountA: usedA, AmountB: usedB}, nil
}

// RemoveLiquidity redeems lp shares for floor(r*lp/T) of each reserve. A
// rebasing-side amount too small to move as a ledger share is left in the
// pool, so small positions can always exit.
func (p *Pool) RemoveLiquidity(provider crypto.Address, lp, minA, minB *uint256.Int) (*LiquidityResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(p.pauses, ModuleName); err != nil {
		return nil, err
	}
	if lp == nil || lp.IsZero() {
		return nil, ErrZeroAmount
	}
	account, err := p.loadLP(provider)
	if err != nil {
		return nil, err
	}
	if account.Shares.Lt(lp) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, account.Shares.Dec(), lp.Dec())
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	state, err := p.loadState()
	if err != nil {
		return nil, err
	}
	reserves, err := p.reserves(state)
	if err != nil {
		return nil, err
	}
	total := state.LPTotalShares
	outA, err := mulDiv(reserves.A, lp, total)
	if err != nil {
		return nil, err
	}
	outB, err := mulDiv(reserves.B, lp, total)
	if err != nil {
		return nil, err
	}
	if !outB.IsZero() {
		// Dust the ledger cannot move stays with the remaining providers.
		if dust, ok := p.tokenB.(DustReporter); ok {
			isDust, err := dust.IsDust(outB)
			if err != nil {
				return nil, err
			}
			if isDust {
				outB = new(uint256.Int)
			}
		}
	}
	if outA.IsZero() && outB.IsZero() {
		return nil, fmt.Errorf("%w: redemption returns nothing", ErrZeroAmount)
	}
	if minA != nil && outA.Lt(minA) {
		return nil, fmt.Errorf("%w: asset A %s below minimum %s", ErrSlippageExceeded, outA.Dec(), minA.Dec())
	}
	if minB != nil && outB.Lt(minB) {
		return nil, fmt.Errorf("%w: asset B %s below minimum %s", ErrSlippageExceeded, outB.Dec(), minB.Dec())
	}

	account.Shares.Sub(account.Shares, lp)
	state.LPTotalShares = new(uint256.Int).Sub(total, lp)
	state.PlainReserve = new(uint256.Int).Sub(state.PlainReserve, outA)
	if err := p.storeLP(account); err != nil {
		return nil, err
	}
	if err := p.storeState(state); err != nil {
		return nil, err
	}

	memo := "amm:" + p.id + ":remove_liquidity"
	if !outA.IsZero() {
		if err := p.tokenA.Transfer(p.address, provider, outA, memo); err != nil {
			return nil, err
		}
	}
	if !outB.IsZero() {
		delivered, err := p.deliver(p.tokenB, provider, outB, memo)
		if err != nil {
			return nil, err
		}
		if minB != nil && delivered.Lt(minB) {
			return nil, fmt.Errorf("%w: asset B delivered %s, minimum %s", ErrSlippageExceeded, delivered.Dec(), minB.Dec())
		}
		outB = delivered
	}
	p.emitter.Emit(events.LiquidityRemoved{
		PoolID:   p.id,
		Provider: provider,
		AmountA:  new(uint256.Int).Set(outA),
		AmountB:  new(uint256.Int).Set(outB),
		LPShares: new(uint256.Int).Set(lp),
	})
	return &LiquidityResult{LPShares: new(uint256.Int).Set(lp), AmountA: outA, AmountB: outB}, nil
}

// LPBalance returns the LP shares held by addr.
func (p *Pool) LPBalance(addr crypto.Address) (*uint256.Int, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	account, err := p.loadLP(addr)
	if err != nil {
		return nil, err
	}
	return account.Shares, nil
}

// Providers lists every account holding LP shares.
func (p *Pool) Providers() ([]LPAccount, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	var owners [][]byte
	if err := p.state.KVGetList(providerIndexKey(p.id), &owners); err != nil {
		return nil, fmt.Errorf("amm: load provider index: %w", err)
	}
	accounts := make([]LPAccount, 0, len(owners))
	for _, owner := range owners {
		var stored storedLP
		ok, err := p.state.KVGet(lpKey(p.id, owner), &stored)
		if err != nil {
			return nil, fmt.Errorf("amm: load lp account: %w", err)
		}
		if !ok {
			continue
		}
		accounts = append(accounts, LPAccount{
			Owner:  crypto.NewAddress(crypto.AddressPrefix(stored.Prefix), stored.Owner),
			Shares: stored.Shares,
		})
	}
	return accounts, nil
}

// deliver pays amount of token out of the pool and returns how much the
// recipient's balance actually grew.
func (p *Pool) deliver(token Token, to crypto.Address, amount *uint256.Int, memo string) (*uint256.Int, error) {
	before, err := token.Balance(to)
	if err != nil {
		return nil, err
	}
	if err := token.Transfer(p.address, to, amount, memo); err != nil {
		return nil, err
	}
	after, err := token.Balance(to)
	if err != nil {
		return nil, err
	}
	if !after.Gt(before) {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(after, before), nil
}

func (p *Pool) ready() error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if p.tokenA == nil || p.tokenB == nil {
		return errNilTokens
	}
	return nil
}

func (p *Pool) reserves(state *PoolState) (Reserves, error) {
	liveB, err := p.tokenB.Balance(p.address)
	if err != nil {
		return Reserves{}, err
	}
	return Reserves{A: new(uint256.Int).Set(state.PlainReserve), B: liveB}, nil
}

func (p *Pool) loadState() (*PoolState, error) {
	stored := newPoolState()
	if _, err := p.state.KVGet(stateKey(p.id), stored); err != nil {
		return nil, fmt.Errorf("amm: load pool state: %w", err)
	}
	return stored.Clone(), nil
}

func (p *Pool) storeState(state *PoolState) error {
	if err := p.state.KVPut(stateKey(p.id), state.Clone()); err != nil {
		return fmt.Errorf("amm: store pool state: %w", err)
	}
	return nil
}

func (p *Pool) loadLP(owner crypto.Address) (*LPAccount, error) {
	if len(owner.Bytes()) == 0 {
		return nil, ErrInvalidAddress
	}
	var stored storedLP
	ok, err := p.state.KVGet(lpKey(p.id, owner.Bytes()), &stored)
	if err != nil {
		return nil, fmt.Errorf("amm: load lp account: %w", err)
	}
	account := &LPAccount{Owner: owner, Shares: new(uint256.Int)}
	if ok && stored.Shares != nil {
		account.Shares.Set(stored.Shares)
	}
	return account, nil
}

func (p *Pool) storeLP(account *LPAccount) error {
	owner := account.Owner.Bytes()
	key := lpKey(p.id, owner)
	if account.Shares.IsZero() {
		if err := p.state.KVDelete(key); err != nil {
			return fmt.Errorf("amm: delete lp account: %w", err)
		}
		if err := p.state.KVRemove(providerIndexKey(p.id), owner); err != nil {
			return fmt.Errorf("amm: update provider index: %w", err)
		}
		return nil
	}
	stored := storedLP{
		Prefix: string(account.Owner.Prefix()),
		Owner:  append([]byte(nil), owner...),
		Shares: new(uint256.Int).Set(account.Shares),
	}
	if err := p.state.KVPut(key, &stored); err != nil {
		return fmt.Errorf("amm: store lp account: %w", err)
	}
	if err := p.state.KVAppend(providerIndexKey(p.id), owner); err != nil {
		return fmt.Errorf("amm: update provider index: %w", err)
	}
	return nil
}
