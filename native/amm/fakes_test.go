package amm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"rebasevault/crypto"
)

type mockState struct {
	kv    map[string][]byte
	lists map[string][][]byte
}

func newMockState() *mockState {
	return &mockState{kv: make(map[string][]byte), lists: make(map[string][][]byte)}
}

func (m *mockState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *mockState) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	return true, rlp.DecodeBytes(encoded, out)
}

func (m *mockState) KVDelete(key []byte) error {
	delete(m.kv, string(key))
	return nil
}

func (m *mockState) KVAppend(key []byte, value []byte) error {
	for _, existing := range m.lists[string(key)] {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	m.lists[string(key)] = append(m.lists[string(key)], append([]byte(nil), value...))
	return nil
}

func (m *mockState) KVRemove(key []byte, value []byte) error {
	var filtered [][]byte
	for _, existing := range m.lists[string(key)] {
		if !bytes.Equal(existing, value) {
			filtered = append(filtered, existing)
		}
	}
	m.lists[string(key)] = filtered
	return nil
}

func (m *mockState) KVGetList(key []byte, out interface{}) error {
	target, ok := out.(*[][]byte)
	if !ok {
		return errors.New("mock: unsupported list type")
	}
	*target = append([][]byte(nil), m.lists[string(key)]...)
	return nil
}

var errFakeInsufficient = errors.New("fake: insufficient balance")

// fakeToken is an in-memory token. refreshErr fails Rebase on the rebasing
// wrapper and failTo rejects transfers to one address. shortBy and leak model
// rounding losses: the recipient is credited amount-shortBy and the sender is
// debited amount+leak. Amounts below dustBelow are reported as dust.
type fakeToken struct {
	balances   map[string]*uint256.Int
	decimals   uint8
	rebases    int
	refreshErr error
	failTo     *crypto.Address
	shortBy    uint64
	leak       uint64
	dustBelow  uint64
}

func newFakeToken() *fakeToken {
	return &fakeToken{balances: make(map[string]*uint256.Int), decimals: 6}
}

func (f *fakeToken) key(addr crypto.Address) string { return string(addr.Bytes()) }

func (f *fakeToken) mint(addr crypto.Address, amount uint64) {
	bal, _ := f.Balance(addr)
	f.balances[f.key(addr)] = bal.Add(bal, uint256.NewInt(amount))
}

func (f *fakeToken) Transfer(from, to crypto.Address, amount *uint256.Int, memo string) error {
	if f.failTo != nil && f.failTo.Equal(to) {
		return fmt.Errorf("fake: transfer to %s rejected", to)
	}
	debit := new(uint256.Int).AddUint64(amount, f.leak)
	credit := new(uint256.Int).Set(amount)
	if !credit.LtUint64(f.shortBy) {
		credit.SubUint64(credit, f.shortBy)
	}
	fromBal, _ := f.Balance(from)
	if fromBal.Lt(debit) {
		return errFakeInsufficient
	}
	f.balances[f.key(from)] = fromBal.Sub(fromBal, debit)
	toBal, _ := f.Balance(to)
	f.balances[f.key(to)] = toBal.Add(toBal, credit)
	return nil
}

func (f *fakeToken) Balance(addr crypto.Address) (*uint256.Int, error) {
	if bal, ok := f.balances[f.key(addr)]; ok {
		return new(uint256.Int).Set(bal), nil
	}
	return new(uint256.Int), nil
}

func (f *fakeToken) TotalSupply() (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, bal := range f.balances {
		total.Add(total, bal)
	}
	return total, nil
}

func (f *fakeToken) Decimals() uint8 { return f.decimals }

// rebasingToken adds the refresh capability to fakeToken.
type rebasingToken struct {
	*fakeToken
}

func (r rebasingToken) Rebase() (*uint256.Int, error) {
	r.rebases++
	if r.refreshErr != nil {
		return nil, r.refreshErr
	}
	return r.TotalSupply()
}

func (r rebasingToken) IsDust(amount *uint256.Int) (bool, error) {
	return amount.CmpUint64(r.dustBelow) < 0, nil
}

func testAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[1] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type fixture struct {
	pool   *Pool
	state  *mockState
	plain  *fakeToken
	rebase rebasingToken
}

func newFixture(feePPM uint32) *fixture {
	plain := newFakeToken()
	rebase := rebasingToken{newFakeToken()}
	pool, err := NewPool(Config{ID: "rusd-usdc", FeePPM: feePPM}, plain, rebase)
	if err != nil {
		panic(err)
	}
	state := newMockState()
	pool.SetState(state)
	return &fixture{pool: pool, state: state, plain: plain, rebase: rebase}
}

// seed funds a provider and deposits the given reserves.
func (f *fixture) seed(a, b uint64) error {
	provider := testAddr(100)
	f.plain.mint(provider, a)
	f.rebase.mint(provider, b)
	_, err := f.pool.AddLiquidity(provider, u(a), u(b), nil)
	return err
}
