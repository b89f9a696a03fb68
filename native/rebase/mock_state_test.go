package rebase

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"rebasevault/crypto"
	"rebasevault/native/reserve"
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
	list := m.lists[string(key)]
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	m.lists[string(key)] = append(list, append([]byte(nil), value...))
	return nil
}

func (m *mockState) KVRemove(key []byte, value []byte) error {
	list := m.lists[string(key)]
	filtered := make([][]byte, 0, len(list))
	for _, existing := range list {
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
	list := m.lists[string(key)]
	*target = make([][]byte, len(list))
	for i := range list {
		(*target)[i] = append([]byte(nil), list[i]...)
	}
	return nil
}

// snapshot copies the raw KV contents so tests can assert nothing changed.
func (m *mockState) snapshot() map[string]string {
	out := make(map[string]string, len(m.kv))
	for k, v := range m.kv {
		out[k] = string(v)
	}
	return out
}

// backing is a settable oracle.
type backing struct {
	value *uint256.Int
	err   error
	calls int
}

func (b *backing) TotalBacking() (*uint256.Int, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if b.value == nil {
		return nil, nil
	}
	return new(uint256.Int).Set(b.value), nil
}

func (b *backing) set(v uint64) { b.value = uint256.NewInt(v) }

func (b *backing) add(v uint64) { b.value = new(uint256.Int).Add(b.value, uint256.NewInt(v)) }

var _ reserve.Oracle = (*backing)(nil)

func newTestEngine(t interface{ Helper() }) (*Engine, *mockState, *backing) {
	t.Helper()
	state := newMockState()
	oracle := &backing{value: new(uint256.Int)}
	engine := NewEngine(Metadata{Symbol: "rUSD", Name: "Rebasing USD", Decimals: 6})
	engine.SetState(state)
	engine.SetOracle(oracle)
	return engine, state, oracle
}

func testAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }
