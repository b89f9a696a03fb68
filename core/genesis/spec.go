package genesis

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"rebasevault/crypto"
)

// Spec is the YAML genesis document.
type Spec struct {
	Assets   []AssetSpec                  `yaml:"assets"`
	Alloc    map[string]map[string]string `yaml:"alloc"`    // addr -> symbol -> amount
	Deposits map[string]string            `yaml:"deposits"` // addr -> backed rebasing amount
	Reserve  ReserveSpec                  `yaml:"reserve"`
}

// AssetSpec registers a plain asset.
type AssetSpec struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// ReserveSpec seeds the reserve book. Amounts are base-unit decimal strings.
type ReserveSpec struct {
	Liquid   string `yaml:"liquid"`
	Deployed string `yaml:"deployed"`
	Pending  string `yaml:"pending"`
}

// Allocation is a resolved plain asset balance.
type Allocation struct {
	Address crypto.Address
	Symbol  string
	Amount  *uint256.Int
}

// Deposit is a resolved backed mint of the rebasing token.
type Deposit struct {
	Address crypto.Address
	Amount  *uint256.Int
}

// Resolved is a validated genesis with addresses decoded and amounts parsed.
// Slices are sorted so application is deterministic.
type Resolved struct {
	Assets      []AssetSpec
	Allocations []Allocation
	Deposits    []Deposit
	Liquid      *uint256.Int
	Deployed    *uint256.Int
	Pending     *uint256.Int
}

// Load reads and resolves a genesis file.
func Load(path string) (*Resolved, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML genesis content, rejecting unknown fields.
func Parse(raw []byte) (*Resolved, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return spec.Resolve()
}

// Resolve validates the spec.
func (s *Spec) Resolve() (*Resolved, error) {
	out := &Resolved{}
	seen := make(map[string]struct{}, len(s.Assets))
	for _, asset := range s.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("genesis: asset symbol required")
		}
		if _, dup := seen[symbol]; dup {
			return nil, fmt.Errorf("genesis: duplicate asset %s", symbol)
		}
		seen[symbol] = struct{}{}
		asset.Symbol = symbol
		out.Assets = append(out.Assets, asset)
	}
	sort.Slice(out.Assets, func(i, j int) bool { return out.Assets[i].Symbol < out.Assets[j].Symbol })

	for addrStr, balances := range s.Alloc {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(addrStr))
		if err != nil {
			return nil, fmt.Errorf("genesis: alloc address %q: %w", addrStr, err)
		}
		for symbol, amountStr := range balances {
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			if _, ok := seen[symbol]; !ok {
				return nil, fmt.Errorf("genesis: alloc references unknown asset %s", symbol)
			}
			amount, err := parseAmount(amountStr)
			if err != nil {
				return nil, fmt.Errorf("genesis: alloc %s %s: %w", addrStr, symbol, err)
			}
			if amount.IsZero() {
				continue
			}
			out.Allocations = append(out.Allocations, Allocation{Address: addr, Symbol: symbol, Amount: amount})
		}
	}
	sort.Slice(out.Allocations, func(i, j int) bool {
		a, b := out.Allocations[i], out.Allocations[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return bytes.Compare(a.Address.Bytes(), b.Address.Bytes()) < 0
	})

	for addrStr, amountStr := range s.Deposits {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(addrStr))
		if err != nil {
			return nil, fmt.Errorf("genesis: deposit address %q: %w", addrStr, err)
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			return nil, fmt.Errorf("genesis: deposit %s: %w", addrStr, err)
		}
		if amount.IsZero() {
			continue
		}
		out.Deposits = append(out.Deposits, Deposit{Address: addr, Amount: amount})
	}
	sort.Slice(out.Deposits, func(i, j int) bool {
		return bytes.Compare(out.Deposits[i].Address.Bytes(), out.Deposits[j].Address.Bytes()) < 0
	})

	var err error
	if out.Liquid, err = parseAmount(s.Reserve.Liquid); err != nil {
		return nil, fmt.Errorf("genesis: reserve liquid: %w", err)
	}
	if out.Deployed, err = parseAmount(s.Reserve.Deployed); err != nil {
		return nil, fmt.Errorf("genesis: reserve deployed: %w", err)
	}
	if out.Pending, err = parseAmount(s.Reserve.Pending); err != nil {
		return nil, fmt.Errorf("genesis: reserve pending: %w", err)
	}
	return out, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
