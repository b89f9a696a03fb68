package core

import (
	"context"
	"fmt"

	vaulterrors "rebasevault/core/errors"
	"rebasevault/core/genesis"
	"rebasevault/native/bank"
	"rebasevault/native/reserve"
)

var genesisMarkerKey = []byte("vault/genesis")

type genesisMarker struct {
	Applied bool
}

// Initialised reports whether a genesis has been applied.
func (v *Vault) Initialised(ctx context.Context) (bool, error) {
	var applied bool
	err := v.read(func(u *unit) error {
		var marker genesisMarker
		ok, err := u.manager.KVGet(genesisMarkerKey, &marker)
		applied = ok && marker.Applied
		return err
	})
	return applied, err
}

// ApplyGenesis seeds an empty vault: plain assets and balances, the reserve
// book, and backed rebasing deposits. It runs once as a single operation.
func (v *Vault) ApplyGenesis(ctx context.Context, g *genesis.Resolved) error {
	if g == nil {
		return fmt.Errorf("genesis must not be nil")
	}
	return v.execute(ctx, opInfo{name: "genesis"}, func(u *unit) error {
		var marker genesisMarker
		ok, err := u.manager.KVGet(genesisMarkerKey, &marker)
		if err != nil {
			return err
		}
		if ok && marker.Applied {
			return vaulterrors.ErrGenesisApplied
		}
		for _, asset := range g.Assets {
			if err := u.bank.RegisterAsset(bank.Asset{Symbol: asset.Symbol, Name: asset.Name, Decimals: asset.Decimals}); err != nil {
				return err
			}
		}
		for _, alloc := range g.Allocations {
			if err := u.bank.Credit(alloc.Symbol, alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis alloc %s: %w", alloc.Symbol, err)
			}
		}
		if err := u.book.SetHoldings(reserve.Holdings{
			Liquid:   g.Liquid,
			Deployed: g.Deployed,
			Pending:  g.Pending,
		}); err != nil {
			return fmt.Errorf("genesis reserve: %w", err)
		}
		for _, deposit := range g.Deposits {
			if err := u.book.RecordDeposit(deposit.Amount); err != nil {
				return err
			}
			if _, err := u.ledger.Mint(deposit.Address, deposit.Amount); err != nil {
				return fmt.Errorf("genesis deposit: %w", err)
			}
			if err := u.book.Credit(deposit.Amount); err != nil {
				return err
			}
		}
		for id, cfg := range v.pools {
			if _, err := u.bank.Asset(cfg.PlainAsset); err != nil {
				return fmt.Errorf("genesis pool %s: %w", id, err)
			}
		}
		return u.manager.KVPut(genesisMarkerKey, &genesisMarker{Applied: true})
	})
}
