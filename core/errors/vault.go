package errors

import stderrors "errors"

var (
	ErrUnknownPool    = stderrors.New("vault: unknown pool")
	ErrGenesisApplied = stderrors.New("vault: genesis already applied")
	ErrVaultClosed    = stderrors.New("vault: closed")
	ErrInvalidConfig  = stderrors.New("vault: invalid configuration")
)
