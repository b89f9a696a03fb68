package rpc

import (
	"errors"
	"net/http"

	vaulterrors "rebasevault/core/errors"
	"rebasevault/native/amm"
	"rebasevault/native/bank"
	nativecommon "rebasevault/native/common"
	"rebasevault/native/rebase"
	"rebasevault/native/reserve"
)

// Stable error codes returned in the JSON body.
const (
	codeInvalidRequest      = "invalid_request"
	codeUnauthorized        = "unauthorized"
	codeNotFound            = "not_found"
	codeInsufficientBalance = "insufficient_balance"
	codeZeroAmount          = "zero_amount"
	codeSlippageExceeded    = "slippage_exceeded"
	codeOracleUnavailable   = "oracle_unavailable"
	codeOverflow            = "overflow"
	codePoolDrained         = "pool_drained"
	codeReserveRejected     = "reserve_rejected"
	codePaused              = "module_paused"
	codeConflict            = "conflict"
	codeUnavailable         = "unavailable"
	codeInternal            = "internal_error"
)

type errorClass struct {
	status int
	code   string
	errs   []error
}

// errorClasses is ordered: the first class whose sentinel matches wins.
var errorClasses = []errorClass{
	{http.StatusBadRequest, codeZeroAmount, []error{rebase.ErrZeroAmount, amm.ErrZeroAmount, bank.ErrZeroAmount, reserve.ErrInvalidAmount}},
	{http.StatusBadRequest, codeInvalidRequest, []error{
		rebase.ErrSelfTransfer, rebase.ErrInvalidAddress, amm.ErrInvalidAddress,
		amm.ErrInvalidDirection, bank.ErrInvalidAddress,
	}},
	{http.StatusNotFound, codeNotFound, []error{vaulterrors.ErrUnknownPool, bank.ErrUnknownAsset}},
	{http.StatusServiceUnavailable, codeOracleUnavailable, []error{rebase.ErrOracleUnavailable}},
	{http.StatusServiceUnavailable, codeUnavailable, []error{vaulterrors.ErrVaultClosed}},
	{http.StatusConflict, codePaused, []error{nativecommon.ErrModulePaused}},
	{http.StatusConflict, codeConflict, []error{vaulterrors.ErrGenesisApplied, bank.ErrAssetExists}},
	{http.StatusUnprocessableEntity, codeSlippageExceeded, []error{amm.ErrSlippageExceeded}},
	{http.StatusUnprocessableEntity, codePoolDrained, []error{amm.ErrPoolDrained}},
	{http.StatusUnprocessableEntity, codeInsufficientBalance, []error{
		rebase.ErrInsufficientBalance, amm.ErrInsufficientBalance, bank.ErrInsufficientBalance, rebase.ErrReserveDepleted,
	}},
	{http.StatusUnprocessableEntity, codeOverflow, []error{rebase.ErrOverflow, amm.ErrOverflow, bank.ErrOverflow, reserve.ErrHoldingsOverflow}},
	{http.StatusUnprocessableEntity, codeReserveRejected, []error{
		reserve.ErrInsufficientLiquid, reserve.ErrInsufficientDeployed,
		reserve.ErrInsufficientPending, reserve.ErrPendingExceedsHoldings,
	}},
}

func classify(err error) (int, string) {
	for _, class := range errorClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return class.status, class.code
			}
		}
	}
	return http.StatusInternalServerError, codeInternal
}

// badRequest marks request decoding failures.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }

func (b badRequest) Unwrap() error { return b.err }
