package pool

import (
	"context"
	"errors"

	"privacyPool/internal/amm"
)

// Re-exported pricing and reserve errors.
var (
	ErrEmptyReserves         = amm.ErrEmptyReserves
	ErrAlreadySeeded         = amm.ErrAlreadySeeded
	ErrNotSeeded             = amm.ErrNotSeeded
	ErrZeroAmount            = amm.ErrZeroAmount
	ErrAmountTooSmall        = amm.ErrAmountTooSmall
	ErrSlippage              = amm.ErrSlippage
	ErrInvalidFee            = amm.ErrInvalidFee
	ErrAmountOverflow        = amm.ErrAmountOverflow
	ErrInsufficientLiquidity = amm.ErrInsufficientLiquidity
)

var (
	ErrExpired                  = errors.New("deadline expired")
	ErrOracleVerificationFailed = errors.New("oracle verification failed")
	ErrPositionNotFound         = errors.New("position not found")
	ErrInvalidTickRange         = errors.New("invalid tick range")
	ErrUnauthorized             = errors.New("caller not authorized")
	ErrNotPositionOwner         = errors.New("caller does not own position")
	ErrUnknownRequest           = errors.New("unknown or consumed request")
	ErrDuplicateRequest         = errors.New("duplicate request id")
	ErrEscrowReleased           = errors.New("escrow already released")
	ErrConfidentialPosition     = errors.New("operation not supported on confidential position")
	ErrNoHeldDeposit            = errors.New("no held deposit for position")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrEmptyReserves, "empty_reserves"},
	{ErrAlreadySeeded, "already_seeded"},
	{ErrNotSeeded, "not_seeded"},
	{ErrZeroAmount, "zero_amount"},
	{ErrAmountTooSmall, "amount_too_small"},
	{ErrSlippage, "slippage"},
	{ErrInvalidFee, "invalid_fee"},
	{ErrAmountOverflow, "amount_overflow"},
	{ErrInsufficientLiquidity, "insufficient_liquidity"},
	{ErrExpired, "expired"},
	{ErrOracleVerificationFailed, "oracle_verification_failed"},
	{ErrPositionNotFound, "position_not_found"},
	{ErrInvalidTickRange, "invalid_tick_range"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNotPositionOwner, "not_position_owner"},
	{ErrUnknownRequest, "unknown_request"},
	{ErrDuplicateRequest, "duplicate_request"},
	{ErrEscrowReleased, "escrow_released"},
	{ErrConfidentialPosition, "confidential_position"},
	{ErrNoHeldDeposit, "no_held_deposit"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "timeout"},
}

// Kind maps an error to a stable taxonomy name. Errors raised by external
// collaborators map to "external"; nil maps to "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "external"
}

// Retryable reports whether repeating the same call may succeed without the
// caller changing its inputs.
func Retryable(err error) bool {
	switch Kind(err) {
	case "external", "timeout":
		return true
	default:
		return false
	}
}
