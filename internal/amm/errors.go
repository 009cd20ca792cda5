package amm

import "errors"

var (
	ErrEmptyReserves         = errors.New("empty reserves")
	ErrAlreadySeeded         = errors.New("reserves already seeded")
	ErrNotSeeded             = errors.New("reserves not seeded")
	ErrZeroAmount            = errors.New("zero amount")
	ErrAmountTooSmall        = errors.New("amount too small after fee")
	ErrSlippage              = errors.New("output below minimum")
	ErrInvalidFee            = errors.New("fee exceeds denominator")
	ErrAmountOverflow        = errors.New("amount overflows 256 bits")
	ErrInsufficientLiquidity = errors.New("insufficient reserve liquidity")
)

// ErrReserveInvariant is raised (as a panic value) when a reserve mutation
// would underflow or overflow. Callers validate deltas before applying them.
var ErrReserveInvariant = errors.New("reserve invariant violated")
