package amm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Direction selects whether a delta is added to or removed from a reserve.
type Direction uint8

const (
	Increase Direction = iota
	Decrease
)

// Delta is an unsigned amount with a direction.
type Delta struct {
	Amount *uint256.Int
	Dir    Direction
}

// Inc builds an increasing delta.
func Inc(amount *uint256.Int) Delta { return Delta{Amount: amount, Dir: Increase} }

// Dec builds a decreasing delta.
func Dec(amount *uint256.Int) Delta { return Delta{Amount: amount, Dir: Decrease} }

// None is a zero delta.
func None() Delta { return Delta{Amount: new(uint256.Int)} }

// ReserveLedger owns the public reserve and the virtual reserve of the
// encrypted asset. It is not safe for concurrent use; the pool engine
// serializes access.
type ReserveLedger struct {
	reserve0 *uint256.Int
	reserve1 *uint256.Int
	seeded   bool
}

// NewReserveLedger returns an unseeded ledger with zero reserves.
func NewReserveLedger() *ReserveLedger {
	return &ReserveLedger{reserve0: new(uint256.Int), reserve1: new(uint256.Int)}
}

// Seed records the deposited public reserve and the initial virtual reserve.
// It succeeds at most once.
func (l *ReserveLedger) Seed(deposited0, initialVirtual *uint256.Int) error {
	if l.seeded {
		return ErrAlreadySeeded
	}
	if deposited0 == nil || deposited0.IsZero() {
		return ErrEmptyReserves
	}
	if initialVirtual == nil || initialVirtual.IsZero() {
		return ErrZeroAmount
	}
	l.reserve0 = deposited0.Clone()
	l.reserve1 = initialVirtual.Clone()
	l.seeded = true
	return nil
}

// Seeded reports whether Seed has succeeded.
func (l *ReserveLedger) Seeded() bool { return l.seeded }

// Reserves returns a copy of the current reserves.
func (l *ReserveLedger) Reserves() Reserves {
	return Reserves{Reserve0: l.reserve0.Clone(), Reserve1: l.reserve1.Clone()}
}

// Check reports whether Apply(d0, d1) would succeed, without mutating.
func (l *ReserveLedger) Check(d0, d1 Delta) error {
	if _, err := next(l.reserve0, d0); err != nil {
		return fmt.Errorf("reserve0: %w", err)
	}
	if _, err := next(l.reserve1, d1); err != nil {
		return fmt.Errorf("reserve1: %w", err)
	}
	return nil
}

// Apply mutates both reserves. Callers must have validated the deltas with
// Check; an underflow or overflow here is a broken invariant and panics.
func (l *ReserveLedger) Apply(d0, d1 Delta) {
	r0, err := next(l.reserve0, d0)
	if err != nil {
		panic(fmt.Errorf("%w: reserve0: %v", ErrReserveInvariant, err))
	}
	r1, err := next(l.reserve1, d1)
	if err != nil {
		panic(fmt.Errorf("%w: reserve1: %v", ErrReserveInvariant, err))
	}
	l.reserve0 = r0
	l.reserve1 = r1
}

// Restore overwrites the ledger from a persisted snapshot.
func (l *ReserveLedger) Restore(reserves Reserves, seeded bool) {
	l.reserve0 = cloneOrZero(reserves.Reserve0)
	l.reserve1 = cloneOrZero(reserves.Reserve1)
	l.seeded = seeded
}

func next(current *uint256.Int, d Delta) (*uint256.Int, error) {
	if d.Amount == nil || d.Amount.IsZero() {
		return current.Clone(), nil
	}
	switch d.Dir {
	case Increase:
		out, overflow := new(uint256.Int).AddOverflow(current, d.Amount)
		if overflow {
			return nil, ErrAmountOverflow
		}
		return out, nil
	case Decrease:
		out, underflow := new(uint256.Int).SubOverflow(current, d.Amount)
		if underflow {
			return nil, ErrInsufficientLiquidity
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown direction %d", d.Dir)
	}
}
