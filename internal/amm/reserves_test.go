package amm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestReserveLedgerSeed(t *testing.T) {
	l := NewReserveLedger()

	require.ErrorIs(t, l.Seed(new(uint256.Int), uint256.NewInt(1000)), ErrEmptyReserves)
	require.ErrorIs(t, l.Seed(units(1000), new(uint256.Int)), ErrZeroAmount)
	require.False(t, l.Seeded())

	require.NoError(t, l.Seed(units(2000), uint256.NewInt(750_000)))
	require.True(t, l.Seeded())

	r := l.Reserves()
	require.Equal(t, units(2000).Dec(), r.Reserve0.Dec())
	require.Equal(t, uint64(750_000), r.Reserve1.Uint64())

	require.ErrorIs(t, l.Seed(units(1), uint256.NewInt(1)), ErrAlreadySeeded)
	require.Equal(t, uint64(750_000), l.Reserves().Reserve1.Uint64())
}

func TestReserveLedgerApply(t *testing.T) {
	l := NewReserveLedger()
	require.NoError(t, l.Seed(uint256.NewInt(100), uint256.NewInt(50)))

	require.NoError(t, l.Check(Inc(uint256.NewInt(10)), Dec(uint256.NewInt(5))))
	l.Apply(Inc(uint256.NewInt(10)), Dec(uint256.NewInt(5)))

	r := l.Reserves()
	require.Equal(t, uint64(110), r.Reserve0.Uint64())
	require.Equal(t, uint64(45), r.Reserve1.Uint64())

	// returned reserves are copies
	r.Reserve0.SetUint64(1)
	require.Equal(t, uint64(110), l.Reserves().Reserve0.Uint64())
}

func TestReserveLedgerCheckRejectsUnderflow(t *testing.T) {
	l := NewReserveLedger()
	require.NoError(t, l.Seed(uint256.NewInt(100), uint256.NewInt(50)))

	err := l.Check(None(), Dec(uint256.NewInt(51)))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	err = l.Check(Inc(new(uint256.Int).SetAllOne()), None())
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestReserveLedgerApplyUnderflowPanics(t *testing.T) {
	l := NewReserveLedger()
	require.NoError(t, l.Seed(uint256.NewInt(100), uint256.NewInt(50)))

	require.Panics(t, func() {
		l.Apply(Dec(uint256.NewInt(101)), None())
	})
	require.Equal(t, uint64(100), l.Reserves().Reserve0.Uint64())
}

func TestReserveLedgerRoundTrip(t *testing.T) {
	l := NewReserveLedger()
	require.NoError(t, l.Seed(units(1000), uint256.NewInt(500_000)))
	before := l.Reserves()

	l.Apply(Inc(units(3)), None())
	l.Apply(None(), Inc(uint256.NewInt(250_000)))
	l.Apply(None(), Dec(uint256.NewInt(250_000)))
	l.Apply(Dec(units(3)), None())

	after := l.Reserves()
	require.True(t, before.Reserve0.Eq(after.Reserve0))
	require.True(t, before.Reserve1.Eq(after.Reserve1))
}
