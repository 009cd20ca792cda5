package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"privacyPool/internal/ledger"
)

func TestSeed(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.engine.Seed(h.ctx, alice, uint256.NewInt(1)), ErrUnauthorized)
	require.ErrorIs(t, h.engine.Seed(h.ctx, ownerAddr, uint256.NewInt(750_000)), ErrEmptyReserves)

	require.NoError(t, h.token0.Mint(poolAddr, units(2000)))
	require.ErrorIs(t, h.engine.Seed(h.ctx, ownerAddr, new(uint256.Int)), ErrZeroAmount)

	require.NoError(t, h.engine.Seed(h.ctx, ownerAddr, uint256.NewInt(750_000)))
	r0, r1 := h.reserves()
	require.Equal(t, units(2000).Dec(), r0.Dec())
	require.Equal(t, uint64(750_000), r1.Uint64())

	require.ErrorIs(t, h.engine.Seed(h.ctx, ownerAddr, uint256.NewInt(1)), ErrAlreadySeeded)
}

func TestSeedExcludesRewardBudget(t *testing.T) {
	h := newHarness(t)
	h.fund0(carol, uint256.NewInt(500))
	require.NoError(t, h.engine.FundRewards(h.ctx, carol, uint256.NewInt(500)))

	require.ErrorIs(t, h.engine.Seed(h.ctx, ownerAddr, uint256.NewInt(10)), ErrEmptyReserves)

	require.NoError(t, h.token0.Mint(poolAddr, uint256.NewInt(1000)))
	require.NoError(t, h.engine.Seed(h.ctx, ownerAddr, uint256.NewInt(10)))
	r0, _ := h.reserves()
	require.Equal(t, uint64(1000), r0.Uint64())
}

func TestSwapToken0ForToken1(t *testing.T) {
	h := newHarness(t)
	h.seed(units(2000), 750_000)
	h.fund0(alice, units(100))

	preview, err := h.engine.PreviewSwapToken0ForToken1(units(100))
	require.NoError(t, err)
	require.Equal(t, uint64(35613), preview.AmountOut.Uint64())

	out, err := h.engine.SwapToken0ForToken1(h.ctx, alice, units(100), uint256.NewInt(35613), bob, start+60)
	require.NoError(t, err)
	require.Equal(t, uint64(35613), out.Uint64())

	r0, r1 := h.reserves()
	require.Equal(t, "2099700000000000000000", r0.Dec())
	require.Equal(t, uint64(714387), r1.Uint64())
	require.Equal(t, uint64(35613), h.token1.BalanceOf(bob))
	require.True(t, h.balance0(alice).IsZero())
	require.Equal(t, "2100000000000000000000", h.balance0(poolAddr).Dec())

	epoch := h.engine.GetEpochData()
	require.Equal(t, units(100).Dec(), epoch.Volume.Dec())
	require.Equal(t, "300000000000000000", epoch.Fees0.Dec())
	require.Equal(t, uint64(1), epoch.SwapCount)

	records := h.engine.DrainEvents()
	require.Len(t, records, 1)
	require.Equal(t, "SwapConfidential", records[0].EventName)
	require.Empty(t, h.engine.DrainEvents())
}

func TestSwapFailuresLeaveStateUnchanged(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.SwapToken0ForToken1(h.ctx, alice, units(1), nil, alice, start+60)
	require.ErrorIs(t, err, ErrNotSeeded)

	h.seed(units(2000), 750_000)
	h.fund0(alice, units(100))
	r0Before, r1Before := h.reserves()

	cases := []struct {
		name     string
		amount   *uint256.Int
		minOut   *uint256.Int
		deadline uint64
		want     error
	}{
		{"expired", units(100), nil, start - 1, ErrExpired},
		{"zero amount", new(uint256.Int), nil, start + 60, ErrZeroAmount},
		{"slippage", units(100), uint256.NewInt(35614), start + 60, ErrSlippage},
		{"too small", uint256.NewInt(1), nil, start + 60, ErrAmountTooSmall},
		{"drains reserve", units(2_000_000_000), nil, start + 60, ErrInsufficientLiquidity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.SwapToken0ForToken1(h.ctx, alice, tc.amount, tc.minOut, alice, tc.deadline)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// no allowance for bob
	require.NoError(t, h.token0.Mint(bob, units(1)))
	_, err = h.engine.SwapToken0ForToken1(h.ctx, bob, units(1), nil, bob, start+60)
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
	require.Equal(t, "external", Kind(err))

	r0, r1 := h.reserves()
	require.True(t, r0.Eq(r0Before))
	require.True(t, r1.Eq(r1Before))
	require.Equal(t, units(100).Dec(), h.balance0(alice).Dec())
	require.Zero(t, h.engine.GetEpochData().SwapCount)
	require.Empty(t, h.engine.DrainEvents())
}

type failingConfidential struct {
	*ledger.ConfidentialToken
	err error
}

func (f *failingConfidential) TransferAmount(context.Context, common.Address, common.Address, uint64) (common.Hash, error) {
	return common.Hash{}, f.err
}

func TestSwapPayoutFailureRefundsInput(t *testing.T) {
	payoutErr := errors.New("token1 paused")
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Token1 = &failingConfidential{ConfidentialToken: d.Token1.(*ledger.ConfidentialToken), err: payoutErr}
	})
	h.seed(units(2000), 750_000)
	h.fund0(alice, units(100))

	_, err := h.engine.SwapToken0ForToken1(h.ctx, alice, units(100), nil, alice, start+60)
	require.ErrorIs(t, err, payoutErr)
	require.True(t, Retryable(err))

	require.Equal(t, units(100).Dec(), h.balance0(alice).Dec())
	r0, r1 := h.reserves()
	require.Equal(t, units(2000).Dec(), r0.Dec())
	require.Equal(t, uint64(750_000), r1.Uint64())
}

func TestConcurrentSwapsAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.seed(units(2000), 750_000)

	const n = 16
	traders := make([]common.Address, n)
	for i := range traders {
		traders[i] = common.BigToAddress(uint256.NewInt(uint64(0x1000 + i)).ToBig())
		h.fund0(traders[i], units(1))
	}

	var wg sync.WaitGroup
	outs := make([]*uint256.Int, n)
	errs := make([]error, n)
	for i := range traders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = h.engine.SwapToken0ForToken1(context.Background(), traders[i], units(1), nil, traders[i], start+60)
		}(i)
	}
	wg.Wait()

	total := new(uint256.Int)
	for i := range outs {
		require.NoError(t, errs[i])
		total.Add(total, outs[i])
	}
	_, r1 := h.reserves()
	require.Equal(t, uint64(750_000), new(uint256.Int).Add(r1, total).Uint64())
	require.Equal(t, uint64(n), h.engine.GetEpochData().SwapCount)
	require.Len(t, h.engine.DrainEvents(), n)
}

func TestEpochRollover(t *testing.T) {
	h := newHarness(t)
	h.seed(units(2000), 750_000)
	h.fund0(alice, units(2))

	_, err := h.engine.SwapToken0ForToken1(h.ctx, alice, units(1), nil, alice, start+60)
	require.NoError(t, err)
	first := h.engine.GetEpochData()
	require.Equal(t, start/DefaultEpochLength, first.Epoch)
	require.Equal(t, uint64(1), first.SwapCount)
	require.LessOrEqual(t, first.Start, start)
	require.GreaterOrEqual(t, first.End, start)

	h.clock.Set(first.End + 1)
	rolled := h.engine.GetEpochData()
	require.Equal(t, first.Epoch+1, rolled.Epoch)
	require.Zero(t, rolled.SwapCount)
	require.True(t, rolled.Volume.IsZero())

	_, err = h.engine.SwapToken0ForToken1(h.ctx, alice, units(1), nil, alice, first.End+60)
	require.NoError(t, err)
	require.Equal(t, units(1).Dec(), h.engine.GetEpochData().Volume.Dec())
}
