package pool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"privacyPool/internal/amm"
)

func TestAsyncSwapSettles(t *testing.T) {
	h := newHarness(t)
	h.seed(units(5000), 2_000_000)
	h.fund1(alice, 400_000)

	preview, err := h.engine.PreviewSubmitSwapToken1ForToken0(start + 60)
	require.NoError(t, err)
	require.Equal(t, uint64(1), preview.Uint64())

	id := h.submit(alice, 400_000, nil, start+60)
	require.True(t, id.Eq(preview))
	require.Equal(t, StatusSubmitted, h.engine.RequestStatus(id))
	require.Equal(t, 1, h.engine.PendingCount())
	require.Zero(t, h.token1.BalanceOf(alice))

	pending, err := h.engine.PendingSwap(id)
	require.NoError(t, err)
	require.Equal(t, units(5000).Dec(), pending.Snapshot.Reserve0.Dec())

	// reserves do not move until fulfillment
	r0, _ := h.reserves()
	require.Equal(t, units(5000).Dec(), r0.Dec())

	require.Equal(t, 1, h.process())

	require.Equal(t, "831248957812239453060", h.balance0(alice).Dec())
	r0, r1 := h.reserves()
	require.Equal(t, "4168751042187760546940", r0.Dec())
	require.Equal(t, uint64(2_398_800), r1.Uint64())
	require.Equal(t, uint64(1200), h.engine.Fees1Virtual().Uint64())

	require.Equal(t, StatusFulfilled, h.engine.RequestStatus(id))
	_, err = h.engine.PendingSwap(id)
	require.ErrorIs(t, err, ErrUnknownRequest)
	require.Equal(t, "831248957812239453060", h.engine.GetEpochData().Volume.Dec())

	// consumed exactly once
	cleartexts, sigs := []byte{}, [][]byte{}
	require.ErrorIs(t, h.engine.Fulfill(h.ctx, id, cleartexts, sigs), ErrUnknownRequest)

	records := h.engine.DrainEvents()
	require.Len(t, records, 2)
	require.Equal(t, "DecryptionRequested", records[0].EventName)
	require.Equal(t, "SwapSettled", records[1].EventName)
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	handle, proof := h.encrypt(alice, 10)

	_, err := h.engine.SubmitSwapToken1ForToken0(h.ctx, alice, handle, nil, alice, proof, start+60)
	require.ErrorIs(t, err, ErrNotSeeded)

	h.seed(units(5000), 2_000_000)
	_, err = h.engine.SubmitSwapToken1ForToken0(h.ctx, alice, handle, nil, alice, proof, start-1)
	require.ErrorIs(t, err, ErrExpired)
	_, err = h.engine.PreviewSubmitSwapToken1ForToken0(start - 1)
	require.ErrorIs(t, err, ErrExpired)

	// no operator approval: the token's error propagates
	_, err = h.engine.SubmitSwapToken1ForToken0(h.ctx, alice, handle, nil, alice, proof, start+60)
	require.Error(t, err)
	require.Equal(t, "external", Kind(err))
	require.Zero(t, h.engine.PendingCount())
	require.Zero(t, h.gw.Pending())
	require.Equal(t, uint64(1), h.gw.PeekRequestID().Uint64())
}

func TestFulfillBadProofKeepsRequestSubmitted(t *testing.T) {
	h := newHarness(t)
	h.seed(units(5000), 2_000_000)
	h.fund1(alice, 400_000)
	id := h.submit(alice, 400_000, nil, start+60)

	// one signature below the threshold of two
	cleartexts, sigs := h.signed(id, 400_000, h.keys[0])
	err := h.engine.Fulfill(h.ctx, id, cleartexts, sigs)
	require.ErrorIs(t, err, ErrOracleVerificationFailed)
	require.Equal(t, "oracle_verification_failed", Kind(err))

	// signatures over a different amount
	_, goodSigs := h.signed(id, 400_000, h.keys[0], h.keys[1])
	forged, _ := h.signed(id, 1_000_000, h.keys[0], h.keys[1])
	err = h.engine.Fulfill(h.ctx, id, forged, goodSigs)
	require.ErrorIs(t, err, ErrOracleVerificationFailed)

	require.Equal(t, StatusSubmitted, h.engine.RequestStatus(id))
	r0, _ := h.reserves()
	require.Equal(t, units(5000).Dec(), r0.Dec())
	require.True(t, h.balance0(alice).IsZero())

	cleartexts, sigs = h.signed(id, 400_000, h.keys[1], h.keys[2])
	require.NoError(t, h.engine.Fulfill(h.ctx, id, cleartexts, sigs))
	require.Equal(t, StatusFulfilled, h.engine.RequestStatus(id))
}

func TestFulfillRejections(t *testing.T) {
	cases := []struct {
		name   string
		amount uint64
		funded uint64
		minOut *uint256.Int
		delay  uint64
		reason string
	}{
		{"slippage", 400_000, 400_000, units(1000), 0, "slippage"},
		{"expired", 400_000, 400_000, nil, 61, "expired"},
		{"zero input", 0, 400_000, nil, 0, "amount_too_small"},
		{"fee wipes input", 1, 400_000, nil, 0, "amount_too_small"},
		{"insufficient balance transfers zero", 400_000, 10, nil, 0, "amount_too_small"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.seed(units(5000), 2_000_000)
			h.fund1(alice, tc.funded)
			id := h.submit(alice, tc.amount, tc.minOut, start+60)
			h.clock.Advance(tc.delay)

			require.Zero(t, h.process())

			require.Equal(t, StatusRejected, h.engine.RequestStatus(id))
			p, err := h.engine.PendingSwap(id)
			require.NoError(t, err)
			require.Equal(t, tc.reason, p.RejectReason)
			require.False(t, p.EscrowReleased)

			r0, r1 := h.reserves()
			require.Equal(t, units(5000).Dec(), r0.Dec())
			require.Equal(t, uint64(2_000_000), r1.Uint64())
			require.True(t, h.balance0(alice).IsZero())
			require.Zero(t, h.engine.GetEpochData().SwapCount)

			records := h.engine.DrainEvents()
			require.Equal(t, "SwapRejected", records[len(records)-1].EventName)
		})
	}
}

func TestReclaimEscrow(t *testing.T) {
	h := newHarness(t)
	h.seed(units(5000), 2_000_000)
	h.fund1(alice, 400_000)
	id := h.submit(alice, 400_000, units(1000), start+60)
	require.ErrorIs(t, h.engine.ReclaimEscrow(h.ctx, alice, id), ErrUnknownRequest)

	h.process()
	require.Equal(t, StatusRejected, h.engine.RequestStatus(id))
	require.Zero(t, h.token1.BalanceOf(alice))

	require.ErrorIs(t, h.engine.ReclaimEscrow(h.ctx, bob, id), ErrUnauthorized)
	require.NoError(t, h.engine.ReclaimEscrow(h.ctx, alice, id))
	require.Equal(t, uint64(400_000), h.token1.BalanceOf(alice))
	require.ErrorIs(t, h.engine.ReclaimEscrow(h.ctx, alice, id), ErrEscrowReleased)

	// rejected ids stay consumed
	cleartexts := make([]byte, 32)
	require.ErrorIs(t, h.engine.Fulfill(h.ctx, id, cleartexts, nil), ErrUnknownRequest)
}

func TestEscrowRefundPolicy(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Deps) { c.EscrowPolicy = EscrowRefund })
	h.seed(units(5000), 2_000_000)
	h.fund1(alice, 400_000)
	id := h.submit(alice, 400_000, units(1000), start+60)

	h.process()
	require.Equal(t, uint64(400_000), h.token1.BalanceOf(alice))
	p, err := h.engine.PendingSwap(id)
	require.NoError(t, err)
	require.True(t, p.EscrowReleased)
	require.ErrorIs(t, h.engine.ReclaimEscrow(h.ctx, alice, id), ErrEscrowReleased)
}

func TestFulfillmentOrderDeterminesPrice(t *testing.T) {
	h := newHarness(t)
	h.seed(units(5000), 2_000_000)
	h.fund1(alice, 100_000)
	h.fund1(bob, 300_000)

	first := h.submit(alice, 100_000, nil, start+60)
	second := h.submit(bob, 300_000, nil, start+60)
	require.Equal(t, uint64(1), first.Uint64())
	require.Equal(t, uint64(2), second.Uint64())

	reserves := amm.Reserves{Reserve0: units(5000), Reserve1: uint256.NewInt(2_000_000)}
	q1, err := amm.QuoteExactOut0(reserves, 3000, uint256.NewInt(100_000))
	require.NoError(t, err)
	q2, err := amm.QuoteExactOut0(amm.Reserves{Reserve0: q1.Reserve0After, Reserve1: q1.Reserve1After}, 3000, uint256.NewInt(300_000))
	require.NoError(t, err)

	require.Equal(t, 2, h.process())
	require.Equal(t, q1.AmountOut.Dec(), h.balance0(alice).Dec())
	require.Equal(t, q2.AmountOut.Dec(), h.balance0(bob).Dec())

	r0, r1 := h.reserves()
	require.True(t, r0.Eq(q2.Reserve0After))
	require.True(t, r1.Eq(q2.Reserve1After))
}

func TestKindAndRetryable(t *testing.T) {
	require.Equal(t, "", Kind(nil))
	require.Equal(t, "slippage", Kind(amm.ErrSlippage))
	require.Equal(t, "expired", Kind(ErrExpired))
	require.False(t, Retryable(ErrSlippage))
	require.False(t, Retryable(ErrOracleVerificationFailed))
	require.True(t, Retryable(errTest))
	require.True(t, IsRejection(ErrSlippage))
	require.False(t, IsRejection(ErrOracleVerificationFailed))
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
