package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"privacyPool/internal/amm"
	"privacyPool/internal/events"
	"privacyPool/internal/model"
)

// Seed initializes the reserves once. reserve0 is the public-asset balance
// the pool holds beyond amounts earmarked for rewards; the public asset is
// deposited by plain transfer beforehand. Owner only.
func (e *Engine) Seed(ctx context.Context, caller common.Address, initialVirtual *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if e.reserves.Seeded() {
		return ErrAlreadySeeded
	}
	balance, err := e.deps.Token0.BalanceOf(ctx, e.cfg.Address)
	if err != nil {
		return fmt.Errorf("read pool balance: %w", err)
	}
	deposited := new(uint256.Int)
	if held := e.rewards.held(); balance.Gt(held) {
		deposited.Sub(balance, held)
	}
	if err := e.reserves.Seed(deposited, initialVirtual); err != nil {
		return err
	}
	e.logger.Info("reserves seeded",
		zap.String("reserve0", deposited.Dec()),
		zap.String("reserve1_virtual", orZero(initialVirtual).Dec()))
	return nil
}

// PreviewSwapToken0ForToken1 quotes a public-in swap against current reserves.
func (e *Engine) PreviewSwapToken0ForToken1(amountIn *uint256.Int) (amm.Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSeeded(); err != nil {
		return amm.Quote{}, err
	}
	if amountIn == nil || amountIn.IsZero() {
		return amm.Quote{}, ErrZeroAmount
	}
	return amm.QuoteExactIn0(e.reserves.Reserves(), e.cfg.FeeBps, amountIn)
}

// SwapToken0ForToken1 swaps a public amount in for the encrypted asset out,
// settled synchronously. The virtual amount out is paid as a trivially
// encrypted transfer to recipient.
func (e *Engine) SwapToken0ForToken1(ctx context.Context, caller common.Address, amountIn, minOut *uint256.Int, recipient common.Address, deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now, err := e.checkDeadline(deadline)
	if err != nil {
		return nil, err
	}
	if err := e.requireSeeded(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	q, err := amm.QuoteExactIn0(e.reserves.Reserves(), e.cfg.FeeBps, amountIn)
	if err != nil {
		return nil, err
	}
	if err := amm.CheckMinOut(q, minOut); err != nil {
		return nil, err
	}
	if !q.AmountOut.IsUint64() {
		return nil, fmt.Errorf("%w: encrypted amount out %s", ErrAmountOverflow, q.AmountOut.Dec())
	}
	d0, d1 := amm.Inc(q.AmountInAfterFee), amm.Dec(q.AmountOut)
	if err := e.reserves.Check(d0, d1); err != nil {
		return nil, err
	}

	if err := e.deps.Token0.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, amountIn); err != nil {
		return nil, fmt.Errorf("pull token0: %w", err)
	}
	if _, err := e.deps.Token1.TransferAmount(ctx, e.cfg.Address, recipient, q.AmountOut.Uint64()); err != nil {
		e.refundToken0(ctx, caller, amountIn)
		return nil, fmt.Errorf("pay token1: %w", err)
	}

	e.reserves.Apply(d0, d1)
	fee0 := q.FeeResidue()
	e.epoch.record(now, amountIn, fee0)
	e.rewards.accrue(now)
	e.rewards.addFees(fee0)

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.SwapConfidential(ts, caller, recipient, true, amountIn, fee0)
	})
	e.logger.Debug("swap token0 for token1",
		zap.String("sender", caller.Hex()),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("fee0", fee0.Dec()))
	return q.AmountOut.Clone(), nil
}

func (e *Engine) refundToken0(ctx context.Context, to common.Address, amount *uint256.Int) {
	if err := e.deps.Token0.Transfer(context.WithoutCancel(ctx), e.cfg.Address, to, amount); err != nil {
		e.logger.Error("compensating token0 refund failed",
			zap.String("to", to.Hex()), zap.String("amount", amount.Dec()), zap.Error(err))
	}
}

func (e *Engine) refundToken1(ctx context.Context, to common.Address, handle common.Hash) {
	if _, err := e.deps.Token1.ConfidentialTransfer(context.WithoutCancel(ctx), e.cfg.Address, to, handle); err != nil {
		e.logger.Error("compensating token1 refund failed",
			zap.String("to", to.Hex()), zap.String("handle", handle.Hex()), zap.Error(err))
	}
}
