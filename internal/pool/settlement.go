package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"privacyPool/internal/amm"
	"privacyPool/internal/events"
	"privacyPool/internal/model"
	"privacyPool/internal/oracle"
)

// PreviewSubmitSwapToken1ForToken0 returns the request id the next
// submission would receive, applying the same deadline and seeding checks.
func (e *Engine) PreviewSubmitSwapToken1ForToken0(deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if err := e.requireSeeded(); err != nil {
		return nil, err
	}
	return e.deps.Oracle.PeekRequestID(), nil
}

// SubmitSwapToken1ForToken0 escrows an encrypted amount of the virtual asset
// and requests its decryption. The swap settles later in Fulfill.
func (e *Engine) SubmitSwapToken1ForToken0(ctx context.Context, caller common.Address, encryptedAmountIn common.Hash, minOut *uint256.Int, recipient common.Address, proof []byte, deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now, err := e.checkDeadline(deadline)
	if err != nil {
		return nil, err
	}
	if err := e.requireSeeded(); err != nil {
		return nil, err
	}
	if next := e.deps.Oracle.PeekRequestID(); next != nil && e.pending.known(next) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, next.Dec())
	}

	escrow, err := e.deps.Token1.ConfidentialTransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, encryptedAmountIn, proof)
	if err != nil {
		return nil, err
	}
	requestID, err := e.deps.Oracle.RequestDecryption(ctx, []common.Hash{escrow})
	if err != nil {
		e.refundToken1(ctx, caller, escrow)
		return nil, fmt.Errorf("request decryption: %w", err)
	}

	p := &PendingSwap{
		RequestID:    requestID.Clone(),
		Sender:       caller,
		Recipient:    recipient,
		MinOut:       orZero(minOut).Clone(),
		Deadline:     deadline,
		EscrowHandle: escrow,
		Snapshot:     e.reserves.Reserves(),
		SubmittedAt:  now,
	}
	if err := e.pending.register(p); err != nil {
		e.refundToken1(ctx, caller, escrow)
		return nil, fmt.Errorf("%w: %s", err, requestID.Dec())
	}

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.DecryptionRequested(ts, requestID, caller, deadline)
	})
	e.logger.Debug("swap submitted",
		zap.String("request_id", requestID.Dec()),
		zap.String("sender", caller.Hex()),
		zap.Uint64("deadline", deadline))
	return requestID.Clone(), nil
}

// Fulfill settles a submitted swap with the decrypted amount.
//
// A proof that fails verification changes nothing; the request stays
// submitted. An expired request, an amount too small to survive the fee or
// an output below minOut rejects the request without touching reserves or
// the recipient's balance. Otherwise the public asset is paid to the
// recipient and the reserves move.
func (e *Engine) Fulfill(ctx context.Context, requestID *uint256.Int, cleartexts []byte, signatures [][]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if requestID == nil {
		return ErrUnknownRequest
	}
	p, ok := e.pending.get(requestID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID.Dec())
	}

	handles := []common.Hash{p.EscrowHandle}
	if err := e.deps.Verifier.Verify(requestID, handles, cleartexts, signatures); err != nil {
		return fmt.Errorf("%w: %v", ErrOracleVerificationFailed, err)
	}
	values, err := oracle.DecodeUint64(cleartexts, len(handles))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleVerificationFailed, err)
	}
	amountIn := uint256.NewInt(values[0])

	now := e.deps.Clock.Now()
	if now > p.Deadline {
		return e.reject(ctx, p, fmt.Errorf("%w: now %d > deadline %d", ErrExpired, now, p.Deadline))
	}
	q, err := amm.QuoteExactOut0(e.reserves.Reserves(), e.cfg.FeeBps, amountIn)
	if err != nil {
		return e.reject(ctx, p, err)
	}
	if err := amm.CheckMinOut(q, p.MinOut); err != nil {
		return e.reject(ctx, p, err)
	}
	d0, d1 := amm.Dec(q.AmountOut), amm.Inc(q.AmountInAfterFee)
	if err := e.reserves.Check(d0, d1); err != nil {
		return e.reject(ctx, p, err)
	}

	if err := e.deps.Token0.Transfer(ctx, e.cfg.Address, p.Recipient, q.AmountOut); err != nil {
		return fmt.Errorf("pay token0: %w", err)
	}

	e.reserves.Apply(d0, d1)
	e.fees1Virtual.Add(e.fees1Virtual, q.FeeResidue())
	e.epoch.record(now, q.AmountOut, nil)
	e.pending.complete(requestID)

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.SwapSettled(ts, requestID, p.Recipient, amountIn, q.AmountOut)
	})
	e.logger.Info("swap settled",
		zap.String("request_id", requestID.Dec()),
		zap.String("amount_out", q.AmountOut.Dec()))
	return nil
}

// reject consumes the request and applies the escrow policy. It returns
// cause so callers can propagate it.
func (e *Engine) reject(ctx context.Context, p *PendingSwap, cause error) error {
	reason := Kind(cause)
	e.pending.reject(p, reason)

	if e.cfg.EscrowPolicy == EscrowRefund {
		if _, err := e.deps.Token1.ConfidentialTransfer(ctx, e.cfg.Address, p.Sender, p.EscrowHandle); err != nil {
			e.logger.Warn("escrow refund failed, left reclaimable",
				zap.String("request_id", p.RequestID.Dec()), zap.Error(err))
		} else {
			p.EscrowReleased = true
		}
	}

	id := p.RequestID
	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.SwapRejected(ts, id, reason)
	})
	e.logger.Info("swap rejected", zap.String("request_id", id.Dec()), zap.String("reason", reason))
	return cause
}

// ReclaimEscrow returns the escrowed input of a rejected swap to its sender.
func (e *Engine) ReclaimEscrow(ctx context.Context, caller common.Address, requestID *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if requestID == nil {
		return ErrUnknownRequest
	}
	p, ok := e.pending.rejected[*requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID.Dec())
	}
	if caller != p.Sender {
		return ErrUnauthorized
	}
	if p.EscrowReleased {
		return ErrEscrowReleased
	}
	if _, err := e.deps.Token1.ConfidentialTransfer(ctx, e.cfg.Address, p.Sender, p.EscrowHandle); err != nil {
		return fmt.Errorf("release escrow: %w", err)
	}
	p.EscrowReleased = true
	e.logger.Info("escrow reclaimed", zap.String("request_id", requestID.Dec()))
	return nil
}

// IsRejection reports whether err from Fulfill consumed the request.
func IsRejection(err error) bool {
	return errors.Is(err, ErrExpired) || errors.Is(err, ErrAmountTooSmall) ||
		errors.Is(err, ErrSlippage) || errors.Is(err, ErrAmountOverflow) ||
		errors.Is(err, ErrInsufficientLiquidity) || errors.Is(err, ErrEmptyReserves)
}
