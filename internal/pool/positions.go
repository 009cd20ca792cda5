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

// Tick bounds of the concentrated-liquidity tick space.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// Position is the economic record of a liquidity position. Ownership lives
// in the position NFT ledger. Public positions contribute Token0Amount to
// reserve0; confidential ones contribute Token1Amount to the virtual reserve
// and keep the escrowed handle in Amount1Handle.
type Position struct {
	TokenID        *uint256.Int
	TickLower      int32
	TickUpper      int32
	Liquidity      *uint256.Int
	Token0Amount   *uint256.Int
	Token1Amount   *uint256.Int
	Amount1Handle  common.Hash
	IsConfidential bool
	AccCheckpoint  *uint256.Int
	CreatedAt      uint64
	LastUpdated    uint64
}

func (p *Position) clone() Position {
	out := *p
	out.TokenID = p.TokenID.Clone()
	out.Liquidity = p.Liquidity.Clone()
	out.Token0Amount = p.Token0Amount.Clone()
	out.Token1Amount = p.Token1Amount.Clone()
	out.AccCheckpoint = p.AccCheckpoint.Clone()
	return out
}

// reserveDelta is the contribution of p to the reserves.
func (p *Position) reserveDelta(dir amm.Direction) (amm.Delta, amm.Delta) {
	if p.IsConfidential {
		return amm.None(), amm.Delta{Amount: p.Token1Amount, Dir: dir}
	}
	return amm.Delta{Amount: p.Token0Amount, Dir: dir}, amm.None()
}

type positionLedger struct {
	byID map[uint256.Int]*Position
	held map[uint256.Int]heldDeposit
}

// heldDeposit is a confidential deposit still in pool custody after its
// position was burned.
type heldDeposit struct {
	owner  common.Address
	handle common.Hash
}

func newPositionLedger() *positionLedger {
	return &positionLedger{
		byID: make(map[uint256.Int]*Position),
		held: make(map[uint256.Int]heldDeposit),
	}
}

func (l *positionLedger) get(id *uint256.Int) (*Position, bool) {
	if id == nil {
		return nil, false
	}
	p, ok := l.byID[*id]
	return p, ok
}

func (l *positionLedger) put(p *Position) { l.byID[*p.TokenID] = p }

func (l *positionLedger) remove(id *uint256.Int) { delete(l.byID, *id) }

// ValidateTicks requires lower < upper within [MinTick, MaxTick]. Ticks need
// not be multiples of the pool tick spacing.
func ValidateTicks(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidTickRange, lower, upper)
	}
	if lower < MinTick || upper > MaxTick {
		return fmt.Errorf("%w: [%d, %d] outside [%d, %d]", ErrInvalidTickRange, lower, upper, MinTick, MaxTick)
	}
	return nil
}

func word(v *uint256.Int) common.Hash { return common.Hash(v.Bytes32()) }

// Position returns the position with tokenID.
func (e *Engine) Position(tokenID *uint256.Int) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions.get(tokenID)
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	return p.clone(), nil
}

// PositionsOf returns the positions currently held by owner.
func (e *Engine) PositionsOf(ctx context.Context, owner common.Address) ([]Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	owned, err := e.ownedPositions(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Position, len(owned))
	for i, p := range owned {
		out[i] = p.clone()
	}
	return out, nil
}

// PreviewProvide0 validates a public provide and returns the would-be token id.
func (e *Engine) PreviewProvide0(ctx context.Context, tickLower, tickUpper int32, amount0 *uint256.Int, deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validateProvide(tickLower, tickUpper, amount0, deadline); err != nil {
		return nil, err
	}
	if err := e.reserves.Check(amm.Inc(amount0), amm.None()); err != nil {
		return nil, err
	}
	return e.deps.Positions.NextTokenID(ctx)
}

// PreviewProvide1 validates a confidential provide and returns the would-be
// token id.
func (e *Engine) PreviewProvide1(ctx context.Context, tickLower, tickUpper int32, amount1Clear uint64, deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	amount1 := uint256.NewInt(amount1Clear)
	if err := e.validateProvide(tickLower, tickUpper, amount1, deadline); err != nil {
		return nil, err
	}
	if err := e.reserves.Check(amm.None(), amm.Inc(amount1)); err != nil {
		return nil, err
	}
	return e.deps.Positions.NextTokenID(ctx)
}

func (e *Engine) validateProvide(tickLower, tickUpper int32, amount *uint256.Int, deadline uint64) error {
	if _, err := e.checkDeadline(deadline); err != nil {
		return err
	}
	if err := ValidateTicks(tickLower, tickUpper); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return e.requireSeeded()
}

// Provide0 adds public-asset liquidity. reserve0 grows by amount0 and the
// position's liquidity equals amount0.
func (e *Engine) Provide0(ctx context.Context, caller common.Address, tickLower, tickUpper int32, amount0 *uint256.Int, recipient common.Address, deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateProvide(tickLower, tickUpper, amount0, deadline); err != nil {
		return nil, err
	}
	d0 := amm.Inc(amount0)
	if err := e.reserves.Check(d0, amm.None()); err != nil {
		return nil, err
	}

	if err := e.deps.Token0.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, amount0); err != nil {
		return nil, fmt.Errorf("pull token0: %w", err)
	}
	tokenID, err := e.deps.Positions.Mint(ctx, e.cfg.Address, recipient, tickLower, tickUpper,
		word(amount0), word(amount0), common.Hash{}, false)
	if err != nil {
		e.refundToken0(ctx, caller, amount0)
		return nil, fmt.Errorf("mint position: %w", err)
	}

	now := e.deps.Clock.Now()
	e.reserves.Apply(d0, amm.None())
	p := &Position{
		TokenID:      tokenID.Clone(),
		TickLower:    tickLower,
		TickUpper:    tickUpper,
		Liquidity:    amount0.Clone(),
		Token0Amount: amount0.Clone(),
		Token1Amount: new(uint256.Int),
		CreatedAt:    now,
		LastUpdated:  now,
	}
	e.addLiquidity(now, p)

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.MintConfidential(ts, recipient, tokenID, tickLower, tickUpper, false, amount0)
	})
	e.logger.Info("position minted",
		zap.String("token_id", tokenID.Dec()),
		zap.String("owner", recipient.Hex()),
		zap.Bool("confidential", false))
	return tokenID.Clone(), nil
}

// Provide1 adds encrypted-asset liquidity. The virtual reserve grows by
// amount1Clear; that the ciphertext matches it is guaranteed by the token's
// input proof. Liquidity is amount1Clear valued in public-asset units at
// the current price.
func (e *Engine) Provide1(ctx context.Context, caller common.Address, tickLower, tickUpper int32, encryptedAmount1 common.Hash, amount1Clear uint64, recipient common.Address, proof []byte, deadline uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount1 := uint256.NewInt(amount1Clear)
	if err := e.validateProvide(tickLower, tickUpper, amount1, deadline); err != nil {
		return nil, err
	}
	d1 := amm.Inc(amount1)
	if err := e.reserves.Check(amm.None(), d1); err != nil {
		return nil, err
	}
	r := e.reserves.Reserves()
	liquidity, overflow := new(uint256.Int).MulDivOverflow(amount1, r.Reserve0, r.Reserve1)
	if overflow {
		return nil, ErrAmountOverflow
	}

	escrow, err := e.deps.Token1.ConfidentialTransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, encryptedAmount1, proof)
	if err != nil {
		return nil, err
	}
	tokenID, err := e.deps.Positions.Mint(ctx, e.cfg.Address, recipient, tickLower, tickUpper,
		word(liquidity), common.Hash{}, escrow, true)
	if err != nil {
		e.refundToken1(ctx, caller, escrow)
		return nil, fmt.Errorf("mint position: %w", err)
	}

	now := e.deps.Clock.Now()
	e.reserves.Apply(amm.None(), d1)
	p := &Position{
		TokenID:        tokenID.Clone(),
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		Liquidity:      liquidity,
		Token0Amount:   new(uint256.Int),
		Token1Amount:   amount1,
		Amount1Handle:  escrow,
		IsConfidential: true,
		CreatedAt:      now,
		LastUpdated:    now,
	}
	e.addLiquidity(now, p)

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.MintConfidential(ts, recipient, tokenID, tickLower, tickUpper, true, nil)
	})
	e.logger.Info("position minted",
		zap.String("token_id", tokenID.Dec()),
		zap.String("owner", recipient.Hex()),
		zap.Bool("confidential", true))
	return tokenID.Clone(), nil
}

// IncreaseLiquidity0 adds public-asset liquidity to an existing public
// position. Rewards earned so far are credited to the owner.
func (e *Engine) IncreaseLiquidity0(ctx context.Context, caller common.Address, tokenID, amount0 *uint256.Int, deadline uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.checkDeadline(deadline); err != nil {
		return err
	}
	if amount0 == nil || amount0.IsZero() {
		return ErrZeroAmount
	}
	p, owner, err := e.ownedPosition(ctx, caller, tokenID)
	if err != nil {
		return err
	}
	if p.IsConfidential {
		return ErrConfidentialPosition
	}
	d0 := amm.Inc(amount0)
	if err := e.reserves.Check(d0, amm.None()); err != nil {
		return err
	}
	nextAmount := new(uint256.Int).Add(p.Token0Amount, amount0)

	if err := e.deps.Token0.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, amount0); err != nil {
		return fmt.Errorf("pull token0: %w", err)
	}
	if err := e.deps.Positions.UpdatePosition(ctx, e.cfg.Address, tokenID, word(nextAmount), word(nextAmount), common.Hash{}); err != nil {
		e.refundToken0(ctx, caller, amount0)
		return fmt.Errorf("update position: %w", err)
	}

	now := e.deps.Clock.Now()
	e.reserves.Apply(d0, amm.None())
	e.rewards.accrue(now)
	e.rewards.credit(owner, pendingFor(p, e.rewards.acc))
	e.rewards.totalLiquidity.Add(e.rewards.totalLiquidity, amount0)
	p.Liquidity.Add(p.Liquidity, amount0)
	p.Token0Amount = nextAmount
	p.AccCheckpoint = e.rewards.acc.Clone()
	p.LastUpdated = now
	return nil
}

// Burn destroys a position owned by caller: it reverses exactly the reserve
// contribution of the position, returns the deposit and pays the
// position's pending rewards. A confidential deposit that cannot be
// returned is held for ReclaimDeposit.
func (e *Engine) Burn(ctx context.Context, caller common.Address, tokenID *uint256.Int, deadline uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.checkDeadline(deadline); err != nil {
		return err
	}
	p, owner, err := e.ownedPosition(ctx, caller, tokenID)
	if err != nil {
		return err
	}
	d0, d1 := p.reserveDelta(amm.Decrease)
	if err := e.reserves.Check(d0, d1); err != nil {
		return err
	}
	r := e.reserves.Reserves()
	if (!p.IsConfidential && r.Reserve0.Eq(p.Token0Amount)) || (p.IsConfidential && r.Reserve1.Eq(p.Token1Amount)) {
		return fmt.Errorf("%w: burn would empty a reserve", ErrInsufficientLiquidity)
	}

	if err := e.deps.Positions.Burn(ctx, e.cfg.Address, tokenID); err != nil {
		return fmt.Errorf("burn position: %w", err)
	}

	now := e.deps.Clock.Now()
	e.reserves.Apply(d0, d1)
	e.rewards.accrue(now)
	earned := pendingFor(p, e.rewards.acc)
	e.rewards.totalLiquidity.Sub(e.rewards.totalLiquidity, p.Liquidity)
	e.positions.remove(tokenID)

	// State is final from here; undeliverable payouts are credited and
	// paid by a later ClaimRewards.
	payout0 := new(uint256.Int).Add(earned, p.Token0Amount)
	if !payout0.IsZero() {
		if err := e.deps.Token0.Transfer(ctx, e.cfg.Address, owner, payout0); err != nil {
			e.logger.Warn("burn payout deferred", zap.String("owner", owner.Hex()), zap.Error(err))
			e.rewards.credit(owner, payout0)
		} else {
			e.rewards.totalPaid.Add(e.rewards.totalPaid, earned)
		}
	}
	if p.IsConfidential {
		if _, err := e.deps.Token1.ConfidentialTransfer(ctx, e.cfg.Address, owner, p.Amount1Handle); err != nil {
			e.logger.Warn("confidential deposit return deferred",
				zap.String("token_id", tokenID.Dec()), zap.String("handle", p.Amount1Handle.Hex()), zap.Error(err))
			e.positions.held[*tokenID] = heldDeposit{owner: owner, handle: p.Amount1Handle}
		}
	}

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.BurnConfidential(ts, owner, tokenID)
	})
	e.logger.Info("position burned", zap.String("token_id", tokenID.Dec()), zap.String("owner", owner.Hex()))
	return nil
}

// ReclaimDeposit returns a confidential deposit that Burn could not deliver.
func (e *Engine) ReclaimDeposit(ctx context.Context, caller common.Address, tokenID *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tokenID == nil {
		return ErrNoHeldDeposit
	}
	d, ok := e.positions.held[*tokenID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHeldDeposit, tokenID.Dec())
	}
	if caller != d.owner {
		return ErrNotPositionOwner
	}
	if _, err := e.deps.Token1.ConfidentialTransfer(ctx, e.cfg.Address, d.owner, d.handle); err != nil {
		return fmt.Errorf("return deposit: %w", err)
	}
	delete(e.positions.held, *tokenID)
	e.logger.Info("deposit reclaimed", zap.String("token_id", tokenID.Dec()), zap.String("owner", d.owner.Hex()))
	return nil
}

func (e *Engine) ownedPosition(ctx context.Context, caller common.Address, tokenID *uint256.Int) (*Position, common.Address, error) {
	p, ok := e.positions.get(tokenID)
	if !ok {
		return nil, common.Address{}, ErrPositionNotFound
	}
	owner, err := e.deps.Positions.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("owner of %s: %w", tokenID.Dec(), err)
	}
	if owner != caller {
		return nil, common.Address{}, ErrNotPositionOwner
	}
	return p, owner, nil
}

func (e *Engine) addLiquidity(now uint64, p *Position) {
	e.rewards.accrue(now)
	e.rewards.totalLiquidity.Add(e.rewards.totalLiquidity, p.Liquidity)
	p.AccCheckpoint = e.rewards.acc.Clone()
	e.positions.put(p)
}
