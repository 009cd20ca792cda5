package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"privacyPool/internal/events"
	"privacyPool/internal/model"
)

// accScale is the fixed-point scale of the reward accumulator.
var accScale = uint256.NewInt(1_000_000_000_000)

// rewardAccrual distributes public-asset rewards pro rata to liquidity.
// Sources are the fee residue of public-in swaps and a funded emission.
// Fees collected while no liquidity exists are carried in pendingFees.
type rewardAccrual struct {
	acc            *uint256.Int
	totalLiquidity *uint256.Int
	pendingFees    *uint256.Int
	budget         *uint256.Int
	rate           *uint256.Int
	lastAccrual    uint64
	totalPaid      *uint256.Int
	owed           map[common.Address]*uint256.Int
}

func newRewardAccrual(rate *uint256.Int, now uint64) *rewardAccrual {
	return &rewardAccrual{
		acc:            new(uint256.Int),
		totalLiquidity: new(uint256.Int),
		pendingFees:    new(uint256.Int),
		budget:         new(uint256.Int),
		rate:           orZero(rate).Clone(),
		lastAccrual:    now,
		totalPaid:      new(uint256.Int),
		owed:           make(map[common.Address]*uint256.Int),
	}
}

// preview returns the accumulator and emitted amount as of now without
// mutating. folded reports whether pending fees were included.
func (r *rewardAccrual) preview(now uint64) (acc, emitted *uint256.Int, folded bool) {
	acc = r.acc.Clone()
	emitted = new(uint256.Int)
	if r.totalLiquidity.IsZero() {
		return acc, emitted, false
	}
	if now > r.lastAccrual && !r.rate.IsZero() {
		elapsed := uint256.NewInt(now - r.lastAccrual)
		if e, overflow := new(uint256.Int).MulOverflow(r.rate, elapsed); overflow || e.Gt(r.budget) {
			emitted.Set(r.budget)
		} else {
			emitted = e
		}
	}
	distributable := new(uint256.Int).Add(emitted, r.pendingFees)
	inc, overflow := new(uint256.Int).MulDivOverflow(distributable, accScale, r.totalLiquidity)
	if overflow {
		return acc, new(uint256.Int), false
	}
	acc.Add(acc, inc)
	return acc, emitted, true
}

// accrue folds emission and pending fees into the accumulator.
func (r *rewardAccrual) accrue(now uint64) {
	if !r.totalLiquidity.IsZero() {
		acc, emitted, folded := r.preview(now)
		r.acc = acc
		r.budget.Sub(r.budget, emitted)
		if folded {
			r.pendingFees.Clear()
		}
	}
	if now > r.lastAccrual {
		r.lastAccrual = now
	}
}

func (r *rewardAccrual) addFees(amount *uint256.Int) {
	r.pendingFees.Add(r.pendingFees, amount)
}

// pendingFor is what p has earned since its checkpoint:
// floor(liquidity * (acc - checkpoint) / accScale). Summed over all
// positions it never exceeds what was distributed.
func pendingFor(p *Position, acc *uint256.Int) *uint256.Int {
	if p.AccCheckpoint == nil || !acc.Gt(p.AccCheckpoint) {
		return new(uint256.Int)
	}
	delta := new(uint256.Int).Sub(acc, p.AccCheckpoint)
	earned, overflow := new(uint256.Int).MulDivOverflow(p.Liquidity, delta, accScale)
	if overflow {
		return new(uint256.Int)
	}
	return earned
}

func (r *rewardAccrual) owedTo(user common.Address) *uint256.Int {
	if v, ok := r.owed[user]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

func (r *rewardAccrual) credit(user common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	cur := r.owedTo(user)
	r.owed[user] = cur.Add(cur, amount)
}

// held is the public-asset balance earmarked for rewards before any
// liquidity exists.
func (r *rewardAccrual) held() *uint256.Int {
	out := new(uint256.Int).Add(r.budget, r.pendingFees)
	for _, v := range r.owed {
		out.Add(out, v)
	}
	return out
}

// FundRewards pulls amount of the public asset from caller into the
// emission budget.
func (e *Engine) FundRewards(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if _, overflow := new(uint256.Int).AddOverflow(e.rewards.budget, amount); overflow {
		return ErrAmountOverflow
	}
	if err := e.deps.Token0.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, amount); err != nil {
		return fmt.Errorf("pull reward funding: %w", err)
	}
	e.rewards.accrue(e.deps.Clock.Now())
	e.rewards.budget.Add(e.rewards.budget, amount)
	e.logger.Info("rewards funded", zap.String("funder", caller.Hex()), zap.String("amount", amount.Dec()))
	return nil
}

// SetRewardRate changes the emission per second. Owner only.
func (e *Engine) SetRewardRate(_ context.Context, caller common.Address, rate *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	e.rewards.accrue(e.deps.Clock.Now())
	e.rewards.rate = orZero(rate).Clone()
	return nil
}

// PendingRewards previews what ClaimRewards would pay caller now.
func (e *Engine) PendingRewards(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	owned, err := e.ownedPositions(ctx, caller)
	if err != nil {
		return nil, err
	}
	acc, _, _ := e.rewards.preview(e.deps.Clock.Now())
	total := e.rewards.owedTo(caller)
	for _, p := range owned {
		total.Add(total, pendingFor(p, acc))
	}
	return total, nil
}

// ClaimRewards pays caller everything its positions have earned plus any
// earlier payout that could not be delivered. A caller with nothing owed
// gets a zero payout.
func (e *Engine) ClaimRewards(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	owned, err := e.ownedPositions(ctx, caller)
	if err != nil {
		return nil, err
	}
	now := e.deps.Clock.Now()
	acc, _, _ := e.rewards.preview(now)

	total := e.rewards.owedTo(caller)
	for _, p := range owned {
		total.Add(total, pendingFor(p, acc))
	}
	if total.IsZero() {
		return total, nil
	}

	if err := e.deps.Token0.Transfer(ctx, e.cfg.Address, caller, total); err != nil {
		return nil, fmt.Errorf("pay rewards: %w", err)
	}

	e.rewards.accrue(now)
	for _, p := range owned {
		p.AccCheckpoint = e.rewards.acc.Clone()
		p.LastUpdated = now
	}
	delete(e.rewards.owed, caller)
	e.rewards.totalPaid.Add(e.rewards.totalPaid, total)

	e.emit(func(enc *events.Encoder, ts uint64) (model.LogRecord, error) {
		return enc.RewardsClaimed(ts, caller, total)
	})
	e.logger.Info("rewards claimed", zap.String("user", caller.Hex()), zap.String("amount", total.Dec()))
	return total.Clone(), nil
}

// ownedPositions resolves caller's positions through the ownership ledger.
func (e *Engine) ownedPositions(ctx context.Context, owner common.Address) ([]*Position, error) {
	ids, err := e.deps.Positions.GetUserPositions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("user positions: %w", err)
	}
	out := make([]*Position, 0, len(ids))
	for _, id := range ids {
		if p, ok := e.positions.get(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}
