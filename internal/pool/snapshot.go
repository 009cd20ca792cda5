package pool

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"privacyPool/internal/amm"
	"privacyPool/internal/model"
)

// Snapshot captures the whole pool state.
func (e *Engine) Snapshot() model.PoolSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.reserves.Reserves()
	snap := model.PoolSnapshot{
		Address:         e.cfg.Address.Hex(),
		Token0:          e.cfg.Token0.Hex(),
		Token1:          e.cfg.Token1.Hex(),
		FeeBps:          e.cfg.FeeBps,
		TickSpacing:     e.cfg.TickSpacing,
		Seeded:          e.reserves.Seeded(),
		Reserve0:        r.Reserve0.Dec(),
		Reserve1Virtual: r.Reserve1.Dec(),
		Fees1Virtual:    e.fees1Virtual.Dec(),
		Epoch: model.EpochData{
			Epoch:     e.epoch.epoch,
			Start:     e.epoch.epoch * e.epoch.length,
			End:       (e.epoch.epoch+1)*e.epoch.length - 1,
			Volume:    e.epoch.volume.Dec(),
			Fees0:     e.epoch.fees0.Dec(),
			SwapCount: e.epoch.swapCount,
		},
		Rewards: model.RewardState{
			AccPerLiquidity: e.rewards.acc.Dec(),
			TotalLiquidity:  e.rewards.totalLiquidity.Dec(),
			PendingFees:     e.rewards.pendingFees.Dec(),
			Budget:          e.rewards.budget.Dec(),
			RatePerSecond:   e.rewards.rate.Dec(),
			LastAccrual:     e.rewards.lastAccrual,
			TotalPaid:       e.rewards.totalPaid.Dec(),
		},
		EventSequence: e.encoder.Sequence(),
		TakenAt:       e.deps.Clock.Now(),
	}
	if len(e.rewards.owed) > 0 {
		snap.Rewards.Owed = make(map[string]string, len(e.rewards.owed))
		for addr, v := range e.rewards.owed {
			snap.Rewards.Owed[addr.Hex()] = v.Dec()
		}
	}

	for _, p := range e.positions.byID {
		snap.Positions = append(snap.Positions, positionToModel(p))
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return decLess(snap.Positions[i].TokenID, snap.Positions[j].TokenID)
	})

	for _, p := range e.pending.submitted {
		snap.PendingSwaps = append(snap.PendingSwaps, pendingToModel(p))
	}
	for _, p := range e.pending.rejected {
		snap.RejectedSwaps = append(snap.RejectedSwaps, pendingToModel(p))
	}
	sort.Slice(snap.PendingSwaps, func(i, j int) bool {
		return decLess(snap.PendingSwaps[i].RequestID, snap.PendingSwaps[j].RequestID)
	})
	sort.Slice(snap.RejectedSwaps, func(i, j int) bool {
		return decLess(snap.RejectedSwaps[i].RequestID, snap.RejectedSwaps[j].RequestID)
	})

	for id := range e.pending.consumed {
		snap.ConsumedRequests = append(snap.ConsumedRequests, id.Dec())
	}
	sort.Slice(snap.ConsumedRequests, func(i, j int) bool {
		return decLess(snap.ConsumedRequests[i], snap.ConsumedRequests[j])
	})

	for id, d := range e.positions.held {
		snap.HeldDeposits = append(snap.HeldDeposits, model.HeldDeposit{
			TokenID: id.Dec(),
			Owner:   d.owner.Hex(),
			Handle:  d.handle.Hex(),
		})
	}
	sort.Slice(snap.HeldDeposits, func(i, j int) bool {
		return decLess(snap.HeldDeposits[i].TokenID, snap.HeldDeposits[j].TokenID)
	})
	return snap
}

// Restore replaces the engine state with snap. The static configuration
// must match; on error the engine is left untouched.
//
// Submitted swaps are only settled by the oracle that issued them, so the
// engine must be paired with that oracle's state: Restore fails when the
// oracle's next request id does not follow every id in snap.
func (e *Engine) Restore(snap model.PoolSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !common.IsHexAddress(snap.Address) || common.HexToAddress(snap.Address) != e.cfg.Address {
		return fmt.Errorf("snapshot pool %s does not match %s", snap.Address, e.cfg.Address.Hex())
	}
	if snap.FeeBps != e.cfg.FeeBps {
		return fmt.Errorf("snapshot fee %d does not match %d", snap.FeeBps, e.cfg.FeeBps)
	}

	var p parser
	reserves := amm.Reserves{Reserve0: p.num(snap.Reserve0), Reserve1: p.num(snap.Reserve1Virtual)}
	fees1 := p.num(snap.Fees1Virtual)

	epoch := newEpochStats(e.cfg.EpochLength)
	epoch.epoch = snap.Epoch.Epoch
	epoch.volume = p.num(snap.Epoch.Volume)
	epoch.fees0 = p.num(snap.Epoch.Fees0)
	epoch.swapCount = snap.Epoch.SwapCount

	rewards := newRewardAccrual(p.num(snap.Rewards.RatePerSecond), snap.Rewards.LastAccrual)
	rewards.acc = p.num(snap.Rewards.AccPerLiquidity)
	rewards.totalLiquidity = p.num(snap.Rewards.TotalLiquidity)
	rewards.pendingFees = p.num(snap.Rewards.PendingFees)
	rewards.budget = p.num(snap.Rewards.Budget)
	rewards.totalPaid = p.num(snap.Rewards.TotalPaid)
	for addr, v := range snap.Rewards.Owed {
		rewards.owed[p.address(addr)] = p.num(v)
	}

	positions := newPositionLedger()
	for _, mp := range snap.Positions {
		positions.put(&Position{
			TokenID:        p.num(mp.TokenID),
			TickLower:      mp.TickLower,
			TickUpper:      mp.TickUpper,
			Liquidity:      p.num(mp.Liquidity),
			Token0Amount:   p.num(mp.Token0Amount),
			Token1Amount:   p.num(mp.Token1Amount),
			Amount1Handle:  p.hash(mp.Amount1Handle),
			IsConfidential: mp.IsConfidential,
			AccCheckpoint:  p.num(mp.AccCheckpoint),
			CreatedAt:      mp.CreatedAt,
			LastUpdated:    mp.LastUpdated,
		})
	}
	for _, hd := range snap.HeldDeposits {
		positions.held[*p.num(hd.TokenID)] = heldDeposit{owner: p.address(hd.Owner), handle: p.hash(hd.Handle)}
	}

	pending := newPendingRegistry()
	for _, ms := range snap.PendingSwaps {
		ps := p.pending(ms)
		pending.submitted[*ps.RequestID] = ps
	}
	for _, ms := range snap.RejectedSwaps {
		ps := p.pending(ms)
		pending.rejected[*ps.RequestID] = ps
		pending.consumed[*ps.RequestID] = struct{}{}
	}
	for _, id := range snap.ConsumedRequests {
		pending.consumed[*p.num(id)] = struct{}{}
	}
	if p.err != nil {
		return fmt.Errorf("restore snapshot: %w", p.err)
	}
	if err := e.checkOracleAhead(pending); err != nil {
		return err
	}

	e.reserves.Restore(reserves, snap.Seeded)
	e.fees1Virtual = fees1
	e.epoch = epoch
	e.rewards = rewards
	e.positions = positions
	e.pending = pending
	e.encoder.SetSequence(snap.EventSequence)
	return nil
}

func (e *Engine) checkOracleAhead(pending *pendingRegistry) error {
	last := new(uint256.Int)
	for id := range pending.submitted {
		if id.Gt(last) {
			last.Set(&id)
		}
	}
	for id := range pending.consumed {
		if id.Gt(last) {
			last.Set(&id)
		}
	}
	if last.IsZero() {
		return nil
	}
	next := e.deps.Oracle.PeekRequestID()
	if next == nil || !next.Gt(last) {
		return fmt.Errorf("restore snapshot: oracle next request id %s does not follow %s", orZero(next).Dec(), last.Dec())
	}
	return nil
}

func positionToModel(p *Position) model.Position {
	out := model.Position{
		TokenID:        p.TokenID.Dec(),
		TickLower:      p.TickLower,
		TickUpper:      p.TickUpper,
		Liquidity:      p.Liquidity.Dec(),
		Token0Amount:   p.Token0Amount.Dec(),
		Token1Amount:   p.Token1Amount.Dec(),
		IsConfidential: p.IsConfidential,
		AccCheckpoint:  p.AccCheckpoint.Dec(),
		CreatedAt:      p.CreatedAt,
		LastUpdated:    p.LastUpdated,
	}
	if p.IsConfidential {
		out.Amount1Handle = p.Amount1Handle.Hex()
	}
	return out
}

func pendingToModel(p *PendingSwap) model.PendingSwap {
	return model.PendingSwap{
		RequestID:        p.RequestID.Dec(),
		Sender:           p.Sender.Hex(),
		Recipient:        p.Recipient.Hex(),
		MinOut:           p.MinOut.Dec(),
		Deadline:         p.Deadline,
		EscrowHandle:     p.EscrowHandle.Hex(),
		Reserve0Snapshot: p.Snapshot.Reserve0.Dec(),
		Reserve1Snapshot: p.Snapshot.Reserve1.Dec(),
		SubmittedAt:      p.SubmittedAt,
		Status:           model.SwapStatus(p.Status.String()),
		RejectReason:     p.RejectReason,
		EscrowReleased:   p.EscrowReleased,
	}
}

func decLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// parser accumulates the first conversion error.
type parser struct {
	err error
}

func (p *parser) num(s string) *uint256.Int {
	if s == "" {
		return new(uint256.Int)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("parse %q: %w", s, err)
		}
		return new(uint256.Int)
	}
	return v
}

func (p *parser) address(s string) common.Address {
	if !common.IsHexAddress(s) {
		if p.err == nil {
			p.err = fmt.Errorf("invalid address %q", s)
		}
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func (p *parser) hash(s string) common.Hash {
	if s == "" {
		return common.Hash{}
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		if p.err == nil {
			p.err = fmt.Errorf("invalid handle %q", s)
		}
		return common.Hash{}
	}
	return common.BytesToHash(b)
}

func (p *parser) pending(ms model.PendingSwap) *PendingSwap {
	status := StatusSubmitted
	if ms.Status == model.SwapRejected {
		status = StatusRejected
	}
	return &PendingSwap{
		RequestID:      p.num(ms.RequestID),
		Sender:         p.address(ms.Sender),
		Recipient:      p.address(ms.Recipient),
		MinOut:         p.num(ms.MinOut),
		Deadline:       ms.Deadline,
		EscrowHandle:   p.hash(ms.EscrowHandle),
		Snapshot:       amm.Reserves{Reserve0: p.num(ms.Reserve0Snapshot), Reserve1: p.num(ms.Reserve1Snapshot)},
		SubmittedAt:    ms.SubmittedAt,
		Status:         status,
		RejectReason:   ms.RejectReason,
		EscrowReleased: ms.EscrowReleased,
	}
}
