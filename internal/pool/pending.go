package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"privacyPool/internal/amm"
)

// SwapStatus is the settlement state of an asynchronous swap.
type SwapStatus uint8

const (
	StatusUnknown SwapStatus = iota
	StatusSubmitted
	StatusFulfilled
	StatusRejected
)

func (s SwapStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PendingSwap is an asynchronous swap awaiting, or refused at, fulfillment.
// Snapshot is the reserve state at submission; settlement prices against
// current reserves instead.
type PendingSwap struct {
	RequestID      *uint256.Int
	Sender         common.Address
	Recipient      common.Address
	MinOut         *uint256.Int
	Deadline       uint64
	EscrowHandle   common.Hash
	Snapshot       amm.Reserves
	SubmittedAt    uint64
	Status         SwapStatus
	RejectReason   string
	EscrowReleased bool
}

func (p *PendingSwap) clone() PendingSwap {
	out := *p
	out.RequestID = p.RequestID.Clone()
	out.MinOut = p.MinOut.Clone()
	out.Snapshot = p.Snapshot.Clone()
	return out
}

// pendingRegistry tracks requests by id. Every id is consumed exactly once:
// it moves from submitted to either fulfilled (dropped, id remembered) or
// rejected (kept for escrow handling).
type pendingRegistry struct {
	submitted map[uint256.Int]*PendingSwap
	rejected  map[uint256.Int]*PendingSwap
	consumed  map[uint256.Int]struct{}
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{
		submitted: make(map[uint256.Int]*PendingSwap),
		rejected:  make(map[uint256.Int]*PendingSwap),
		consumed:  make(map[uint256.Int]struct{}),
	}
}

func (r *pendingRegistry) known(id *uint256.Int) bool {
	if _, ok := r.submitted[*id]; ok {
		return true
	}
	_, ok := r.consumed[*id]
	return ok
}

func (r *pendingRegistry) register(p *PendingSwap) error {
	if r.known(p.RequestID) {
		return ErrDuplicateRequest
	}
	p.Status = StatusSubmitted
	r.submitted[*p.RequestID] = p
	return nil
}

func (r *pendingRegistry) get(id *uint256.Int) (*PendingSwap, bool) {
	p, ok := r.submitted[*id]
	return p, ok
}

func (r *pendingRegistry) complete(id *uint256.Int) {
	delete(r.submitted, *id)
	r.consumed[*id] = struct{}{}
}

func (r *pendingRegistry) reject(p *PendingSwap, reason string) {
	delete(r.submitted, *p.RequestID)
	p.Status = StatusRejected
	p.RejectReason = reason
	r.rejected[*p.RequestID] = p
	r.consumed[*p.RequestID] = struct{}{}
}

func (r *pendingRegistry) status(id *uint256.Int) SwapStatus {
	if p, ok := r.submitted[*id]; ok {
		return p.Status
	}
	if p, ok := r.rejected[*id]; ok {
		return p.Status
	}
	if _, ok := r.consumed[*id]; ok {
		return StatusFulfilled
	}
	return StatusUnknown
}

// PendingSwap returns the submitted or rejected request with id.
func (e *Engine) PendingSwap(id *uint256.Int) (PendingSwap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == nil {
		return PendingSwap{}, ErrUnknownRequest
	}
	if p, ok := e.pending.submitted[*id]; ok {
		return p.clone(), nil
	}
	if p, ok := e.pending.rejected[*id]; ok {
		return p.clone(), nil
	}
	return PendingSwap{}, ErrUnknownRequest
}

// RequestStatus returns the settlement state of id.
func (e *Engine) RequestStatus(id *uint256.Int) SwapStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == nil {
		return StatusUnknown
	}
	return e.pending.status(id)
}

// PendingCount returns the number of requests awaiting fulfillment.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending.submitted)
}
