package pool

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"privacyPool/internal/amm"
	"privacyPool/internal/events"
	"privacyPool/internal/model"
)

// DefaultEpochLength is one day.
const DefaultEpochLength uint64 = 86400

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(now uint64) *ManualClock { return &ManualClock{now: now} }

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

// EscrowPolicy decides what happens to the escrowed input of a rejected
// asynchronous swap.
type EscrowPolicy string

const (
	// EscrowHold keeps the input in pool custody until the sender reclaims it.
	EscrowHold EscrowPolicy = "hold"
	// EscrowRefund returns the input to the sender during the failed fulfillment.
	EscrowRefund EscrowPolicy = "refund"
)

// ParseEscrowPolicy parses a policy name; "" selects EscrowHold.
func ParseEscrowPolicy(s string) (EscrowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(EscrowHold):
		return EscrowHold, nil
	case string(EscrowRefund):
		return EscrowRefund, nil
	default:
		return "", fmt.Errorf("unknown escrow policy %q", s)
	}
}

// Config holds the static pool parameters.
type Config struct {
	Address             common.Address
	Owner               common.Address
	Token0              common.Address
	Token1              common.Address
	FeeBps              uint32
	TickSpacing         uint32
	EpochLength         uint64
	EscrowPolicy        EscrowPolicy
	RewardRatePerSecond *uint256.Int
}

// Deps are the external collaborators of the engine.
type Deps struct {
	Token0    PublicToken
	Token1    ConfidentialToken
	Positions PositionNFT
	Oracle    DecryptionOracle
	Verifier  ProofVerifier
	Clock     Clock
	Logger    *zap.Logger
}

// Engine is the pool aggregate. Every operation holds mu for its whole
// duration, so operations are serialized transactions.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	deps   Deps
	logger *zap.Logger

	reserves     *amm.ReserveLedger
	fees1Virtual *uint256.Int
	pending      *pendingRegistry
	positions    *positionLedger
	rewards      *rewardAccrual
	epoch        *epochStats

	encoder *events.Encoder
	journal []model.LogRecord
}

// New builds an engine with unseeded reserves.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := amm.ValidateFee(cfg.FeeBps); err != nil {
		return nil, err
	}
	if deps.Token0 == nil || deps.Token1 == nil || deps.Positions == nil || deps.Oracle == nil || deps.Verifier == nil {
		return nil, errors.New("pool: missing collaborator")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.EpochLength == 0 {
		cfg.EpochLength = DefaultEpochLength
	}
	if cfg.EscrowPolicy == "" {
		cfg.EscrowPolicy = EscrowHold
	}
	if _, err := ParseEscrowPolicy(string(cfg.EscrowPolicy)); err != nil {
		return nil, err
	}

	encoder, err := events.NewEncoder(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("event encoder: %w", err)
	}

	return &Engine{
		cfg:          cfg,
		deps:         deps,
		logger:       deps.Logger.With(zap.String("pool", cfg.Address.Hex())),
		reserves:     amm.NewReserveLedger(),
		fees1Virtual: new(uint256.Int),
		pending:      newPendingRegistry(),
		positions:    newPositionLedger(),
		rewards:      newRewardAccrual(cfg.RewardRatePerSecond, deps.Clock.Now()),
		epoch:        newEpochStats(cfg.EpochLength),
		encoder:      encoder,
	}, nil
}

// Config returns the static pool parameters.
func (e *Engine) Config() Config { return e.cfg }

// GetReserves returns (reserve0, reserve1Virtual).
func (e *Engine) GetReserves() (*uint256.Int, *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reserves.Reserves()
	return r.Reserve0, r.Reserve1
}

// Fees1Virtual returns the virtual-side fee residue retained by settled swaps.
func (e *Engine) Fees1Virtual() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees1Virtual.Clone()
}

// DrainEvents returns and clears the buffered event records.
func (e *Engine) DrainEvents() []model.LogRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.journal
	e.journal = nil
	return out
}

func (e *Engine) emit(build func(enc *events.Encoder, ts uint64) (model.LogRecord, error)) {
	rec, err := build(e.encoder, e.deps.Clock.Now())
	if err != nil {
		e.logger.Error("encode event", zap.Error(err))
		return
	}
	e.journal = append(e.journal, rec)
}

func (e *Engine) checkDeadline(deadline uint64) (uint64, error) {
	now := e.deps.Clock.Now()
	if now > deadline {
		return now, fmt.Errorf("%w: now %d > deadline %d", ErrExpired, now, deadline)
	}
	return now, nil
}

func (e *Engine) requireSeeded() error {
	if !e.reserves.Seeded() {
		return ErrNotSeeded
	}
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
