package sim

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"privacyPool/internal/config"
	"privacyPool/internal/ledger"
	"privacyPool/internal/model"
	"privacyPool/internal/oracle"
	"privacyPool/internal/pool"
)

const (
	// DefaultStart is the clock value used when a scenario does not set one.
	DefaultStart uint64 = 1_700_000_000

	defaultDeadline uint64 = 3600
	operatorWindow  uint64 = 365 * 86400
)

// Config holds the pool and oracle parameters of a simulation.
type Config struct {
	Pool            pool.Config
	OracleSigners   int
	OracleThreshold int
	Logger          *zap.Logger
}

// BuildPoolConfig converts loaded settings into engine parameters.
func BuildPoolConfig(cfg config.PoolConfig) (pool.Config, error) {
	addrs := map[string]string{
		"pool":   cfg.Address,
		"owner":  cfg.Owner,
		"token0": cfg.Token0,
		"token1": cfg.Token1,
	}
	for name, value := range addrs {
		if !common.IsHexAddress(value) {
			return pool.Config{}, fmt.Errorf("invalid %s address: %q", name, value)
		}
	}
	policy, err := pool.ParseEscrowPolicy(cfg.EscrowPolicy)
	if err != nil {
		return pool.Config{}, err
	}
	rate, err := parseAmount("reward-rate", cfg.RewardRate)
	if err != nil {
		return pool.Config{}, err
	}
	return pool.Config{
		Address:             common.HexToAddress(cfg.Address),
		Owner:               common.HexToAddress(cfg.Owner),
		Token0:              common.HexToAddress(cfg.Token0),
		Token1:              common.HexToAddress(cfg.Token1),
		FeeBps:              cfg.FeeBps,
		TickSpacing:         cfg.TickSpacing,
		EpochLength:         uint64(cfg.EpochLength.Seconds()),
		EscrowPolicy:        policy,
		RewardRatePerSecond: rate,
	}, nil
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Value string `json:"value,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a whole scenario.
type Result struct {
	Steps    []StepResult       `json:"steps"`
	Events   []model.LogRecord  `json:"-"`
	Snapshot model.PoolSnapshot `json:"snapshot"`
	Epoch    model.EpochData    `json:"epoch"`
}

// Runner executes a scenario against an engine wired to in-memory ledgers
// and a local decryption gateway.
type Runner struct {
	sc     Scenario
	cfg    Config
	logger *zap.Logger

	clock  *pool.ManualClock
	token0 *ledger.ERC20
	token1 *ledger.ConfidentialToken
	nft    *ledger.PositionNFT
	gw     *oracle.Gateway
	engine *pool.Engine
}

func NewRunner(sc Scenario, cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OracleSigners <= 0 {
		return nil, fmt.Errorf("oracle signers must be > 0")
	}
	start := sc.Start
	if start == 0 {
		start = DefaultStart
	}

	r := &Runner{
		sc:     sc,
		cfg:    cfg,
		logger: logger,
		clock:  pool.NewManualClock(start),
		token0: ledger.NewERC20(cfg.Pool.Token0, "PUB", 18),
		nft:    ledger.NewPositionNFT(cfg.Pool.Address, cfg.Pool.Token0, cfg.Pool.Token1),
	}
	r.token1 = ledger.NewConfidentialToken(cfg.Pool.Token1, r.clock.Now)

	keys := make([]*ecdsa.PrivateKey, 0, cfg.OracleSigners)
	for i := 0; i < cfg.OracleSigners; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate signer key: %w", err)
		}
		keys = append(keys, key)
	}
	r.gw = oracle.NewGateway(r.token1, oracle.GatewayConfig{
		Signers: keys,
		Requeue: func(err error) bool { return !pool.IsRejection(err) && pool.Retryable(err) },
	}, logger.Named("gateway"))

	verifier, err := oracle.NewVerifier(r.gw.SignerAddresses(), cfg.OracleThreshold)
	if err != nil {
		return nil, err
	}

	r.engine, err = pool.New(cfg.Pool, pool.Deps{
		Token0:    r.token0,
		Token1:    r.token1,
		Positions: r.nft,
		Oracle:    r.gw,
		Verifier:  verifier,
		Clock:     r.clock,
		Logger:    logger.Named("pool"),
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Engine exposes the engine under simulation.
func (r *Runner) Engine() *pool.Engine { return r.engine }

// Run executes every step in order. A step whose error differs from its
// expectation is recorded as failed; with StopOnError it also ends the run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	for i, step := range r.sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		value, err := r.apply(ctx, step)
		sr := StepResult{Index: i, Op: step.Op, Value: value, Kind: pool.Kind(err)}
		if err != nil {
			sr.Error = err.Error()
		}
		sr.OK = sr.Kind == step.ExpectErr
		res.Steps = append(res.Steps, sr)

		if !sr.OK {
			r.logger.Warn("step failed",
				zap.Int("index", i),
				zap.String("op", step.Op),
				zap.String("kind", sr.Kind),
				zap.String("expected", step.ExpectErr),
				zap.Error(err))
			if r.sc.StopOnError {
				r.finish(&res)
				return res, fmt.Errorf("step %d (%s): %s", i, step.Op, mismatch(sr, step))
			}
			continue
		}
		r.logger.Debug("step done", zap.Int("index", i), zap.String("op", step.Op), zap.String("value", value))
	}
	r.finish(&res)
	return res, nil
}

func (r *Runner) finish(res *Result) {
	res.Events = r.engine.DrainEvents()
	res.Snapshot = r.engine.Snapshot()
	ep := r.engine.GetEpochData()
	res.Epoch = model.EpochData{
		Epoch:     ep.Epoch,
		Start:     ep.Start,
		End:       ep.End,
		Volume:    ep.Volume.Dec(),
		Fees0:     ep.Fees0.Dec(),
		SwapCount: ep.SwapCount,
	}
}

func mismatch(sr StepResult, step Step) string {
	if step.ExpectErr == "" {
		return sr.Error
	}
	return fmt.Sprintf("expected %s, got %q", step.ExpectErr, sr.Kind)
}

func (r *Runner) apply(ctx context.Context, step Step) (string, error) {
	poolAddr := r.cfg.Pool.Address
	now := r.clock.Now()
	deadline := now + defaultDeadline
	if step.DeadlineIn > 0 {
		deadline = now + step.DeadlineIn
	}

	switch step.Op {
	case OpAdvance:
		r.clock.Advance(step.Seconds)
		return fmt.Sprint(r.clock.Now()), nil
	case OpDeliver:
		n, err := r.gw.Process(ctx, r.engine)
		return fmt.Sprint(n), err
	}

	user, err := r.caller(step)
	if err != nil {
		return "", err
	}
	recipient := user
	if step.Recipient != "" {
		if recipient, err = r.sc.resolve(step.Recipient); err != nil {
			return "", err
		}
	}
	amount, err := parseAmount("amount", step.Amount)
	if err != nil {
		return "", err
	}
	minOut, err := parseAmount("min_out", step.MinOut)
	if err != nil {
		return "", err
	}

	switch step.Op {
	case OpFund0:
		if err := r.token0.Mint(user, amount); err != nil {
			return "", err
		}
		allowance := new(uint256.Int).Add(r.token0.Allowance(user, poolAddr), amount)
		r.token0.Approve(user, poolAddr, allowance)
		return amount.Dec(), nil
	case OpFund1:
		r.token1.Mint(user, step.Amount1)
		r.token1.SetOperator(user, poolAddr, now+operatorWindow)
		return fmt.Sprint(step.Amount1), nil
	case OpSeed:
		if err := r.token0.Mint(poolAddr, amount); err != nil {
			return "", err
		}
		r.token1.Mint(poolAddr, step.Amount1)
		return "", r.engine.Seed(ctx, user, uint256.NewInt(step.Amount1))
	case OpSwap0:
		out, err := r.engine.SwapToken0ForToken1(ctx, user, amount, minOut, recipient, deadline)
		return decOrEmpty(out), err
	case OpSubmit1:
		handle, proof := r.token1.Encrypt(poolAddr, user, step.Amount1)
		id, err := r.engine.SubmitSwapToken1ForToken0(ctx, user, handle, minOut, recipient, proof, deadline)
		return decOrEmpty(id), err
	case OpProvide0:
		id, err := r.engine.Provide0(ctx, user, step.TickLower, step.TickUpper, amount, recipient, deadline)
		return decOrEmpty(id), err
	case OpProvide1:
		handle, proof := r.token1.Encrypt(poolAddr, user, step.Amount1)
		id, err := r.engine.Provide1(ctx, user, step.TickLower, step.TickUpper, handle, step.Amount1, recipient, proof, deadline)
		return decOrEmpty(id), err
	case OpIncrease0:
		id, err := parseAmount("token_id", step.TokenID)
		if err != nil {
			return "", err
		}
		return "", r.engine.IncreaseLiquidity0(ctx, user, id, amount, deadline)
	case OpBurn:
		id, err := parseAmount("token_id", step.TokenID)
		if err != nil {
			return "", err
		}
		return "", r.engine.Burn(ctx, user, id, deadline)
	case OpClaim:
		paid, err := r.engine.ClaimRewards(ctx, user)
		return decOrEmpty(paid), err
	case OpFundRewards:
		return amount.Dec(), r.engine.FundRewards(ctx, user, amount)
	case OpSetRate:
		return amount.Dec(), r.engine.SetRewardRate(ctx, user, amount)
	case OpReclaim:
		id, err := parseAmount("request_id", step.RequestID)
		if err != nil {
			return "", err
		}
		return "", r.engine.ReclaimEscrow(ctx, user, id)
	default:
		return "", fmt.Errorf("unknown op %q", step.Op)
	}
}

// caller resolves the acting account; owner-only ops default to the owner.
func (r *Runner) caller(step Step) (common.Address, error) {
	if step.User == "" {
		switch step.Op {
		case OpSeed, OpSetRate, OpFundRewards:
			return r.cfg.Pool.Owner, nil
		}
	}
	return r.sc.resolve(step.User)
}

func decOrEmpty(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
