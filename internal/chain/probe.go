package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"privacyPool/internal/events"
	"privacyPool/internal/model"
)

// PoolState is the public view of a deployed pool.
type PoolState struct {
	Address         string            `json:"address"`
	BlockNumber     uint64            `json:"block_number,omitempty"`
	Fee             uint32            `json:"fee"`
	Reserve0        string            `json:"reserve0"`
	Reserve1Virtual string            `json:"reserve1_virtual"`
	Epoch           model.EpochData   `json:"epoch"`
	Token0          *model.TokenMeta  `json:"token0,omitempty"`
	Balance0        string            `json:"balance0,omitempty"`
	Holders         map[string]string `json:"holders,omitempty"`
}

// ProbeConfig controls retries of individual calls.
type ProbeConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Holders      []common.Address
}

// Prober reads pool state through eth_call.
type Prober struct {
	caller  Caller
	cfg     ProbeConfig
	retry   retryPolicy
	logger  *zap.Logger
	poolABI abi.ABI
}

func NewProber(caller Caller, cfg ProbeConfig, logger *zap.Logger) (*Prober, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	poolABI, err := events.PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return &Prober{
		caller:  caller,
		cfg:     cfg,
		retry:   newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		logger:  logger,
		poolABI: poolABI,
	}, nil
}

// ProbeAll probes every pool. Pools that fail are logged and left out.
func (p *Prober) ProbeAll(ctx context.Context, pools []common.Address, block *big.Int) []PoolState {
	out := make([]PoolState, 0, len(pools))
	for _, pool := range pools {
		if ctx.Err() != nil {
			break
		}
		state, err := p.Probe(ctx, pool, block)
		if err != nil {
			p.logger.Warn("probe pool failed", zap.String("pool", pool.Hex()), zap.Error(err))
			continue
		}
		out = append(out, state)
	}
	return out
}

// Probe reads reserves and epoch data; token metadata and balances are best effort.
func (p *Prober) Probe(ctx context.Context, pool common.Address, block *big.Int) (PoolState, error) {
	state := PoolState{Address: pool.Hex()}
	if block != nil && block.IsUint64() {
		state.BlockNumber = block.Uint64()
	}

	reserves, err := p.call(ctx, pool, p.poolABI, "getReserves", block)
	if err != nil {
		return PoolState{}, err
	}
	if len(reserves) != 2 {
		return PoolState{}, fmt.Errorf("getReserves return size %d", len(reserves))
	}
	state.Reserve0, err = bigString(reserves[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("reserve0: %w", err)
	}
	state.Reserve1Virtual, err = bigString(reserves[1])
	if err != nil {
		return PoolState{}, fmt.Errorf("reserve1: %w", err)
	}

	epoch, err := p.call(ctx, pool, p.poolABI, "getEpochData", block)
	if err != nil {
		return PoolState{}, err
	}
	if state.Epoch, err = epochFromValues(epoch); err != nil {
		return PoolState{}, err
	}

	if values, err := p.call(ctx, pool, p.poolABI, "fee", block); err == nil {
		if fee, err := asBigInt(values[0]); err == nil && fee.IsUint64() {
			state.Fee = uint32(fee.Uint64())
		}
	} else {
		p.logger.Debug("fee call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	values, err := p.call(ctx, pool, p.poolABI, "token0", block)
	if err != nil {
		p.logger.Warn("token0 call failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return state, nil
	}
	token0, err := asAddress(values[0])
	if err != nil {
		p.logger.Warn("token0 decode failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return state, nil
	}

	var meta model.TokenMeta
	err = p.retry.do(ctx, "token0 metadata", func(ctx context.Context) error {
		var err error
		meta, err = FetchTokenMeta(ctx, p.caller, token0, p.logger)
		return err
	})
	if err != nil {
		p.logger.Warn("token0 metadata failed", zap.String("token", token0.Hex()), zap.Error(err))
		meta = model.TokenMeta{Address: token0.Hex()}
	}
	state.Token0 = &meta

	if bal, err := p.balance(ctx, token0, pool, block); err == nil {
		state.Balance0 = bal.String()
	} else {
		p.logger.Warn("pool balance failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	for _, holder := range p.cfg.Holders {
		bal, err := p.balance(ctx, token0, holder, block)
		if err != nil {
			p.logger.Warn("holder balance failed", zap.String("holder", holder.Hex()), zap.Error(err))
			continue
		}
		if state.Holders == nil {
			state.Holders = make(map[string]string, len(p.cfg.Holders))
		}
		state.Holders[holder.Hex()] = bal.String()
	}

	return state, nil
}

func (p *Prober) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	var values []interface{}
	err := p.retry.do(ctx, method, func(ctx context.Context) error {
		var err error
		values, err = callMethod(ctx, p.caller, to, parsed, method, block)
		return err
	})
	return values, err
}

func (p *Prober) balance(ctx context.Context, token, owner common.Address, block *big.Int) (*big.Int, error) {
	var bal *big.Int
	err := p.retry.do(ctx, "balanceOf", func(ctx context.Context) error {
		var err error
		bal, err = BalanceOf(ctx, p.caller, token, owner, block)
		return err
	})
	return bal, err
}

func epochFromValues(values []interface{}) (model.EpochData, error) {
	if len(values) != 4 {
		return model.EpochData{}, fmt.Errorf("getEpochData return size %d", len(values))
	}
	epoch, err := asBigInt(values[0])
	if err != nil || !epoch.IsUint64() {
		return model.EpochData{}, fmt.Errorf("epoch: invalid value %v", values[0])
	}
	volume, err := bigString(values[1])
	if err != nil {
		return model.EpochData{}, fmt.Errorf("volume: %w", err)
	}
	fees0, err := bigString(values[2])
	if err != nil {
		return model.EpochData{}, fmt.Errorf("fees0: %w", err)
	}
	swaps, err := asBigInt(values[3])
	if err != nil || !swaps.IsUint64() {
		return model.EpochData{}, fmt.Errorf("swap count: invalid value %v", values[3])
	}
	return model.EpochData{
		Epoch:     epoch.Uint64(),
		Volume:    volume,
		Fees0:     fees0,
		SwapCount: swaps.Uint64(),
	}, nil
}

func bigString(value interface{}) (string, error) {
	v, err := asBigInt(value)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
