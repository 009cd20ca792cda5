package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"privacyPool/internal/chain"
	"privacyPool/internal/config"
)

func runProbe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProbe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pools, err := parseAddresses(cfg.Pools)
	if err != nil {
		return err
	}
	holders, err := parseAddresses(cfg.Holders)
	if err != nil {
		return err
	}
	blockNumber, _ := cmd.Flags().GetUint64("block")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	} else if latest, err := chainClient.LatestBlockNumber(ctx); err == nil {
		block = new(big.Int).SetUint64(latest)
	} else {
		logger.Warn("latest block lookup failed, probing latest state", zap.Error(err))
	}

	prober, err := chain.NewProber(chainClient, chain.ProbeConfig{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Holders:      holders,
	}, logger)
	if err != nil {
		return err
	}

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	logger.Info("probe start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.Int("pools", len(pools)),
		zap.Int("holders", len(holders)),
	)

	states := prober.ProbeAll(ctx, pools, block)
	if len(states) == 0 && len(pools) > 0 {
		return fmt.Errorf("no pool could be probed")
	}
	return writeJSON(os.Stdout, states)
}

func parseAddresses(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, v := range values {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid address: %s", v)
		}
		out = append(out, common.HexToAddress(v))
	}
	return out, nil
}
