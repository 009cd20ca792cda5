package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"privacyPool/internal/config"
	"privacyPool/internal/sim"
	"privacyPool/internal/storage"
	"privacyPool/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolCfg, err := sim.BuildPoolConfig(cfg.Pool)
	if err != nil {
		return err
	}
	scenario, err := sim.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := sim.NewRunner(scenario, sim.Config{
		Pool:            poolCfg,
		OracleSigners:   cfg.OracleSigners,
		OracleThreshold: cfg.OracleThreshold,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("steps", len(scenario.Steps)),
		zap.String("pool", poolCfg.Address.Hex()),
		zap.Uint32("fee", poolCfg.FeeBps),
		zap.String("escrow_policy", string(poolCfg.EscrowPolicy)),
		zap.String("journal", cfg.Journal),
		zap.String("snapshot", cfg.Snapshot),
	)

	result, runErr := runner.Run(ctx)

	if err := persist(result, storage.NewJsonlStorage(cfg.Journal), storage.NewFileSnapshotStore(cfg.Snapshot)); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		if err := store.UpsertPoolSnapshot(ctx, result.Snapshot); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
	}

	failed := 0
	for _, step := range result.Steps {
		if !step.OK {
			failed++
		}
	}
	logger.Info("simulate complete",
		zap.Int("steps", len(result.Steps)),
		zap.Int("failed", failed),
		zap.Int("events", len(result.Events)),
		zap.String("reserve0", result.Snapshot.Reserve0),
		zap.String("reserve1_virtual", result.Snapshot.Reserve1Virtual),
	)

	if err := writeJSON(os.Stdout, result); err != nil {
		return err
	}
	return runErr
}

func persist(result sim.Result, journal storage.Storage, snapshots storage.SnapshotStore) error {
	if err := journal.PutLogBatch(result.Events); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := snapshots.SaveSnapshot(result.Snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
