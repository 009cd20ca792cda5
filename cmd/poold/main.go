package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poold",
		Short:        "Confidential AMM pool tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve0", "", "public asset reserve")
	quoteCmd.Flags().String("reserve1", "", "virtual confidential asset reserve")
	quoteCmd.Flags().Uint32("fee", 3000, "fee in millionths")
	quoteCmd.Flags().String("amount-in", "", "input amount")
	quoteCmd.Flags().String("direction", "0to1", "swap direction (0to1, 1to0)")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against an in-memory pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario JSON path")
	simulateCmd.Flags().String("pool", "", "pool address")
	simulateCmd.Flags().String("owner", "", "pool owner address")
	simulateCmd.Flags().String("token0", "", "public asset address")
	simulateCmd.Flags().String("token1", "", "confidential asset address")
	simulateCmd.Flags().Uint32("fee", 3000, "fee in millionths")
	simulateCmd.Flags().Uint32("tick-spacing", 60, "tick spacing")
	simulateCmd.Flags().Duration("epoch-length", 24*time.Hour, "epoch length")
	simulateCmd.Flags().String("escrow-policy", "hold", "rejected swap escrow policy (hold, refund)")
	simulateCmd.Flags().String("reward-rate", "0", "reward emission per second")
	simulateCmd.Flags().String("journal", "./data/journal.jsonl", "event journal JSONL path")
	simulateCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot output path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the snapshot")
	simulateCmd.Flags().Int("oracle-signers", 3, "number of gateway signers")
	simulateCmd.Flags().Int("oracle-threshold", 2, "signatures required per result")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the event journal into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/journal.jsonl", "input journal JSONL")
	aggregateCmd.Flags().String("window", "1h", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Read the public state of deployed pools",
		RunE:  runProbe,
	}

	probeCmd.Flags().String("rpc", "", "RPC URL")
	probeCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	probeCmd.Flags().StringSlice("holder", nil, "accounts whose public balance to read (comma-separated)")
	probeCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	probeCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	probeCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	probeCmd.Flags().Duration("timeout", 30*time.Second, "overall probe timeout")
	probeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(probeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
