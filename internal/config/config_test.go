package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadSimulateFlagsOverrideDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.String("scenario", "", "")
	flags.Uint32("fee", 3000, "")
	flags.String("escrow-policy", "hold", "")
	if err := flags.Parse([]string{"--scenario", "s.json", "--fee", "500", "--escrow-policy", "refund"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSimulate("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scenario != "s.json" || cfg.Pool.FeeBps != 500 || cfg.Pool.EscrowPolicy != "refund" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Pool.EpochLength != 24*time.Hour || cfg.Pool.TickSpacing != 60 {
		t.Fatalf("defaults not applied: %+v", cfg.Pool)
	}
	if cfg.OracleSigners != 3 || cfg.OracleThreshold != 2 {
		t.Fatalf("oracle defaults: %d/%d", cfg.OracleThreshold, cfg.OracleSigners)
	}
}

func TestLoadSimulateRequiresScenario(t *testing.T) {
	if _, err := LoadSimulate("", nil); err == nil {
		t.Fatalf("expected error without scenario")
	}
}

func TestLoadSimulateFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	content := "scenario: from-file.json\nfee: 2500\noracle-signers: 5\noracle-threshold: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("POOL_EPOCH_LENGTH", "1h")

	cfg, err := LoadSimulate(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scenario != "from-file.json" || cfg.Pool.FeeBps != 2500 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.OracleThreshold != 3 || cfg.OracleSigners != 5 {
		t.Fatalf("oracle values not applied: %+v", cfg)
	}
	if cfg.Pool.EpochLength != time.Hour {
		t.Fatalf("env value not applied: %s", cfg.Pool.EpochLength)
	}
}

func TestLoadQuoteDirection(t *testing.T) {
	flags := pflag.NewFlagSet("quote", pflag.ContinueOnError)
	flags.String("direction", "0to1", "")
	if err := flags.Parse([]string{"--direction", "sideways"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := LoadQuote("", flags); err == nil {
		t.Fatalf("expected direction error")
	}
}

func TestLoadProbeSplitsPools(t *testing.T) {
	t.Setenv("POOL_RPC", "http://localhost:8545")
	t.Setenv("POOL_POOL", "0x01, 0x02,,")

	cfg, err := LoadProbe("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Pools) != 2 || cfg.Pools[1] != "0x02" {
		t.Fatalf("pools mismatch: %v", cfg.Pools)
	}
	if cfg.MaxRetries != 5 || cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("retry defaults: %+v", cfg)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1700000000")
	if err != nil || ts != 1700000000 {
		t.Fatalf("unix parse: %d %v", ts, err)
	}
	ts, err = ParseTimestamp("2024-01-01T00:00:00Z")
	if err != nil || ts != 1704067200 {
		t.Fatalf("rfc3339 parse: %d %v", ts, err)
	}
	ts, err = ParseTimestamp("")
	if err != nil || ts != 0 {
		t.Fatalf("empty parse: %d %v", ts, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
}
