package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by poold.
const EnvPrefix = "POOL"

// PoolConfig holds the static parameters of a pool instance.
type PoolConfig struct {
	Address      string
	Owner        string
	Token0       string
	Token1       string
	FeeBps       uint32
	TickSpacing  uint32
	EpochLength  time.Duration
	EscrowPolicy string
	RewardRate   string
}

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Pool            PoolConfig
	Scenario        string
	Journal         string
	Snapshot        string
	PGDSN           string
	OracleSigners   int
	OracleThreshold int
	LogLevel        string
}

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Reserve0  string
	Reserve1  string
	FeeBps    uint32
	AmountIn  string
	Direction string
	LogLevel  string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setPoolDefaults(v)
		v.SetDefault("journal", "./data/journal.jsonl")
		v.SetDefault("snapshot", "./data/snapshot.json")
		v.SetDefault("oracle-signers", 3)
		v.SetDefault("oracle-threshold", 2)
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Pool:            poolFromViper(v),
		Scenario:        v.GetString("scenario"),
		Journal:         v.GetString("journal"),
		Snapshot:        v.GetString("snapshot"),
		PGDSN:           v.GetString("pg-dsn"),
		OracleSigners:   v.GetInt("oracle-signers"),
		OracleThreshold: v.GetInt("oracle-threshold"),
		LogLevel:        v.GetString("log-level"),
	}
	if cfg.Scenario == "" {
		return SimulateConfig{}, fmt.Errorf("scenario is required")
	}
	if cfg.OracleThreshold < 1 || cfg.OracleThreshold > cfg.OracleSigners {
		return SimulateConfig{}, fmt.Errorf("oracle threshold %d out of range [1, %d]", cfg.OracleThreshold, cfg.OracleSigners)
	}
	return cfg, nil
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("fee", uint32(3000))
		v.SetDefault("direction", "0to1")
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Reserve0:  v.GetString("reserve0"),
		Reserve1:  v.GetString("reserve1"),
		FeeBps:    v.GetUint32("fee"),
		AmountIn:  v.GetString("amount-in"),
		Direction: strings.ToLower(v.GetString("direction")),
		LogLevel:  v.GetString("log-level"),
	}
	switch cfg.Direction {
	case "0to1", "1to0":
	default:
		return QuoteConfig{}, fmt.Errorf("direction must be 0to1 or 1to0, got %q", cfg.Direction)
	}
	return cfg, nil
}

func setPoolDefaults(v *viper.Viper) {
	v.SetDefault("pool", "0x00000000000000000000000000000000000000f0")
	v.SetDefault("owner", "0x00000000000000000000000000000000000000f1")
	v.SetDefault("token0", "0x00000000000000000000000000000000000000a0")
	v.SetDefault("token1", "0x00000000000000000000000000000000000000a1")
	v.SetDefault("fee", uint32(3000))
	v.SetDefault("tick-spacing", uint32(60))
	v.SetDefault("epoch-length", 24*time.Hour)
	v.SetDefault("escrow-policy", "hold")
	v.SetDefault("reward-rate", "0")
}

func poolFromViper(v *viper.Viper) PoolConfig {
	return PoolConfig{
		Address:      v.GetString("pool"),
		Owner:        v.GetString("owner"),
		Token0:       v.GetString("token0"),
		Token1:       v.GetString("token1"),
		FeeBps:       v.GetUint32("fee"),
		TickSpacing:  v.GetUint32("tick-spacing"),
		EpochLength:  v.GetDuration("epoch-length"),
		EscrowPolicy: v.GetString("escrow-policy"),
		RewardRate:   v.GetString("reward-rate"),
	}
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// stringList reads key as a list. Comma-separated strings from env vars and
// YAML sequences are both accepted; blanks are dropped.
func stringList(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	var raw []string
	switch typed := v.Get(key).(type) {
	case []string:
		raw = typed
	case string:
		raw = strings.Split(typed, ",")
	case []interface{}:
		for _, item := range typed {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		return nil
	}
	out := raw[:0:0]
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
