package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ProbeConfig holds configuration for the probe command.
type ProbeConfig struct {
	RPCURL       string
	Pools        []string
	Holders      []string
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
	LogLevel     string
}

// LoadProbe merges config file, environment variables, and flags into ProbeConfig.
func LoadProbe(cfgFile string, flags *pflag.FlagSet) (ProbeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("timeout", 30*time.Second)
	})
	if err != nil {
		return ProbeConfig{}, err
	}

	cfg := ProbeConfig{
		RPCURL:       v.GetString("rpc"),
		Pools:        stringList(v, "pool"),
		Holders:      stringList(v, "holder"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Timeout:      v.GetDuration("timeout"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		return ProbeConfig{}, fmt.Errorf("rpc is required")
	}
	if len(cfg.Pools) == 0 {
		return ProbeConfig{}, fmt.Errorf("at least one pool is required")
	}
	return cfg, nil
}
