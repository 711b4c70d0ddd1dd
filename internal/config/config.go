package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	PrivateKey string
	Owner      string
	TokenA     string
	TokenB     string

	GasLimit        uint64
	TransferTimeout time.Duration
	MetadataTimeout time.Duration

	FromBlock         uint64
	BatchSize         uint64
	PollInterval      time.Duration
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration

	PGDSN        string
	SwapJournal  string
	StateJournal string
	ListenAddr   string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("gas-limit", uint64(100_000))
	v.SetDefault("transfer-timeout", 30*time.Second)
	v.SetDefault("metadata-timeout", 10*time.Second)
	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("poll-interval", 3*time.Second)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("swap-journal", "./data/swaps.jsonl")
	v.SetDefault("state-journal", "./data/pool_state.jsonl")
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		PrivateKey:        v.GetString("private-key"),
		Owner:             v.GetString("owner"),
		TokenA:            v.GetString("token-a"),
		TokenB:            v.GetString("token-b"),
		GasLimit:          v.GetUint64("gas-limit"),
		TransferTimeout:   v.GetDuration("transfer-timeout"),
		MetadataTimeout:   v.GetDuration("metadata-timeout"),
		FromBlock:         v.GetUint64("from"),
		BatchSize:         v.GetUint64("batch-size"),
		PollInterval:      v.GetDuration("poll-interval"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PGDSN:             v.GetString("pg-dsn"),
		SwapJournal:       v.GetString("swap-journal"),
		StateJournal:      v.GetString("state-journal"),
		ListenAddr:        v.GetString("listen"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
