// Package config loads the configuration shared by the streamnode and keeper
// binaries: defaults, then an optional YAML file, then STREAMPAY_*
// environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/chain"
	"github.com/trufnetwork/streampay/core/keeper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STREAMPAY_"

type Config struct {
	Log    Log    `yaml:"log"`
	Node   Node   `yaml:"node"`
	Keeper Keeper `yaml:"keeper"`
}

type Log struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type Node struct {
	Chain    chain.Config `yaml:"chain"`
	HTTPAddr string       `yaml:"http_addr" validate:"required"`
	Events   Events       `yaml:"events"`
}

// Events selects where committed block events are published.
type Events struct {
	Log          bool              `yaml:"log"`
	KafkaBrokers []string          `yaml:"kafka_brokers"`
	KafkaTopic   string            `yaml:"kafka_topic" validate:"required_with=KafkaBrokers"`
	TopicByKind  map[string]string `yaml:"topic_by_kind"`
}

type Keeper struct {
	keeper.Config `yaml:",inline"`

	NodeURL string `yaml:"node_url" validate:"required,url"`
	// PrivateKey is the hex secp256k1 key that signs settlement batches.
	// Prefer STREAMPAY_KEEPER_PRIVATE_KEY over the file.
	PrivateKey string `yaml:"private_key" validate:"required"`
	// FeePrice pins the fee price; empty reads the price the node publishes.
	FeePrice    string `yaml:"fee_price"`
	RedisURL    string `yaml:"redis_url"`
	JournalKey  string `yaml:"journal_key"`
	MetricsAddr string `yaml:"metrics_addr"`
}

func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Node: Node{
			Chain:    chain.DefaultConfig(),
			HTTPAddr: ":8080",
			Events:   Events{Log: true},
		},
		Keeper: Keeper{
			Config:      keeper.DefaultConfig(),
			NodeURL:     "http://localhost:8080",
			JournalKey:  "streampay:keeper:cycles",
			MetricsAddr: ":9100",
		},
	}
}

// Load resolves configuration in priority order: defaults, the file at path
// (skipped when path is empty), environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config file")
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateNode checks the sections the streamnode binary uses.
func (c Config) ValidateNode() error {
	validate := validator.New()
	if err := validate.Struct(c.Log); err != nil {
		return errors.Wrap(err, "invalid log config")
	}
	if err := validate.Struct(c.Node); err != nil {
		return errors.Wrap(err, "invalid node config")
	}
	return c.Node.Chain.Validate()
}

// ValidateKeeper checks the sections the keeper binary uses.
func (c Config) ValidateKeeper() error {
	validate := validator.New()
	if err := validate.Struct(c.Log); err != nil {
		return errors.Wrap(err, "invalid log config")
	}
	if err := validate.Struct(c.Keeper); err != nil {
		return errors.Wrap(err, "invalid keeper config")
	}
	return c.Keeper.Config.Validate()
}

// ═══════════════════════════════════════════════════════════════
// ENVIRONMENT
// ═══════════════════════════════════════════════════════════════

func (c *Config) applyEnv() error {
	c.Log.Level = envOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Development = envBool("LOG_DEVELOPMENT", c.Log.Development)

	node := &c.Node
	node.HTTPAddr = envOrDefault("HTTP_ADDR", node.HTTPAddr)
	node.Chain.ChainID = envOrDefault("CHAIN_ID", node.Chain.ChainID)
	node.Chain.BaseFeePrice = envOrDefault("BASE_FEE_PRICE", node.Chain.BaseFeePrice)
	node.Chain.MinFeePrice = envOrDefault("MIN_FEE_PRICE", node.Chain.MinFeePrice)
	node.Events.Log = envBool("EVENTS_LOG", node.Events.Log)
	node.Events.KafkaBrokers = envCSV("KAFKA_BROKERS", node.Events.KafkaBrokers)
	node.Events.KafkaTopic = envOrDefault("KAFKA_TOPIC", node.Events.KafkaTopic)

	params := &node.Chain.Ledger
	params.MaxBatchSize = envInt("MAX_BATCH_SIZE", params.MaxBatchSize)
	params.MinUpdateInterval = int64(envInt("MIN_UPDATE_INTERVAL", int(params.MinUpdateInterval)))
	params.MaxDuration = int64(envInt("MAX_DURATION", int(params.MaxDuration)))
	if raw := env("FEE_BPS"); raw != "" {
		bps, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%sFEE_BPS", envPrefix)
		}
		params.FeeBps = bps
		c.Keeper.FeeBps = bps
	}

	var err error
	if node.Chain.BlockInterval, err = envDuration("BLOCK_INTERVAL", node.Chain.BlockInterval); err != nil {
		return err
	}

	k := &c.Keeper
	k.NodeURL = envOrDefault("NODE_URL", k.NodeURL)
	k.PrivateKey = envOrDefault("KEEPER_PRIVATE_KEY", k.PrivateKey)
	k.FeePrice = envOrDefault("KEEPER_FEE_PRICE", k.FeePrice)
	k.RedisURL = envOrDefault("REDIS_URL", k.RedisURL)
	k.MetricsAddr = envOrDefault("KEEPER_METRICS_ADDR", k.MetricsAddr)
	k.MaxBatchSize = envInt("KEEPER_MAX_BATCH_SIZE", k.MaxBatchSize)
	k.RewardModel = keeper.RewardModel(envOrDefault("KEEPER_REWARD_MODEL", string(k.RewardModel)))
	k.RewardPerStream = envOrDefault("KEEPER_REWARD_PER_STREAM", k.RewardPerStream)
	k.MinProfit = envOrDefault("KEEPER_MIN_PROFIT", k.MinProfit)
	if k.Interval, err = envDuration("KEEPER_INTERVAL", k.Interval); err != nil {
		return err
	}
	if k.ConfirmTimeout, err = envDuration("KEEPER_CONFIRM_TIMEOUT", k.ConfirmTimeout); err != nil {
		return err
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := env(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(env(name))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	v, err := strconv.ParseBool(env(name))
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := env(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := env(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "%s%s", envPrefix, name)
	}
	return d, nil
}
