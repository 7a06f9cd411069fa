package keeper

import (
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// RewardModel selects how a cycle's revenue is estimated.
type RewardModel string

const (
	// RewardFixed estimates activeCount * RewardPerStream.
	RewardFixed RewardModel = "fixed"
	// RewardAccrual estimates the keeper fee actually due on the unrealized
	// accrual of every active stream.
	RewardAccrual RewardModel = "accrual"
)

const (
	DefaultInterval             = 30 * time.Second
	DefaultMaxBatchSize         = 200
	DefaultRewardPerStream      = "0.001"
	DefaultFeeBps               = 10
	DefaultBaseOverheadPerBatch = 50_000
	DefaultPerStreamCost        = 25_000
	DefaultMinProfit            = "0"
	DefaultConfirmTimeout       = 30 * time.Second
	DefaultConfirmPollInterval  = time.Second
	DefaultJournalSize          = 1024
)

type Config struct {
	Interval     time.Duration `yaml:"interval" validate:"gt=0"`
	MaxBatchSize int           `yaml:"max_batch_size" validate:"gt=0"`

	RewardModel     RewardModel `yaml:"reward_model" validate:"oneof=fixed accrual"`
	RewardPerStream string      `yaml:"reward_per_stream"` // token units
	FeeBps          uint64      `yaml:"fee_bps" validate:"lt=10000"`
	TokenDecimals   uint32      `yaml:"token_decimals" validate:"lte=36"`

	// Gas units charged per batch, priced with the oracle's fee price.
	BaseOverheadPerBatch uint64 `yaml:"base_overhead_per_batch"`
	PerStreamCost        uint64 `yaml:"per_stream_cost"`
	// A cycle executes only when estimated profit is strictly greater.
	MinProfit string `yaml:"min_profit"`

	ConfirmTimeout      time.Duration `yaml:"confirm_timeout" validate:"gt=0"`
	ConfirmPollInterval time.Duration `yaml:"confirm_poll_interval" validate:"gt=0"`

	JournalSize int `yaml:"journal_size" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Interval:             DefaultInterval,
		MaxBatchSize:         DefaultMaxBatchSize,
		RewardModel:          RewardFixed,
		RewardPerStream:      DefaultRewardPerStream,
		FeeBps:               DefaultFeeBps,
		BaseOverheadPerBatch: DefaultBaseOverheadPerBatch,
		PerStreamCost:        DefaultPerStreamCost,
		MinProfit:            DefaultMinProfit,
		ConfirmTimeout:       DefaultConfirmTimeout,
		ConfirmPollInterval:  DefaultConfirmPollInterval,
		JournalSize:          DefaultJournalSize,
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid keeper config")
	}
	if _, err := c.profitModel(); err != nil {
		return errors.Wrap(err, "invalid keeper config")
	}
	return nil
}

func (c Config) profitModel() (*profitModel, error) {
	reward, err := parseDecimal("reward_per_stream", c.RewardPerStream)
	if err != nil {
		return nil, err
	}
	minProfit, err := parseDecimal("min_profit", c.MinProfit)
	if err != nil {
		return nil, err
	}
	return &profitModel{
		rewardModel:     c.RewardModel,
		rewardPerStream: reward,
		feeBps:          c.FeeBps,
		tokenDecimals:   int32(c.TokenDecimals),
		batchGas:        c.BaseOverheadPerBatch + c.PerStreamCost,
		maxBatchSize:    c.MaxBatchSize,
		minProfit:       minProfit,
	}, nil
}

func parseDecimal(field, s string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s must be a decimal, got %q", field, s)
	}
	if d.Negative {
		return nil, errors.Errorf("%s cannot be negative", field)
	}
	return d, nil
}
