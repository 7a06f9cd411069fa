package chain

import (
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/ledger"
	"github.com/trufnetwork/streampay/core/util"
)

const (
	DefaultChainID        = "streampay-local"
	DefaultBlockInterval  = time.Second
	DefaultBlockGasTarget = 15_000_000
	DefaultBaseFeePrice   = "0.00001"
	DefaultMinFeePrice    = "0.000001"
	DefaultMaxMempool     = 10_000
)

// Config configures a node.
type Config struct {
	ChainID       string        `yaml:"chain_id" validate:"required"`
	BlockInterval time.Duration `yaml:"block_interval" validate:"gt=0"`
	// BlockGasTarget is the gas a block aims for; blocks hold at most twice
	// this much and the fee price moves by up to 1/8 per block toward it.
	BlockGasTarget uint64 `yaml:"block_gas_target" validate:"gt=0"`
	BaseFeePrice   string `yaml:"base_fee_price" validate:"required"`
	MinFeePrice    string `yaml:"min_fee_price" validate:"required"`
	MaxMempool     int    `yaml:"max_mempool" validate:"gt=0"`

	Ledger ledger.Params `yaml:"ledger"`
	// Genesis maps addresses to their initial token balance in base units.
	Genesis map[string]string `yaml:"genesis"`
}

func DefaultConfig() Config {
	return Config{
		ChainID:        DefaultChainID,
		BlockInterval:  DefaultBlockInterval,
		BlockGasTarget: DefaultBlockGasTarget,
		BaseFeePrice:   DefaultBaseFeePrice,
		MinFeePrice:    DefaultMinFeePrice,
		MaxMempool:     DefaultMaxMempool,
		Ledger:         ledger.DefaultParams(),
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid node config")
	}
	if _, err := c.feePrices(); err != nil {
		return err
	}
	if _, err := c.genesis(); err != nil {
		return err
	}
	return c.Ledger.Validate()
}

type feePrices struct {
	base, min *apd.Decimal
}

func (c Config) feePrices() (feePrices, error) {
	base, _, err := apd.NewFromString(c.BaseFeePrice)
	if err != nil {
		return feePrices{}, errors.Wrapf(err, "invalid base_fee_price %q", c.BaseFeePrice)
	}
	min, _, err := apd.NewFromString(c.MinFeePrice)
	if err != nil {
		return feePrices{}, errors.Wrapf(err, "invalid min_fee_price %q", c.MinFeePrice)
	}
	if min.Sign() < 0 || base.Cmp(min) < 0 {
		return feePrices{}, errors.New("fee prices must satisfy 0 <= min_fee_price <= base_fee_price")
	}
	return feePrices{base: base, min: min}, nil
}

func (c Config) genesis() (map[util.EthereumAddress]uint256.Int, error) {
	out := make(map[util.EthereumAddress]uint256.Int, len(c.Genesis))
	for addr, amount := range c.Genesis {
		a, err := util.NewEthereumAddressFromString(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid genesis address %q", addr)
		}
		v, err := util.ParseAmount(amount)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid genesis amount for %s", addr)
		}
		out[a] = v
	}
	return out, nil
}
