package ledger

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/util"
)

const (
	DefaultMaxBatchSize       = 200
	DefaultMinUpdateInterval  = 1
	DefaultFeeBps             = 10
	DefaultMaxDuration        = 365 * 24 * 60 * 60
	DefaultMaxGroupRecipients = 50
	DefaultTemplateFee        = 100

	bpsDenominator = 10_000
)

var (
	// EscrowAccount holds every stream's escrowed principal and fee reserve.
	EscrowAccount = util.MustAddress("0x0000000000000000000000000000000000e5c40e")
	// DefaultTreasury receives template fees unless configured otherwise.
	DefaultTreasury = util.MustAddress("0x000000000000000000000000000000000000fee5")
)

// Params are the protocol constants of one ledger instance.
type Params struct {
	MaxBatchSize       int                  `yaml:"max_batch_size" validate:"gt=0"`
	MinUpdateInterval  int64                `yaml:"min_update_interval" validate:"gte=0"`
	FeeBps             uint64               `yaml:"fee_bps" validate:"lt=10000"`
	MaxDuration        int64                `yaml:"max_duration" validate:"gt=0"`
	MaxGroupRecipients int                  `yaml:"max_group_recipients" validate:"gt=0"`
	TemplateFee        uint64               `yaml:"template_fee"`
	Treasury           util.EthereumAddress `yaml:"treasury"`
}

func DefaultParams() Params {
	return Params{
		MaxBatchSize:       DefaultMaxBatchSize,
		MinUpdateInterval:  DefaultMinUpdateInterval,
		FeeBps:             DefaultFeeBps,
		MaxDuration:        DefaultMaxDuration,
		MaxGroupRecipients: DefaultMaxGroupRecipients,
		TemplateFee:        DefaultTemplateFee,
		Treasury:           DefaultTreasury,
	}
}

func (p Params) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(err, "invalid ledger params")
	}
	if p.Treasury.IsZero() {
		return errors.New("invalid ledger params: treasury is required")
	}
	if p.Treasury == EscrowAccount {
		return errors.New("invalid ledger params: treasury cannot be the escrow account")
	}
	return nil
}
