package keeper

import (
	"context"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
)

// FeeOracle reports the current network fee price in token units per gas unit.
type FeeOracle interface {
	FeePrice(ctx context.Context) (*apd.Decimal, error)
}

// StaticOracle always reports the same price.
type StaticOracle struct {
	price *apd.Decimal
}

func NewStaticOracle(price string) (*StaticOracle, error) {
	d, err := parseDecimal("fee_price", price)
	if err != nil {
		return nil, err
	}
	return &StaticOracle{price: d}, nil
}

func (o *StaticOracle) FeePrice(context.Context) (*apd.Decimal, error) {
	return new(apd.Decimal).Set(o.price), nil
}

type feePriceSource interface {
	GetFeePrice(ctx context.Context) (*types.FeePrice, error)
}

// NodeOracle reads the fee price a node publishes.
type NodeOracle struct {
	source feePriceSource
}

func NewNodeOracle(source feePriceSource) *NodeOracle {
	return &NodeOracle{source: source}
}

func (o *NodeOracle) FeePrice(ctx context.Context) (*apd.Decimal, error) {
	price, err := o.source.GetFeePrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch fee price")
	}
	return parseDecimal("fee_price", price.Price)
}
