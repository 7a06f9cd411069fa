package chain

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
)

const feeChangeDenominator = 8

var decimalCtx = apd.BaseContext.WithPrecision(34)

// nextFeePrice moves price toward demand the way EIP-1559 moves the base fee:
// price * (1 + (gasUsed - target) / target / 8), floored at min.
func nextFeePrice(price *apd.Decimal, gasUsed, target uint64, min *apd.Decimal) (*apd.Decimal, error) {
	used := new(apd.Decimal).SetInt64(int64(gasUsed))
	tgt := new(apd.Decimal).SetInt64(int64(target))

	ratio := new(apd.Decimal)
	if _, err := decimalCtx.Sub(ratio, used, tgt); err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := decimalCtx.Quo(ratio, ratio, tgt); err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := decimalCtx.Quo(ratio, ratio, apd.New(feeChangeDenominator, 0)); err != nil {
		return nil, errors.WithStack(err)
	}

	delta := new(apd.Decimal)
	if _, err := decimalCtx.Mul(delta, price, ratio); err != nil {
		return nil, errors.WithStack(err)
	}
	next := new(apd.Decimal)
	if _, err := decimalCtx.Add(next, price, delta); err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := decimalCtx.Quantize(next, next, -18); err != nil {
		return nil, errors.WithStack(err)
	}
	next.Reduce(next)
	if next.Cmp(min) < 0 {
		return new(apd.Decimal).Set(min), nil
	}
	return next, nil
}
