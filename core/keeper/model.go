package keeper

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

var decimalCtx = apd.BaseContext.WithPrecision(34)

const bpsDenominator = 10_000

// Estimate is the profitability snapshot a cycle decides on. Amounts are in
// token units.
type Estimate struct {
	ActiveCount int
	Batches     int
	FeePrice    *apd.Decimal
	Revenue     *apd.Decimal
	Cost        *apd.Decimal
	Profit      *apd.Decimal
	Profitable  bool
}

type profitModel struct {
	rewardModel     RewardModel
	rewardPerStream *apd.Decimal
	feeBps          uint64
	tokenDecimals   int32
	batchGas        uint64
	maxBatchSize    int
	minProfit       *apd.Decimal
}

func batchesNeeded(count, size int) int {
	return (count + size - 1) / size
}

func decimalFromUint64(v uint64) *apd.Decimal {
	return apd.NewWithBigInt(new(apd.BigInt).SetUint64(v), 0)
}

// evaluate prices one settlement of streams:
//
//	revenue = activeCount * rewardPerStream (fixed) or the fees due (accrual)
//	cost    = batches * (baseOverheadPerBatch + perStreamCost) * feePrice
func (m *profitModel) evaluate(streams []types.StreamInfo, feePrice *apd.Decimal) (Estimate, error) {
	est := Estimate{
		ActiveCount: len(streams),
		Batches:     batchesNeeded(len(streams), m.maxBatchSize),
		FeePrice:    feePrice,
		Cost:        new(apd.Decimal),
		Profit:      new(apd.Decimal),
	}

	revenue, err := m.revenue(streams)
	if err != nil {
		return Estimate{}, err
	}
	est.Revenue = revenue

	gas := new(apd.Decimal)
	if _, err := decimalCtx.Mul(gas, decimalFromUint64(uint64(est.Batches)), decimalFromUint64(m.batchGas)); err != nil {
		return Estimate{}, errors.WithStack(err)
	}
	if _, err := decimalCtx.Mul(est.Cost, gas, feePrice); err != nil {
		return Estimate{}, errors.WithStack(err)
	}
	if _, err := decimalCtx.Sub(est.Profit, est.Revenue, est.Cost); err != nil {
		return Estimate{}, errors.WithStack(err)
	}
	est.Profitable = est.Profit.Cmp(m.minProfit) > 0
	return est, nil
}

func (m *profitModel) revenue(streams []types.StreamInfo) (*apd.Decimal, error) {
	revenue := new(apd.Decimal)
	switch m.rewardModel {
	case RewardAccrual:
		var total, fee uint256.Int
		for _, s := range streams {
			unrealized, err := util.ParseAmount(s.Unrealized)
			if err != nil {
				return nil, errors.Wrapf(err, "stream %d", s.ID)
			}
			fee.Mul(&unrealized, uint256.NewInt(m.feeBps))
			fee.Div(&fee, uint256.NewInt(bpsDenominator))
			total.Add(&total, &fee)
		}
		revenue.Coeff.SetMathBigInt(total.ToBig())
		revenue.Exponent = -m.tokenDecimals
		return revenue, nil
	default:
		if _, err := decimalCtx.Mul(revenue, decimalFromUint64(uint64(len(streams))), m.rewardPerStream); err != nil {
			return nil, errors.WithStack(err)
		}
		return revenue, nil
	}
}
