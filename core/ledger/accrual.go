package ledger

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// accruedSince is flowRate * (min(now, stopTime) - lastUpdateTime), or zero
// when nothing has accrued.
func accruedSince(s *Stream, now int64) uint256.Int {
	effectiveNow := minInt64(now, s.StopTime)
	if effectiveNow <= s.LastUpdateTime {
		return uint256.Int{}
	}
	elapsed := uint256.NewInt(uint64(effectiveNow - s.LastUpdateTime))
	return *new(uint256.Int).Mul(&s.FlowRate, elapsed)
}

// keeperFee is floor(amount * feeBps / 10000).
func (l *Ledger) keeperFee(amount *uint256.Int) uint256.Int {
	fee := new(uint256.Int).Mul(amount, uint256.NewInt(l.params.FeeBps))
	return *fee.Div(fee, uint256.NewInt(bpsDenominator))
}

// currentBalance is what the recipient could withdraw at now, counting
// accrual that has not been realized yet. Inactive streams report zero.
func currentBalance(s *Stream, now int64) uint256.Int {
	if !s.IsActive {
		return uint256.Int{}
	}
	additional := accruedSince(s, now)
	total := new(uint256.Int).Add(&s.RealTimeBalance, &additional)
	if total.Lt(&s.AmountWithdrawn) {
		return uint256.Int{}
	}
	return *total.Sub(total, &s.AmountWithdrawn)
}

// unrealized is the accrual not yet booked into RealTimeBalance. Zero for
// inactive streams.
func unrealized(s *Stream, now int64) uint256.Int {
	if !s.IsActive {
		return uint256.Int{}
	}
	return accruedSince(s, now)
}

type realizeResult struct {
	accrued   uint256.Int
	fee       uint256.Int
	settled   bool
	completed bool
}

// realize books accrual up to now into the stream's RealTimeBalance and pays
// the keeper fee out of the newly accrued slice to settler. It is a no-op on
// inactive streams and when no time has passed since the last update. A stream
// reaching its stop time is deactivated here; closing out its remaining
// balances is left to the caller.
func (l *Ledger) realize(s *Stream, settler util.EthereumAddress) (realizeResult, error) {
	var res realizeResult
	now := l.now()
	if !s.IsActive || now <= s.LastUpdateTime {
		return res, nil
	}

	newAmount := accruedSince(s, now)
	fee := l.keeperFee(&newAmount)

	l.touch(s)
	if !fee.IsZero() && newAmount.Gt(&fee) {
		if s.FeeReserve.Lt(&fee) {
			return res, errors.Wrapf(ErrFeeReserveExhausted, "stream %d", s.ID)
		}
		s.RealTimeBalance.Add(&s.RealTimeBalance, new(uint256.Int).Sub(&newAmount, &fee))
		s.FeeReserve.Sub(&s.FeeReserve, &fee)
		s.FeesPaid.Add(&s.FeesPaid, &fee)
		if err := l.pay(settler, &fee); err != nil {
			return res, errors.Wrapf(err, "paying keeper fee of stream %d", s.ID)
		}
		res.fee = fee
	} else {
		s.RealTimeBalance.Add(&s.RealTimeBalance, &newAmount)
	}
	s.LastUpdateTime = now
	res.accrued = newAmount
	res.settled = true

	l.emit(types.EventStreamUpdated, s.ID, map[string]string{
		"accrued":           amountAttr(&newAmount),
		"keeper_fee":        amountAttr(&res.fee),
		"settler":           settler.Address(),
		"real_time_balance": amountAttr(&s.RealTimeBalance),
	})

	if now >= s.StopTime {
		l.deactivate(s)
		res.completed = true
		l.emit(types.EventStreamCompleted, s.ID, map[string]string{
			"real_time_balance": amountAttr(&s.RealTimeBalance),
			"fees_paid":         amountAttr(&s.FeesPaid),
		})
	}
	return res, nil
}

type closeOutResult struct {
	recipientBalance uint256.Int
	senderRefund     uint256.Int
	reserveRefund    uint256.Int
}

// closeOut distributes what remains of an ended stream: the unwithdrawn
// realized balance to the recipient, the unstreamed principal and the unused
// fee reserve to the sender. With push the amounts are transferred, otherwise
// they are credited to the parties' claimable balances.
func (l *Ledger) closeOut(s *Stream, push bool) (closeOutResult, error) {
	var res closeOutResult
	l.touch(s)

	res.recipientBalance = *new(uint256.Int).Sub(&s.RealTimeBalance, &s.AmountWithdrawn)
	res.senderRefund = *new(uint256.Int).Sub(&s.TotalAmount, &s.RealTimeBalance)
	res.reserveRefund = s.FeeReserve

	s.AmountWithdrawn = s.RealTimeBalance
	s.FeeReserve = uint256.Int{}

	senderTotal := new(uint256.Int).Add(&res.senderRefund, &res.reserveRefund)
	if !push {
		l.addClaimable(s.Recipient, &res.recipientBalance)
		l.addClaimable(s.Sender, senderTotal)
		return res, nil
	}
	if err := l.pay(s.Recipient, &res.recipientBalance); err != nil {
		return res, errors.Wrapf(err, "paying recipient of stream %d", s.ID)
	}
	if err := l.pay(s.Sender, senderTotal); err != nil {
		return res, errors.Wrapf(err, "refunding sender of stream %d", s.ID)
	}
	return res, nil
}
