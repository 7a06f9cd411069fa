package ledger

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

// ═══════════════════════════════════════════════════════════════
// CREATION
// ═══════════════════════════════════════════════════════════════

// StreamRequest describes a stream to open.
type StreamRequest struct {
	Recipient   util.EthereumAddress
	TotalAmount uint256.Int
	Duration    int64
	StreamType  string
	Description string
}

// checkStream validates a request and returns the flow rate and the fee
// reserve that creating it would escrow.
func (l *Ledger) checkStream(sender util.EthereumAddress, req *StreamRequest) (flowRate, reserve uint256.Int, err error) {
	if req.TotalAmount.IsZero() {
		return flowRate, reserve, errors.WithStack(ErrZeroAmount)
	}
	if req.Recipient.IsZero() || req.Recipient == EscrowAccount {
		return flowRate, reserve, errors.WithStack(ErrInvalidRecipient)
	}
	if req.Recipient == sender {
		return flowRate, reserve, errors.WithStack(ErrSelfStream)
	}
	if req.Duration <= 0 {
		return flowRate, reserve, errors.WithStack(ErrInvalidDuration)
	}
	if req.Duration > l.params.MaxDuration {
		return flowRate, reserve, errors.Wrapf(ErrDurationTooLong, "%d > %d seconds", req.Duration, l.params.MaxDuration)
	}
	duration := uint256.NewInt(uint64(req.Duration))
	if req.TotalAmount.Lt(duration) {
		return flowRate, reserve, errors.Wrapf(ErrAmountBelowDuration, "amount %s, duration %d",
			amountAttr(&req.TotalAmount), req.Duration)
	}

	scaled, overflow := new(uint256.Int).MulOverflow(&req.TotalAmount, uint256.NewInt(l.params.FeeBps))
	if overflow {
		return flowRate, reserve, errors.WithStack(ErrAmountOverflow)
	}
	reserve = *scaled.Div(scaled, uint256.NewInt(bpsDenominator))
	if _, overflow := new(uint256.Int).AddOverflow(&req.TotalAmount, &reserve); overflow {
		return flowRate, reserve, errors.WithStack(ErrAmountOverflow)
	}
	flowRate = *new(uint256.Int).Div(&req.TotalAmount, duration)
	return flowRate, reserve, nil
}

// openStream escrows and records a stream. Must run inside exec.
func (l *Ledger) openStream(sender util.EthereumAddress, req *StreamRequest) (*Stream, error) {
	flowRate, reserve, err := l.checkStream(sender, req)
	if err != nil {
		return nil, err
	}
	escrow := new(uint256.Int).Add(&req.TotalAmount, &reserve)
	if err := l.vault.transfer(l.undo, sender, EscrowAccount, escrow); err != nil {
		return nil, errors.Wrap(err, "escrowing stream funds")
	}

	now := l.now()
	l.nextStreamID++
	s := &Stream{
		ID:             l.nextStreamID,
		Sender:         sender,
		Recipient:      req.Recipient,
		TotalAmount:    req.TotalAmount,
		FlowRate:       flowRate,
		StartTime:      now,
		StopTime:       now + req.Duration,
		LastUpdateTime: now,
		FeeReserve:     reserve,
		IsActive:       true,
		StreamType:     req.StreamType,
		Description:    req.Description,
	}
	id := s.ID
	l.streams[id] = s
	l.undo.push(func() { delete(l.streams, id) })
	l.activate(id)
	l.appendID(l.sent, sender, id)
	l.appendID(l.received, req.Recipient, id)

	l.totalStreams++
	l.totalVolume.Add(&l.totalVolume, &req.TotalAmount)

	l.emit(types.EventStreamCreated, id, map[string]string{
		"sender":       sender.Address(),
		"recipient":    req.Recipient.Address(),
		"total_amount": amountAttr(&req.TotalAmount),
		"flow_rate":    amountAttr(&flowRate),
		"fee_reserve":  amountAttr(&reserve),
		"start_time":   strconv.FormatInt(s.StartTime, 10),
		"stop_time":    strconv.FormatInt(s.StopTime, 10),
		"stream_type":  req.StreamType,
	})
	return s, nil
}

// CreateStream escrows req.TotalAmount plus the stream's keeper-fee reserve
// from sender and starts streaming to the recipient at
// TotalAmount/Duration per second.
func (l *Ledger) CreateStream(sender util.EthereumAddress, req StreamRequest) (uint64, error) {
	var id uint64
	err := l.exec("createStream", func() error {
		s, err := l.openStream(sender, &req)
		if err != nil {
			return err
		}
		id = s.ID
		return nil
	})
	return id, err
}

// GroupStreamRequest splits TotalAmount evenly across Recipients.
type GroupStreamRequest struct {
	Recipients  []util.EthereumAddress
	TotalAmount uint256.Int
	Duration    int64
	StreamType  string
	Description string
}

// CreateGroupStream opens one stream per recipient, all or none.
func (l *Ledger) CreateGroupStream(sender util.EthereumAddress, req GroupStreamRequest) ([]uint64, error) {
	n := len(req.Recipients)
	if n == 0 || n > l.params.MaxGroupRecipients {
		return nil, errors.Wrapf(ErrInvalidGroupSize, "%d recipients, allowed 1..%d", n, l.params.MaxGroupRecipients)
	}
	if req.TotalAmount.IsZero() {
		return nil, errors.WithStack(ErrZeroAmount)
	}
	count := uint256.NewInt(uint64(n))
	share, rem := new(uint256.Int), new(uint256.Int)
	share.DivMod(&req.TotalAmount, count, rem)
	if !rem.IsZero() {
		return nil, errors.Wrapf(ErrUnevenGroupSplit, "%s across %d recipients", amountAttr(&req.TotalAmount), n)
	}
	if req.Duration > 0 && share.Lt(uint256.NewInt(uint64(req.Duration))) {
		return nil, errors.Wrapf(ErrAmountBelowDuration, "share %s, duration %d", amountAttr(share), req.Duration)
	}

	var ids []uint64
	err := l.exec("createGroupStream", func() error {
		for _, recipient := range req.Recipients {
			s, err := l.openStream(sender, &StreamRequest{
				Recipient:   recipient,
				TotalAmount: *share,
				Duration:    req.Duration,
				StreamType:  req.StreamType,
				Description: req.Description,
			})
			if err != nil {
				return errors.Wrapf(err, "recipient %s", recipient.Address())
			}
			ids = append(ids, s.ID)
		}
		l.emit(types.EventGroupStreamCreated, ids[0], map[string]string{
			"sender":       sender.Address(),
			"recipients":   strconv.Itoa(n),
			"streams_to":   strings.Join(util.EthereumAddressesToStrings(req.Recipients), ","),
			"total_amount": amountAttr(&req.TotalAmount),
			"share":        amountAttr(share),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ═══════════════════════════════════════════════════════════════
// WITHDRAW, CANCEL, CLAIM
// ═══════════════════════════════════════════════════════════════

func (l *Ledger) activeStream(id uint64) (*Stream, error) {
	s, err := l.stream(id)
	if err != nil {
		return nil, err
	}
	if !s.IsActive {
		return nil, errors.Wrapf(ErrStreamInactive, "stream %d", id)
	}
	return s, nil
}

// Withdraw realizes the stream up to now and pays the recipient everything
// realized but not yet withdrawn. It fails with ErrNoFundsAvailable when that
// is zero. If the stream completes in the process, the sender's remainder is
// credited to its claimable balance.
func (l *Ledger) Withdraw(caller util.EthereumAddress, streamID uint64) (uint256.Int, error) {
	var amount uint256.Int
	err := l.exec("withdraw", func() error {
		s, err := l.activeStream(streamID)
		if err != nil {
			return err
		}
		if caller != s.Recipient {
			return errors.Wrapf(ErrUnauthorized, "only the recipient of stream %d can withdraw", streamID)
		}
		res, err := l.realize(s, caller)
		if err != nil {
			return err
		}
		amount = *new(uint256.Int).Sub(&s.RealTimeBalance, &s.AmountWithdrawn)
		if amount.IsZero() {
			return errors.Wrapf(ErrNoFundsAvailable, "stream %d", streamID)
		}
		l.touch(s)
		s.AmountWithdrawn = s.RealTimeBalance
		if err := l.pay(s.Recipient, &amount); err != nil {
			return errors.Wrapf(err, "paying recipient of stream %d", streamID)
		}
		l.emit(types.EventWithdrawn, streamID, map[string]string{
			"recipient":        s.Recipient.Address(),
			"amount":           amountAttr(&amount),
			"amount_withdrawn": amountAttr(&s.AmountWithdrawn),
		})
		if res.completed {
			if _, err := l.closeOut(s, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uint256.Int{}, err
	}
	return amount, nil
}

// CancelResult is the split of a cancelled stream.
type CancelResult struct {
	RecipientBalance uint256.Int
	SenderRefund     uint256.Int
	ReserveRefund    uint256.Int
}

// Cancel ends a stream at the request of either party: it realizes up to
// now, pays the recipient the unwithdrawn realized balance and refunds the
// sender the unstreamed principal and unused fee reserve.
func (l *Ledger) Cancel(caller util.EthereumAddress, streamID uint64) (CancelResult, error) {
	var out CancelResult
	err := l.exec("cancel", func() error {
		s, err := l.activeStream(streamID)
		if err != nil {
			return err
		}
		if caller != s.Sender && caller != s.Recipient {
			return errors.Wrapf(ErrUnauthorized, "only the sender or recipient of stream %d can cancel", streamID)
		}
		if _, err := l.realize(s, caller); err != nil {
			return err
		}
		if s.IsActive {
			l.deactivate(s)
		}
		res, err := l.closeOut(s, true)
		if err != nil {
			return err
		}
		out = CancelResult{
			RecipientBalance: res.recipientBalance,
			SenderRefund:     res.senderRefund,
			ReserveRefund:    res.reserveRefund,
		}
		l.emit(types.EventCancelled, streamID, map[string]string{
			"cancelled_by":      caller.Address(),
			"recipient_balance": amountAttr(&res.recipientBalance),
			"sender_refund":     amountAttr(&res.senderRefund),
			"reserve_refund":    amountAttr(&res.reserveRefund),
		})
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	return out, nil
}

// Claim pays out the caller's claimable balance, accumulated from streams
// that completed through settlement.
func (l *Ledger) Claim(caller util.EthereumAddress) (uint256.Int, error) {
	var amount uint256.Int
	err := l.exec("claim", func() error {
		amount = l.claimable[caller]
		if amount.IsZero() {
			return errors.Wrapf(ErrNoFundsAvailable, "nothing claimable for %s", caller.Address())
		}
		l.setClaimable(caller, uint256.Int{})
		if err := l.pay(caller, &amount); err != nil {
			return err
		}
		l.emit(types.EventClaimed, 0, map[string]string{
			"account": caller.Address(),
			"amount":  amountAttr(&amount),
		})
		return nil
	})
	if err != nil {
		return uint256.Int{}, err
	}
	return amount, nil
}
