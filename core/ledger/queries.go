package ledger

import (
	"sort"
	"time"

	"github.com/golang-sql/civil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

// Queries never mutate the ledger.

func dateOf(unix int64) civil.Date {
	return civil.DateOf(time.Unix(unix, 0).UTC())
}

func (l *Ledger) info(s *Stream, now int64) types.StreamInfo {
	current := currentBalance(s, now)
	pending := unrealized(s, now)
	return types.StreamInfo{
		ID:              s.ID,
		Sender:          s.Sender,
		Recipient:       s.Recipient,
		TotalAmount:     amountAttr(&s.TotalAmount),
		FlowRate:        amountAttr(&s.FlowRate),
		StartTime:       s.StartTime,
		StopTime:        s.StopTime,
		StartDate:       dateOf(s.StartTime),
		StopDate:        dateOf(s.StopTime),
		LastUpdateTime:  s.LastUpdateTime,
		RealTimeBalance: amountAttr(&s.RealTimeBalance),
		AmountWithdrawn: amountAttr(&s.AmountWithdrawn),
		CurrentBalance:  amountAttr(&current),
		Unrealized:      amountAttr(&pending),
		IsActive:        s.IsActive,
		StreamType:      s.StreamType,
		Description:     s.Description,
	}
}

func (l *Ledger) GetStreamInfo(id uint64) (types.StreamInfo, error) {
	s, err := l.stream(id)
	if err != nil {
		return types.StreamInfo{}, err
	}
	return l.info(s, l.now()), nil
}

// GetStream returns a copy of the stream record.
func (l *Ledger) GetStream(id uint64) (Stream, error) {
	s, err := l.stream(id)
	if err != nil {
		return Stream{}, err
	}
	return *s, nil
}

// CurrentBalance is the amount the recipient could withdraw now.
func (l *Ledger) CurrentBalance(id uint64) (uint256.Int, error) {
	s, err := l.stream(id)
	if err != nil {
		return uint256.Int{}, err
	}
	return currentBalance(s, l.now()), nil
}

func copyIDs(ids []uint64) []uint64 {
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// GetUserStreams lists the streams the account has sent, oldest first.
func (l *Ledger) GetUserStreams(account util.EthereumAddress) []uint64 {
	return copyIDs(l.sent[account])
}

// GetRecipientStreams lists the streams paying the account, oldest first.
func (l *Ledger) GetRecipientStreams(account util.EthereumAddress) []uint64 {
	return copyIDs(l.received[account])
}

// GetActiveStreamIds returns the active-stream index. Order is unspecified.
func (l *Ledger) GetActiveStreamIds() []uint64 {
	return l.active.snapshot()
}

// ActiveStreamInfos returns every active stream, ordered by id.
func (l *Ledger) ActiveStreamInfos() []types.StreamInfo {
	ids := l.active.snapshot()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	now := l.now()
	out := make([]types.StreamInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.info(l.streams[id], now))
	}
	return out
}

func (l *Ledger) GetProtocolStats() types.ProtocolStats {
	return types.ProtocolStats{
		TotalStreams:        l.totalStreams,
		TotalUpdates:        l.totalUpdates,
		TotalVolume:         amountAttr(&l.totalVolume),
		ActiveStreams:       uint64(l.active.len()),
		LastUpdateTimestamp: l.lastBatchUpdateTime,
	}
}

func (l *Ledger) BalanceOf(account util.EthereumAddress) uint256.Int {
	return l.vault.balanceOf(account)
}

func (l *Ledger) ClaimableOf(account util.EthereumAddress) uint256.Int {
	return l.claimable[account]
}

// TotalSupply sums every account balance, escrow included.
func (l *Ledger) TotalSupply() uint256.Int {
	return l.vault.totalSupply()
}

func (l *Ledger) GetTemplate(id uint64) (types.StreamTemplate, error) {
	t, ok := l.templates[id]
	if !ok {
		return types.StreamTemplate{}, errors.Wrapf(ErrTemplateNotFound, "template %d", id)
	}
	return t.info(), nil
}

func (l *Ledger) GetUserTemplates(owner util.EthereumAddress) []uint64 {
	return copyIDs(l.userTemplates[owner])
}
