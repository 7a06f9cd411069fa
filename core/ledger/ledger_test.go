package ledger

import (
	"sort"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

const genesis = int64(1_700_000_000)

type testClock struct {
	now int64
}

func (c *testClock) Now() int64 { return c.now }

func (c *testClock) advance(seconds int64) { c.now += seconds }

var (
	alice  = util.MustAddress("0x1111111111111111111111111111111111111111")
	bob    = util.MustAddress("0x2222222222222222222222222222222222222222")
	carol  = util.MustAddress("0x3333333333333333333333333333333333333333")
	keeper = util.MustAddress("0x4444444444444444444444444444444444444444")
)

func amt(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

func newTestLedger(t *testing.T) (*Ledger, *testClock) {
	t.Helper()
	clock := &testClock{now: genesis}
	l, err := New(DefaultParams(), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, l.Mint(alice, amt(10_000)))
	require.NoError(t, l.Mint(bob, amt(10_000)))
	return l, clock
}

func createStream(t *testing.T, l *Ledger, sender, recipient util.EthereumAddress, total uint64, duration int64) uint64 {
	t.Helper()
	id, err := l.CreateStream(sender, StreamRequest{
		Recipient:   recipient,
		TotalAmount: amt(total),
		Duration:    duration,
		StreamType:  "salary",
	})
	require.NoError(t, err)
	return id
}

func balance(l *Ledger, a util.EthereumAddress) uint64 {
	b := l.BalanceOf(a)
	return b.Uint64()
}

// ═══════════════════════════════════════════════════════════════
// WORKED SCENARIOS
// ═══════════════════════════════════════════════════════════════

func TestStreamLifecycleScenario(t *testing.T) {
	l, clock := newTestLedger(t)
	supply := l.TotalSupply()

	id := createStream(t, l, alice, bob, 3600, 3600)
	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.FlowRate.Uint64())
	assert.Equal(t, genesis+3600, s.StopTime)
	assert.Equal(t, uint64(3), s.FeeReserve.Uint64())
	assert.Equal(t, uint64(10_000-3603), balance(l, alice))

	t.Run("balance accrues without settlement", func(t *testing.T) {
		clock.advance(1800)
		current, err := l.CurrentBalance(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1800), current.Uint64())
	})

	t.Run("settlement pays the keeper fee", func(t *testing.T) {
		updated, err := l.BatchUpdate(keeper, []uint64{id})
		require.NoError(t, err)
		assert.Equal(t, 1, updated)
		assert.Equal(t, uint64(1), balance(l, keeper))

		s, err := l.GetStream(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1799), s.RealTimeBalance.Uint64())
		assert.Equal(t, genesis+1800, s.LastUpdateTime)
	})

	t.Run("withdraw pays realized balance", func(t *testing.T) {
		paid, err := l.Withdraw(bob, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1799), paid.Uint64())
		s, err := l.GetStream(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1799), s.AmountWithdrawn.Uint64())
		assert.Equal(t, uint64(10_000+1799), balance(l, bob))
	})

	t.Run("cancel splits the remainder", func(t *testing.T) {
		clock.advance(200)
		res, err := l.Cancel(alice, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), res.RecipientBalance.Uint64())
		assert.Equal(t, uint64(1601), res.SenderRefund.Uint64())
		assert.Equal(t, uint64(2), res.ReserveRefund.Uint64())

		s, err := l.GetStream(id)
		require.NoError(t, err)
		assert.False(t, s.IsActive)
		assert.Equal(t, uint64(1999), s.AmountWithdrawn.Uint64())
		assert.Empty(t, l.GetActiveStreamIds())

		assert.Equal(t, uint64(10_000+1999), balance(l, bob))
		assert.Equal(t, uint64(8_000), balance(l, alice))
		assert.Equal(t, uint64(0), balance(l, EscrowAccount))
		assert.Equal(t, supply, l.TotalSupply())
	})

	t.Run("inactive stream rejects further calls", func(t *testing.T) {
		_, err := l.Withdraw(bob, id)
		assert.ErrorIs(t, err, ErrStreamInactive)
		_, err = l.Cancel(alice, id)
		assert.ErrorIs(t, err, ErrStreamInactive)
		current, err := l.CurrentBalance(id)
		require.NoError(t, err)
		assert.True(t, current.IsZero())
	})
}

func TestBatchUpdateCompletesExpiredStreams(t *testing.T) {
	l, clock := newTestLedger(t)
	ids := []uint64{
		createStream(t, l, alice, bob, 1000, 100),
		createStream(t, l, alice, carol, 1000, 100),
		createStream(t, l, bob, carol, 1000, 100),
	}
	clock.advance(150)

	updated, err := l.BatchUpdate(keeper, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
	assert.Empty(t, l.GetActiveStreamIds())

	for _, id := range ids {
		s, err := l.GetStream(id)
		require.NoError(t, err)
		assert.False(t, s.IsActive)
		assert.Equal(t, genesis+150, s.LastUpdateTime)
		assert.Equal(t, uint64(999), s.RealTimeBalance.Uint64())
	}

	// each stream paid a fee of 1 and left 999 for the recipient, 1 of
	// principal and 0 of reserve for the sender
	assert.Equal(t, uint64(3), balance(l, keeper))
	claimable := l.ClaimableOf(carol)
	assert.Equal(t, uint64(2*999), claimable.Uint64())
	claimable = l.ClaimableOf(alice)
	assert.Equal(t, uint64(2), claimable.Uint64())

	paid, err := l.Claim(carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(1998), paid.Uint64())
	assert.Equal(t, uint64(1998), balance(l, carol))

	_, err = l.Claim(carol)
	assert.ErrorIs(t, err, ErrNoFundsAvailable)
	assert.True(t, IsBenign(err))

	stats := l.GetProtocolStats()
	assert.Equal(t, uint64(3), stats.TotalStreams)
	assert.Equal(t, uint64(3), stats.TotalUpdates)
	assert.Equal(t, "3000", stats.TotalVolume)
	assert.Equal(t, uint64(0), stats.ActiveStreams)
	assert.Equal(t, genesis+150, stats.LastUpdateTimestamp)
}

func TestWithdrawAfterStopTime(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(4000)

	paid, err := l.Withdraw(bob, id)
	require.NoError(t, err)
	// fee of 3 is paid to bob as settler
	assert.Equal(t, uint64(3597), paid.Uint64())
	assert.Equal(t, uint64(10_000+3600), balance(l, bob))

	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.False(t, s.IsActive)
	claimable := l.ClaimableOf(alice)
	assert.Equal(t, uint64(3), claimable.Uint64())
	assert.Equal(t, uint64(0), balance(l, EscrowAccount)-claimable.Uint64())
}

// ═══════════════════════════════════════════════════════════════
// PROPERTIES
// ═══════════════════════════════════════════════════════════════

func TestCurrentBalanceIsMonotonic(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 5000, 500)

	var prev uint64
	for step := 0; step < 60; step++ {
		clock.advance(10)
		if step%7 == 3 {
			_, err := l.BatchUpdate(keeper, []uint64{id})
			require.NoError(t, err)
		}
		current, err := l.CurrentBalance(id)
		require.NoError(t, err)
		if clock.now < genesis+500 {
			assert.GreaterOrEqual(t, current.Uint64(), prev, "step %d", step)
		}
		prev = current.Uint64()
	}
}

func TestConservationUntilCancel(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 7777, 1000)

	check := func() {
		s, err := l.GetStream(id)
		require.NoError(t, err)
		recipientBalance := new(uint256.Int).Sub(&s.RealTimeBalance, &s.AmountWithdrawn)
		senderRefund := new(uint256.Int).Sub(&s.TotalAmount, &s.RealTimeBalance)
		sum := new(uint256.Int).Add(&s.AmountWithdrawn, recipientBalance)
		sum.Add(sum, senderRefund)
		assert.Equal(t, s.TotalAmount, *sum)

		limit := new(uint256.Int).Mul(&s.FlowRate, uint256.NewInt(uint64(minInt64(clock.now, s.StopTime)-s.StartTime)))
		assert.False(t, s.RealTimeBalance.Gt(limit))
		assert.False(t, s.AmountWithdrawn.Gt(&s.RealTimeBalance))
	}

	supply := l.TotalSupply()
	for i := 0; i < 9; i++ {
		clock.advance(97)
		switch i % 3 {
		case 0:
			_, err := l.BatchUpdate(keeper, []uint64{id})
			require.NoError(t, err)
		case 1:
			_, err := l.Withdraw(bob, id)
			require.NoError(t, err)
		}
		check()
		assert.Equal(t, supply, l.TotalSupply())
	}
}

func TestKeeperFeesAreBounded(t *testing.T) {
	l, clock := newTestLedger(t)
	require.NoError(t, l.Mint(alice, amt(10_000_000)))
	id := createStream(t, l, alice, bob, 10_000_000, 100)

	for i := 0; i < 100; i++ {
		clock.advance(1)
		_, err := l.BatchUpdate(keeper, []uint64{id})
		require.NoError(t, err)
	}
	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.False(t, s.IsActive)
	assert.Equal(t, uint64(10_000), balance(l, keeper))
	assert.Equal(t, uint64(10_000), s.FeesPaid.Uint64())
	assert.LessOrEqual(t, s.FeesPaid.Uint64(), uint64(10_000_000*DefaultFeeBps/bpsDenominator))
}

func TestRealizeIsIdempotentWithinASecond(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(1800)

	updated, err := l.BatchUpdate(keeper, []uint64{id, id, id})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, uint64(1), balance(l, keeper))

	before, err := l.GetStream(id)
	require.NoError(t, err)
	err = l.exec("realize", func() error {
		res, err := l.realize(l.streams[id], keeper)
		assert.False(t, res.settled)
		return err
	})
	require.NoError(t, err)
	after, err := l.GetStream(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1), balance(l, keeper))
}

func TestActiveIndexMatchesStreams(t *testing.T) {
	l, clock := newTestLedger(t)
	require.NoError(t, l.Mint(alice, amt(100_000)))
	var ids []uint64
	for i := 0; i < 10; i++ {
		ids = append(ids, createStream(t, l, alice, bob, 1000, int64(100+i*50)))
	}
	_, err := l.Cancel(alice, ids[3])
	require.NoError(t, err)
	_, err = l.Cancel(bob, ids[0])
	require.NoError(t, err)
	clock.advance(260)
	_, err = l.BatchUpdate(keeper, ids)
	require.NoError(t, err)

	active := l.GetActiveStreamIds()
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	var want []uint64
	for _, id := range ids {
		s, err := l.GetStream(id)
		require.NoError(t, err)
		if s.IsActive {
			want = append(want, id)
		}
	}
	assert.Equal(t, want, active)
	assert.Equal(t, []uint64{ids[4], ids[5], ids[6], ids[7], ids[8], ids[9]}, active)
}

// ═══════════════════════════════════════════════════════════════
// REJECTIONS
// ═══════════════════════════════════════════════════════════════

func TestBatchUpdateRejections(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(10)

	tooMany := make([]uint64, DefaultMaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = id
	}
	_, err := l.BatchUpdate(keeper, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, ClassValidation, Classify(err))

	_, err = l.BatchUpdate(keeper, tooMany)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Equal(t, ClassValidation, Classify(err))
	assert.Equal(t, uint64(0), l.GetProtocolStats().TotalUpdates)
	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.Equal(t, genesis, s.LastUpdateTime)

	_, err = l.BatchUpdate(keeper, []uint64{id})
	require.NoError(t, err)
	_, err = l.BatchUpdate(keeper, []uint64{id})
	assert.ErrorIs(t, err, ErrUpdateTooFrequent)

	clock.advance(1)
	updated, err := l.BatchUpdate(keeper, []uint64{id, 999})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func TestCreateStreamValidation(t *testing.T) {
	tests := []struct {
		name     string
		sender   util.EthereumAddress
		req      StreamRequest
		expected error
	}{
		{"zero amount", alice, StreamRequest{Recipient: bob, Duration: 10}, ErrZeroAmount},
		{"zero recipient", alice, StreamRequest{TotalAmount: amt(100), Duration: 10}, ErrInvalidRecipient},
		{"escrow recipient", alice, StreamRequest{Recipient: EscrowAccount, TotalAmount: amt(100), Duration: 10}, ErrInvalidRecipient},
		{"self stream", alice, StreamRequest{Recipient: alice, TotalAmount: amt(100), Duration: 10}, ErrSelfStream},
		{"zero duration", alice, StreamRequest{Recipient: bob, TotalAmount: amt(100)}, ErrInvalidDuration},
		{"duration too long", alice, StreamRequest{Recipient: bob, TotalAmount: amt(100_000_000), Duration: DefaultMaxDuration + 1}, ErrDurationTooLong},
		{"amount below duration", alice, StreamRequest{Recipient: bob, TotalAmount: amt(99), Duration: 100}, ErrAmountBelowDuration},
		{"insufficient balance", alice, StreamRequest{Recipient: bob, TotalAmount: amt(10_000), Duration: 100}, ErrInsufficientBalance},
		{"overflow", alice, StreamRequest{Recipient: bob, TotalAmount: *new(uint256.Int).SetAllOne(), Duration: 100}, ErrAmountOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(t)
			_, err := l.CreateStream(tt.sender, tt.req)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, uint64(0), l.GetProtocolStats().TotalStreams)
			assert.Equal(t, uint64(10_000), balance(l, alice))
			assert.Empty(t, l.TakeEvents())
		})
	}
}

func TestWithdrawAndCancelAuthorization(t *testing.T) {
	l, _ := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)

	_, err := l.Withdraw(alice, id)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = l.Cancel(carol, id)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, ClassStateConflict, Classify(err))

	_, err = l.Withdraw(bob, id)
	assert.ErrorIs(t, err, ErrNoFundsAvailable)
	assert.Equal(t, ClassBenign, Classify(err))

	_, err = l.Withdraw(bob, 42)
	assert.ErrorIs(t, err, ErrStreamNotFound)

	res, err := l.Cancel(bob, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3600), res.SenderRefund.Uint64())
	assert.Equal(t, uint64(10_000), balance(l, alice))
}

// ═══════════════════════════════════════════════════════════════
// GROUP STREAMS
// ═══════════════════════════════════════════════════════════════

func TestCreateGroupStream(t *testing.T) {
	t.Run("splits evenly", func(t *testing.T) {
		l, _ := newTestLedger(t)
		ids, err := l.CreateGroupStream(alice, GroupStreamRequest{
			Recipients:  []util.EthereumAddress{bob, carol},
			TotalAmount: amt(2000),
			Duration:    100,
		})
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, ids)
		assert.Equal(t, []uint64{1, 2}, l.GetUserStreams(alice))
		assert.Equal(t, []uint64{1}, l.GetRecipientStreams(bob))
		assert.Equal(t, []uint64{2}, l.GetRecipientStreams(carol))

		events := l.TakeEvents()
		var kinds []types.EventKind
		for _, ev := range events {
			kinds = append(kinds, ev.Kind)
		}
		assert.Equal(t, []types.EventKind{types.EventStreamCreated, types.EventStreamCreated, types.EventGroupStreamCreated}, kinds)
		group := events[2].Attributes
		assert.Equal(t, "2", group["recipients"])
		assert.Equal(t, bob.Address()+","+carol.Address(), group["streams_to"])
		assert.Equal(t, "1000", group["share"])
	})

	tests := []struct {
		name       string
		recipients []util.EthereumAddress
		total      uint64
		expected   error
	}{
		{"uneven split", []util.EthereumAddress{bob, carol, keeper}, 1000, ErrUnevenGroupSplit},
		{"no recipients", nil, 1000, ErrInvalidGroupSize},
		{"share below duration", []util.EthereumAddress{bob, carol}, 100, ErrAmountBelowDuration},
		{"one invalid recipient", []util.EthereumAddress{bob, alice}, 1000, ErrSelfStream},
		{"unaffordable", []util.EthereumAddress{bob, carol}, 20_000, ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(t)
			_, err := l.CreateGroupStream(alice, GroupStreamRequest{
				Recipients:  tt.recipients,
				TotalAmount: amt(tt.total),
				Duration:    100,
			})
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, uint64(0), l.GetProtocolStats().TotalStreams)
			assert.Empty(t, l.GetActiveStreamIds())
			assert.Empty(t, l.GetRecipientStreams(bob))
			assert.Equal(t, uint64(10_000), balance(l, alice))
			assert.Empty(t, l.TakeEvents())

			id := createStream(t, l, alice, bob, 100, 100)
			assert.Equal(t, uint64(1), id)
		})
	}

	t.Run("too many recipients", func(t *testing.T) {
		l, _ := newTestLedger(t)
		recipients := make([]util.EthereumAddress, DefaultMaxGroupRecipients+1)
		for i := range recipients {
			recipients[i] = bob
		}
		_, err := l.CreateGroupStream(alice, GroupStreamRequest{Recipients: recipients, TotalAmount: amt(5100), Duration: 1})
		assert.ErrorIs(t, err, ErrInvalidGroupSize)
	})
}

// ═══════════════════════════════════════════════════════════════
// TRANSFERS AND RE-ENTRY
// ═══════════════════════════════════════════════════════════════

func TestFailedFeeTransferRevertsBatch(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(1800)
	l.TakeEvents()

	l.RegisterReceiveHook(keeper, func(from util.EthereumAddress, amount *uint256.Int) error {
		return errors.New("keeper rejects payments")
	})
	_, err := l.BatchUpdate(keeper, []uint64{id})
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, ClassTransfer, Classify(err))

	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.Equal(t, genesis, s.LastUpdateTime)
	assert.True(t, s.RealTimeBalance.IsZero())
	assert.Equal(t, uint64(3), s.FeeReserve.Uint64())
	assert.Equal(t, uint64(0), balance(l, keeper))
	stats := l.GetProtocolStats()
	assert.Equal(t, uint64(0), stats.TotalUpdates)
	assert.Equal(t, int64(0), stats.LastUpdateTimestamp)
	assert.Empty(t, l.TakeEvents())

	l.RegisterReceiveHook(keeper, nil)
	updated, err := l.BatchUpdate(keeper, []uint64{id})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func TestReentrantCallsAreRejected(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(1800)

	var reentryErr error
	l.RegisterReceiveHook(bob, func(from util.EthereumAddress, amount *uint256.Int) error {
		_, reentryErr = l.Withdraw(bob, id)
		return reentryErr
	})

	_, err := l.Withdraw(bob, id)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, reentryErr, ErrReentrantCall)

	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.True(t, s.AmountWithdrawn.IsZero())
	assert.Equal(t, uint64(10_000), balance(l, bob))

	// the guard is released after the failed call
	l.RegisterReceiveHook(bob, nil)
	paid, err := l.Withdraw(bob, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1799), paid.Uint64())
	assert.Equal(t, uint64(10_000+1800), balance(l, bob))
}

func TestPanicInOperationRollsBack(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(100)

	l.RegisterReceiveHook(bob, func(from util.EthereumAddress, amount *uint256.Int) error {
		panic("hook exploded")
	})
	assert.Panics(t, func() { _, _ = l.Withdraw(bob, id) })

	s, err := l.GetStream(id)
	require.NoError(t, err)
	assert.True(t, s.RealTimeBalance.IsZero())
	l.RegisterReceiveHook(bob, nil)
	_, err = l.Withdraw(bob, id)
	require.NoError(t, err)
}

// ═══════════════════════════════════════════════════════════════
// TEMPLATES
// ═══════════════════════════════════════════════════════════════

func TestTemplates(t *testing.T) {
	l, clock := newTestLedger(t)

	tid, err := l.CreateTemplate(alice, TemplateRequest{
		Name:            "monthly",
		AmountPerStream: amt(1000),
		Duration:        100,
		StreamType:      "salary",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000-DefaultTemplateFee), balance(l, alice))
	assert.Equal(t, uint64(DefaultTemplateFee), balance(l, DefaultTreasury))
	assert.Equal(t, []uint64{tid}, l.GetUserTemplates(alice))

	_, err = l.CreateStreamFromTemplate(alice, tid, util.EthereumAddress{})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = l.CreateStreamFromTemplate(bob, tid, carol)
	assert.ErrorIs(t, err, ErrUnauthorized)

	sid, err := l.CreateStreamFromTemplate(alice, tid, carol)
	require.NoError(t, err)
	info, err := l.GetStreamInfo(sid)
	require.NoError(t, err)
	assert.Equal(t, carol, info.Recipient)
	assert.Equal(t, "1000", info.TotalAmount)
	assert.Equal(t, "10", info.FlowRate)
	assert.Equal(t, "salary", info.StreamType)

	clock.advance(10)
	info, err = l.GetStreamInfo(sid)
	require.NoError(t, err)
	assert.Equal(t, "100", info.CurrentBalance)
	assert.Equal(t, "100", info.Unrealized)

	tmpl, err := l.GetTemplate(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tmpl.UsageCount)

	require.NoError(t, l.DeleteTemplate(alice, tid))
	_, err = l.CreateStreamFromTemplate(alice, tid, carol)
	assert.ErrorIs(t, err, ErrTemplateInactive)
	assert.ErrorIs(t, l.DeleteTemplate(alice, tid), ErrTemplateInactive)

	_, err = l.CreateTemplate(alice, TemplateRequest{Name: "", AmountPerStream: amt(10), Duration: 1})
	assert.ErrorIs(t, err, ErrInvalidTemplate)
	_, err = l.GetTemplate(99)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestEventsCarryOperationData(t *testing.T) {
	l, clock := newTestLedger(t)
	id := createStream(t, l, alice, bob, 3600, 3600)
	clock.advance(1800)
	_, err := l.BatchUpdate(keeper, []uint64{id})
	require.NoError(t, err)

	events := l.TakeEvents()
	require.Len(t, events, 3)
	assert.Equal(t, types.EventStreamCreated, events[0].Kind)
	assert.Equal(t, "3600", events[0].Attributes["total_amount"])
	assert.Equal(t, types.EventStreamUpdated, events[1].Kind)
	assert.Equal(t, "1", events[1].Attributes["keeper_fee"])
	assert.Equal(t, types.EventBatchUpdatePerformed, events[2].Kind)
	assert.Equal(t, "1", events[2].Attributes["count"])
	assert.Equal(t, "75000", events[2].Attributes["gas"])
	assert.NotEqual(t, events[1].ID, events[2].ID)
	assert.Empty(t, l.TakeEvents())
}

func TestNewRejectsInvalidParams(t *testing.T) {
	params := DefaultParams()
	params.MaxBatchSize = 0
	_, err := New(params)
	assert.Error(t, err)

	params = DefaultParams()
	params.Treasury = EscrowAccount
	_, err = New(params)
	assert.Error(t, err)
}
