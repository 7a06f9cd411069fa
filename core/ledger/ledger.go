package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/logging"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
	"go.uber.org/zap"
)

// Clock supplies the ledger's notion of now, in unix seconds. On a node it is
// the timestamp of the block being applied.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads wall-clock time.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().Unix() })

// Stream is the ledger's record of one payment stream.
type Stream struct {
	ID              uint64
	Sender          util.EthereumAddress
	Recipient       util.EthereumAddress
	TotalAmount     uint256.Int
	FlowRate        uint256.Int
	StartTime       int64
	StopTime        int64
	LastUpdateTime  int64
	RealTimeBalance uint256.Int // realized, net of keeper fees
	AmountWithdrawn uint256.Int
	FeeReserve      uint256.Int // unspent keeper-fee reserve
	FeesPaid        uint256.Int
	IsActive        bool
	StreamType      string
	Description     string
}

// Ledger is the stream ledger: the stream records, the active-stream index,
// per-party lists, the token vault and protocol counters.
//
// A Ledger is a single-threaded state machine, like contract storage on a
// chain: callers serialize access (the chain node holds a lock around every
// call). Value-moving operations are atomic and reject re-entry, including
// re-entry from receive hooks.
type Ledger struct {
	params Params
	clock  Clock
	logger *zap.Logger

	streams      map[uint64]*Stream
	nextStreamID uint64
	active       *activeIndex
	sent         map[util.EthereumAddress][]uint64
	received     map[util.EthereumAddress][]uint64

	vault     *vault
	claimable map[util.EthereumAddress]uint256.Int

	templates      map[uint64]*template
	userTemplates  map[util.EthereumAddress][]uint64
	nextTemplateID uint64

	totalStreams        uint64
	totalVolume         uint256.Int
	totalUpdates        uint64
	lastBatchUpdateTime int64

	// per-operation state
	entered bool
	undo    *undoLog
	pending []types.Event
	opNow   int64

	committed []types.Event
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates an empty ledger.
func New(params Params, options ...Option) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		params:        params,
		clock:         SystemClock,
		logger:        logging.Logger,
		streams:       make(map[uint64]*Stream),
		active:        newActiveIndex(),
		sent:          make(map[util.EthereumAddress][]uint64),
		received:      make(map[util.EthereumAddress][]uint64),
		vault:         newVault(),
		claimable:     make(map[util.EthereumAddress]uint256.Int),
		templates:     make(map[uint64]*template),
		userTemplates: make(map[util.EthereumAddress][]uint64),
	}
	for _, option := range options {
		option(l)
	}
	return l, nil
}

func (l *Ledger) Params() Params {
	return l.params
}

// Mint credits an account outside of any operation. It is meant for genesis
// allocations and test setup.
func (l *Ledger) Mint(to util.EthereumAddress, amount uint256.Int) error {
	if to == EscrowAccount {
		return errors.New("cannot mint to the escrow account")
	}
	return l.vault.mint(to, &amount)
}

// RegisterReceiveHook installs a hook run whenever the account is credited.
func (l *Ledger) RegisterReceiveHook(account util.EthereumAddress, hook ReceiveHook) {
	if hook == nil {
		delete(l.vault.hooks, account)
		return
	}
	l.vault.hooks[account] = hook
}

// TakeEvents returns the events of committed operations since the last call.
func (l *Ledger) TakeEvents() []types.Event {
	out := l.committed
	l.committed = nil
	return out
}

// exec runs one value-moving operation atomically: on error or panic every
// mutation is undone and its events dropped.
func (l *Ledger) exec(op string, fn func() error) (err error) {
	if l.entered {
		return errors.Wrap(ErrReentrantCall, op)
	}
	l.entered = true
	l.undo = &undoLog{}
	l.pending = nil
	l.opNow = l.clock.Now()
	l.saveCounters()

	defer func() {
		if r := recover(); r != nil {
			l.undo.rollback()
			l.reset()
			panic(r)
		}
		if err != nil {
			l.undo.rollback()
			l.logger.Debug("ledger operation reverted", zap.String("op", op), zap.Error(err))
		} else {
			l.committed = append(l.committed, l.pending...)
		}
		l.reset()
	}()

	return fn()
}

func (l *Ledger) reset() {
	l.entered = false
	l.undo = nil
	l.pending = nil
}

func (l *Ledger) now() int64 {
	if l.entered {
		return l.opNow
	}
	return l.clock.Now()
}

func (l *Ledger) saveCounters() {
	totalStreams, totalVolume := l.totalStreams, l.totalVolume
	totalUpdates, lastBatch := l.totalUpdates, l.lastBatchUpdateTime
	nextStream, nextTemplate := l.nextStreamID, l.nextTemplateID
	l.undo.push(func() {
		l.totalStreams, l.totalVolume = totalStreams, totalVolume
		l.totalUpdates, l.lastBatchUpdateTime = totalUpdates, lastBatch
		l.nextStreamID, l.nextTemplateID = nextStream, nextTemplate
	})
}

// touch snapshots a stream before it is mutated.
func (l *Ledger) touch(s *Stream) {
	prev := *s
	l.undo.push(func() { *s = prev })
}

func (l *Ledger) activate(id uint64) {
	if l.active.add(id) {
		l.undo.push(func() { l.active.remove(id) })
	}
}

func (l *Ledger) deactivate(s *Stream) {
	l.touch(s)
	s.IsActive = false
	if l.active.remove(s.ID) {
		id := s.ID
		l.undo.push(func() { l.active.add(id) })
	}
}

func (l *Ledger) appendID(m map[util.EthereumAddress][]uint64, a util.EthereumAddress, id uint64) {
	prev, existed := m[a]
	l.undo.push(func() {
		if existed {
			m[a] = prev
		} else {
			delete(m, a)
		}
	})
	m[a] = append(prev, id)
}

func (l *Ledger) setClaimable(a util.EthereumAddress, v uint256.Int) {
	prev, existed := l.claimable[a]
	l.undo.push(func() {
		if existed {
			l.claimable[a] = prev
		} else {
			delete(l.claimable, a)
		}
	})
	if v.IsZero() {
		delete(l.claimable, a)
		return
	}
	l.claimable[a] = v
}

func (l *Ledger) addClaimable(a util.EthereumAddress, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	cur := l.claimable[a]
	l.setClaimable(a, *new(uint256.Int).Add(&cur, amount))
}

func (l *Ledger) pay(to util.EthereumAddress, amount *uint256.Int) error {
	return l.vault.transfer(l.undo, EscrowAccount, to, amount)
}

func (l *Ledger) emit(kind types.EventKind, streamID uint64, attrs map[string]string) {
	l.pending = append(l.pending, types.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		StreamID:   streamID,
		Time:       l.now(),
		Attributes: attrs,
	})
}

func amountAttr(v *uint256.Int) string {
	return util.FormatAmount(v)
}

func idAttr(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (l *Ledger) stream(id uint64) (*Stream, error) {
	s, ok := l.streams[id]
	if !ok {
		return nil, errors.Wrap(ErrStreamNotFound, fmt.Sprintf("stream %d", id))
	}
	return s, nil
}
