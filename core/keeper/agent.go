package keeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/logging"
	"github.com/trufnetwork/streampay/core/spclient"
	"github.com/trufnetwork/streampay/core/types"
	"go.uber.org/zap"
)

// Chain is the ledger surface the keeper works through. *spclient.Client
// implements it.
type Chain interface {
	GetActiveStreams(ctx context.Context) ([]types.StreamInfo, error)
	BatchUpdate(ctx context.Context, input types.BatchUpdateInput) (common.Hash, error)
	WaitForTx(ctx context.Context, txHash common.Hash, interval time.Duration) (*types.TxReceipt, error)
}

var (
	_ Chain          = (*spclient.Client)(nil)
	_ feePriceSource = (*spclient.Client)(nil)
)

// ErrBatchReverted is returned when a settlement batch is included but reverted.
var ErrBatchReverted = errors.New("batch reverted")

// Agent is the keeper decision loop. It settles active streams whenever the
// keeper fees it would earn exceed the cost of the settlement transactions.
type Agent struct {
	cfg     Config
	chain   Chain
	oracle  FeeOracle
	model   *profitModel
	journal Journal
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	busy atomic.Bool
}

type Option func(*Agent)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithJournal replaces the default in-memory journal.
func WithJournal(journal Journal) Option {
	return func(a *Agent) {
		a.journal = journal
	}
}

func WithMetrics(m *Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithClock sets the time source used to detect expired streams and to
// stamp cycle records.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

func NewAgent(cfg Config, chain Chain, oracle FeeOracle, options ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if chain == nil || oracle == nil {
		return nil, errors.New("keeper requires a chain and a fee oracle")
	}
	model, err := cfg.profitModel()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:    cfg,
		chain:  chain,
		oracle: oracle,
		model:  model,
		logger: logging.Logger,
		now:    time.Now,
	}
	for _, option := range options {
		option(a)
	}
	if a.journal == nil {
		a.journal = NewMemoryJournal(cfg.JournalSize)
	}
	return a, nil
}

func (a *Agent) Journal() Journal {
	return a.journal
}

// Run executes a cycle immediately and then once per interval until ctx is
// done. A cycle interrupted by ctx finishes the batch it already submitted.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	a.logger.Info("keeper started",
		zap.Duration("interval", a.cfg.Interval),
		zap.String("reward_model", string(a.cfg.RewardModel)),
		zap.Int("max_batch_size", a.cfg.MaxBatchSize))
	for {
		a.RunCycle(ctx)
		select {
		case <-ctx.Done():
			a.logger.Info("keeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle runs one decision cycle and returns its record. It never overlaps
// another cycle: a call made while one is in flight returns at once with
// ActionSkippedBusy.
func (a *Agent) RunCycle(ctx context.Context) CycleRecord {
	rec := CycleRecord{ID: uuid.NewString(), StartedAt: a.now()}
	if !a.busy.CompareAndSwap(false, true) {
		rec.Action = ActionSkippedBusy
		a.finish(ctx, &rec, nil)
		return rec
	}
	defer a.busy.Store(false)

	est, err := a.cycle(ctx, &rec)
	if err != nil {
		rec.Action = ActionSkippedError
		rec.Error = err.Error()
	}
	a.finish(ctx, &rec, est)
	return rec
}

func (a *Agent) cycle(ctx context.Context, rec *CycleRecord) (*Estimate, error) {
	streams, err := a.chain.GetActiveStreams(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch active streams")
	}
	rec.ActiveCount = len(streams)
	if len(streams) == 0 {
		rec.Action = ActionSkippedEmpty
		return nil, nil
	}

	price, err := a.oracle.FeePrice(ctx)
	if err != nil {
		return nil, err
	}
	est, err := a.model.evaluate(streams, price)
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate profit")
	}
	rec.BatchesPlanned = est.Batches
	if !est.Profitable {
		rec.Action = ActionSkippedUnprofitable
		return &est, nil
	}

	batches := Partition(Prioritize(streams, a.now().Unix()), a.cfg.MaxBatchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("shutting down, remaining batches skipped",
				zap.String("cycle_id", rec.ID),
				zap.Int("skipped", len(batches)-i))
			return &est, errors.Wrapf(err, "%d of %d batches skipped", len(batches)-i, len(batches))
		}
		if err := a.settle(ctx, rec, batch); err != nil {
			a.logger.Error("batch failed, remaining batches skipped",
				zap.String("cycle_id", rec.ID),
				zap.Int("batch", i+1),
				zap.Int("skipped", len(batches)-i-1),
				zap.Error(err))
			return &est, errors.Wrapf(err, "batch %d of %d", i+1, len(batches))
		}
	}
	rec.Action = ActionExecuted
	return &est, nil
}

// settle submits one batch and waits for its receipt. The wait is bounded by
// ConfirmTimeout and is not cut short by cancellation of ctx.
func (a *Agent) settle(ctx context.Context, rec *CycleRecord, ids []uint64) error {
	hash, err := a.chain.BatchUpdate(ctx, types.BatchUpdateInput{StreamIDs: ids})
	if err != nil {
		a.metrics.observeBatch("failed", 0)
		return errors.Wrap(err, "failed to submit batch")
	}
	rec.BatchesSubmitted++

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := a.chain.WaitForTx(waitCtx, hash, a.cfg.ConfirmPollInterval)
	if err != nil {
		a.metrics.observeBatch("unconfirmed", 0)
		return errors.Wrapf(err, "batch %s not confirmed", hash.Hex())
	}
	if !receipt.Succeeded() {
		a.metrics.observeBatch("reverted", 0)
		return errors.Wrapf(ErrBatchReverted, "%s: %s", hash.Hex(), receipt.Error)
	}
	var result types.BatchUpdateResult
	if err := receipt.DecodeResult(&result); err != nil {
		return errors.WithStack(err)
	}
	rec.StreamsSettled += result.Updated
	a.metrics.observeBatch("confirmed", result.Updated)
	a.logger.Debug("batch confirmed",
		zap.String("cycle_id", rec.ID),
		zap.String("hash", hash.Hex()),
		zap.Int64("height", receipt.BlockHeight),
		zap.Int("streams", len(ids)),
		zap.Int("settled", result.Updated))
	return nil
}

func (a *Agent) finish(ctx context.Context, rec *CycleRecord, est *Estimate) {
	rec.Duration = a.now().Sub(rec.StartedAt)
	fields := []zap.Field{
		zap.String("cycle_id", rec.ID),
		zap.String("action", string(rec.Action)),
		zap.Int("active_count", rec.ActiveCount),
	}
	var profit float64
	if est != nil {
		rec.FeePrice = est.FeePrice.Text('f')
		rec.Revenue = est.Revenue.Text('f')
		rec.Cost = est.Cost.Text('f')
		rec.Profit = est.Profit.Text('f')
		profit, _ = est.Profit.Float64()
		fields = append(fields,
			zap.String("fee_price", rec.FeePrice),
			zap.String("revenue", rec.Revenue),
			zap.String("cost", rec.Cost),
			zap.String("profit", rec.Profit))
	}
	if rec.BatchesSubmitted > 0 {
		fields = append(fields,
			zap.Int("batches", rec.BatchesSubmitted),
			zap.Int("streams_settled", rec.StreamsSettled))
	}

	switch rec.Action {
	case ActionSkippedError:
		a.logger.Error("keeper cycle failed", append(fields, zap.String("error", rec.Error))...)
	case ActionSkippedBusy, ActionSkippedEmpty:
		a.logger.Debug("keeper cycle skipped", fields...)
	default:
		a.logger.Info("keeper cycle", fields...)
	}

	a.metrics.observeCycle(*rec, profit, est != nil)
	if err := a.journal.Record(context.WithoutCancel(ctx), *rec); err != nil {
		a.logger.Warn("failed to journal keeper cycle", zap.String("cycle_id", rec.ID), zap.Error(err))
	}
}
