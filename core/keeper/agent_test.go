package keeper

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trufnetwork/streampay/core/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testNow = 1_700_000_000

// mockChain implements Chain for testing
type mockChain struct {
	mu              sync.Mutex
	streams         []types.StreamInfo
	activeErr       error
	batchUpdateFunc func(ctx context.Context, input types.BatchUpdateInput) error
	waitForTxFunc   func(ctx context.Context, txHash common.Hash) (*types.TxReceipt, error)
	batches         [][]uint64
}

func (m *mockChain) GetActiveStreams(context.Context) ([]types.StreamInfo, error) {
	return m.streams, m.activeErr
}

func (m *mockChain) BatchUpdate(ctx context.Context, input types.BatchUpdateInput) (common.Hash, error) {
	if m.batchUpdateFunc != nil {
		if err := m.batchUpdateFunc(ctx, input); err != nil {
			return common.Hash{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, input.StreamIDs)
	return common.BigToHash(big.NewInt(int64(len(m.batches)))), nil
}

func (m *mockChain) WaitForTx(ctx context.Context, txHash common.Hash, _ time.Duration) (*types.TxReceipt, error) {
	if m.waitForTxFunc != nil {
		return m.waitForTxFunc(ctx, txHash)
	}
	m.mu.Lock()
	n := len(m.batches[txHash.Big().Int64()-1])
	m.mu.Unlock()
	result, _ := json.Marshal(types.BatchUpdateResult{Updated: n})
	return &types.TxReceipt{TxHash: txHash, Status: types.TxStatusSuccess, Result: result}, nil
}

func (m *mockChain) submitted() [][]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]uint64(nil), m.batches...)
}

var _ Chain = (*mockChain)(nil)

func activeStreams(n int, stopTime int64) []types.StreamInfo {
	streams := make([]types.StreamInfo, n)
	for i := range streams {
		streams[i] = types.StreamInfo{
			ID:         uint64(i + 1),
			StopTime:   stopTime,
			Unrealized: strconv.Itoa(1000 * (i + 1)),
			IsActive:   true,
		}
	}
	return streams
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConfirmTimeout = time.Second
	cfg.ConfirmPollInterval = time.Millisecond
	return cfg
}

func newTestAgent(t *testing.T, cfg Config, chain Chain, feePrice string, options ...Option) *Agent {
	t.Helper()
	oracle, err := NewStaticOracle(feePrice)
	require.NoError(t, err)
	options = append([]Option{WithClock(func() time.Time { return time.Unix(testNow, 0) })}, options...)
	agent, err := NewAgent(cfg, chain, oracle, options...)
	require.NoError(t, err)
	return agent
}

func assertDecimal(t *testing.T, want, got string) {
	t.Helper()
	w, _, err := apd.NewFromString(want)
	require.NoError(t, err)
	g, _, err := apd.NewFromString(got)
	require.NoError(t, err, "got %q", got)
	assert.Zero(t, w.Cmp(g), "want %s, got %s", want, got)
}

// ═══════════════════════════════════════════════════════════════
// DECISION
// ═══════════════════════════════════════════════════════════════

func TestUnprofitableCycleSubmitsNothing(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	chain := &mockChain{
		streams: activeStreams(5, testNow+3600),
		batchUpdateFunc: func(context.Context, types.BatchUpdateInput) error {
			t.Fatal("no transaction may be submitted")
			return nil
		},
	}
	agent := newTestAgent(t, testConfig(), chain, "0.00001", WithLogger(zap.New(core)))

	rec := agent.RunCycle(context.Background())

	assert.Equal(t, ActionSkippedUnprofitable, rec.Action)
	assert.Equal(t, 5, rec.ActiveCount)
	assert.Equal(t, 1, rec.BatchesPlanned)
	assert.Zero(t, rec.BatchesSubmitted)
	assertDecimal(t, "0.005", rec.Revenue)
	assertDecimal(t, "0.75", rec.Cost)
	assertDecimal(t, "-0.745", rec.Profit)
	assertDecimal(t, "0.00001", rec.FeePrice)
	assert.Empty(t, chain.submitted())

	entries := logs.FilterMessage("keeper cycle").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "skipped-unprofitable", fields["action"])
	assert.Equal(t, int64(5), fields["active_count"])
	assert.Contains(t, fields, "fee_price")
	assert.Contains(t, fields, "profit")
}

func TestKeeperRationality(t *testing.T) {
	tests := []struct {
		name      string
		reward    string
		feePrice  string
		minProfit string
		want      Action
	}{
		{"cost exceeds revenue", "0.001", "0.00001", "0", ActionSkippedUnprofitable},
		{"break even", "0.15", "0.00001", "0", ActionSkippedUnprofitable},
		{"profitable", "0.2", "0.00001", "0", ActionExecuted},
		{"free gas", "0.001", "0", "0", ActionExecuted},
		{"below min profit", "0.2", "0.00001", "0.25", ActionSkippedUnprofitable},
		{"above min profit", "0.2", "0.00001", "0.2", ActionExecuted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RewardPerStream = tt.reward
			cfg.MinProfit = tt.minProfit
			chain := &mockChain{streams: activeStreams(5, testNow+3600)}
			agent := newTestAgent(t, cfg, chain, tt.feePrice)

			rec := agent.RunCycle(context.Background())
			assert.Equal(t, tt.want, rec.Action)
			if tt.want == ActionExecuted {
				assert.Len(t, chain.submitted(), 1)
			} else {
				assert.Empty(t, chain.submitted())
			}
		})
	}
}

func TestAccrualRewardModel(t *testing.T) {
	cfg := testConfig()
	cfg.RewardModel = RewardAccrual
	cfg.TokenDecimals = 2
	chain := &mockChain{streams: []types.StreamInfo{
		{ID: 1, StopTime: testNow + 10, Unrealized: "100000"},
		{ID: 2, StopTime: testNow + 10, Unrealized: "999"}, // fee rounds to zero
	}}
	agent := newTestAgent(t, cfg, chain, "0.000001")

	rec := agent.RunCycle(context.Background())
	assertDecimal(t, "1.00", rec.Revenue)
	assertDecimal(t, "0.075", rec.Cost)
	assert.Equal(t, ActionExecuted, rec.Action)
}

func TestEmptyCycle(t *testing.T) {
	agent := newTestAgent(t, testConfig(), &mockChain{}, "0.00001")
	rec := agent.RunCycle(context.Background())
	assert.Equal(t, ActionSkippedEmpty, rec.Action)
	assert.Empty(t, rec.FeePrice)
}

// ═══════════════════════════════════════════════════════════════
// SUBMISSION
// ═══════════════════════════════════════════════════════════════

func profitableConfig(maxBatch int) Config {
	cfg := testConfig()
	cfg.MaxBatchSize = maxBatch
	cfg.RewardPerStream = "10"
	return cfg
}

func TestBatchesSubmittedSequentiallyInPriorityOrder(t *testing.T) {
	streams := activeStreams(5, testNow+3600)
	streams[4].StopTime = testNow - 1 // expired
	chain := &mockChain{streams: streams}
	agent := newTestAgent(t, profitableConfig(2), chain, "0.00001")

	rec := agent.RunCycle(context.Background())

	require.Equal(t, ActionExecuted, rec.Action, rec.Error)
	assert.Equal(t, 3, rec.BatchesPlanned)
	assert.Equal(t, 3, rec.BatchesSubmitted)
	assert.Equal(t, 5, rec.StreamsSettled)
	assert.Equal(t, [][]uint64{{5, 4}, {3, 2}, {1}}, chain.submitted())
}

func TestFailedBatchSkipsRemainingBatches(t *testing.T) {
	tests := []struct {
		name    string
		chain   func(*mockChain)
		wantErr string
		submits int
	}{
		{
			name: "submission failure",
			chain: func(m *mockChain) {
				m.batchUpdateFunc = func(context.Context, types.BatchUpdateInput) error {
					if len(m.submitted()) == 1 {
						return errors.New("mempool full")
					}
					return nil
				}
			},
			wantErr: "mempool full",
			submits: 1,
		},
		{
			name: "reverted batch",
			chain: func(m *mockChain) {
				m.waitForTxFunc = func(_ context.Context, txHash common.Hash) (*types.TxReceipt, error) {
					return &types.TxReceipt{TxHash: txHash, Status: types.TxStatusReverted, Error: "batch update too frequent"}, nil
				}
			},
			wantErr: "batch reverted",
			submits: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &mockChain{streams: activeStreams(6, testNow+3600)}
			tt.chain(chain)
			agent := newTestAgent(t, profitableConfig(2), chain, "0.00001")

			rec := agent.RunCycle(context.Background())

			assert.Equal(t, ActionSkippedError, rec.Action)
			assert.Contains(t, rec.Error, tt.wantErr)
			assert.Len(t, chain.submitted(), tt.submits)
		})
	}
}

func TestConfirmationTimeoutAbandonsCycle(t *testing.T) {
	chain := &mockChain{
		streams: activeStreams(3, testNow+3600),
		waitForTxFunc: func(ctx context.Context, _ common.Hash) (*types.TxReceipt, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	cfg := profitableConfig(1)
	cfg.ConfirmTimeout = 20 * time.Millisecond
	agent := newTestAgent(t, cfg, chain, "0.00001")

	start := time.Now()
	rec := agent.RunCycle(context.Background())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, ActionSkippedError, rec.Action)
	assert.Contains(t, rec.Error, "not confirmed")
	assert.Len(t, chain.submitted(), 1)

	// the next cycle is not blocked by the abandoned one
	chain.waitForTxFunc = nil
	assert.Equal(t, ActionExecuted, agent.RunCycle(context.Background()).Action)
}

func TestFetchErrorsSkipCycle(t *testing.T) {
	chain := &mockChain{activeErr: errors.New("connection refused")}
	agent := newTestAgent(t, testConfig(), chain, "0.00001")
	rec := agent.RunCycle(context.Background())
	assert.Equal(t, ActionSkippedError, rec.Action)
	assert.Contains(t, rec.Error, "connection refused")
}

// ═══════════════════════════════════════════════════════════════
// CONCURRENCY
// ═══════════════════════════════════════════════════════════════

func TestOverlappingCycleIsSkipped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	chain := &mockChain{
		streams: activeStreams(2, testNow+3600),
		batchUpdateFunc: func(context.Context, types.BatchUpdateInput) error {
			close(entered)
			<-release
			return nil
		},
	}
	agent := newTestAgent(t, profitableConfig(10), chain, "0.00001")

	done := make(chan CycleRecord)
	go func() { done <- agent.RunCycle(context.Background()) }()
	<-entered

	busy := agent.RunCycle(context.Background())
	assert.Equal(t, ActionSkippedBusy, busy.Action)

	close(release)
	first := <-done
	assert.Equal(t, ActionExecuted, first.Action)
	assert.Len(t, chain.submitted(), 1)
}

func TestShutdownFinishesInFlightBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var waitCtxErr error
	chain := &mockChain{
		streams: activeStreams(3, testNow+3600),
		batchUpdateFunc: func(context.Context, types.BatchUpdateInput) error {
			cancel()
			return nil
		},
	}
	chain.waitForTxFunc = func(waitCtx context.Context, txHash common.Hash) (*types.TxReceipt, error) {
		waitCtxErr = waitCtx.Err()
		result, _ := json.Marshal(types.BatchUpdateResult{Updated: 1})
		return &types.TxReceipt{TxHash: txHash, Status: types.TxStatusSuccess, Result: result}, nil
	}
	agent := newTestAgent(t, profitableConfig(1), chain, "0.00001")

	rec := agent.RunCycle(ctx)

	assert.NoError(t, waitCtxErr)
	assert.Equal(t, 1, rec.BatchesSubmitted)
	assert.Equal(t, 1, rec.StreamsSettled)
	assert.Equal(t, ActionSkippedError, rec.Action)
	assert.Contains(t, rec.Error, "2 of 3 batches skipped")
	assert.Len(t, chain.submitted(), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond
	agent := newTestAgent(t, cfg, &mockChain{}, "0.00001")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, agent.Run(ctx))

	recent, err := agent.Journal().Recent(context.Background(), 100)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)
	for _, rec := range recent {
		assert.Equal(t, ActionSkippedEmpty, rec.Action)
	}
}

// ═══════════════════════════════════════════════════════════════
// OBSERVABILITY
// ═══════════════════════════════════════════════════════════════

func TestCycleMetricsAndJournal(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	journal := NewMemoryJournal(10)
	chain := &mockChain{streams: activeStreams(4, testNow+3600)}
	agent := newTestAgent(t, profitableConfig(3), chain, "0.00001", WithMetrics(metrics), WithJournal(journal))

	agent.RunCycle(context.Background())
	chain.streams = nil
	agent.RunCycle(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cycles.WithLabelValues(string(ActionExecuted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cycles.WithLabelValues(string(ActionSkippedEmpty))))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.batches.WithLabelValues("confirmed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.streamsSettled))
	// 40 - 2 * 0.75
	assert.InDelta(t, 38.5, testutil.ToFloat64(metrics.lastProfit), 1e-9)

	recent, err := journal.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ActionSkippedEmpty, recent[0].Action)
	assert.Equal(t, ActionExecuted, recent[1].Action)
	assert.Equal(t, 2, recent[1].BatchesSubmitted)
	assert.NotEmpty(t, recent[1].ID)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }},
		{"unknown reward model", func(c *Config) { c.RewardModel = "lottery" }},
		{"bad reward", func(c *Config) { c.RewardPerStream = "abc" }},
		{"negative min profit", func(c *Config) { c.MinProfit = "-1" }},
		{"zero confirm timeout", func(c *Config) { c.ConfirmTimeout = 0 }},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
