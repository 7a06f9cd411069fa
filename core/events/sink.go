package events

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"go.uber.org/zap"
)

// Sink receives the events of every committed block, in order.
type Sink interface {
	Publish(ctx context.Context, events []types.Event) error
}

// ═══════════════════════════════════════════════════════════════
// MEMORY
// ═══════════════════════════════════════════════════════════════

// MemorySink keeps published events in memory. Used by tests and by the
// node's event feed when no broker is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []types.Event
}

var _ Sink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Publish(_ context.Context, events []types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemorySink) Events() []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, len(m.events))
	copy(out, m.events)
	return out
}

// OfKind filters the published events by kind.
func (m *MemorySink) OfKind(kind types.EventKind) []types.Event {
	var out []types.Event
	for _, ev := range m.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// ═══════════════════════════════════════════════════════════════
// LOG
// ═══════════════════════════════════════════════════════════════

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

var _ Sink = (*LogSink)(nil)

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, events []types.Event) error {
	for _, ev := range events {
		fields := []zap.Field{
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Int64("height", ev.BlockHeight),
			zap.String("tx", ev.TxHash),
		}
		if ev.StreamID != 0 {
			fields = append(fields, zap.Uint64("stream_id", ev.StreamID))
		}
		for k, v := range ev.Attributes {
			fields = append(fields, zap.String(k, v))
		}
		s.logger.Info("ledger event", fields...)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════
// FAN-OUT
// ═══════════════════════════════════════════════════════════════

// Multi publishes to every sink. All sinks are attempted; the first error is
// returned.
type Multi []Sink

var _ Sink = Multi(nil)

func (m Multi) Publish(ctx context.Context, events []types.Event) error {
	var first error
	for _, sink := range m {
		if err := sink.Publish(ctx, events); err != nil && first == nil {
			first = errors.Wrapf(err, "publishing to %T", sink)
		}
	}
	return first
}
