package keeper

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Action is the outcome of one keeper cycle.
type Action string

const (
	ActionExecuted            Action = "executed"
	ActionSkippedUnprofitable Action = "skipped-unprofitable"
	ActionSkippedError        Action = "skipped-error"
	ActionSkippedEmpty        Action = "skipped-empty"
	ActionSkippedBusy         Action = "skipped-busy"
)

// CycleRecord is the journal entry of one cycle.
type CycleRecord struct {
	ID               string        `json:"id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	ActiveCount      int           `json:"active_count"`
	FeePrice         string        `json:"fee_price,omitempty"`
	Revenue          string        `json:"revenue,omitempty"`
	Cost             string        `json:"cost,omitempty"`
	Profit           string        `json:"profit,omitempty"`
	Action           Action        `json:"action"`
	BatchesPlanned   int           `json:"batches_planned"`
	BatchesSubmitted int           `json:"batches_submitted"`
	StreamsSettled   int           `json:"streams_settled"`
	Error            string        `json:"error,omitempty"`
}

// Journal keeps the most recent cycle records.
type Journal interface {
	Record(ctx context.Context, rec CycleRecord) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]CycleRecord, error)
}

// ═══════════════════════════════════════════════════════════════
// MEMORY JOURNAL
// ═══════════════════════════════════════════════════════════════

// MemoryJournal is a fixed-size ring buffer.
type MemoryJournal struct {
	mu      sync.Mutex
	records []CycleRecord
	next    int
	full    bool
}

var _ Journal = (*MemoryJournal)(nil)

func NewMemoryJournal(size int) *MemoryJournal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &MemoryJournal{records: make([]CycleRecord, size)}
}

func (j *MemoryJournal) Record(_ context.Context, rec CycleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[j.next] = rec
	j.next = (j.next + 1) % len(j.records)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

func (j *MemoryJournal) Recent(_ context.Context, n int) ([]CycleRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	size := j.next
	if j.full {
		size = len(j.records)
	}
	n = min(n, size)
	if n <= 0 {
		return nil, nil
	}
	out := make([]CycleRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, j.records[(j.next-i+len(j.records))%len(j.records)])
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════
// REDIS JOURNAL
// ═══════════════════════════════════════════════════════════════

// RedisJournal stores records as JSON in a capped Redis list, so several
// keeper instances can share one history.
type RedisJournal struct {
	client *redis.Client
	key    string
	size   int64
}

var _ Journal = (*RedisJournal)(nil)

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func NewRedisJournal(client *redis.Client, key string, size int) *RedisJournal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &RedisJournal{client: client, key: key, size: int64(size)}
}

func (j *RedisJournal) Record(ctx context.Context, rec CycleRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, j.key, raw)
		pipe.LTrim(ctx, j.key, 0, j.size-1)
		return nil
	})
	return errors.Wrap(err, "record keeper cycle")
}

func (j *RedisJournal) Recent(ctx context.Context, n int) ([]CycleRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := j.client.LRange(ctx, j.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read keeper journal")
	}
	out := make([]CycleRecord, 0, len(raw))
	for _, item := range raw {
		var rec CycleRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, errors.Wrap(err, "decode keeper cycle")
		}
		out = append(out, rec)
	}
	return out, nil
}
