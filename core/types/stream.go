package types

import (
	"github.com/golang-sql/civil"
	"github.com/trufnetwork/streampay/core/util"
)

// StreamInfo is the read model of a stream as served to clients.
// Amounts are base-unit integers rendered as decimal strings.
type StreamInfo struct {
	ID              uint64               `json:"id"`
	Sender          util.EthereumAddress `json:"sender"`
	Recipient       util.EthereumAddress `json:"recipient"`
	TotalAmount     string               `json:"total_amount"`
	FlowRate        string               `json:"flow_rate"`
	StartTime       int64                `json:"start_time"`
	StopTime        int64                `json:"stop_time"`
	StartDate       civil.Date           `json:"start_date"`
	StopDate        civil.Date           `json:"stop_date"`
	LastUpdateTime  int64                `json:"last_update_time"`
	RealTimeBalance string               `json:"real_time_balance"`
	AmountWithdrawn string               `json:"amount_withdrawn"`
	CurrentBalance  string               `json:"current_balance"` // withdrawable now, including unrealized accrual
	Unrealized      string               `json:"unrealized"`      // accrued since LastUpdateTime, before keeper fee
	IsActive        bool                 `json:"is_active"`
	StreamType      string               `json:"stream_type"`
	Description     string               `json:"description"`
}

// ProtocolStats aggregates ledger-wide counters.
type ProtocolStats struct {
	TotalStreams        uint64 `json:"total_streams"`
	TotalUpdates        uint64 `json:"total_updates"`
	TotalVolume         string `json:"total_volume"`
	ActiveStreams       uint64 `json:"active_streams"`
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`
}

// AccountInfo describes an account's token position on the ledger.
type AccountInfo struct {
	Address   util.EthereumAddress `json:"address"`
	Balance   string               `json:"balance"`
	Claimable string               `json:"claimable"` // settled funds of completed streams awaiting claim
	Nonce     uint64               `json:"nonce"`     // next expected transaction nonce
}

// StreamTemplate is a reusable stream preset owned by one account.
type StreamTemplate struct {
	ID              uint64               `json:"id"`
	Owner           util.EthereumAddress `json:"owner"`
	Name            string               `json:"name"`
	Recipient       util.EthereumAddress `json:"recipient"` // zero when the recipient is chosen at use time
	AmountPerStream string               `json:"amount_per_stream"`
	Duration        int64                `json:"duration"`
	StreamType      string               `json:"stream_type"`
	Description     string               `json:"description"`
	UsageCount      uint64               `json:"usage_count"`
	Active          bool                 `json:"active"`
	CreatedAt       int64                `json:"created_at"`
}
