package types

// EventKind names a ledger event.
type EventKind string

const (
	EventStreamCreated        EventKind = "stream_created"
	EventStreamUpdated        EventKind = "stream_updated"
	EventStreamCompleted      EventKind = "stream_completed"
	EventWithdrawn            EventKind = "withdrawn"
	EventCancelled            EventKind = "cancelled"
	EventClaimed              EventKind = "claimed"
	EventBatchUpdatePerformed EventKind = "batch_update_performed"
	EventGroupStreamCreated   EventKind = "group_stream_created"
	EventTemplateCreated      EventKind = "template_created"
	EventTemplateDeleted      EventKind = "template_deleted"
)

// Event is emitted by a committed ledger operation. Events of reverted
// operations are discarded.
type Event struct {
	ID          string            `json:"id"`
	Kind        EventKind         `json:"kind"`
	StreamID    uint64            `json:"stream_id,omitempty"`
	TxHash      string            `json:"tx_hash,omitempty"`
	BlockHeight int64             `json:"block_height,omitempty"`
	Time        int64             `json:"time"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
