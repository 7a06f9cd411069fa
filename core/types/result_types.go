package types

// Results carried in TxReceipt.Result, one per transaction method.

type CreateStreamResult struct {
	StreamID uint64 `json:"stream_id"`
}

type CreateGroupStreamResult struct {
	StreamIDs []uint64 `json:"stream_ids"`
}

type BatchUpdateResult struct {
	Updated int `json:"updated"`
}

// AmountResult reports the value moved by withdraw and claim.
type AmountResult struct {
	Amount string `json:"amount"`
}

// CancelResult reports the split of a cancelled stream.
type CancelResult struct {
	RecipientBalance string `json:"recipient_balance"`
	SenderRefund     string `json:"sender_refund"`
	ReserveRefund    string `json:"reserve_refund"`
}

type CreateTemplateResult struct {
	TemplateID uint64 `json:"template_id"`
}

// FeePrice is the node's current fee price in token units per gas unit.
type FeePrice struct {
	Price       string `json:"price"`
	BlockHeight int64  `json:"block_height"`
}
