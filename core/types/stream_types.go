package types

import (
	"fmt"

	"github.com/trufnetwork/streampay/core/util"
)

// ═══════════════════════════════════════════════════════════════
// STREAM LIFECYCLE INPUTS
// ═══════════════════════════════════════════════════════════════

// CreateStreamInput opens a stream from the transaction sender to Recipient.
type CreateStreamInput struct {
	Recipient   string `json:"recipient"`
	TotalAmount string `json:"total_amount"` // base units
	Duration    int64  `json:"duration"`     // seconds
	StreamType  string `json:"stream_type"`
	Description string `json:"description"`
}

// Validate checks the input is well formed. Economic preconditions
// (self-stream, duration ceiling, rate truncation) are enforced by the ledger.
func (c *CreateStreamInput) Validate() error {
	if c.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if _, err := util.NewEthereumAddressFromString(c.Recipient); err != nil {
		return fmt.Errorf("recipient is not a valid address: %s", c.Recipient)
	}
	if _, err := util.ParseAmount(c.TotalAmount); err != nil {
		return fmt.Errorf("total_amount must be a base-unit integer, got %q", c.TotalAmount)
	}
	return nil
}

// CreateGroupStreamInput splits TotalAmount evenly across Recipients.
type CreateGroupStreamInput struct {
	Recipients  []string `json:"recipients"`
	TotalAmount string   `json:"total_amount"`
	Duration    int64    `json:"duration"`
	StreamType  string   `json:"stream_type"`
	Description string   `json:"description"`
}

func (c *CreateGroupStreamInput) Validate() error {
	if len(c.Recipients) == 0 {
		return fmt.Errorf("recipients are required")
	}
	if _, err := util.EthereumAddressesFromStrings(c.Recipients); err != nil {
		return fmt.Errorf("recipients contain an invalid address: %v", err)
	}
	if _, err := util.ParseAmount(c.TotalAmount); err != nil {
		return fmt.Errorf("total_amount must be a base-unit integer, got %q", c.TotalAmount)
	}
	return nil
}

// StreamIDInput addresses one stream (withdraw, cancel).
type StreamIDInput struct {
	StreamID uint64 `json:"stream_id"`
}

func (s *StreamIDInput) Validate() error {
	if s.StreamID == 0 {
		return fmt.Errorf("stream_id is required")
	}
	return nil
}

// BatchUpdateInput settles a caller-chosen set of streams.
// Duplicates and inactive ids are tolerated.
type BatchUpdateInput struct {
	StreamIDs []uint64 `json:"stream_ids"`
}

func (b *BatchUpdateInput) Validate() error {
	if len(b.StreamIDs) == 0 {
		return fmt.Errorf("stream_ids are required")
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════
// TEMPLATE INPUTS
// ═══════════════════════════════════════════════════════════════

type CreateTemplateInput struct {
	Name            string `json:"name"`
	Recipient       string `json:"recipient,omitempty"`
	AmountPerStream string `json:"amount_per_stream"`
	Duration        int64  `json:"duration"`
	StreamType      string `json:"stream_type"`
	Description     string `json:"description"`
}

func (c *CreateTemplateInput) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.Name) > 64 {
		return fmt.Errorf("name cannot exceed 64 characters")
	}
	if c.Recipient != "" {
		if _, err := util.NewEthereumAddressFromString(c.Recipient); err != nil {
			return fmt.Errorf("recipient is not a valid address: %s", c.Recipient)
		}
	}
	if _, err := util.ParseAmount(c.AmountPerStream); err != nil {
		return fmt.Errorf("amount_per_stream must be a base-unit integer, got %q", c.AmountPerStream)
	}
	return nil
}

type TemplateIDInput struct {
	TemplateID uint64 `json:"template_id"`
}

func (t *TemplateIDInput) Validate() error {
	if t.TemplateID == 0 {
		return fmt.Errorf("template_id is required")
	}
	return nil
}

// CreateStreamFromTemplateInput uses a template; Recipient overrides the
// template's recipient and is required when the template has none.
type CreateStreamFromTemplateInput struct {
	TemplateID uint64 `json:"template_id"`
	Recipient  string `json:"recipient,omitempty"`
}

func (c *CreateStreamFromTemplateInput) Validate() error {
	if c.TemplateID == 0 {
		return fmt.Errorf("template_id is required")
	}
	if c.Recipient != "" {
		if _, err := util.NewEthereumAddressFromString(c.Recipient); err != nil {
			return fmt.Errorf("recipient is not a valid address: %s", c.Recipient)
		}
	}
	return nil
}
