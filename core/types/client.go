package types

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trufnetwork/streampay/core/util"
)

type Client interface {
	// WaitForTx waits for the transaction to be included in a block
	WaitForTx(ctx context.Context, txHash common.Hash, interval time.Duration) (*TxReceipt, error)
	// Address of the signer used by the client
	Address() util.EthereumAddress

	/*
	 * stream lifecycle
	 */
	CreateStream(ctx context.Context, input CreateStreamInput) (common.Hash, error)
	CreateGroupStream(ctx context.Context, input CreateGroupStreamInput) (common.Hash, error)
	Withdraw(ctx context.Context, input StreamIDInput) (common.Hash, error)
	Cancel(ctx context.Context, input StreamIDInput) (common.Hash, error)
	// BatchUpdate settles the given streams and earns their keeper fees
	BatchUpdate(ctx context.Context, input BatchUpdateInput) (common.Hash, error)
	// Claim pays out the caller's balance from streams completed by settlement
	Claim(ctx context.Context) (common.Hash, error)

	/*
	 * templates
	 */
	CreateTemplate(ctx context.Context, input CreateTemplateInput) (common.Hash, error)
	DeleteTemplate(ctx context.Context, input TemplateIDInput) (common.Hash, error)
	CreateStreamFromTemplate(ctx context.Context, input CreateStreamFromTemplateInput) (common.Hash, error)

	/*
	 * queries
	 */
	GetStreamInfo(ctx context.Context, streamID uint64) (*StreamInfo, error)
	GetUserStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error)
	GetRecipientStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error)
	GetActiveStreamIds(ctx context.Context) ([]uint64, error)
	// GetActiveStreams returns the full records of every active stream
	GetActiveStreams(ctx context.Context) ([]StreamInfo, error)
	GetProtocolStats(ctx context.Context) (*ProtocolStats, error)
	GetAccount(ctx context.Context, account util.EthereumAddress) (*AccountInfo, error)
	GetTemplate(ctx context.Context, templateID uint64) (*StreamTemplate, error)
	GetUserTemplates(ctx context.Context, owner util.EthereumAddress) ([]uint64, error)
	GetFeePrice(ctx context.Context) (*FeePrice, error)
}
