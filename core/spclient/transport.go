package spclient

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/chain"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

// ErrNotFound is returned by queries for streams, templates and transactions
// the node does not know.
var ErrNotFound = errors.New("not found")

// ErrTxPending is returned by Receipt while the transaction waits for a block.
var ErrTxPending = chain.ErrTxPending

// Transport abstracts the communication layer between the client and a node.
//
// HTTPTransport talks to a node's HTTP API. LocalTransport calls a node in the
// same process, which is how tests and embedded deployments use the SDK.
// Custom implementations can be plugged in with WithTransport.
type Transport interface {
	// Broadcast submits a signed transaction and returns its hash.
	Broadcast(ctx context.Context, tx *types.Tx) (common.Hash, error)

	// Receipt returns the receipt of an included transaction. It fails with
	// ErrTxPending while the transaction is queued and ErrNotFound when the
	// node has never seen it.
	Receipt(ctx context.Context, txHash common.Hash) (*types.TxReceipt, error)

	// WaitTx polls for the receipt with the given interval until the
	// transaction is included or ctx is done.
	WaitTx(ctx context.Context, txHash common.Hash, interval time.Duration) (*types.TxReceipt, error)

	StreamInfo(ctx context.Context, streamID uint64) (*types.StreamInfo, error)
	UserStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error)
	RecipientStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error)
	ActiveStreamIDs(ctx context.Context) ([]uint64, error)
	ActiveStreams(ctx context.Context) ([]types.StreamInfo, error)
	ProtocolStats(ctx context.Context) (*types.ProtocolStats, error)
	Account(ctx context.Context, account util.EthereumAddress) (*types.AccountInfo, error)
	Template(ctx context.Context, templateID uint64) (*types.StreamTemplate, error)
	UserTemplates(ctx context.Context, owner util.EthereumAddress) ([]uint64, error)
	FeePrice(ctx context.Context) (*types.FeePrice, error)

	// ChainID returns the network chain identifier that transactions must carry.
	ChainID() string
}

type receiptFunc func(ctx context.Context, txHash common.Hash) (*types.TxReceipt, error)

func waitTx(ctx context.Context, receipt receiptFunc, txHash common.Hash, interval time.Duration) (*types.TxReceipt, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r, err := receipt(ctx, txHash)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrTxPending) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for %s", txHash.Hex())
		case <-ticker.C:
		}
	}
}
