package spclient

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/chain"
	"github.com/trufnetwork/streampay/core/ledger"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

// LocalTransport implements Transport by calling a node in the same process.
type LocalTransport struct {
	node *chain.Node
}

var _ Transport = (*LocalTransport)(nil)

func NewLocalTransport(node *chain.Node) *LocalTransport {
	return &LocalTransport{node: node}
}

func notFound(err error) error {
	if errors.Is(err, ledger.ErrStreamNotFound) || errors.Is(err, ledger.ErrTemplateNotFound) ||
		errors.Is(err, chain.ErrTxNotFound) {
		return errors.Wrap(ErrNotFound, err.Error())
	}
	return err
}

func (t *LocalTransport) Broadcast(_ context.Context, tx *types.Tx) (common.Hash, error) {
	return t.node.SubmitTx(tx)
}

func (t *LocalTransport) Receipt(_ context.Context, txHash common.Hash) (*types.TxReceipt, error) {
	r, err := t.node.Receipt(txHash)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (t *LocalTransport) WaitTx(ctx context.Context, txHash common.Hash, interval time.Duration) (*types.TxReceipt, error) {
	return waitTx(ctx, t.Receipt, txHash, interval)
}

func (t *LocalTransport) StreamInfo(_ context.Context, streamID uint64) (*types.StreamInfo, error) {
	info, err := t.node.StreamInfo(streamID)
	if err != nil {
		return nil, notFound(err)
	}
	return &info, nil
}

func (t *LocalTransport) UserStreams(_ context.Context, account util.EthereumAddress) ([]uint64, error) {
	return t.node.UserStreams(account), nil
}

func (t *LocalTransport) RecipientStreams(_ context.Context, account util.EthereumAddress) ([]uint64, error) {
	return t.node.RecipientStreams(account), nil
}

func (t *LocalTransport) ActiveStreamIDs(_ context.Context) ([]uint64, error) {
	return t.node.ActiveStreamIDs(), nil
}

func (t *LocalTransport) ActiveStreams(_ context.Context) ([]types.StreamInfo, error) {
	return t.node.ActiveStreams(), nil
}

func (t *LocalTransport) ProtocolStats(_ context.Context) (*types.ProtocolStats, error) {
	stats := t.node.ProtocolStats()
	return &stats, nil
}

func (t *LocalTransport) Account(_ context.Context, account util.EthereumAddress) (*types.AccountInfo, error) {
	info := t.node.Account(account)
	return &info, nil
}

func (t *LocalTransport) Template(_ context.Context, templateID uint64) (*types.StreamTemplate, error) {
	tmpl, err := t.node.Template(templateID)
	if err != nil {
		return nil, notFound(err)
	}
	return &tmpl, nil
}

func (t *LocalTransport) UserTemplates(_ context.Context, owner util.EthereumAddress) ([]uint64, error) {
	return t.node.UserTemplates(owner), nil
}

func (t *LocalTransport) FeePrice(_ context.Context) (*types.FeePrice, error) {
	price := t.node.FeePrice()
	return &price, nil
}

func (t *LocalTransport) ChainID() string {
	return t.node.ChainID()
}
