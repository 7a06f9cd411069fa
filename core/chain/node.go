package chain

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/auth"
	"github.com/trufnetwork/streampay/core/events"
	"github.com/trufnetwork/streampay/core/ledger"
	"github.com/trufnetwork/streampay/core/logging"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
	"go.uber.org/zap"
)

// blockClock is the ledger's clock: the timestamp of the block being applied,
// or of the latest block between blocks.
type blockClock struct {
	now int64
}

func (c *blockClock) Now() int64 { return c.now }

// Block summarizes a sealed block.
type Block struct {
	Height   int64         `json:"height"`
	Time     int64         `json:"time"`
	TxHashes []common.Hash `json:"tx_hashes"`
	GasUsed  uint64        `json:"gas_used"`
	FeePrice string        `json:"fee_price"`
}

// Node hosts one ledger and applies signed transactions to it serially, in
// blocks. All ledger access goes through the node's lock.
type Node struct {
	cfg     Config
	logger  *zap.Logger
	sink    events.Sink
	metrics *Metrics
	timeNow func() time.Time

	mu       sync.RWMutex
	ledger   *ledger.Ledger
	clock    *blockClock
	latest   Block
	nonces   map[util.EthereumAddress]uint64 // next nonce to be included
	pending  map[util.EthereumAddress]uint64 // transactions waiting per sender
	mempool  []*types.Tx
	known    map[common.Hash]struct{}
	receipts map[common.Hash]*types.TxReceipt
	feePrice *apd.Decimal
	minPrice *apd.Decimal
}

type Option func(*Node)

func WithLogger(logger *zap.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithEventSink publishes the events of every block to sink.
func WithEventSink(sink events.Sink) Option {
	return func(n *Node) {
		n.sink = sink
	}
}

func WithMetrics(m *Metrics) Option {
	return func(n *Node) {
		n.metrics = m
	}
}

// WithTimeSource replaces the wall clock used to stamp blocks.
func WithTimeSource(now func() time.Time) Option {
	return func(n *Node) {
		n.timeNow = now
	}
}

// WithReceiveHook registers a receive hook on the ledger, making account a
// contract account.
func WithReceiveHook(account util.EthereumAddress, hook ledger.ReceiveHook) Option {
	return func(n *Node) {
		n.ledger.RegisterReceiveHook(account, hook)
	}
}

func NewNode(cfg Config, options ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prices, err := cfg.feePrices()
	if err != nil {
		return nil, err
	}
	genesis, err := cfg.genesis()
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		logger:   logging.Logger,
		timeNow:  time.Now,
		clock:    &blockClock{},
		nonces:   make(map[util.EthereumAddress]uint64),
		pending:  make(map[util.EthereumAddress]uint64),
		known:    make(map[common.Hash]struct{}),
		receipts: make(map[common.Hash]*types.TxReceipt),
		feePrice: prices.base,
		minPrice: prices.min,
	}
	n.ledger, err = ledger.New(cfg.Ledger, ledger.WithClock(n.clock))
	if err != nil {
		return nil, err
	}
	for _, option := range options {
		option(n)
	}

	for addr, amount := range genesis {
		if err := n.ledger.Mint(addr, amount); err != nil {
			return nil, errors.Wrapf(err, "genesis allocation for %s", addr.Address())
		}
	}
	n.clock.now = n.timeNow().Unix()
	n.latest = Block{Time: n.clock.now, FeePrice: n.feePrice.Text('f')}
	return n, nil
}

func (n *Node) ChainID() string {
	return n.cfg.ChainID
}

// ═══════════════════════════════════════════════════════════════
// ADMISSION
// ═══════════════════════════════════════════════════════════════

// SubmitTx checks a signed transaction and queues it for the next block.
// The nonce must be the sender's next nonce counting its queued transactions.
func (n *Node) SubmitTx(tx *types.Tx) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, errors.New("nil transaction")
	}
	if tx.ChainID != n.cfg.ChainID {
		return common.Hash{}, errors.Wrapf(ErrWrongChain, "got %q, expected %q", tx.ChainID, n.cfg.ChainID)
	}
	if !knownMethod(tx.Method) {
		return common.Hash{}, errors.Wrapf(ErrUnknownMethod, "%q", tx.Method)
	}
	hash := tx.Hash()
	signer, err := auth.RecoverAddress(hash.Bytes(), tx.Signature)
	if err != nil {
		return common.Hash{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	if signer != tx.From {
		return common.Hash{}, errors.Wrapf(ErrInvalidSignature, "signed by %s", signer.Address())
	}
	if gas := gasOf(tx); gas > n.blockGasLimit() {
		return common.Hash{}, errors.Wrapf(ErrTxTooLarge, "%d gas", gas)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.known[hash]; ok {
		return common.Hash{}, errors.Wrap(ErrTxKnown, hash.Hex())
	}
	if len(n.mempool) >= n.cfg.MaxMempool {
		return common.Hash{}, errors.WithStack(ErrMempoolFull)
	}
	expected := n.nonces[tx.From] + n.pending[tx.From]
	if tx.Nonce != expected {
		return common.Hash{}, errors.Wrapf(ErrNonceMismatch, "got %d, expected %d", tx.Nonce, expected)
	}

	n.mempool = append(n.mempool, tx)
	n.known[hash] = struct{}{}
	n.pending[tx.From]++
	n.metrics.observeMempool(len(n.mempool))
	n.logger.Debug("transaction queued",
		zap.String("hash", hash.Hex()),
		zap.String("from", tx.From.Address()),
		zap.String("method", string(tx.Method)),
		zap.Uint64("nonce", tx.Nonce))
	return hash, nil
}

func (n *Node) blockGasLimit() uint64 {
	return 2 * n.cfg.BlockGasTarget
}

// ═══════════════════════════════════════════════════════════════
// BLOCK PRODUCTION
// ═══════════════════════════════════════════════════════════════

// Run seals a block every block interval until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.BlockInterval)
	defer ticker.Stop()
	n.logger.Info("block producer started",
		zap.String("chain_id", n.cfg.ChainID),
		zap.Duration("interval", n.cfg.BlockInterval))
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("block producer stopped", zap.Int64("height", n.Height()))
			return nil
		case <-ticker.C:
			if _, err := n.ProduceBlock(ctx); err != nil {
				n.logger.Error("failed to produce block", zap.Error(err))
			}
		}
	}
}

// ProduceBlock seals one block from the mempool, in arrival order, up to the
// block gas limit. Block events are published to the sink after the block is
// committed.
func (n *Node) ProduceBlock(ctx context.Context) (Block, error) {
	block, evs, err := n.sealBlock()
	if err != nil {
		return Block{}, err
	}
	if n.sink != nil && len(evs) > 0 {
		if err := n.sink.Publish(ctx, evs); err != nil {
			n.logger.Warn("failed to publish block events",
				zap.Int64("height", block.Height), zap.Int("events", len(evs)), zap.Error(err))
		}
	}
	return block, nil
}

func (n *Node) sealBlock() (Block, []types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.timeNow().Unix()
	if now < n.latest.Time {
		now = n.latest.Time
	}
	n.clock.now = now
	block := Block{Height: n.latest.Height + 1, Time: now}

	var blockEvents []types.Event
	limit := n.blockGasLimit()
	included := 0
	for _, tx := range n.mempool {
		gas := gasOf(tx)
		if block.GasUsed+gas > limit {
			break
		}
		receipt := n.applyTx(tx, block)
		block.GasUsed += receipt.GasUsed
		block.TxHashes = append(block.TxHashes, receipt.TxHash)
		blockEvents = append(blockEvents, receipt.Events...)
		included++
	}
	n.mempool = append([]*types.Tx(nil), n.mempool[included:]...)

	next, err := nextFeePrice(n.feePrice, block.GasUsed, n.cfg.BlockGasTarget, n.minPrice)
	if err != nil {
		return Block{}, nil, errors.Wrap(err, "updating fee price")
	}
	n.feePrice = next
	block.FeePrice = next.Text('f')
	n.latest = block

	price, _ := next.Float64()
	n.metrics.observeBlock(block.Height, len(n.mempool), len(n.ledger.GetActiveStreamIds()), price)
	if included > 0 {
		n.logger.Info("block sealed",
			zap.Int64("height", block.Height),
			zap.Int("txs", included),
			zap.Uint64("gas_used", block.GasUsed),
			zap.String("fee_price", block.FeePrice))
	}
	return block, blockEvents, nil
}

func (n *Node) applyTx(tx *types.Tx, block Block) *types.TxReceipt {
	hash := tx.Hash()
	receipt := &types.TxReceipt{
		TxHash:      hash,
		From:        tx.From,
		Method:      tx.Method,
		BlockHeight: block.Height,
		BlockTime:   block.Time,
		GasUsed:     gasOf(tx),
	}

	result, err := n.dispatch(tx)
	evs := n.ledger.TakeEvents()
	if err != nil {
		class := ledger.Classify(err)
		receipt.Status = types.TxStatusReverted
		receipt.Error = err.Error()
		receipt.ErrorClass = string(class)
		n.logger.Debug("transaction reverted",
			zap.String("hash", hash.Hex()),
			zap.String("method", string(tx.Method)),
			zap.String("class", string(class)),
			zap.Error(err))
	} else {
		receipt.Status = types.TxStatusSuccess
		n.attachResult(receipt, result)
		for i := range evs {
			evs[i].TxHash = hash.Hex()
			evs[i].BlockHeight = block.Height
		}
		receipt.Events = evs
	}

	n.nonces[tx.From]++
	n.pending[tx.From]--
	if n.pending[tx.From] == 0 {
		delete(n.pending, tx.From)
	}
	n.receipts[hash] = receipt
	n.metrics.observeTx(string(tx.Method), string(receipt.Status))
	return receipt
}

// attachResult encodes the method result into a successful receipt. The
// ledger has already committed, so an encoding failure drops the result and
// leaves the receipt successful.
func (n *Node) attachResult(receipt *types.TxReceipt, result any) {
	if result == nil {
		return
	}
	raw, err := marshalResult(result)
	if err != nil {
		n.logger.Error("dropping transaction result",
			zap.String("hash", receipt.TxHash.Hex()),
			zap.String("method", string(receipt.Method)),
			zap.Error(err))
		return
	}
	receipt.Result = raw
}

// ═══════════════════════════════════════════════════════════════
// QUERIES
// ═══════════════════════════════════════════════════════════════

func (n *Node) Height() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.latest.Height
}

func (n *Node) LatestBlock() Block {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.latest
}

// Receipt returns the receipt of an included transaction, ErrTxPending while
// it waits in the mempool, or ErrTxNotFound.
func (n *Node) Receipt(hash common.Hash) (*types.TxReceipt, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if r, ok := n.receipts[hash]; ok {
		return r, nil
	}
	if _, ok := n.known[hash]; ok {
		return nil, errors.Wrap(ErrTxPending, hash.Hex())
	}
	return nil, errors.Wrap(ErrTxNotFound, hash.Hex())
}

func (n *Node) FeePrice() types.FeePrice {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return types.FeePrice{Price: n.feePrice.Text('f'), BlockHeight: n.latest.Height}
}

func (n *Node) StreamInfo(id uint64) (types.StreamInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetStreamInfo(id)
}

func (n *Node) UserStreams(account util.EthereumAddress) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetUserStreams(account)
}

func (n *Node) RecipientStreams(account util.EthereumAddress) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetRecipientStreams(account)
}

func (n *Node) ActiveStreamIDs() []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetActiveStreamIds()
}

func (n *Node) ActiveStreams() []types.StreamInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.ActiveStreamInfos()
}

func (n *Node) ProtocolStats() types.ProtocolStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetProtocolStats()
}

// Account reports the balance, the claimable amount and the nonce the
// account's next transaction must carry.
func (n *Node) Account(account util.EthereumAddress) types.AccountInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	balance := n.ledger.BalanceOf(account)
	claimable := n.ledger.ClaimableOf(account)
	return types.AccountInfo{
		Address:   account,
		Balance:   util.FormatAmount(&balance),
		Claimable: util.FormatAmount(&claimable),
		Nonce:     n.nonces[account] + n.pending[account],
	}
}

func (n *Node) Template(id uint64) (types.StreamTemplate, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetTemplate(id)
}

func (n *Node) UserTemplates(owner util.EthereumAddress) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.GetUserTemplates(owner)
}

// LedgerParams returns the protocol constants of the hosted ledger.
func (n *Node) LedgerParams() ledger.Params {
	return n.cfg.Ledger
}
