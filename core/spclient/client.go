package spclient

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/auth"
	"github.com/trufnetwork/streampay/core/logging"
	clientType "github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
	"go.uber.org/zap"
)

var (
	// ErrNoSigner is returned by transaction methods of a read-only client.
	ErrNoSigner = errors.New("client has no signer")
	// ErrTxReverted is returned by ReceiptError for a reverted transaction.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrNothingToDo is returned by ReceiptError when the transaction
	// reverted only because there was nothing to do, e.g. a withdrawal with
	// no withdrawable balance. It is not a fault.
	ErrNothingToDo = errors.New("nothing to do")
)

type Client struct {
	Signer    auth.Signer
	Transport Transport `validate:"required"`
	logger    *zap.Logger

	nonceMu  sync.Mutex
	nonce    uint64
	nonceSet bool
}

var _ clientType.Client = (*Client)(nil)

type Option func(*Client)

// NewClient creates a client for the node at provider. Without WithTransport
// it connects over HTTP.
func NewClient(ctx context.Context, provider string, options ...Option) (*Client, error) {
	c := &Client{logger: logging.Logger}
	for _, option := range options {
		option(c)
	}

	if c.Transport == nil {
		transport, err := NewHTTPTransport(ctx, provider, nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		c.Transport = transport
	}

	// Validate the client
	if err := c.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	return c, nil
}

func (c *Client) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func WithSigner(signer auth.Signer) Option {
	return func(c *Client) {
		c.Signer = signer
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.Transport = transport
	}
}

func (c *Client) Address() util.EthereumAddress {
	if c.Signer == nil {
		return util.EthereumAddress{}
	}
	return c.Signer.Address()
}

func (c *Client) WaitForTx(ctx context.Context, txHash common.Hash, interval time.Duration) (*clientType.TxReceipt, error) {
	return c.Transport.WaitTx(ctx, txHash, interval)
}

// ReceiptError turns the outcome of an included transaction into an error:
// nil on success, ErrNothingToDo for a benign no-op and ErrTxReverted for
// any other revert. The revert reason is kept in the message.
func ReceiptError(receipt *clientType.TxReceipt) error {
	switch {
	case receipt == nil:
		return errors.New("no receipt")
	case receipt.Succeeded():
		return nil
	case receipt.NoOp():
		return errors.Wrap(ErrNothingToDo, receipt.Error)
	default:
		return errors.Wrapf(ErrTxReverted, "%s (%s)", receipt.Error, receipt.ErrorClass)
	}
}

// ═══════════════════════════════════════════════════════════════
// TRANSACTIONS
// ═══════════════════════════════════════════════════════════════

type validatable interface {
	Validate() error
}

type emptyInput struct{}

func (emptyInput) Validate() error { return nil }

// execute signs and broadcasts one transaction. Nonces are tracked locally
// after the first transaction and refetched after a failed broadcast.
func (c *Client) execute(ctx context.Context, method clientType.TxMethod, input validatable) (common.Hash, error) {
	if c.Signer == nil {
		return common.Hash{}, errors.WithStack(ErrNoSigner)
	}
	if err := input.Validate(); err != nil {
		return common.Hash{}, errors.WithStack(err)
	}

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	from := c.Signer.Address()
	if !c.nonceSet {
		account, err := c.Transport.Account(ctx, from)
		if err != nil {
			return common.Hash{}, errors.Wrap(err, "failed to fetch nonce")
		}
		c.nonce = account.Nonce
		c.nonceSet = true
	}

	tx, err := clientType.NewTx(c.Transport.ChainID(), from, c.nonce, method, input)
	if err != nil {
		return common.Hash{}, errors.WithStack(err)
	}
	hash := tx.Hash()
	if tx.Signature, err = c.Signer.Sign(hash.Bytes()); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	txHash, err := c.Transport.Broadcast(ctx, tx)
	if err != nil {
		c.nonceSet = false
		return common.Hash{}, errors.WithStack(err)
	}
	c.nonce++

	c.logger.Debug("transaction broadcast",
		zap.String("method", string(method)),
		zap.String("hash", txHash.Hex()),
		zap.Uint64("nonce", tx.Nonce))
	return txHash, nil
}

func (c *Client) CreateStream(ctx context.Context, input clientType.CreateStreamInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodCreateStream, &input)
}

func (c *Client) CreateGroupStream(ctx context.Context, input clientType.CreateGroupStreamInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodCreateGroupStream, &input)
}

func (c *Client) Withdraw(ctx context.Context, input clientType.StreamIDInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodWithdraw, &input)
}

func (c *Client) Cancel(ctx context.Context, input clientType.StreamIDInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodCancel, &input)
}

// BatchUpdate settles the given streams. Anyone may call it; the caller earns
// the keeper fee of every stream it settles.
func (c *Client) BatchUpdate(ctx context.Context, input clientType.BatchUpdateInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodBatchUpdate, &input)
}

func (c *Client) Claim(ctx context.Context) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodClaim, emptyInput{})
}

func (c *Client) CreateTemplate(ctx context.Context, input clientType.CreateTemplateInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodCreateTemplate, &input)
}

func (c *Client) DeleteTemplate(ctx context.Context, input clientType.TemplateIDInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodDeleteTemplate, &input)
}

func (c *Client) CreateStreamFromTemplate(ctx context.Context, input clientType.CreateStreamFromTemplateInput) (common.Hash, error) {
	return c.execute(ctx, clientType.MethodCreateStreamFromTemplate, &input)
}

// ═══════════════════════════════════════════════════════════════
// QUERIES
// ═══════════════════════════════════════════════════════════════

func (c *Client) GetStreamInfo(ctx context.Context, streamID uint64) (*clientType.StreamInfo, error) {
	return c.Transport.StreamInfo(ctx, streamID)
}

func (c *Client) GetUserStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error) {
	return c.Transport.UserStreams(ctx, account)
}

func (c *Client) GetRecipientStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error) {
	return c.Transport.RecipientStreams(ctx, account)
}

func (c *Client) GetActiveStreamIds(ctx context.Context) ([]uint64, error) {
	return c.Transport.ActiveStreamIDs(ctx)
}

func (c *Client) GetActiveStreams(ctx context.Context) ([]clientType.StreamInfo, error) {
	return c.Transport.ActiveStreams(ctx)
}

func (c *Client) GetProtocolStats(ctx context.Context) (*clientType.ProtocolStats, error) {
	return c.Transport.ProtocolStats(ctx)
}

func (c *Client) GetAccount(ctx context.Context, account util.EthereumAddress) (*clientType.AccountInfo, error) {
	return c.Transport.Account(ctx, account)
}

func (c *Client) GetTemplate(ctx context.Context, templateID uint64) (*clientType.StreamTemplate, error) {
	return c.Transport.Template(ctx, templateID)
}

func (c *Client) GetUserTemplates(ctx context.Context, owner util.EthereumAddress) ([]uint64, error) {
	return c.Transport.UserTemplates(ctx, owner)
}

func (c *Client) GetFeePrice(ctx context.Context) (*clientType.FeePrice, error) {
	return c.Transport.FeePrice(ctx)
}
