package chain

import "github.com/pkg/errors"

// Admission errors, returned by SubmitTx.
var (
	ErrWrongChain       = errors.New("transaction is for a different chain")
	ErrUnknownMethod    = errors.New("unknown transaction method")
	ErrInvalidSignature = errors.New("signature does not match sender")
	ErrNonceMismatch    = errors.New("unexpected nonce")
	ErrTxKnown          = errors.New("transaction already known")
	ErrMempoolFull      = errors.New("mempool is full")
	ErrTxTooLarge       = errors.New("transaction exceeds block gas limit")
)

// Receipt lookup errors.
var (
	ErrTxPending  = errors.New("transaction is pending")
	ErrTxNotFound = errors.New("transaction not found")
)
