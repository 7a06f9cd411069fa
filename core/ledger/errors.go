package ledger

import (
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
)

// Validation errors: the request is malformed; nothing changed.
var (
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrSelfStream          = errors.New("sender cannot stream to itself")
	ErrInvalidDuration     = errors.New("duration must be greater than zero")
	ErrDurationTooLong     = errors.New("duration exceeds maximum stream duration")
	ErrAmountBelowDuration = errors.New("amount is smaller than duration, flow rate would be zero")
	ErrAmountOverflow      = errors.New("amount overflows")
	ErrInvalidGroupSize    = errors.New("invalid number of group recipients")
	ErrUnevenGroupSplit    = errors.New("amount does not divide evenly across recipients")
	ErrEmptyBatch          = errors.New("batch contains no stream ids")
	ErrBatchTooLarge       = errors.New("batch exceeds maximum batch size")
	ErrUpdateTooFrequent   = errors.New("batch update called before minimum update interval elapsed")
	ErrInvalidTemplate     = errors.New("invalid template")
)

// State-conflict errors: the request is well formed but the ledger state forbids it.
var (
	ErrStreamNotFound   = errors.New("stream not found")
	ErrStreamInactive   = errors.New("stream is not active")
	ErrUnauthorized     = errors.New("caller is not authorized for this stream")
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateInactive = errors.New("template is not active")
	ErrReentrantCall    = errors.New("reentrant call")
	// ErrNoFundsAvailable is benign: there is nothing to withdraw or claim yet.
	ErrNoFundsAvailable = errors.New("no funds available")
)

// Resource-transfer errors: a value movement failed and the operation was rolled back.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrFeeReserveExhausted = errors.New("stream fee reserve exhausted")
)

// ErrorClass groups ledger errors by how a caller should react to them.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassStateConflict ErrorClass = "state_conflict"
	ClassBenign        ErrorClass = types.ErrorClassBenign
	ClassTransfer      ErrorClass = "transfer"
	ClassInternal      ErrorClass = "internal"
)

var errorClasses = map[error]ErrorClass{
	ErrZeroAmount:          ClassValidation,
	ErrInvalidRecipient:    ClassValidation,
	ErrSelfStream:          ClassValidation,
	ErrInvalidDuration:     ClassValidation,
	ErrDurationTooLong:     ClassValidation,
	ErrAmountBelowDuration: ClassValidation,
	ErrAmountOverflow:      ClassValidation,
	ErrInvalidGroupSize:    ClassValidation,
	ErrUnevenGroupSplit:    ClassValidation,
	ErrEmptyBatch:          ClassValidation,
	ErrBatchTooLarge:       ClassValidation,
	ErrUpdateTooFrequent:   ClassValidation,
	ErrInvalidTemplate:     ClassValidation,
	ErrStreamNotFound:      ClassStateConflict,
	ErrStreamInactive:      ClassStateConflict,
	ErrUnauthorized:        ClassStateConflict,
	ErrTemplateNotFound:    ClassStateConflict,
	ErrTemplateInactive:    ClassStateConflict,
	ErrReentrantCall:       ClassStateConflict,
	ErrNoFundsAvailable:    ClassBenign,
	ErrInsufficientBalance: ClassTransfer,
	ErrTransferFailed:      ClassTransfer,
	ErrFeeReserveExhausted: ClassTransfer,
}

// Classify maps an error returned by the ledger to its class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	for sentinel, class := range errorClasses {
		if errors.Is(err, sentinel) {
			return class
		}
	}
	return ClassInternal
}

// IsBenign reports whether err is a legitimate no-op outcome rather than a fault.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNoFundsAvailable)
}
