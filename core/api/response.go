package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/chain"
	"github.com/trufnetwork/streampay/core/ledger"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodePending      = "PENDING"
	CodeConflict     = "CONFLICT"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitResponse is the body returned by POST /v1/tx.
type SubmitResponse struct {
	TxHash string `json:"tx_hash"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Code: code, Message: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": message})
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrStreamNotFound), errors.Is(err, ledger.ErrTemplateNotFound),
		errors.Is(err, chain.ErrTxNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, chain.ErrTxPending):
		return http.StatusNotFound, CodePending
	case errors.Is(err, chain.ErrNonceMismatch), errors.Is(err, chain.ErrTxKnown):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, chain.ErrMempoolFull):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, chain.ErrWrongChain), errors.Is(err, chain.ErrUnknownMethod),
		errors.Is(err, chain.ErrInvalidSignature), errors.Is(err, chain.ErrTxTooLarge):
		return http.StatusBadRequest, CodeInvalidInput
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeError(w, status, code, msg)
}
