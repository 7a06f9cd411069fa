package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/trufnetwork/streampay/core/chain"
	"github.com/trufnetwork/streampay/core/logging"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
	"go.uber.org/zap"
)

// Backend is the node surface the API serves.
type Backend interface {
	SubmitTx(tx *types.Tx) (common.Hash, error)
	Receipt(hash common.Hash) (*types.TxReceipt, error)
	FeePrice() types.FeePrice
	StreamInfo(id uint64) (types.StreamInfo, error)
	UserStreams(account util.EthereumAddress) []uint64
	RecipientStreams(account util.EthereumAddress) []uint64
	ActiveStreamIDs() []uint64
	ActiveStreams() []types.StreamInfo
	ProtocolStats() types.ProtocolStats
	Account(account util.EthereumAddress) types.AccountInfo
	Template(id uint64) (types.StreamTemplate, error)
	UserTemplates(owner util.EthereumAddress) []uint64
	ChainID() string
}

var _ Backend = (*chain.Node)(nil)

type Handler struct {
	backend Backend
	logger  *zap.Logger
}

type Option func(*Handler)

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(backend Backend, options ...Option) *Handler {
	h := &Handler{backend: backend, logger: logging.Logger}
	for _, option := range options {
		option(h)
	}
	return h
}

// NewRouter mounts the API. metrics, when not nil, is served on /metrics.
func NewRouter(handler *Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(handler.recoverMiddleware)
	r.Use(handler.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/chain", handler.getChain)
		r.Get("/stats", handler.getStats)
		r.Get("/fee-price", handler.getFeePrice)

		r.Route("/streams", func(r chi.Router) {
			r.Get("/active", handler.getActiveStreams)
			r.Get("/{id}", handler.getStream)
		})

		r.Route("/accounts/{address}", func(r chi.Router) {
			r.Get("/", handler.getAccount)
			r.Get("/streams/sent", handler.getSentStreams)
			r.Get("/streams/received", handler.getReceivedStreams)
			r.Get("/templates", handler.getUserTemplates)
		})

		r.Get("/templates/{id}", handler.getTemplate)

		r.Post("/tx", handler.submitTx)
		r.Get("/tx/{hash}", handler.getReceipt)
	})
	return r
}
