package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
	"go.uber.org/zap"
)

// ChainResponse is the body of GET /v1/chain.
type ChainResponse struct {
	ChainID string `json:"chain_id"`
}

func idParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func addressParam(r *http.Request) (util.EthereumAddress, bool) {
	addr, err := util.NewEthereumAddressFromString(chi.URLParam(r, "address"))
	return addr, err == nil
}

func ids(list []uint64) []uint64 {
	if list == nil {
		return []uint64{}
	}
	return list
}

func (h *Handler) getChain(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ChainResponse{ChainID: h.backend.ChainID()})
}

func (h *Handler) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.ProtocolStats())
}

func (h *Handler) getFeePrice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.FeePrice())
}

func (h *Handler) getStream(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "stream id must be a positive integer")
		return
	}
	info, err := h.backend.StreamInfo(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// getActiveStreams returns the active ids, or full records with ?detail=true.
func (h *Handler) getActiveStreams(w http.ResponseWriter, r *http.Request) {
	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		streams := h.backend.ActiveStreams()
		if streams == nil {
			streams = []types.StreamInfo{}
		}
		writeJSON(w, http.StatusOK, streams)
		return
	}
	writeJSON(w, http.StatusOK, ids(h.backend.ActiveStreamIDs()))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid address")
		return
	}
	writeJSON(w, http.StatusOK, h.backend.Account(addr))
}

func (h *Handler) getSentStreams(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid address")
		return
	}
	writeJSON(w, http.StatusOK, ids(h.backend.UserStreams(addr)))
}

func (h *Handler) getReceivedStreams(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid address")
		return
	}
	writeJSON(w, http.StatusOK, ids(h.backend.RecipientStreams(addr)))
}

func (h *Handler) getUserTemplates(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid address")
		return
	}
	writeJSON(w, http.StatusOK, ids(h.backend.UserTemplates(addr)))
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "template id must be a positive integer")
		return
	}
	tmpl, err := h.backend.Template(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *Handler) submitTx(w http.ResponseWriter, r *http.Request) {
	var tx types.Tx
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid transaction body")
		return
	}
	hash, err := h.backend.SubmitTx(&tx)
	if err != nil {
		h.logger.Debug("transaction rejected",
			zap.String("from", tx.From.Address()),
			zap.String("method", string(tx.Method)),
			zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{TxHash: hash.Hex()})
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "hash")
	if len(raw) != 66 || raw[:2] != "0x" {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid transaction hash")
		return
	}
	receipt, err := h.backend.Receipt(common.HexToHash(raw))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
