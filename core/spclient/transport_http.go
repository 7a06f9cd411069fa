package spclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/api"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

// HTTPTransport implements Transport against a node's HTTP API using
// standard net/http. This is the default transport used by the SDK.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	chainID  string
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport connects to the node at endpoint and fetches its chain id.
// A nil client uses a default client with a 30s timeout.
//
// Example:
//
//	transport, err := NewHTTPTransport(ctx, "http://localhost:8080", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewHTTPTransport(ctx context.Context, endpoint string, client *http.Client) (*HTTPTransport, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	t := &HTTPTransport{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}
	var chain api.ChainResponse
	if err := t.get(ctx, "/v1/chain", &chain); err != nil {
		return nil, errors.Wrap(err, "failed to fetch chain id")
	}
	if chain.ChainID == "" {
		return nil, errors.New("node reported an empty chain id")
	}
	t.chainID = chain.ChainID
	return t, nil
}

// apiError maps an error body back to the SDK's error values.
func apiError(status int, body []byte) error {
	var resp api.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Code == "" {
		return errors.Errorf("unexpected HTTP status code: %d", status)
	}
	switch resp.Code {
	case api.CodePending:
		return errors.Wrap(ErrTxPending, resp.Message)
	case api.CodeNotFound:
		return errors.Wrap(ErrNotFound, resp.Message)
	}
	return errors.Errorf("%s (HTTP %d): %s", resp.Code, status, resp.Message)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint+path, reader)
	if err != nil {
		return errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}

func (t *HTTPTransport) get(ctx context.Context, path string, out any) error {
	return t.do(ctx, http.MethodGet, path, nil, out)
}

func (t *HTTPTransport) Broadcast(ctx context.Context, tx *types.Tx) (common.Hash, error) {
	var resp api.SubmitResponse
	if err := t.do(ctx, http.MethodPost, "/v1/tx", tx, &resp); err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(resp.TxHash), nil
}

func (t *HTTPTransport) Receipt(ctx context.Context, txHash common.Hash) (*types.TxReceipt, error) {
	var r types.TxReceipt
	if err := t.get(ctx, "/v1/tx/"+txHash.Hex(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *HTTPTransport) WaitTx(ctx context.Context, txHash common.Hash, interval time.Duration) (*types.TxReceipt, error) {
	return waitTx(ctx, t.Receipt, txHash, interval)
}

func (t *HTTPTransport) StreamInfo(ctx context.Context, streamID uint64) (*types.StreamInfo, error) {
	var info types.StreamInfo
	if err := t.get(ctx, "/v1/streams/"+strconv.FormatUint(streamID, 10), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (t *HTTPTransport) accountPath(account util.EthereumAddress, suffix string) string {
	return fmt.Sprintf("/v1/accounts/%s%s", account.Address(), suffix)
}

func (t *HTTPTransport) UserStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error) {
	var ids []uint64
	err := t.get(ctx, t.accountPath(account, "/streams/sent"), &ids)
	return ids, err
}

func (t *HTTPTransport) RecipientStreams(ctx context.Context, account util.EthereumAddress) ([]uint64, error) {
	var ids []uint64
	err := t.get(ctx, t.accountPath(account, "/streams/received"), &ids)
	return ids, err
}

func (t *HTTPTransport) ActiveStreamIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := t.get(ctx, "/v1/streams/active", &ids)
	return ids, err
}

func (t *HTTPTransport) ActiveStreams(ctx context.Context) ([]types.StreamInfo, error) {
	var streams []types.StreamInfo
	err := t.get(ctx, "/v1/streams/active?detail=true", &streams)
	return streams, err
}

func (t *HTTPTransport) ProtocolStats(ctx context.Context) (*types.ProtocolStats, error) {
	var stats types.ProtocolStats
	if err := t.get(ctx, "/v1/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (t *HTTPTransport) Account(ctx context.Context, account util.EthereumAddress) (*types.AccountInfo, error) {
	var info types.AccountInfo
	if err := t.get(ctx, t.accountPath(account, ""), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (t *HTTPTransport) Template(ctx context.Context, templateID uint64) (*types.StreamTemplate, error) {
	var tmpl types.StreamTemplate
	if err := t.get(ctx, "/v1/templates/"+strconv.FormatUint(templateID, 10), &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (t *HTTPTransport) UserTemplates(ctx context.Context, owner util.EthereumAddress) ([]uint64, error) {
	var ids []uint64
	err := t.get(ctx, t.accountPath(owner, "/templates"), &ids)
	return ids, err
}

func (t *HTTPTransport) FeePrice(ctx context.Context) (*types.FeePrice, error) {
	var price types.FeePrice
	if err := t.get(ctx, "/v1/fee-price", &price); err != nil {
		return nil, err
	}
	return &price, nil
}

func (t *HTTPTransport) ChainID() string {
	return t.chainID
}
