package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trufnetwork/streampay/core/util"
)

// TxMethod names the ledger operation a transaction invokes.
type TxMethod string

const (
	MethodCreateStream             TxMethod = "createStream"
	MethodCreateGroupStream        TxMethod = "createGroupStream"
	MethodWithdraw                 TxMethod = "withdraw"
	MethodCancel                   TxMethod = "cancel"
	MethodBatchUpdate              TxMethod = "batchUpdate"
	MethodClaim                    TxMethod = "claim"
	MethodCreateTemplate           TxMethod = "createTemplate"
	MethodDeleteTemplate           TxMethod = "deleteTemplate"
	MethodCreateStreamFromTemplate TxMethod = "createStreamFromTemplate"
)

// Gas accounting. batchUpdate costs GasBatchBase plus GasPerStream per id;
// every other method costs GasDefault.
const (
	GasBatchBase uint64 = 50_000
	GasPerStream uint64 = 25_000
	GasDefault   uint64 = 80_000
)

// BatchUpdateGas is the resource cost of settling n streams in one call.
func BatchUpdateGas(n int) uint64 {
	return GasBatchBase + GasPerStream*uint64(n)
}

// Tx is a signed call into the ledger.
type Tx struct {
	ChainID   string               `json:"chain_id"`
	From      util.EthereumAddress `json:"from"`
	Nonce     uint64               `json:"nonce"`
	Method    TxMethod             `json:"method"`
	Payload   json.RawMessage      `json:"payload"`
	Signature []byte               `json:"signature"`
}

// NewTx encodes input as the payload of an unsigned transaction.
func NewTx(chainID string, from util.EthereumAddress, nonce uint64, method TxMethod, input any) (*Tx, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
	}
	return &Tx{ChainID: chainID, From: from, Nonce: nonce, Method: method, Payload: payload}, nil
}

// Hash is the Keccak-256 digest of the signed fields; it identifies the
// transaction and is what the signature covers.
func (t *Tx) Hash() common.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], t.Nonce)
	var chainLen, methodLen [4]byte
	binary.BigEndian.PutUint32(chainLen[:], uint32(len(t.ChainID)))
	binary.BigEndian.PutUint32(methodLen[:], uint32(len(t.Method)))

	return crypto.Keccak256Hash(
		chainLen[:],
		[]byte(t.ChainID),
		t.From.Bytes(),
		nonce[:],
		methodLen[:],
		[]byte(t.Method),
		t.Payload,
	)
}

// TxStatus is the outcome of an included transaction.
type TxStatus string

const (
	TxStatusSuccess  TxStatus = "success"
	TxStatusReverted TxStatus = "reverted"
)

// ErrorClassBenign marks a reverted transaction that found nothing to do,
// such as a withdrawal with zero withdrawable balance.
const ErrorClassBenign = "benign"

// TxReceipt describes an included transaction.
type TxReceipt struct {
	TxHash      common.Hash          `json:"tx_hash"`
	From        util.EthereumAddress `json:"from"`
	Method      TxMethod             `json:"method"`
	Status      TxStatus             `json:"status"`
	Error       string               `json:"error,omitempty"` // revert reason
	ErrorClass  string               `json:"error_class,omitempty"`
	BlockHeight int64                `json:"block_height"`
	BlockTime   int64                `json:"block_time"`
	GasUsed     uint64               `json:"gas_used"`
	Result      json.RawMessage      `json:"result,omitempty"`
	Events      []Event              `json:"events,omitempty"`
}

// Succeeded reports whether the transaction took effect.
func (r *TxReceipt) Succeeded() bool {
	return r != nil && r.Status == TxStatusSuccess
}

// NoOp reports whether the transaction reverted only because there was
// nothing to do. Such reverts are not faults.
func (r *TxReceipt) NoOp() bool {
	return r != nil && r.Status == TxStatusReverted && r.ErrorClass == ErrorClassBenign
}

// DecodeResult unmarshals the method result into out.
func (r *TxReceipt) DecodeResult(out any) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("receipt of %s carries no result", r.TxHash.Hex())
	}
	return json.Unmarshal(r.Result, out)
}
