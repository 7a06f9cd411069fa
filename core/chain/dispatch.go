package chain

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/ledger"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

type validatable interface {
	Validate() error
}

func knownMethod(m types.TxMethod) bool {
	switch m {
	case types.MethodCreateStream, types.MethodCreateGroupStream, types.MethodWithdraw,
		types.MethodCancel, types.MethodBatchUpdate, types.MethodClaim,
		types.MethodCreateTemplate, types.MethodDeleteTemplate, types.MethodCreateStreamFromTemplate:
		return true
	}
	return false
}

// gasOf is the resource cost of a transaction. It depends only on the method
// and, for batchUpdate, on the number of ids.
func gasOf(tx *types.Tx) uint64 {
	if tx.Method != types.MethodBatchUpdate {
		return types.GasDefault
	}
	var in types.BatchUpdateInput
	if err := json.Unmarshal(tx.Payload, &in); err != nil {
		return types.GasBatchBase
	}
	return types.BatchUpdateGas(len(in.StreamIDs))
}

func decode(tx *types.Tx, in validatable) error {
	if err := json.Unmarshal(tx.Payload, in); err != nil {
		return errors.Wrapf(err, "decoding %s payload", tx.Method)
	}
	if err := in.Validate(); err != nil {
		return errors.Wrapf(err, "invalid %s payload", tx.Method)
	}
	return nil
}

func marshalResult(result any) (json.RawMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "encoding result")
	}
	return raw, nil
}

func parseOptionalAddress(s string) (util.EthereumAddress, error) {
	if s == "" {
		return util.EthereumAddress{}, nil
	}
	return util.NewEthereumAddressFromString(s)
}

// dispatch runs the ledger operation a transaction invokes. Must hold n.mu.
func (n *Node) dispatch(tx *types.Tx) (any, error) {
	from := tx.From
	switch tx.Method {
	case types.MethodCreateStream:
		var in types.CreateStreamInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		recipient, _ := util.NewEthereumAddressFromString(in.Recipient)
		total, _ := util.ParseAmount(in.TotalAmount)
		id, err := n.ledger.CreateStream(from, ledger.StreamRequest{
			Recipient:   recipient,
			TotalAmount: total,
			Duration:    in.Duration,
			StreamType:  in.StreamType,
			Description: in.Description,
		})
		if err != nil {
			return nil, err
		}
		return types.CreateStreamResult{StreamID: id}, nil

	case types.MethodCreateGroupStream:
		var in types.CreateGroupStreamInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		recipients, _ := util.EthereumAddressesFromStrings(in.Recipients)
		total, _ := util.ParseAmount(in.TotalAmount)
		ids, err := n.ledger.CreateGroupStream(from, ledger.GroupStreamRequest{
			Recipients:  recipients,
			TotalAmount: total,
			Duration:    in.Duration,
			StreamType:  in.StreamType,
			Description: in.Description,
		})
		if err != nil {
			return nil, err
		}
		return types.CreateGroupStreamResult{StreamIDs: ids}, nil

	case types.MethodWithdraw:
		var in types.StreamIDInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		amount, err := n.ledger.Withdraw(from, in.StreamID)
		if err != nil {
			return nil, err
		}
		return types.AmountResult{Amount: util.FormatAmount(&amount)}, nil

	case types.MethodCancel:
		var in types.StreamIDInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		res, err := n.ledger.Cancel(from, in.StreamID)
		if err != nil {
			return nil, err
		}
		return types.CancelResult{
			RecipientBalance: util.FormatAmount(&res.RecipientBalance),
			SenderRefund:     util.FormatAmount(&res.SenderRefund),
			ReserveRefund:    util.FormatAmount(&res.ReserveRefund),
		}, nil

	case types.MethodBatchUpdate:
		var in types.BatchUpdateInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		updated, err := n.ledger.BatchUpdate(from, in.StreamIDs)
		if err != nil {
			return nil, err
		}
		return types.BatchUpdateResult{Updated: updated}, nil

	case types.MethodClaim:
		amount, err := n.ledger.Claim(from)
		if err != nil {
			return nil, err
		}
		return types.AmountResult{Amount: util.FormatAmount(&amount)}, nil

	case types.MethodCreateTemplate:
		var in types.CreateTemplateInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		recipient, _ := parseOptionalAddress(in.Recipient)
		amount, _ := util.ParseAmount(in.AmountPerStream)
		id, err := n.ledger.CreateTemplate(from, ledger.TemplateRequest{
			Name:            in.Name,
			Recipient:       recipient,
			AmountPerStream: amount,
			Duration:        in.Duration,
			StreamType:      in.StreamType,
			Description:     in.Description,
		})
		if err != nil {
			return nil, err
		}
		return types.CreateTemplateResult{TemplateID: id}, nil

	case types.MethodDeleteTemplate:
		var in types.TemplateIDInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		return nil, n.ledger.DeleteTemplate(from, in.TemplateID)

	case types.MethodCreateStreamFromTemplate:
		var in types.CreateStreamFromTemplateInput
		if err := decode(tx, &in); err != nil {
			return nil, err
		}
		recipient, _ := parseOptionalAddress(in.Recipient)
		id, err := n.ledger.CreateStreamFromTemplate(from, in.TemplateID, recipient)
		if err != nil {
			return nil, err
		}
		return types.CreateStreamResult{StreamID: id}, nil
	}
	return nil, errors.Wrapf(ErrUnknownMethod, "%q", tx.Method)
}
