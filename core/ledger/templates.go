package ledger

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

type template struct {
	ID              uint64
	Owner           util.EthereumAddress
	Name            string
	Recipient       util.EthereumAddress
	AmountPerStream uint256.Int
	Duration        int64
	StreamType      string
	Description     string
	UsageCount      uint64
	Active          bool
	CreatedAt       int64
}

func (t *template) info() types.StreamTemplate {
	return types.StreamTemplate{
		ID:              t.ID,
		Owner:           t.Owner,
		Name:            t.Name,
		Recipient:       t.Recipient,
		AmountPerStream: amountAttr(&t.AmountPerStream),
		Duration:        t.Duration,
		StreamType:      t.StreamType,
		Description:     t.Description,
		UsageCount:      t.UsageCount,
		Active:          t.Active,
		CreatedAt:       t.CreatedAt,
	}
}

// TemplateRequest describes a stream preset. A zero Recipient means the
// recipient is supplied each time the template is used.
type TemplateRequest struct {
	Name            string
	Recipient       util.EthereumAddress
	AmountPerStream uint256.Int
	Duration        int64
	StreamType      string
	Description     string
}

// CreateTemplate stores a preset for owner and charges the template fee to
// the treasury.
func (l *Ledger) CreateTemplate(owner util.EthereumAddress, req TemplateRequest) (uint64, error) {
	if req.Name == "" {
		return 0, errors.Wrap(ErrInvalidTemplate, "name is required")
	}
	if req.AmountPerStream.IsZero() {
		return 0, errors.WithStack(ErrZeroAmount)
	}
	if req.Duration <= 0 {
		return 0, errors.WithStack(ErrInvalidDuration)
	}
	if req.Duration > l.params.MaxDuration {
		return 0, errors.WithStack(ErrDurationTooLong)
	}
	if req.AmountPerStream.Lt(uint256.NewInt(uint64(req.Duration))) {
		return 0, errors.WithStack(ErrAmountBelowDuration)
	}
	if req.Recipient == owner {
		return 0, errors.WithStack(ErrSelfStream)
	}

	var id uint64
	err := l.exec("createTemplate", func() error {
		fee := uint256.NewInt(l.params.TemplateFee)
		if err := l.vault.transfer(l.undo, owner, l.params.Treasury, fee); err != nil {
			return errors.Wrap(err, "charging template fee")
		}
		l.nextTemplateID++
		id = l.nextTemplateID
		l.templates[id] = &template{
			ID:              id,
			Owner:           owner,
			Name:            req.Name,
			Recipient:       req.Recipient,
			AmountPerStream: req.AmountPerStream,
			Duration:        req.Duration,
			StreamType:      req.StreamType,
			Description:     req.Description,
			Active:          true,
			CreatedAt:       l.now(),
		}
		l.undo.push(func() { delete(l.templates, id) })
		l.appendID(l.userTemplates, owner, id)
		l.emit(types.EventTemplateCreated, 0, map[string]string{
			"template_id": idAttr(id),
			"owner":       owner.Address(),
			"name":        req.Name,
			"fee":         amountAttr(fee),
		})
		return nil
	})
	return id, err
}

func (l *Ledger) ownedTemplate(caller util.EthereumAddress, id uint64) (*template, error) {
	t, ok := l.templates[id]
	if !ok {
		return nil, errors.Wrapf(ErrTemplateNotFound, "template %d", id)
	}
	if !t.Active {
		return nil, errors.Wrapf(ErrTemplateInactive, "template %d", id)
	}
	if t.Owner != caller {
		return nil, errors.Wrapf(ErrUnauthorized, "template %d belongs to %s", id, t.Owner.Address())
	}
	return t, nil
}

// DeleteTemplate deactivates one of the caller's templates.
func (l *Ledger) DeleteTemplate(caller util.EthereumAddress, id uint64) error {
	return l.exec("deleteTemplate", func() error {
		t, err := l.ownedTemplate(caller, id)
		if err != nil {
			return err
		}
		l.undo.push(func() { t.Active = true })
		t.Active = false
		l.emit(types.EventTemplateDeleted, 0, map[string]string{
			"template_id": idAttr(id),
			"owner":       caller.Address(),
		})
		return nil
	})
}

// CreateStreamFromTemplate opens a stream from one of the caller's templates.
// recipient overrides the template's and is required when it has none.
func (l *Ledger) CreateStreamFromTemplate(caller util.EthereumAddress, id uint64, recipient util.EthereumAddress) (uint64, error) {
	var streamID uint64
	err := l.exec("createStreamFromTemplate", func() error {
		t, err := l.ownedTemplate(caller, id)
		if err != nil {
			return err
		}
		if recipient.IsZero() {
			recipient = t.Recipient
		}
		s, err := l.openStream(caller, &StreamRequest{
			Recipient:   recipient,
			TotalAmount: t.AmountPerStream,
			Duration:    t.Duration,
			StreamType:  t.StreamType,
			Description: t.Description,
		})
		if err != nil {
			return err
		}
		l.undo.push(func() { t.UsageCount-- })
		t.UsageCount++
		streamID = s.ID
		return nil
	})
	return streamID, err
}
