package ledger

import (
	"strconv"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
	"go.uber.org/zap"
)

// BatchUpdate realizes every listed stream up to now, paying the keeper fees
// to caller, and returns how many streams were actually settled. Anyone may
// call it. Unknown, inactive and repeated ids are no-ops. Streams that reach
// their stop time are deactivated and their remaining balances become
// claimable by the parties.
//
// Empty batches, batches larger than MaxBatchSize, and calls within MinUpdateInterval of the
// previous batch, are rejected without effect.
func (l *Ledger) BatchUpdate(caller util.EthereumAddress, streamIDs []uint64) (int, error) {
	if len(streamIDs) == 0 {
		return 0, errors.WithStack(ErrEmptyBatch)
	}
	if len(streamIDs) > l.params.MaxBatchSize {
		return 0, errors.Wrapf(ErrBatchTooLarge, "%d ids, max %d", len(streamIDs), l.params.MaxBatchSize)
	}

	var updated int
	err := l.exec("batchUpdate", func() error {
		now := l.now()
		if l.lastBatchUpdateTime != 0 && now-l.lastBatchUpdateTime < l.params.MinUpdateInterval {
			return errors.Wrapf(ErrUpdateTooFrequent, "last batch at %d, now %d", l.lastBatchUpdateTime, now)
		}

		var fees uint256.Int
		for _, id := range streamIDs {
			s, ok := l.streams[id]
			if !ok {
				continue
			}
			res, err := l.realize(s, caller)
			if err != nil {
				return errors.Wrapf(err, "settling stream %d", id)
			}
			if !res.settled {
				continue
			}
			updated++
			fees.Add(&fees, &res.fee)
			if res.completed {
				if _, err := l.closeOut(s, false); err != nil {
					return err
				}
			}
		}

		l.totalUpdates += uint64(updated)
		l.lastBatchUpdateTime = now
		l.emit(types.EventBatchUpdatePerformed, 0, map[string]string{
			"caller":    caller.Address(),
			"count":     strconv.Itoa(updated),
			"requested": strconv.Itoa(len(streamIDs)),
			"fees":      amountAttr(&fees),
			"gas":       strconv.FormatUint(types.BatchUpdateGas(len(streamIDs)), 10),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.logger.Debug("batch update performed",
		zap.String("caller", caller.Address()),
		zap.Int("requested", len(streamIDs)),
		zap.Int("updated", updated))
	return updated, nil
}
