package keeper

import (
	"cmp"
	"slices"

	"github.com/holiman/uint256"
	"github.com/trufnetwork/streampay/core/types"
	"github.com/trufnetwork/streampay/core/util"
)

// Prioritize orders streams for settlement: streams past their stop time
// first, then by unrealized accrual descending, then by id.
func Prioritize(streams []types.StreamInfo, now int64) []uint64 {
	type ranked struct {
		id         uint64
		expired    bool
		unrealized uint256.Int
	}
	list := make([]ranked, 0, len(streams))
	for _, s := range streams {
		// unparseable accrual ranks as zero
		unrealized, _ := util.ParseAmount(s.Unrealized)
		list = append(list, ranked{id: s.ID, expired: s.StopTime <= now, unrealized: unrealized})
	}
	slices.SortFunc(list, func(a, b ranked) int {
		if a.expired != b.expired {
			if a.expired {
				return -1
			}
			return 1
		}
		if c := b.unrealized.Cmp(&a.unrealized); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	ids := make([]uint64, len(list))
	for i := range list {
		ids[i] = list[i].id
	}
	return ids
}

// Partition splits ids into consecutive batches of at most size ids.
func Partition(ids []uint64, size int) [][]uint64 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]uint64, 0, batchesNeeded(len(ids), size))
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
