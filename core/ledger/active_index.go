package ledger

// activeIndex is the set of active stream ids. Membership, insertion and
// removal are O(1): pos records each id's slot in ids, and removal moves the
// last id into the freed slot. Iteration order is not stable.
type activeIndex struct {
	ids []uint64
	pos map[uint64]int
}

func newActiveIndex() *activeIndex {
	return &activeIndex{pos: make(map[uint64]int)}
}

func (a *activeIndex) contains(id uint64) bool {
	_, ok := a.pos[id]
	return ok
}

func (a *activeIndex) add(id uint64) bool {
	if a.contains(id) {
		return false
	}
	a.pos[id] = len(a.ids)
	a.ids = append(a.ids, id)
	return true
}

func (a *activeIndex) remove(id uint64) bool {
	i, ok := a.pos[id]
	if !ok {
		return false
	}
	last := len(a.ids) - 1
	moved := a.ids[last]
	a.ids[i] = moved
	a.pos[moved] = i
	a.ids = a.ids[:last]
	delete(a.pos, id)
	return true
}

func (a *activeIndex) len() int {
	return len(a.ids)
}

func (a *activeIndex) snapshot() []uint64 {
	out := make([]uint64, len(a.ids))
	copy(out, a.ids)
	return out
}
