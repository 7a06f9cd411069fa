package ledger

// undoLog records inverse operations for every mutation made while a ledger
// operation runs. A failed operation replays them in reverse, so no partial
// mutation survives.
type undoLog struct {
	ops []func()
}

func (u *undoLog) push(fn func()) {
	u.ops = append(u.ops, fn)
}

func (u *undoLog) rollback() {
	for i := len(u.ops) - 1; i >= 0; i-- {
		u.ops[i]()
	}
	u.ops = nil
}
