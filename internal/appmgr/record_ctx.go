package appmgr

// spillFillCursor tracks an in-progress spill or fill pass for one
// context. The step counter is the single source of truth for where the
// pass is, so back-pressure can reschedule the engine for now+1 and
// resume exactly where it left off.
type spillFillCursor struct {
	active bool
	isSpill bool // false means fill
	step int // zero-based step index across the whole pass
	totalLen int // total number of steps in this pass
	spillCyc int64
}

// CtxRecord is the per-context bookkeeping record.
type CtxRecord struct {
	ID int
	CoreID int

	CurrApp int // noID when free
	ReservedApp int // noID when not reserved
	SpillingApp int // noID when no spill in flight

	cursor spillFillCursor

	// extraState is the reconstructable non-register state the fill side
	// restores: return-stack contents (LIFO) and DTLB entries with their
	// ready_time. No code path in the coordinator writes these fields
	// (PrereSetHook does not capture them), so they are always empty.
	retStack []int64 // return addresses, stack order (top = last pushed)
	dtlbEntries []dtlbEntry
}

type dtlbEntry struct {
	baseAddr int64
	readyTime int64
}

func newCtxRecord(id, core int) *CtxRecord {
	return &CtxRecord{
		ID: id,
		CoreID: core,
		CurrApp: noID,
		ReservedApp: noID,
		SpillingApp: noID,
	}
}

// IsFree reports whether the context is neither hosting nor reserved.
func (c *CtxRecord) IsFree() bool {
	return c.CurrApp == noID && c.ReservedApp == noID
}
