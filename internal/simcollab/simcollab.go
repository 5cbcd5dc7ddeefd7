// Package simcollab defines the opaque collaborator interfaces an app
// manager consumes (contexts, buses, caches, the injector, the TLB, the
// return stack) and an in-memory reference implementation sufficient to
// drive tests and the demo CLI. Wiring to a real pipeline simulator is
// left to the embedding application.
package simcollab

// ContextController issues the two context-level signals AppMgr calls
// directly: halt a context, and hand a context over to the pipeline to run
// an app starting at a given cycle.
type ContextController interface {
	HaltSignal(ctx int, haltStyle int)
	Go(ctx int, appID int, startCyc int64)
}

// Bus models a shared bus access, returning the completion cycle.
type Bus interface {
	Access(now int64, opTime int64) int64
}

// CacheSubsystem lets AppMgr register a blocked app against the cache
// subsystem (so hardware can track the outstanding miss) and query cache
// populations for stats.
type CacheSubsystem interface {
	RegisterBlockedApp(ctx int, missID int64) bool // false = success, true = must abort
	GetPopulation(cacheLevel int, appID int) int
}

// Injector drives synthetic spill/fill micro-ops into the pipeline.
type Injector interface {
	Alloc(ctx int) (slot int, ok bool)
	SetSpillFill(slot, reg int, isFinal, isBlockBoundary bool)
	AtRename(ctx int, slot int)
}

// TLB lets the engine inject a DTLB entry during a fill.
type TLB interface {
	Inject(dtlb int, cyc int64, baseAddr int64, appID int)
}

// ReturnStack lets the engine push/pop return-address entries during
// spill/fill.
type ReturnStack interface {
	Push(ctx int, pc int64)
	Pop(ctx int) int64 // returns 0 if empty
}

// DirtyRegQuery lets the spill/fill engine ask the pipeline's rename state
// whether a register actually needs spilling. Optional: a nil DirtyRegQuery
// means every register is treated as dirty, so spill_dirty_only has no
// effect.
type DirtyRegQuery interface {
	IsRegDirty(ctx, reg int) bool
}

// Collaborators bundles everything a Coordinator needs from the host
// simulator.
type Collaborators struct {
	Ctx ContextController
	Bus Bus
	Cache CacheSubsystem
	Inject Injector
	TLB TLB
	RStack ReturnStack

	// Dirty is consulted by the spill/fill engine only when
	// spill_dirty_only is set; leave nil to spill every register.
	Dirty DirtyRegQuery
}
