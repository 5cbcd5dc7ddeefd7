package simcollab

// Reference is a minimal in-memory stand-in for a real pipeline simulator,
// just enough to let AppMgr's coordinator run end to end in tests and the
// demo CLI. It never fails a cache registration or injector allocation, so
// tests exercising back-pressure/refusal paths configure the relevant
// field directly (DenyCacheRegister, InjectorOutOfSlots).
type Reference struct {
	HaltCalls []HaltCall
	GoCalls   []GoCall

	DenyCacheRegister bool
	InjectorOutOfSlots bool

	nextSlot int
	slots    map[int]slotRecord

	retStacks map[int][]int64

	dirtyRegs map[[2]int]bool
}

type HaltCall struct {
	Ctx       int
	HaltStyle int
}

type GoCall struct {
	Ctx      int
	AppID    int
	StartCyc int64
}

type slotRecord struct {
	ctx, reg        int
	isFinal, isBlock bool
}

// NewReference constructs a Reference with all collaborator behaviors
// wired to their no-op/always-succeed defaults.
func NewReference() *Reference {
	return &Reference{
		slots:     make(map[int]slotRecord),
		retStacks: make(map[int][]int64),
		dirtyRegs: make(map[[2]int]bool),
	}
}

// SetRegDirty records whether ctx's reg is dirty, for tests exercising
// spill_dirty_only. Registers default to dirty until set otherwise.
func (r *Reference) SetRegDirty(ctx, reg int, dirty bool) {
	r.dirtyRegs[[2]int{ctx, reg}] = dirty
}

// IsRegDirty reports whether ctx's reg is dirty. Unset registers default to
// dirty, matching the always-spill behavior of a nil DirtyRegQuery.
func (r *Reference) IsRegDirty(ctx, reg int) bool {
	dirty, ok := r.dirtyRegs[[2]int{ctx, reg}]
	if !ok {
		return true
	}
	return dirty
}

func (r *Reference) HaltSignal(ctx int, haltStyle int) {
	r.HaltCalls = append(r.HaltCalls, HaltCall{Ctx: ctx, HaltStyle: haltStyle})
}

func (r *Reference) Go(ctx int, appID int, startCyc int64) {
	r.GoCalls = append(r.GoCalls, GoCall{Ctx: ctx, AppID: appID, StartCyc: startCyc})
}

func (r *Reference) Access(now int64, opTime int64) int64 { return now + opTime }

func (r *Reference) RegisterBlockedApp(ctx int, missID int64) bool {
	return r.DenyCacheRegister
}

func (r *Reference) GetPopulation(cacheLevel int, appID int) int { return 0 }

func (r *Reference) Alloc(ctx int) (int, bool) {
	if r.InjectorOutOfSlots {
		return 0, false
	}
	r.nextSlot++
	id := r.nextSlot
	r.slots[id] = slotRecord{ctx: ctx}
	return id, true
}

func (r *Reference) SetSpillFill(slot, reg int, isFinal, isBlockBoundary bool) {
	rec := r.slots[slot]
	rec.reg, rec.isFinal, rec.isBlock = reg, isFinal, isBlockBoundary
	r.slots[slot] = rec
}

func (r *Reference) AtRename(ctx int, slot int) {
	delete(r.slots, slot)
}

func (r *Reference) Inject(dtlb int, cyc int64, baseAddr int64, appID int) {}

func (r *Reference) Push(ctx int, pc int64) {
	r.retStacks[ctx] = append(r.retStacks[ctx], pc)
}

func (r *Reference) Pop(ctx int) int64 {
	stack := r.retStacks[ctx]
	if len(stack) == 0 {
		return 0
	}
	pc := stack[len(stack)-1]
	r.retStacks[ctx] = stack[:len(stack)-1]
	return pc
}

var (
	_ ContextController = (*Reference)(nil)
	_ Bus               = (*Reference)(nil)
	_ CacheSubsystem    = (*Reference)(nil)
	_ Injector          = (*Reference)(nil)
	_ TLB               = (*Reference)(nil)
	_ ReturnStack       = (*Reference)(nil)
	_ DirtyRegQuery     = (*Reference)(nil)
)
