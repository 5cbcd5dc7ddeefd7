package appmgr

// SpillFillConfig holds the process-wide, immutable-after-init parameters
// governing how an app's register/TLB/return-stack state is spilled and
// filled across a context swap.
type SpillFillConfig struct {
	SpillDirtyOnly bool
	SpillGHR bool
	SpillRetstackSize int
	SpillDTLBSize int
	InstSpillFill bool
	InstSpillFillEarly bool
	ThreadSwapinCyc int64
	ThreadSwapoutCyc int64
	RegsPerSFBlock int
	MigrateFillsAreFree bool
}

const (
	numGPRegs = 64
	zeroReg = 0
	noTag = -1
)

// sfStep describes one emitted spill or fill micro-op, the unit the
// simulated pipeline's injector consumes.
type sfStep struct {
	Reg int // register number, or zeroReg for non-register steps
	IsRetStack bool
	IsDTLBVirt bool
	IsDTLBPhys bool
	IsGHR bool
	BlockBoundary bool
	Final bool
}

// SpillFillEngine drives the per-context spill/fill cursor. One engine
// instance is shared process-wide; per-context progress lives in
// CtxRecord.cursor.
type SpillFillEngine struct {
	cfg SpillFillConfig
	isClean func(ctx, reg int) bool // caller-supplied; nil means "nothing is clean"
}

// NewSpillFillEngine constructs an engine. isClean reports whether a given
// register in a given context is currently clean (used only when
// SpillDirtyOnly is set); pass nil to treat every register as dirty.
func NewSpillFillEngine(cfg SpillFillConfig, isClean func(ctx, reg int) bool) *SpillFillEngine {
	return &SpillFillEngine{cfg: cfg, isClean: isClean}
}

// buildSteps enumerates the full ordered step sequence for one pass: GP
// registers 1..63 (skipping the zero register, and clean registers when
// SpillDirtyOnly is set), then the GHR if enabled, then up to
// SpillRetstackSize return-stack entries, then 2x SpillDTLBSize DTLB
// entries (virtual then physical per entry).
func (e *SpillFillEngine) buildSteps(ctx int) []sfStep {
	var steps []sfStep
	for reg := 1; reg < numGPRegs; reg++ { // skip hardware zero register
		if e.cfg.SpillDirtyOnly && e.isClean != nil && e.isClean(ctx, reg) {
			continue
		}
		steps = append(steps, sfStep{Reg: reg})
	}
	if e.cfg.SpillGHR {
		steps = append(steps, sfStep{IsGHR: true})
	}
	for i := 0; i < e.cfg.SpillRetstackSize; i++ {
		steps = append(steps, sfStep{IsRetStack: true})
	}
	for i := 0; i < e.cfg.SpillDTLBSize; i++ {
		steps = append(steps, sfStep{IsDTLBVirt: true})
		steps = append(steps, sfStep{IsDTLBPhys: true})
	}
	n := len(steps)
	for i := range steps {
		if e.cfg.RegsPerSFBlock > 0 && i%e.cfg.RegsPerSFBlock == 0 {
			steps[i].BlockBoundary = true
		}
		if i == n-1 {
			steps[i].BlockBoundary = true
			steps[i].Final = true
		}
	}
	return steps
}

// StartSpill prepares ctx's cursor for a spill pass. Callers invoke this
// just before the context is reset, so the cursor can be consulted while
// the register file is still intact.
func (e *SpillFillEngine) StartSpill(ctx *CtxRecord, now int64) {
	ctx.cursor = spillFillCursor{
		active: true,
		isSpill: true,
		step: 0,
		totalLen: len(e.buildSteps(ctx.ID)),
		spillCyc: now,
	}
}

// StartFill prepares ctx's cursor for a fill pass.
func (e *SpillFillEngine) StartFill(ctx *CtxRecord) {
	ctx.cursor = spillFillCursor{
		active: true,
		isSpill: false,
		step: 0,
	}
	ctx.cursor.totalLen = len(e.buildSteps(ctx.ID))
}

// AdvanceResult reports the outcome of one Advance call.
type AdvanceResult struct {
	BackPressured bool // engine should reschedule for now+1
	Done bool // pass complete
	Step sfStep // the step just emitted (zero if BackPressured or the pass was already complete)
}

// Advance emits the next step of the in-progress pass on ctx, calling
// injectSlot to obtain an injector slot. When injectSlot returns false (no
// slot available), the engine reports back-pressure and leaves the
// cursor untouched so the caller can retry at now+1.
func (e *SpillFillEngine) Advance(ctx *CtxRecord, injectSlot func(step sfStep) bool) AdvanceResult {
	steps := e.buildSteps(ctx.ID)
	if ctx.cursor.step >= len(steps) {
		ctx.cursor.active = false
		return AdvanceResult{Done: true}
	}
	step := steps[ctx.cursor.step]
	if !injectSlot(step) {
		return AdvanceResult{BackPressured: true}
	}
	ctx.cursor.step++
	done := ctx.cursor.step >= len(steps)
	if done {
		ctx.cursor.active = false
	}
	return AdvanceResult{Done: done, Step: step}
}

// FillableDTLBEntries filters ctx's captured DTLB entries down to those
// whose ready time was strictly earlier than the spill cycle; entries
// newer than the spill are discarded rather than filled back in.
func FillableDTLBEntries(ctx *CtxRecord) []dtlbEntry {
	var out []dtlbEntry
	for _, e := range ctx.dtlbEntries {
		if e.readyTime < ctx.cursor.spillCyc {
			out = append(out, e)
		}
	}
	return out
}

// ReversedRetStack returns ctx's captured return-stack contents in
// reverse-of-spill (LIFO pop) order.
func ReversedRetStack(ctx *CtxRecord) []int64 {
	out := make([]int64, len(ctx.retStack))
	for i, v := range ctx.retStack {
		out[len(out)-1-i] = v
	}
	return out
}

// observeCommit maps (early, commitNotRename) to an observable outcome:
// the XOR of the two flags selects "swap-in/out done" versus a pure
// bookkeeping no-op.
func observeCommit(early, commitNotRename bool) bool {
	return early != commitNotRename
}
