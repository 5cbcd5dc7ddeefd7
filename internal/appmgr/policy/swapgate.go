package policy

// SwapGate decides whether a stalled resident app should be evicted from
// its context.
type SwapGate interface {
	ShouldSwapOut(appID, ctxID, core int) bool
}

// gateConfig carries the two configuration booleans that parameterize
// "active count": deductNonrun and deductSwapout.
type gateConfig struct {
	view View
	deductNonrun bool
	deductSwapout bool
}

// IfProcFull swaps out whenever the whole system is oversubscribed
// (apps > contexts).
type IfProcFull struct {
	appCount func() int
	ctxCount func() int
}

func NewIfProcFull(appCount, ctxCount func() int) *IfProcFull {
	return &IfProcFull{appCount: appCount, ctxCount: ctxCount}
}

func (g *IfProcFull) ShouldSwapOut(appID, ctxID, core int) bool {
	return g.appCount() > g.ctxCount()
}

var _ SwapGate = (*IfProcFull)(nil)

// IfCoreFull swaps out when core_full holds for the configured deduct flags.
type IfCoreFull struct{ gateConfig }

func NewIfCoreFull(v View, deductNonrun, deductSwapout bool) *IfCoreFull {
	return &IfCoreFull{gateConfig{view: v, deductNonrun: deductNonrun, deductSwapout: deductSwapout}}
}

func (g *IfCoreFull) ShouldSwapOut(appID, ctxID, core int) bool {
	return g.view.CoreFull(core, !g.deductNonrun, g.deductSwapout)
}

var _ SwapGate = (*IfCoreFull)(nil)

// IfNotSolo swaps out unless this app is the only one active on its core.
type IfNotSolo struct {
	gateConfig
	activeCount func(core int, deductNonrun, deductSwapout bool) int
}

func NewIfNotSolo(v View, activeCount func(core int, deductNonrun, deductSwapout bool) int, deductNonrun, deductSwapout bool) *IfNotSolo {
	return &IfNotSolo{gateConfig{view: v, deductNonrun: deductNonrun, deductSwapout: deductSwapout}, activeCount}
}

func (g *IfNotSolo) ShouldSwapOut(appID, ctxID, core int) bool {
	return g.activeCount(core, g.deductNonrun, g.deductSwapout) > 1
}

var _ SwapGate = (*IfNotSolo)(nil)

// Always and Never are the unconditional gates.
type Always struct{}

func (Always) ShouldSwapOut(appID, ctxID, core int) bool { return true }

type Never struct{}

func (Never) ShouldSwapOut(appID, ctxID, core int) bool { return false }

var (
	_ SwapGate = Always{}
	_ SwapGate = Never{}
)

// IfCoreOversubscribed is only valid paired with a MutableMap CtxScheduler:
// it requires the OversubscriptionAware capability at construction time
// rather than down-casting to MutableMap at call time.
type IfCoreOversubscribed struct {
	capable OversubscriptionAware
}

// NewIfCoreOversubscribed wraps capable without checking it for nil; Build
// returns an error for this gate unless the context scheduler is
// MutableMap, so Build never passes nil.
func NewIfCoreOversubscribed(capable OversubscriptionAware) *IfCoreOversubscribed {
	return &IfCoreOversubscribed{capable: capable}
}

func (g *IfCoreOversubscribed) ShouldSwapOut(appID, ctxID, core int) bool {
	return g.capable.IsCoreOversubscribed(core)
}

var _ SwapGate = (*IfCoreOversubscribed)(nil)
