package policy

// View is the narrow slice of appmgr.Registry's read-only query surface
// that CtxScheduler/SwapGate variants need. It is declared separately here
// (rather than imported from the appmgr package) so that policy has no
// import-time dependency on appmgr: appmgr.Registry satisfies this
// interface structurally, and appmgr.Coordinator passes itself/its registry
// in wherever a View is expected.
type View interface {
	CoreCount() int
	CoreFreeCtxs(core int) int
	TotalFreeCtxs() int
	TotalNotschedApps() int
	CoreFull(core int, onlyRunning, deductSwapout bool) bool
	CoreLoadFactor(core int, onlyRunning bool) float64
	CoreRecentIPC(core int, onlyRunning bool) float64
	LeastLoadedCore(cores []int, onlyRunning bool, tieApp int) (int, error)
	LeastIPCCore(onlyRunning bool) (int, error)
	CoreIdleCtx(core int) (int, bool)
}
