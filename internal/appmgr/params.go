package appmgr

import "github.com/jbrown-smtsim/appmgr/internal/appmgr/policy"

// Config is the coordinator-level configuration, beyond what
// policy.Config already covers.
type Config struct {
	Policy policy.Config

	// CtxCountHint is the total context count the Static scheduler
	// bounds-checks its mapping against at construction time. Contexts are
	// actually registered one at a time via RegisterIdleCtx after New
	// returns, so this is a hint the caller supplies up front rather than
	// something the coordinator can count for itself yet.
	CtxCountHint int

	SwapSuppressGuess bool

	InstSpillFill bool
	InstSpillFillEarly bool
	SpillDirtyOnly bool
	SpillGHR bool
	SpillRetstackSize int
	SpillDTLBSize int
	RegsPerSFBlock int

	ThreadSwapinCyc int64
	ThreadSwapoutCyc int64

	MinSwapinCommits int64
	MinSwapinCyc int64

	MigrateFillsAreFree bool

	// BusAccessTime is carried from configuration but the coordinator does
	// not read it: the coarse-mode swap-out-done callback fires at the cycle
	// Bus.Access returns for ThreadSwapoutCyc.
	BusAccessTime int64
}
