package policy

import "fmt"

// fakeView is a hand-rolled View stand-in for exercising the core-delegating
// CtxScheduler/SwapGate variants without a real appmgr.Registry.
type fakeView struct {
	coreCount int
	freeCtxByCore map[int]int // core -> free ctx ids remaining, consumed on CoreIdleCtx
	loadFactor map[int]float64
	recentIPC map[int]float64
	full map[int]bool
	activeCount map[int]int
}

func newFakeView(coreCount int) *fakeView {
	return &fakeView{
		coreCount: coreCount,
		freeCtxByCore: make(map[int]int),
		loadFactor: make(map[int]float64),
		recentIPC: make(map[int]float64),
		full: make(map[int]bool),
		activeCount: make(map[int]int),
	}
}

func (f *fakeView) CoreCount() int { return f.coreCount }
func (f *fakeView) CoreFreeCtxs(core int) int { return f.freeCtxByCore[core] }
func (f *fakeView) TotalFreeCtxs() int {
	total := 0
	for _, v := range f.freeCtxByCore {
		total += v
	}
	return total
}
func (f *fakeView) TotalNotschedApps() int { return 0 }
func (f *fakeView) CoreFull(core int, onlyRunning, deductSwapout bool) bool { return f.full[core] }
func (f *fakeView) CoreLoadFactor(core int, onlyRunning bool) float64 { return f.loadFactor[core] }
func (f *fakeView) CoreRecentIPC(core int, onlyRunning bool) float64 { return f.recentIPC[core] }

func (f *fakeView) LeastLoadedCore(cores []int, onlyRunning bool, tieApp int) (int, error) {
	best := -1
	bestLoad := 0.0
	for _, c := range cores {
		if f.freeCtxByCore[c] < 1 {
			continue
		}
		load := f.loadFactor[c]
		if best == -1 || load < bestLoad {
			best, bestLoad = c, load
		}
	}
	if best == -1 {
		return -1, fmt.Errorf("no core with a free context")
	}
	return best, nil
}

func (f *fakeView) LeastIPCCore(onlyRunning bool) (int, error) {
	best := -1
	bestIPC := 0.0
	for c := 0; c < f.coreCount; c++ {
		if f.freeCtxByCore[c] < 1 {
			continue
		}
		ipc := f.recentIPC[c]
		if best == -1 || ipc < bestIPC {
			best, bestIPC = c, ipc
		}
	}
	if best == -1 {
		return -1, fmt.Errorf("no core with a free context")
	}
	return best, nil
}

func (f *fakeView) CoreIdleCtx(core int) (int, bool) {
	if f.freeCtxByCore[core] < 1 {
		return -1, false
	}
	f.freeCtxByCore[core]--
	return core*100 + f.freeCtxByCore[core], true
}

var _ View = (*fakeView)(nil)
