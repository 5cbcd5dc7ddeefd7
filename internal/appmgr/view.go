package appmgr

import (
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/finitestate"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/prng"
)

// View is the read-only query surface of Registry: the narrow interface
// policies receive so they can never reach its mutator methods.
type View interface {
	AppCount() int
	CtxCount() int
	CoreCount() int

	AppIDs() []int
	CtxIDs() []int
	CoreIDs() []int

	GetApp(id int) (*AppRecord, error)
	GetCtx(id int) (*CtxRecord, error)
	GetCore(id int) (*CoreRecord, error)

	CoreApps(core int) []int
	CoreRunningApps(core int) int
	CoreSwapoutApps(core int) int
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

// Registry is the concrete store of AppRecord/CtxRecord/CoreRecord, and the
// only type allowed to mutate them. It implements View.
type Registry struct {
	apps map[int]*AppRecord
	ctxs map[int]*CtxRecord
	cores map[int]*CoreRecord

	appOrder []int // insertion order, for deterministic iteration
	ctxOrder []int
	coreOrder []int

	rng *prng.State
	nowCyc int64
}

func newRegistry() *Registry {
	return &Registry{
		apps: make(map[int]*AppRecord),
		ctxs: make(map[int]*CtxRecord),
		cores: make(map[int]*CoreRecord),
		rng: prng.New(),
	}
}

func (r *Registry) AppCount() int { return len(r.apps) }
func (r *Registry) CtxCount() int { return len(r.ctxs) }
func (r *Registry) CoreCount() int { return len(r.cores) }

// AppIDs returns app ids in registration order.
func (r *Registry) AppIDs() []int {
	out := make([]int, len(r.appOrder))
	copy(out, r.appOrder)
	return out
}

// CtxIDs returns context ids in registration order.
func (r *Registry) CtxIDs() []int {
	out := make([]int, len(r.ctxOrder))
	copy(out, r.ctxOrder)
	return out
}

// CoreIDs returns core ids in order of first reference.
func (r *Registry) CoreIDs() []int {
	out := make([]int, len(r.coreOrder))
	copy(out, r.coreOrder)
	return out
}

func (r *Registry) GetApp(id int) (*AppRecord, error) {
	a, ok := r.apps[id]
	if !ok {
		return nil, &UnknownIDError{Kind: "app", ID: id}
	}
	return a, nil
}

func (r *Registry) GetCtx(id int) (*CtxRecord, error) {
	c, ok := r.ctxs[id]
	if !ok {
		return nil, &UnknownIDError{Kind: "ctx", ID: id}
	}
	return c, nil
}

func (r *Registry) GetCore(id int) (*CoreRecord, error) {
	c, ok := r.cores[id]
	if !ok {
		return nil, &UnknownIDError{Kind: "core", ID: id}
	}
	return c, nil
}

// CoreApps returns app ids currently running on contexts of core.
// Excludes contexts that are reserved but not yet running.
func (r *Registry) CoreApps(core int) []int {
	c, ok := r.cores[core]
	if !ok {
		return nil
	}
	var out []int
	for _, ctxID := range c.CtxIDs {
		ctx := r.ctxs[ctxID]
		if ctx.CurrApp != noID {
			out = append(out, ctx.CurrApp)
		}
	}
	return out
}

func (r *Registry) CoreRunningApps(core int) int {
	count := 0
	for _, appID := range r.CoreApps(core) {
		if r.apps[appID].State() == finitestate.Running {
			count++
		}
	}
	return count
}

func (r *Registry) CoreSwapoutApps(core int) int {
	count := 0
	for _, appID := range r.CoreApps(core) {
		switch r.apps[appID].State() {
			case finitestate.SwapOutLongMiss, finitestate.SwapOutMigrate, finitestate.SwapOutSched:
			count++
		}
	}
	return count
}

func (r *Registry) CoreFreeCtxs(core int) int {
	c, ok := r.cores[core]
	if !ok {
		return 0
	}
	count := 0
	for _, ctxID := range c.CtxIDs {
		if r.ctxs[ctxID].IsFree() {
			count++
		}
	}
	return count
}

func (r *Registry) TotalFreeCtxs() int {
	count := 0
	for _, ctx := range r.ctxs {
		if ctx.IsFree() {
			count++
		}
	}
	return count
}

// TotalNotschedApps counts apps whose state is not one that owns a context:
// Ready, WaitLongMiss, and in-flight SwapIn/SwapOut transients are all
// "not currently scheduled" in the coarse app-count-minus-sched sense the
// swap-suppress-guess oversubscription test uses.
func (r *Registry) TotalNotschedApps() int {
	count := 0
	for _, a := range r.apps {
		switch a.State() {
			case finitestate.Running, finitestate.RunningLongMiss:
			// hosted, counts as scheduled
			default:
			count++
		}
	}
	return count
}

// CoreFull implements core_full(core, only_running, deduct_swapout).
func (r *Registry) CoreFull(core int, onlyRunning, deductSwapout bool) bool {
	c, ok := r.cores[core]
	if !ok {
		return true
	}
	count := r.coreLoadCount(core, onlyRunning, deductSwapout)
	return count >= len(c.CtxIDs)
}

func (r *Registry) coreLoadCount(core int, onlyRunning, deductSwapout bool) int {
	c, ok := r.cores[core]
	if !ok {
		return 0
	}
	sched := c.NumAppsSched
	if onlyRunning {
		sched = r.CoreRunningApps(core)
	}
	if deductSwapout {
		sched -= r.CoreSwapoutApps(core)
	}
	return sched
}

func (r *Registry) CoreLoadFactor(core int, onlyRunning bool) float64 {
	c, ok := r.cores[core]
	if !ok || len(c.CtxIDs) == 0 {
		return 0
	}
	count := c.NumAppsSched
	if onlyRunning {
		count = r.CoreRunningApps(core)
	}
	return float64(count) / float64(len(c.CtxIDs))
}

func (r *Registry) CoreRecentIPC(core int, onlyRunning bool) float64 {
	var sum float64
	for _, appID := range r.CoreApps(core) {
		a := r.apps[appID]
		if onlyRunning && a.State() != finitestate.Running {
			continue
		}
		sum += a.recentIPCCommit(r.now())
	}
	return sum
}

// LeastLoadedCore returns the argmin over load factor among cores with
// >=1 free context, breaking ties on the most-recent last-stop timestamp
// for tieApp if tieApp >= 0, else arbitrarily (resolved by enumeration
// order, which is itself shuffled).
func (r *Registry) LeastLoadedCore(cores []int, onlyRunning bool, tieApp int) (int, error) {
	candidates := make([]int, len(cores))
	copy(candidates, cores)
	prng.ShuffleIDs(r.rng, candidates)

	best := noID
	bestLoad := 0.0
	bestStop := int64(-1)
	for _, core := range candidates {
		if r.CoreFreeCtxs(core) < 1 {
			continue
		}
		load := r.CoreLoadFactor(core, onlyRunning)
		if best == noID || load < bestLoad {
			best = core
			bestLoad = load
			if tieApp >= 0 {
				bestStop = r.cores[core].lastStopFor(tieApp)
			}
			continue
		}
		if load == bestLoad && tieApp >= 0 {
			stop := r.cores[core].lastStopFor(tieApp)
			if stop > bestStop {
				best = core
				bestStop = stop
			}
		}
	}
	if best == noID {
		return noID, &NoCandidateError{Reason: "no core with a free context"}
	}
	return best, nil
}

func (r *Registry) LeastIPCCore(onlyRunning bool) (int, error) {
	candidates := make([]int, 0, len(r.cores))
	for id := range r.cores {
		candidates = append(candidates, id)
	}
	prng.ShuffleIDs(r.rng, candidates)

	best := noID
	bestIPC := 0.0
	for _, core := range candidates {
		if r.CoreFreeCtxs(core) < 1 {
			continue
		}
		ipc := r.CoreRecentIPC(core, onlyRunning)
		if best == noID || ipc < bestIPC {
			best = core
			bestIPC = ipc
		}
	}
	if best == noID {
		return noID, &NoCandidateError{Reason: "no core with a free context"}
	}
	return best, nil
}

func (r *Registry) CoreIdleCtx(core int) (int, bool) {
	c, ok := r.cores[core]
	if !ok {
		return noID, false
	}
	for _, ctxID := range c.CtxIDs {
		if r.ctxs[ctxID].IsFree() {
			return ctxID, true
		}
	}
	return noID, false
}

// now is threaded through the Registry by the owning Coordinator via
// setNow before any query that needs the current cycle; see coordinator.go.
func (r *Registry) now() int64 { return r.nowCyc }

// setNow updates the cycle returned by now. The Coordinator calls this at
// the entry of every external signal and on every driver tick.
func (r *Registry) setNow(now int64) { r.nowCyc = now }

// addApp inserts a newly-constructed AppRecord, recording insertion order.
func (r *Registry) addApp(a *AppRecord) {
	r.apps[a.ID] = a
	r.appOrder = append(r.appOrder, a.ID)
}

// removeApp deletes an AppRecord and its insertion-order entry.
func (r *Registry) removeApp(id int) {
	delete(r.apps, id)
	for i, v := range r.appOrder {
		if v == id {
			r.appOrder = append(r.appOrder[:i], r.appOrder[i+1:]...)
			break
		}
	}
}

// addCtx inserts a newly-constructed CtxRecord, creating its owning
// CoreRecord on first reference.
func (r *Registry) addCtx(c *CtxRecord) {
	r.ctxs[c.ID] = c
	r.ctxOrder = append(r.ctxOrder, c.ID)
	core, ok := r.cores[c.CoreID]
	if !ok {
		core = newCoreRecord(c.CoreID)
		r.cores[c.CoreID] = core
		r.coreOrder = append(r.coreOrder, c.CoreID)
	}
	core.CtxIDs = append(core.CtxIDs, c.ID)
}
