package appmgr

import (
	"log/slog"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr/finitestate"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/stats"
)

const noID = -1

// PostHaltCallback is a one-shot notification registered on an AppRecord,
// fired exactly once when the app next reaches Ready from any SwapOut*
// state. ID is the caller-chosen identity used for the uniqueness check;
// Invoke is never called more than once per registration.
type PostHaltCallback struct {
	ID int
	Invoke func(appID int)
}

// AppRecord is the per-application bookkeeping record. Its state is
// driven entirely through setState, the single state-change hook through
// which every state write must funnel.
type AppRecord struct {
	ID int

	fsm *finitestate.Machine

	CurrCtx int // noID when not hosted
	PrevCtx int // noID if never hosted
	MigrateTarget int // meaningful only in SwapOutMigrate

	createdCyc int64

	// Accounting.
	ResidencyByCtx stats.HistCountInt // cycles hosted, keyed by ctx id
	SwapinCountByCtx stats.HistCountInt // swap-in count, keyed by ctx id
	RanBeforeSwap map[int]struct{} // ctx ids the app ran on before any swap
	StateResidence map[string]int64 // cycles spent in each state
	LongMisses int64
	SwapOuts int64
	SwapinRepeats int64
	Migrates int64

	// Timing snapshots for the migrate-latency decomposition
	LastSwapinCyc int64
	LastSwapoutCyc int64
	LastHaltStart int64
	LastMigrateStart int64
	LastHaltDone int64
	LastSwapinDone int64
	LastFinalfillCommit int64

	// LastDispatchCyc is the cycle start_app last bound this app to a
	// context, the baseline the activ_fetch/activ_commit/migrate_fetch/
	// migrate_commit samples are measured from.
	LastDispatchCyc int64

	DeactHalt stats.BasicStat
	DeactSwapout stats.BasicStat
	DeactSum stats.BasicStat
	ActivFetch stats.BasicStat
	ActivCommit stats.BasicStat
	MigrateFetch stats.BasicStat
	MigrateCommit stats.BasicStat

	// isMigrating records whether the in-flight swap-out/swap-in was a
	// migration, so the activ_*/migrate_* stat pair can be split correctly.
	isMigrating bool

	// Progress tracking since the most recent swap-in, used by the
	// min_swapin_commits / min_swapin_cyc eviction threshold and by
	// anyProgressSinceSwapin / enoughProgressSinceSwapin: kept distinct on
	// purpose, they serve different policies.
	commitsSinceSwapin int64
	lastStateEnterCyc int64

	postHaltOrd []PostHaltCallback
	postHaltUniq map[int]struct{}

	// LastHaltWasForMigrate flags that the halt currently in flight was
	// initiated by migrate_running_app, consulted for kMigrateFillsAreFree.
	LastHaltWasForMigrate bool
}

// newAppRecord constructs an AppRecord in its initial Ready state.
func newAppRecord(id int, now int64, handler slog.Handler) (*AppRecord, error) {
	fsm, err := finitestate.New(handler)
	if err != nil {
		return nil, err
	}
	return &AppRecord{
		ID: id,
		fsm: fsm,
		CurrCtx: noID,
		PrevCtx: noID,
		MigrateTarget: noID,
		createdCyc: now,
		ResidencyByCtx: stats.HistCountInt{},
		SwapinCountByCtx: stats.HistCountInt{},
		RanBeforeSwap: make(map[int]struct{}),
		StateResidence: make(map[string]int64),
		lastStateEnterCyc: now,
		postHaltUniq: make(map[int]struct{}),
	}, nil
}

// State returns the app's current lifecycle state.
func (a *AppRecord) State() string { return a.fsm.GetState() }

// setState funnels every state write through one hook:
// it folds the elapsed time in the outgoing state into StateResidence and
// then performs the FSM transition.
func (a *AppRecord) setState(now int64, next string) error {
	prev := a.fsm.GetState()
	a.StateResidence[prev] += now - a.lastStateEnterCyc
	a.lastStateEnterCyc = now
	if err := a.fsm.Transition(next); err != nil {
		return fatalApp("invalid app state transition "+prev+" -> "+next, a.ID)
	}
	return nil
}

// IsHosted reports whether the app currently owns a context (CurrCtx is
// set): true from dispatch into SwapIn until its final spill commits, so
// SwapIn and the SwapOut* states count as hosted, not only Running and
// RunningLongMiss.
func (a *AppRecord) IsHosted() bool { return a.CurrCtx != noID }

// RegisterPostHalt adds cb to the post-halt callback list if no callback
// with the same ID is already registered. Returns false if it was a
// duplicate.
func (a *AppRecord) RegisterPostHalt(cb PostHaltCallback) bool {
	if _, dup := a.postHaltUniq[cb.ID]; dup {
		return false
	}
	a.postHaltUniq[cb.ID] = struct{}{}
	a.postHaltOrd = append(a.postHaltOrd, cb)
	return true
}

// drainPostHalt snapshots and clears the registration list, so that a
// callback registering a new post-halt handler during invocation does not
// get called in the same drain.
func (a *AppRecord) drainPostHalt() []PostHaltCallback {
	snapshot := a.postHaltOrd
	a.postHaltOrd = nil
	a.postHaltUniq = make(map[int]struct{})
	return snapshot
}

// recordResidency accounts for cyc cycles spent hosted on ctx.
func (a *AppRecord) recordResidency(ctx int, cyc int64) {
	a.ResidencyByCtx.AddCount(ctx, cyc)
}

// noteCommit records that the app committed one instruction, feeding the
// min_swapin_commits progress threshold and the any/enough progress tests.
func (a *AppRecord) noteCommit() {
	a.commitsSinceSwapin++
}

// anyProgressSinceSwapin is the migration-feasibility progress test.
func (a *AppRecord) anyProgressSinceSwapin() bool {
	return a.commitsSinceSwapin > 0
}

// enoughProgressSinceSwapin is the long-miss eviction threshold test.
func (a *AppRecord) enoughProgressSinceSwapin(now int64, minCommits, minCyc int64) bool {
	return a.commitsSinceSwapin >= minCommits && (now-a.LastSwapinCyc) >= minCyc
}

// recentIPCCommit reports committed instructions per resident cycle since
// the last swap-in, used by core_recent_ipc.
func (a *AppRecord) recentIPCCommit(now int64) float64 {
	resident := now - a.LastSwapinCyc
	if resident <= 0 {
		return 0
	}
	return float64(a.commitsSinceSwapin) / float64(resident)
}

// sameCoreFraction returns the fraction of swap-ins that reused the prior
// hosting core, derived from SwapinRepeats vs total swap-ins.
func (a *AppRecord) sameCoreFraction() float64 {
	total := a.SwapinCountByCtx.Total()
	if total == 0 {
		return 0
	}
	return float64(a.SwapinRepeats) / float64(total)
}
