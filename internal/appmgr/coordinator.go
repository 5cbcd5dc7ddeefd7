package appmgr

import (
	"log/slog"

	"github.com/gofrs/uuid/v5"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr/finitestate"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/policy"
	"github.com/jbrown-smtsim/appmgr/internal/eventqueue"
	"github.com/jbrown-smtsim/appmgr/internal/simcollab"
)

// Halt styles the coordinator itself selects for internally-triggered
// context halts. Callers of SignalHaltApp/MigrateRequest supply their own
// halt_style value, which is simply threaded through to the collaborator.
const (
	haltStyleLongMiss = 0
	haltStyleMigrate = 1
)

// Coordinator is the single-threaded, cooperative scheduler tying together
// the app/context/core registry, the three pluggable policies, the
// spill/fill engine, and the pending migration/halt registries. It owns no
// goroutines, channels, or mutexes: every method assumes it is called from
// one driver loop advancing one monotonic cycle counter.
type Coordinator struct {
	registry *Registry
	policies *policy.Policies
	collab simcollab.Collaborators
	queue *eventqueue.Queue
	sfEngine *SpillFillEngine
	migrations *migrationRegistry
	halts *haltRegistry
	cfg Config
	handler slog.Handler

	setupDone bool
	fatalErr error
}

// New builds a Coordinator. Contexts are registered afterward one at a time
// via RegisterIdleCtx; cfg.CtxCountHint tells the Static scheduler how many
// there will eventually be so it can bounds-check its mapping right now
// instead of waiting for every context to show up.
func New(cfg Config, collab simcollab.Collaborators, queue *eventqueue.Queue, handler slog.Handler) (*Coordinator, error) {
	registry := newRegistry()

	appCount := registry.AppCount
	ctxCount := registry.CtxCount
	activeCount := registry.coreLoadCount

	policies, err := policy.Build(cfg.Policy, registry, appCount, ctxCount, activeCount, cfg.CtxCountHint)
	if err != nil {
		return nil, err
	}

	sfCfg := SpillFillConfig{
		SpillDirtyOnly: cfg.SpillDirtyOnly,
		SpillGHR: cfg.SpillGHR,
		SpillRetstackSize: cfg.SpillRetstackSize,
		SpillDTLBSize: cfg.SpillDTLBSize,
		InstSpillFill: cfg.InstSpillFill,
		InstSpillFillEarly: cfg.InstSpillFillEarly,
		ThreadSwapinCyc: cfg.ThreadSwapinCyc,
		ThreadSwapoutCyc: cfg.ThreadSwapoutCyc,
		RegsPerSFBlock: cfg.RegsPerSFBlock,
		MigrateFillsAreFree: cfg.MigrateFillsAreFree,
	}

	var isClean func(ctx, reg int) bool
	if collab.Dirty != nil {
		isClean = func(ctx, reg int) bool { return !collab.Dirty.IsRegDirty(ctx, reg) }
	}

	return &Coordinator{
		registry: registry,
		policies: policies,
		collab: collab,
		queue: queue,
		sfEngine: NewSpillFillEngine(sfCfg, isClean),
		migrations: newMigrationRegistry(queue),
		halts: newHaltRegistry(),
		cfg: cfg,
		handler: handler,
	}, nil
}

// View exposes the read-only registry query surface, for the stats report
// renderer and for tests.
func (c *Coordinator) View() View { return c.registry }

// Err returns the first fatal error observed while driving a callback that
// had no other way to report it (e.g. a migrate recheck). The embedding
// driver should check this after every RunUpTo/Tick and stop if non-nil.
func (c *Coordinator) Err() error { return c.fatalErr }

// Tick advances the registry's notion of the current cycle without running
// any signal. Call this once per simulated cycle, before draining the
// event queue, so callback-only cycles (no direct signal arrives) still
// see an up-to-date now().
func (c *Coordinator) Tick(now int64) { c.registry.setNow(now) }

func (c *Coordinator) ctxCore(ctx int) int {
	if ctx == noID {
		return noID
	}
	rec, ok := c.registry.ctxs[ctx]
	if !ok {
		return noID
	}
	return rec.CoreID
}

// RegisterIdleCtx inserts a new, initially-idle context on core. Setup-only:
// illegal once SetupDone has latched.
func (c *Coordinator) RegisterIdleCtx(ctx, core int) error {
	if c.setupDone {
		return fatalCtx("register_idle_ctx called after setup_done", ctx)
	}
	if _, exists := c.registry.ctxs[ctx]; exists {
		return fatalCtx("register_idle_ctx: duplicate context id", ctx)
	}
	c.registry.addCtx(newCtxRecord(ctx, core))
	c.policies.CtxSched.CtxIdle(ctx)
	return nil
}

// SetupDone latches setup: further context registrations become illegal,
// further apps may still be added.
func (c *Coordinator) SetupDone() { c.setupDone = true }

// AddReadyApp constructs a new AppRecord in Ready and registers it with the
// AppScheduler.
func (c *Coordinator) AddReadyApp(now int64, app int) error {
	c.registry.setNow(now)
	if _, exists := c.registry.apps[app]; exists {
		return fatalApp("add_ready_app: duplicate app id", app)
	}
	a, err := newAppRecord(app, now, c.handler)
	if err != nil {
		return err
	}
	c.registry.addApp(a)
	c.policies.AppSched.AppReady(app)
	return c.scheduleHook(now)
}

// RemoveApp destroys app's record, tearing down any pending migration/halt
// and, if still Ready, withdrawing it from the AppScheduler.
func (c *Coordinator) RemoveApp(now int64, app int) error {
	c.registry.setNow(now)
	a, ok := c.registry.apps[app]
	if !ok {
		return fatalApp("remove_app: unknown app id", app)
	}
	if a.State() == finitestate.Ready {
		c.policies.AppSched.AppNotReady(app)
	}
	c.migrations.remove(app)
	c.halts.remove(app)
	c.registry.removeApp(app)
	return c.scheduleHook(now)
}

// AlterMutableMapSched routes to the MutableMap CtxScheduler, if configured.
// coreOrNeg1 < 0 removes app's mapping.
func (c *Coordinator) AlterMutableMapSched(app, coreOrNeg1 int) error {
	mm := c.policies.MutableMapRef
	if mm == nil {
		return configErr("alter_mutablemap_sched: sched_ctx is not MutableMap")
	}
	if coreOrNeg1 < 0 {
		mm.SchedRemoveApp(app)
	} else {
		mm.SchedAddApp(app, coreOrNeg1)
	}
	return nil
}

// NoteCommit records that app committed one instruction this cycle, feeding
// the progress-since-swap-in tests the long-miss and migrate paths consult.
func (c *Coordinator) NoteCommit(app int) {
	if a, ok := c.registry.apps[app]; ok {
		a.noteCommit()
	}
}

// SignalLongMiss is external signal 1: app has hit a long-latency miss.
func (c *Coordinator) SignalLongMiss(now int64, app int, missID int64) error {
	c.registry.setNow(now)
	a, ok := c.registry.apps[app]
	if !ok {
		return nil // unmanaged app: ignore entirely
	}
	if a.State() != finitestate.Running {
		a.LongMisses++
		return nil // not Running: just note the miss and return
	}

	allow := c.policies.SwapGate.ShouldSwapOut(app, a.CurrCtx, c.ctxCore(a.CurrCtx))
	if allow && c.cfg.SwapSuppressGuess {
		if guessCore, ok := c.policies.CtxSched.ScheduleGuessCore(app); ok {
			oversubscribed := c.registry.TotalFreeCtxs() < c.registry.TotalNotschedApps()
			if guessCore == c.ctxCore(a.CurrCtx) && !oversubscribed {
				allow = false // swap-suppress-guess veto
			}
		}
	}
	if !allow {
		return c.markStallOnly(now, a)
	}
	if !a.enoughProgressSinceSwapin(now, c.cfg.MinSwapinCommits, c.cfg.MinSwapinCyc) {
		return c.markStallOnly(now, a)
	}
	if mustAbort := c.collab.Cache.RegisterBlockedApp(a.CurrCtx, missID); mustAbort {
		return c.markStallOnly(now, a)
	}

	ctxRec := c.registry.ctxs[a.CurrCtx]
	if err := a.setState(now, finitestate.SwapOutLongMiss); err != nil {
		return err
	}
	a.LongMisses++
	a.LastHaltStart = now
	a.isMigrating = false
	a.LastHaltWasForMigrate = false
	ctxRec.SpillingApp = app
	c.collab.Ctx.HaltSignal(ctxRec.ID, haltStyleLongMiss)
	return c.scheduleHook(now)
}

// markStallOnly transitions a Running app to RunningLongMiss without
// touching its context: the swap-out was refused or suppressed.
func (c *Coordinator) markStallOnly(now int64, a *AppRecord) error {
	if err := a.setState(now, finitestate.RunningLongMiss); err != nil {
		return err
	}
	a.LongMisses++
	if core, ok := c.registry.cores[c.ctxCore(a.CurrCtx)]; ok {
		core.NumAppsStalled++
	}
	return c.scheduleHook(now)
}

// SignalMissDone is external signal 2: app's outstanding long miss resolved.
func (c *Coordinator) SignalMissDone(now int64, app int) error {
	c.registry.setNow(now)
	a, ok := c.registry.apps[app]
	if !ok {
		return c.scheduleHook(now)
	}
	switch a.State() {
	case finitestate.RunningLongMiss:
		if err := a.setState(now, finitestate.Running); err != nil {
			return err
		}
		if core, ok := c.registry.cores[c.ctxCore(a.CurrCtx)]; ok {
			core.NumAppsStalled--
		}
	case finitestate.WaitLongMiss:
		if err := a.setState(now, finitestate.Ready); err != nil {
			return err
		}
		c.policies.AppSched.AppReady(app)
	case finitestate.SwapOutLongMiss:
		if err := a.setState(now, finitestate.SwapOutLongMissCancel); err != nil {
			return err
		}
	}
	return c.scheduleHook(now)
}

// SignalIdleCtx is external signal 3: ctx's running app has gone idle,
// meaning it is safe to start draining its state.
func (c *Coordinator) SignalIdleCtx(now int64, ctx int) error {
	c.registry.setNow(now)
	ctxRec, err := c.registry.GetCtx(ctx)
	if err != nil {
		return err
	}
	if ctxRec.SpillingApp == noID {
		return fatalCtx("context went idle without a pending spill", ctx)
	}
	a := c.registry.apps[ctxRec.SpillingApp]
	a.LastHaltDone = now
	a.DeactHalt.AddSample(now - a.LastHaltStart)

	if c.cfg.InstSpillFill {
		c.queue.Enqueue(now, &sfPumpCB{ctx: ctx, coord: c})
	} else {
		completion := c.collab.Bus.Access(now, c.cfg.ThreadSwapoutCyc)
		c.queue.Enqueue(completion, &swapoutDoneCB{ctx: ctx, coord: c})
	}
	return c.scheduleHook(now)
}

// PrereSetHook must be called just before ctx's context is physically
// reset. It starts the spill cursor and records the spill cycle; it does not
// capture return-stack or DTLB contents, so the fill side has no return
// addresses to push and no DTLB entries to inject.
func (c *Coordinator) PrereSetHook(now int64, ctx int) error {
	c.registry.setNow(now)
	ctxRec, err := c.registry.GetCtx(ctx)
	if err != nil {
		return err
	}
	c.sfEngine.StartSpill(ctxRec, now)
	return nil
}

// SignalFinalFill is external signal 4 (fill variant): the pipeline has
// committed (or renamed, depending on commitNotRename) the final fill
// micro-op for ctx.
func (c *Coordinator) SignalFinalFill(now int64, ctx int, commitNotRename bool) error {
	c.registry.setNow(now)
	ctxRec, err := c.registry.GetCtx(ctx)
	if err != nil {
		return err
	}
	appID := ctxRec.CurrApp
	a, ok := c.registry.apps[appID]
	if !ok {
		return fatalAppCtx("final-fill commit for context with no current app", appID, ctx)
	}
	wasMigrating := a.isMigrating
	a.LastFinalfillCommit = now

	if observeCommit(c.cfg.InstSpillFillEarly, commitNotRename) {
		if err := c.swapinDone(now, ctx); err != nil {
			return err
		}
	}
	a.ActivCommit.AddSample(now - a.LastDispatchCyc)
	if wasMigrating {
		a.MigrateCommit.AddSample(now - a.LastDispatchCyc)
	}
	return c.scheduleHook(now)
}

// SignalFinalSpill is external signal 4 (spill variant): the pipeline has
// committed (or renamed) the final spill micro-op for ctx.
func (c *Coordinator) SignalFinalSpill(now int64, ctx int, commitNotRename bool) error {
	c.registry.setNow(now)
	if observeCommit(c.cfg.InstSpillFillEarly, commitNotRename) {
		return c.swapoutDone(now, ctx, true, true)
	}
	return c.scheduleHook(now)
}

// SignalHaltApp is external signal 5: request that app be halted, invoking
// cb (if non-nil) exactly once after it next reaches Ready.
func (c *Coordinator) SignalHaltApp(now int64, app int, haltStyle int, cb func(appID int)) error {
	c.registry.setNow(now)
	a, err := c.registry.GetApp(app)
	if err != nil {
		return err
	}
	if cb != nil {
		a.RegisterPostHalt(PostHaltCallback{ID: app, Invoke: cb})
	}
	if !c.halts.isPending(app) {
		c.halts.insert(app)
		if err := c.haltAppSoon(now, a, haltStyle); err != nil {
			return err
		}
	}
	return c.scheduleHook(now)
}

// haltAppSoon drives a hosted app toward SwapOutSched. Apps that aren't
// currently hosted have nothing to halt; the registered post-halt callback
// (if any) simply waits for a state that will never need to swap out.
func (c *Coordinator) haltAppSoon(now int64, a *AppRecord, haltStyle int) error {
	if !a.IsHosted() {
		return nil
	}
	if a.State() == finitestate.RunningLongMiss {
		if core, ok := c.registry.cores[c.ctxCore(a.CurrCtx)]; ok {
			core.NumAppsStalled--
		}
	}
	if err := a.setState(now, finitestate.SwapOutSched); err != nil {
		return err
	}
	a.LastHaltStart = now
	a.isMigrating = false
	a.LastHaltWasForMigrate = false
	ctxRec := c.registry.ctxs[a.CurrCtx]
	ctxRec.SpillingApp = a.ID
	c.collab.Ctx.HaltSignal(ctxRec.ID, haltStyle)
	return nil
}

// MigrateAppSoon is the convenience wrapper over MigrateRequest: cancel any
// prior pending migration, then ask to move app to core as soon as
// possible with no reservation and no expiry.
func (c *Coordinator) MigrateAppSoon(now int64, app, core, haltStyle int, doneCB func(appID int)) error {
	c.CancelPendingMigration(app)
	return c.MigrateRequest(now, app, core, noID, now, false, -1, haltStyle, doneCB)
}

// MigrateRequest is external signal 6, full form.
func (c *Coordinator) MigrateRequest(now int64, app, targCore, reservedCtx int, earliest int64, cancelOnMove bool, expireCyc int64, haltStyle int, doneCB func(appID int)) error {
	c.registry.setNow(now)
	if c.migrations.isPending(app) {
		return fatalApp("migrate request: migration already pending for app", app)
	}
	a, err := c.registry.GetApp(app)
	if err != nil {
		return err
	}

	pm := &PendingMigration{
		RequestID: uuid.Must(uuid.NewV6()),
		AppID: app,
		TargCoreID: targCore,
		ReservedCtx: reservedCtx,
		DoneCB: doneCB,
		CancelOnMove: cancelOnMove,
		EarliestCyc: earliest,
		ExpireCyc: expireCyc,
		HaltStyle: haltStyle,
		originCtx: a.CurrCtx,
	}
	if err := c.migrations.insert(pm); err != nil {
		return err
	}
	slog.New(c.handler).Debug("migration requested",
		"request_id", pm.RequestID, "app", app, "targ_core", targCore)

	if now >= earliest && c.migrateCanBegin(pm) {
		if err := c.beginMigration(now, pm); err != nil {
			c.migrations.remove(app)
			return err
		}
		return c.scheduleHook(now)
	}

	recheckAt := earliest
	if now+1 > recheckAt {
		recheckAt = now + 1
	}
	rcb := &migrateRecheckCB{app: app, coord: c}
	pm.recheckCB = rcb
	pm.recheckHandle = c.queue.Enqueue(recheckAt, rcb)
	if expireCyc >= now {
		tcb := &migrateTimeoutCB{app: app, owner: rcb, coord: c}
		pm.timeoutHandle = c.queue.Enqueue(expireCyc, tcb)
		pm.hasTimeout = true
	}
	return c.scheduleHook(now)
}

// CancelPendingMigration withdraws any pending migration for app. Per the
// concurrency model, cancelling a migration whose InProgress flag is
// already set is the caller's mistake to avoid, not something this guards
// against.
func (c *Coordinator) CancelPendingMigration(app int) {
	c.migrations.remove(app)
}

// recheckMigration is migrateRecheckCB's Invoke body: re-examine whether a
// pending migration can begin, cancel it if cancel-on-move fired, or
// reschedule for now+1.
func (c *Coordinator) recheckMigration(app int, cb *migrateRecheckCB) int64 {
	now := c.registry.now()
	pm, ok := c.migrations.get(app)
	if !ok || pm.recheckCB != cb {
		return -1 // stale: already handled by another path
	}
	if pm.CancelOnMove {
		if a, ok := c.registry.apps[app]; ok && a.CurrCtx != pm.originCtx {
			c.migrations.remove(app)
			return -1
		}
	}
	if now >= pm.EarliestCyc && c.migrateCanBegin(pm) {
		if err := c.beginMigration(now, pm); err != nil {
			c.fatalErr = err
			c.migrations.remove(app)
			return -1
		}
		if pm.hasTimeout {
			c.queue.Cancel(pm.timeoutHandle)
			pm.hasTimeout = false
		}
		return -1
	}
	return now + 1
}

// requestIDLog returns the structured logging fields shared by every
// migration lifecycle log line.
func requestIDLog(pm *PendingMigration) []any {
	return []any{"request_id", pm.RequestID, "app", pm.AppID}
}

// timeoutMigration is migrateTimeoutCB's Invoke body: cancel the pending
// migration only if it is still waiting on the same recheck callback this
// timeout was issued for.
func (c *Coordinator) timeoutMigration(app int, owner *migrateRecheckCB) {
	pm, ok := c.migrations.get(app)
	if !ok || pm.recheckCB != owner {
		return
	}
	slog.New(c.handler).Debug("migration request expired", requestIDLog(pm)...)
	c.migrations.remove(app)
}

// migrateCanBegin implements migrate_can_begin: a target context must
// exist, and the app's state must make it eligible to move.
func (c *Coordinator) migrateCanBegin(pm *PendingMigration) bool {
	if pm.ReservedCtx != noID {
		ctx, ok := c.registry.ctxs[pm.ReservedCtx]
		if !ok || (!ctx.IsFree() && ctx.ReservedApp != pm.AppID) {
			return false
		}
	} else if _, ok := c.registry.CoreIdleCtx(pm.TargCoreID); !ok {
		return false
	}

	a, ok := c.registry.apps[pm.AppID]
	if !ok {
		return false
	}
	switch a.State() {
	case finitestate.Ready:
		return true
	case finitestate.Running, finitestate.RunningLongMiss:
		return a.anyProgressSinceSwapin()
	default:
		return false
	}
}

func (c *Coordinator) resolveMigrateTargetCtx(pm *PendingMigration) (int, error) {
	if pm.ReservedCtx != noID {
		return pm.ReservedCtx, nil
	}
	ctx, ok := c.registry.CoreIdleCtx(pm.TargCoreID)
	if !ok {
		return noID, &NoCandidateError{Reason: "migrate target core has no idle context"}
	}
	return ctx, nil
}

// beginMigration implements migrate_can_begin's companion begin-migration
// step: the Ready fast path dispatches directly, everything else goes
// through migrate_running_app.
func (c *Coordinator) beginMigration(now int64, pm *PendingMigration) error {
	pm.InProgress = true
	a := c.registry.apps[pm.AppID]
	slog.New(c.handler).Debug("migration beginning", requestIDLog(pm)...)

	if a.State() == finitestate.Ready {
		targetCtx, err := c.resolveMigrateTargetCtx(pm)
		if err != nil {
			return err
		}
		c.policies.AppSched.AppNotReady(pm.AppID)
		c.policies.CtxSched.CtxNotIdle(targetCtx)
		return c.startApp(now, pm.AppID, targetCtx, true)
	}
	return c.migrateRunningApp(now, pm)
}

func (c *Coordinator) migrateRunningApp(now int64, pm *PendingMigration) error {
	a := c.registry.apps[pm.AppID]
	srcCore := c.ctxCore(a.CurrCtx)
	if srcCore == pm.TargCoreID {
		return fatalAppCore("migrate_running_app: source and target core must differ", pm.AppID, srcCore)
	}
	if a.State() == finitestate.RunningLongMiss {
		if core, ok := c.registry.cores[srcCore]; ok {
			core.NumAppsStalled--
		}
	}

	targetCtx, err := c.resolveMigrateTargetCtx(pm)
	if err != nil {
		return err
	}
	c.policies.CtxSched.CtxNotIdle(targetCtx)

	if err := a.setState(now, finitestate.SwapOutMigrate); err != nil {
		return err
	}
	a.MigrateTarget = targetCtx
	a.LastHaltStart = now
	a.isMigrating = true
	a.LastHaltWasForMigrate = true

	targetCtxRec := c.registry.ctxs[targetCtx]
	targetCtxRec.ReservedApp = pm.AppID
	srcCtxRec := c.registry.ctxs[a.CurrCtx]
	srcCtxRec.SpillingApp = pm.AppID

	c.collab.Ctx.HaltSignal(srcCtxRec.ID, pm.HaltStyle)
	return nil
}

// scheduleHook runs after every external signal: while both policies still
// have something to offer, pop a ready app, ask the CtxScheduler for a
// context, and dispatch. If no context is available the app goes back to
// the front of the AppScheduler and the hook stops for this cycle.
func (c *Coordinator) scheduleHook(now int64) error {
	for c.policies.AppSched.WillSchedule() && c.policies.CtxSched.WillSchedule() {
		app, ok := c.policies.AppSched.ScheduleOne()
		if !ok {
			return nil
		}
		ctx, ok := c.policies.CtxSched.ScheduleOne(app)
		if !ok {
			c.policies.AppSched.UndoSchedule(app)
			return nil
		}
		if err := c.startApp(now, app, ctx, false); err != nil {
			return err
		}
	}
	return nil
}

// startApp binds app to ctx and begins its swap-in, in either coarse
// (fixed-latency callback) or instrumented (SpillFillEngine-driven) mode.
func (c *Coordinator) startApp(now int64, app, ctx int, isMigrateDispatch bool) error {
	a := c.registry.apps[app]
	ctxRec := c.registry.ctxs[ctx]

	if ctxRec.ReservedApp == app {
		ctxRec.ReservedApp = noID
	}
	ctxRec.CurrApp = app

	prevCtx := a.PrevCtx
	if err := a.setState(now, finitestate.SwapIn); err != nil {
		return err
	}
	a.CurrCtx = ctx
	a.LastDispatchCyc = now
	a.isMigrating = isMigrateDispatch
	if isMigrateDispatch {
		a.LastMigrateStart = now
		a.Migrates++
	}
	if prevCtx != noID && c.ctxCore(prevCtx) == ctxRec.CoreID {
		a.SwapinRepeats++
	}
	if prevCtx == noID {
		a.RanBeforeSwap[ctx] = struct{}{}
	}
	a.SwapinCountByCtx.AddCount(ctx, 1)

	core := c.registry.cores[ctxRec.CoreID]
	core.NumAppsSched++

	if c.cfg.InstSpillFill {
		c.sfEngine.StartFill(ctxRec)
		c.queue.Enqueue(now, &sfPumpCB{ctx: ctx, coord: c})
		return nil
	}

	delay := c.cfg.ThreadSwapinCyc
	if a.LastHaltWasForMigrate && c.cfg.MigrateFillsAreFree {
		delay = 0
	}
	c.queue.Enqueue(now+delay, &swapinDoneCB{ctx: ctx, coord: c})
	return nil
}

// swapinDone marks app Running, hands the context to the pipeline, fills
// its return-stack/DTLB state, and completes any in-progress migration for
// it. GHR restoration has no discrete collaborator hook in coarse mode: it
// is only observable as a micro-op in the instrumented SpillFillEngine
// stream.
func (c *Coordinator) swapinDone(now int64, ctx int) error {
	ctxRec, err := c.registry.GetCtx(ctx)
	if err != nil {
		return err
	}
	appID := ctxRec.CurrApp
	a, ok := c.registry.apps[appID]
	if !ok {
		return fatalAppCtx("swapin_done: no current app bound to context", appID, ctx)
	}

	if err := a.setState(now, finitestate.Running); err != nil {
		return err
	}
	a.LastSwapinDone = now
	a.LastSwapinCyc = now
	a.commitsSinceSwapin = 0
	a.ActivFetch.AddSample(now - a.LastDispatchCyc)
	if a.isMigrating {
		a.MigrateFetch.AddSample(now - a.LastDispatchCyc)
	}

	c.collab.Ctx.Go(ctx, appID, now)
	for _, pc := range ReversedRetStack(ctxRec) {
		c.collab.RStack.Push(ctx, pc)
	}
	for _, e := range FillableDTLBEntries(ctxRec) {
		c.collab.TLB.Inject(ctx, now, e.baseAddr, appID)
	}

	if pm, ok := c.migrations.get(appID); ok && pm.InProgress {
		if pm.DoneCB != nil {
			pm.DoneCB(appID)
		}
		c.migrations.remove(appID)
	}
	return nil
}

// swapoutDone drives the two independently-observable halves of a
// completed swap-out: contextNowAvail frees the context for reuse,
// finalSpillCommitted advances the app's state machine and fires its
// post-halt callbacks. At least one is true on every call.
func (c *Coordinator) swapoutDone(now int64, ctx int, contextNowAvail, finalSpillCommitted bool) error {
	ctxRec, err := c.registry.GetCtx(ctx)
	if err != nil {
		return err
	}
	appID := ctxRec.SpillingApp
	if appID == noID {
		return fatalCtx("swapout_done: no spilling app recorded for context", ctx)
	}
	a := c.registry.apps[appID]

	if finalSpillCommitted {
		a.DeactSwapout.AddSample(now - a.LastHaltDone)
		a.DeactSum.AddSample(now - a.LastHaltStart)
		a.LastSwapoutCyc = now
		a.SwapOuts++
		if a.LastHaltStart >= a.LastSwapinCyc {
			a.recordResidency(ctxRec.ID, a.LastHaltStart-a.LastSwapinCyc)
		}
	}

	if contextNowAvail {
		ctxRec.CurrApp = noID
		ctxRec.SpillingApp = noID
		c.policies.CtxSched.CtxIdle(ctx)
		core := c.registry.cores[ctxRec.CoreID]
		core.NumAppsSched--
		core.recordStop(appID, now)
	}

	if finalSpillCommitted {
		next := c.nextStateAfterSwapOut(a.State())
		migrateTarget := a.MigrateTarget
		a.PrevCtx = a.CurrCtx
		a.CurrCtx = noID
		if err := a.setState(now, next); err != nil {
			return err
		}

		// Post-halt callbacks fire exactly once, immediately after the
		// Ready-bound transition -- not after SwapOutLongMiss's Ready-less
		// WaitLongMiss landing, which still has a miss outstanding.
		if next == finitestate.Ready {
			cbs := a.drainPostHalt()
			c.halts.remove(appID)
			if migrateTarget != noID {
				a.MigrateTarget = noID
				if err := c.startApp(now, appID, migrateTarget, true); err != nil {
					return err
				}
			} else {
				c.policies.AppSched.AppReady(appID)
			}
			for _, cb := range cbs {
				cb.Invoke(appID)
			}
		}
	}
	return c.scheduleHook(now)
}

func (c *Coordinator) nextStateAfterSwapOut(state string) string {
	switch state {
	case finitestate.SwapOutLongMiss:
		return finitestate.WaitLongMiss
	default:
		return finitestate.Ready
	}
}

// swapinDoneCB fires the coarse-mode swap-in completion at now+thread_swapin_cyc.
type swapinDoneCB struct {
	ctx int
	coord *Coordinator
}

func (cb *swapinDoneCB) Invoke() int64 {
	if err := cb.coord.swapinDone(cb.coord.registry.now(), cb.ctx); err != nil {
		cb.coord.fatalErr = err
	}
	return -1
}

// swapoutDoneCB fires the coarse-mode swap-out completion at the cycle
// Bus.Access returned for ThreadSwapoutCyc.
type swapoutDoneCB struct {
	ctx int
	coord *Coordinator
}

func (cb *swapoutDoneCB) Invoke() int64 {
	if err := cb.coord.swapoutDone(cb.coord.registry.now(), cb.ctx, true, true); err != nil {
		cb.coord.fatalErr = err
	}
	return -1
}

// sfPumpCB drives the instrumented SpillFillEngine one micro-op per
// invocation, rescheduling itself for now+1 until the pass is exhausted.
type sfPumpCB struct {
	ctx int
	coord *Coordinator
}

func (cb *sfPumpCB) Invoke() int64 {
	ctxRec, err := cb.coord.registry.GetCtx(cb.ctx)
	if err != nil {
		return -1
	}
	inject := func(step sfStep) bool {
		slot, ok := cb.coord.collab.Inject.Alloc(cb.ctx)
		if !ok {
			return false
		}
		cb.coord.collab.Inject.SetSpillFill(slot, step.Reg, step.Final, step.BlockBoundary)
		cb.coord.collab.Inject.AtRename(cb.ctx, slot)
		return true
	}
	res := cb.coord.sfEngine.Advance(ctxRec, inject)
	if res.Done {
		return -1
	}
	return cb.coord.registry.now() + 1
}
