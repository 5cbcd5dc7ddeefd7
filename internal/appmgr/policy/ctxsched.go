package policy

import "fmt"

// CtxScheduler chooses a target context for a ready application.
// schedule_guess_core is optional: variants that don't implement a
// meaningful guess return (noCore, false).
type CtxScheduler interface {
	CtxIdle(id int)
	CtxNotIdle(id int)
	WillSchedule() bool
	ScheduleOne(appID int) (int, bool)
	ScheduleGuessCore(appID int) (int, bool)
}

const noCore = -1

// FirstIdle is a FIFO of idle contexts.
type FirstIdle struct {
	queue []int
}

func NewFirstIdle() *FirstIdle { return &FirstIdle{} }

func (f *FirstIdle) CtxIdle(id int) { f.queue = append(f.queue, id) }

func (f *FirstIdle) CtxNotIdle(id int) {
	for i, v := range f.queue {
		if v == id {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return
		}
	}
}

func (f *FirstIdle) WillSchedule() bool { return len(f.queue) > 0 }

func (f *FirstIdle) ScheduleOne(appID int) (int, bool) {
	if len(f.queue) == 0 {
		return noCore, false
	}
	id := f.queue[0]
	f.queue = f.queue[1:]
	return id, true
}

func (f *FirstIdle) ScheduleGuessCore(appID int) (int, bool) { return noCore, false }

var _ CtxScheduler = (*FirstIdle)(nil)

// coreAwareCtxSched is shared plumbing for the two core-delegating
// variants: both just need to know which contexts are currently idle so
// WillSchedule has an O(1) answer, and both delegate the actual choice to a
// View query.
type coreAwareCtxSched struct {
	view View
	idleCount int
}

func (c *coreAwareCtxSched) CtxIdle(id int) { c.idleCount++ }
func (c *coreAwareCtxSched) CtxNotIdle(id int) { c.idleCount-- }
func (c *coreAwareCtxSched) WillSchedule() bool { return c.idleCount > 0 }

// LightestLoad delegates to the least-loaded core, then picks that core's
// idle context.
type LightestLoad struct{ coreAwareCtxSched }

func NewLightestLoad(v View) *LightestLoad {
	return &LightestLoad{coreAwareCtxSched{view: v}}
}

func (l *LightestLoad) allCores() []int {
	cores := make([]int, l.view.CoreCount())
	for i := range cores {
		cores[i] = i
	}
	return cores
}

func (l *LightestLoad) ScheduleOne(appID int) (int, bool) {
	core, err := l.view.LeastLoadedCore(l.allCores(), false, noCore)
	if err != nil {
		return noCore, false
	}
	ctx, ok := l.view.CoreIdleCtx(core)
	return ctx, ok
}

func (l *LightestLoad) ScheduleGuessCore(appID int) (int, bool) {
	core, err := l.view.LeastLoadedCore(l.allCores(), false, noCore)
	if err != nil {
		return noCore, false
	}
	return core, true
}

var _ CtxScheduler = (*LightestLoad)(nil)

// LeastIpc delegates to the core with the lowest recent IPC.
type LeastIpc struct{ coreAwareCtxSched }

func NewLeastIpc(v View) *LeastIpc {
	return &LeastIpc{coreAwareCtxSched{view: v}}
}

func (l *LeastIpc) ScheduleOne(appID int) (int, bool) {
	core, err := l.view.LeastIPCCore(false)
	if err != nil {
		return noCore, false
	}
	ctx, ok := l.view.CoreIdleCtx(core)
	return ctx, ok
}

func (l *LeastIpc) ScheduleGuessCore(appID int) (int, bool) {
	core, err := l.view.LeastIPCCore(false)
	if err != nil {
		return noCore, false
	}
	return core, true
}

var _ CtxScheduler = (*LeastIpc)(nil)

// Static is a fixed app->context map, validated once at construction.
type Static struct {
	view View
	mapping map[int]int
	allowMissingApps bool
	idleCount int
}

// NewStatic validates mapping up front: duplicate targets are rejected, and
// every target context id must be bounds-checked against the caller's
// context count.
func NewStatic(mapping map[int]int, allowMissingApps bool, ctxCount int) (*Static, error) {
	seen := make(map[int]int, len(mapping))
	for app, ctx := range mapping {
		if ctx < 0 || ctx >= ctxCount {
			return nil, fmt.Errorf("policy: Static mapping for app %d names out-of-range ctx %d", app, ctx)
		}
		if other, dup := seen[ctx]; dup {
			return nil, fmt.Errorf("policy: Static mapping assigns ctx %d to both app %d and app %d", ctx, other, app)
		}
		seen[ctx] = app
	}
	cp := make(map[int]int, len(mapping))
	for k, v := range mapping {
		cp[k] = v
	}
	return &Static{mapping: cp, allowMissingApps: allowMissingApps}, nil
}

func (s *Static) CtxIdle(id int) { s.idleCount++ }
func (s *Static) CtxNotIdle(id int) { s.idleCount-- }
func (s *Static) WillSchedule() bool { return s.idleCount > 0 }

func (s *Static) ScheduleOne(appID int) (int, bool) {
	ctx, ok := s.mapping[appID]
	if !ok {
		if s.allowMissingApps {
			return noCore, false
		}
		panic(fmt.Sprintf("appmgr: Static scheduler has no mapping for app %d and allow_missing_apps=false", appID))
	}
	return ctx, true
}

func (s *Static) ScheduleGuessCore(appID int) (int, bool) { return noCore, false }

var _ CtxScheduler = (*Static)(nil)

// StaticSetAffin schedules each app to the least-loaded context among a
// per-app permitted core set, falling back to any core if ForceSched is set
// and the permitted set is full.
type StaticSetAffin struct {
	view View
	affinity map[int][]int
	forceSched bool
	idleCount int
}

func NewStaticSetAffin(view View, affinity map[int][]int, forceSched bool) *StaticSetAffin {
	cp := make(map[int][]int, len(affinity))
	for k, v := range affinity {
		cores := make([]int, len(v))
		copy(cores, v)
		cp[k] = cores
	}
	return &StaticSetAffin{view: view, affinity: cp, forceSched: forceSched}
}

func (s *StaticSetAffin) CtxIdle(id int) { s.idleCount++ }
func (s *StaticSetAffin) CtxNotIdle(id int) { s.idleCount-- }
func (s *StaticSetAffin) WillSchedule() bool { return s.idleCount > 0 }

func (s *StaticSetAffin) ScheduleOne(appID int) (int, bool) {
	cores, ok := s.affinity[appID]
	if !ok {
		return noCore, false
	}
	if core, err := s.view.LeastLoadedCore(cores, false, noCore); err == nil {
		if ctx, ok := s.view.CoreIdleCtx(core); ok {
			return ctx, true
		}
	}
	if !s.forceSched {
		return noCore, false
	}
	all := make([]int, s.view.CoreCount())
	for i := range all {
		all[i] = i
	}
	core, err := s.view.LeastLoadedCore(all, false, noCore)
	if err != nil {
		return noCore, false
	}
	return s.view.CoreIdleCtx(core)
}

func (s *StaticSetAffin) ScheduleGuessCore(appID int) (int, bool) { return noCore, false }

var _ CtxScheduler = (*StaticSetAffin)(nil)

// OversubscriptionAware is a capability interface: only MutableMap
// implements it, and SwapGate's IfCoreOversubscribed variant requires it
// at setup instead of probing for it with a type assertion at call time.
type OversubscriptionAware interface {
	IsCoreOversubscribed(core int) bool
}

// MutableMap is a runtime-mutable app->core map.
type MutableMap struct {
	view View
	coreOf map[int]int
	schedCount map[int]int // core -> number of apps currently mapped to it
	idleCount int
}

func NewMutableMap(view View) *MutableMap {
	return &MutableMap{
		view: view,
		coreOf: make(map[int]int),
		schedCount: make(map[int]int),
	}
}

func (m *MutableMap) CtxIdle(id int) { m.idleCount++ }
func (m *MutableMap) CtxNotIdle(id int) { m.idleCount-- }
func (m *MutableMap) WillSchedule() bool { return m.idleCount > 0 }

// SchedAddApp maps appID to core (sched_add_app).
func (m *MutableMap) SchedAddApp(appID, core int) {
	if old, ok := m.coreOf[appID]; ok {
		m.schedCount[old]--
	}
	m.coreOf[appID] = core
	m.schedCount[core]++
}

// SchedRemoveApp removes appID's mapping (sched_remove_app).
func (m *MutableMap) SchedRemoveApp(appID int) {
	if core, ok := m.coreOf[appID]; ok {
		m.schedCount[core]--
		delete(m.coreOf, appID)
	}
}

// GCoreSchedCount reports how many apps are currently mapped to core
// (g_core_sched_count).
func (m *MutableMap) GCoreSchedCount(core int) int { return m.schedCount[core] }

// IsCoreOversubscribed implements OversubscriptionAware.
func (m *MutableMap) IsCoreOversubscribed(core int) bool {
	return m.view.CoreFull(core, false, false)
}

func (m *MutableMap) ScheduleOne(appID int) (int, bool) {
	core, ok := m.coreOf[appID]
	if !ok {
		return noCore, false
	}
	if m.view.CoreFull(core, false, false) {
		return noCore, false
	}
	return m.view.CoreIdleCtx(core)
}

func (m *MutableMap) ScheduleGuessCore(appID int) (int, bool) {
	core, ok := m.coreOf[appID]
	return core, ok
}

var _ CtxScheduler = (*MutableMap)(nil)
var _ OversubscriptionAware = (*MutableMap)(nil)
