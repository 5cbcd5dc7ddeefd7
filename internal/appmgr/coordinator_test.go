package appmgr

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr/finitestate"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/policy"
	"github.com/jbrown-smtsim/appmgr/internal/eventqueue"
	"github.com/jbrown-smtsim/appmgr/internal/simcollab"
)

func testHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})
}

type harness struct {
	coord *Coordinator
	queue *eventqueue.Queue
	ref   *simcollab.Reference
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ref := simcollab.NewReference()
	collab := simcollab.Collaborators{
		Ctx: ref, Bus: ref, Cache: ref, Inject: ref, TLB: ref, RStack: ref, Dirty: ref,
	}
	queue := eventqueue.New()
	coord, err := New(cfg, collab, queue, testHandler())
	require.NoError(t, err)
	return &harness{coord: coord, queue: queue, ref: ref}
}

// driveTo ticks the coordinator and drains the queue up to and including
// cycle now, the protocol the driver loop in cmd/appmgrsim follows.
func (h *harness) driveTo(now int64) {
	h.coord.Tick(now)
	h.queue.RunUpTo(now)
}

func TestAddReadyAppDispatchesToIdleContext(t *testing.T) {
	h := newHarness(t, Config{ThreadSwapinCyc: 5, ThreadSwapoutCyc: 5})
	require.NoError(t, h.coord.RegisterIdleCtx(0, 0))
	h.coord.SetupDone()

	require.NoError(t, h.coord.AddReadyApp(0, 1))

	a, err := h.coord.registry.GetApp(1)
	require.NoError(t, err)
	assert.Equal(t, finitestate.SwapIn, a.State())
	assert.Equal(t, 0, a.CurrCtx)

	h.driveTo(5)
	assert.Equal(t, finitestate.Running, a.State())
	assert.Len(t, h.ref.GoCalls, 1)
}

func TestAddReadyAppQueuesWhenNoIdleContext(t *testing.T) {
	h := newHarness(t, Config{ThreadSwapinCyc: 1})
	h.coord.SetupDone()

	require.NoError(t, h.coord.AddReadyApp(0, 1))
	a, err := h.coord.registry.GetApp(1)
	require.NoError(t, err)
	assert.Equal(t, finitestate.Ready, a.State())
}

func TestRemoveAppWithdrawsReadyApp(t *testing.T) {
	h := newHarness(t, Config{})
	h.coord.SetupDone()
	require.NoError(t, h.coord.AddReadyApp(0, 1))

	require.NoError(t, h.coord.RemoveApp(1, 1))
	_, err := h.coord.registry.GetApp(1)
	assert.Error(t, err)
}

func TestSignalHaltAppFiresPostHaltCallbackOnceReady(t *testing.T) {
	h := newHarness(t, Config{ThreadSwapinCyc: 1, ThreadSwapoutCyc: 1})
	require.NoError(t, h.coord.RegisterIdleCtx(0, 0))
	h.coord.SetupDone()
	require.NoError(t, h.coord.AddReadyApp(0, 1))
	h.driveTo(1)

	called := 0
	require.NoError(t, h.coord.SignalHaltApp(1, 1, 0, func(appID int) { called++ }))
	require.Len(t, h.ref.HaltCalls, 1)

	require.NoError(t, h.coord.SignalIdleCtx(2, 0))
	h.driveTo(h.ref.GoCalls[0].StartCyc + 10)

	a, err := h.coord.registry.GetApp(1)
	require.NoError(t, err)
	assert.Equal(t, finitestate.SwapIn, a.State(), "the halted app reaches Ready and is redispatched onto the freed context")
	assert.Equal(t, 1, called)
}

func TestLongMissStallsWhenSwapGateRefuses(t *testing.T) {
	cfg := Config{ThreadSwapinCyc: 1, Policy: policy.Config{Swap: "Never"}}
	h := newHarness(t, cfg)
	require.NoError(t, h.coord.RegisterIdleCtx(0, 0))
	h.coord.SetupDone()
	require.NoError(t, h.coord.AddReadyApp(0, 1))
	h.driveTo(1)

	require.NoError(t, h.coord.SignalLongMiss(2, 1, 999))
	a, err := h.coord.registry.GetApp(1)
	require.NoError(t, err)
	assert.Equal(t, finitestate.RunningLongMiss, a.State())
	assert.Equal(t, int64(1), a.LongMisses)
}

func TestLongMissFullCycleReturnsToReadyAndRedispatches(t *testing.T) {
	cfg := Config{
		ThreadSwapinCyc: 1, ThreadSwapoutCyc: 1,
		Policy: policy.Config{Swap: "Always"},
	}
	h := newHarness(t, cfg)
	require.NoError(t, h.coord.RegisterIdleCtx(0, 0))
	h.coord.SetupDone()
	require.NoError(t, h.coord.AddReadyApp(0, 1))
	h.driveTo(1)

	require.NoError(t, h.coord.SignalLongMiss(2, 1, 42))
	a, err := h.coord.registry.GetApp(1)
	require.NoError(t, err)
	assert.Equal(t, finitestate.SwapOutLongMiss, a.State())

	require.NoError(t, h.coord.SignalIdleCtx(3, 0))
	h.driveTo(h.ref.GoCalls[len(h.ref.GoCalls)-1].StartCyc + 10)
	// Coarse mode: the swap-out-done callback scheduled on context-idle
	// completes the swap-out; no final-spill signal is involved.
	require.NoError(t, h.coord.Err())

	assert.Equal(t, finitestate.WaitLongMiss, a.State())

	require.NoError(t, h.coord.SignalMissDone(h.coord.registry.now()+1, 1))
	assert.Equal(t, finitestate.SwapIn, a.State(), "a freed context should redispatch the now-Ready app immediately")
}

func TestSignalLongMissOnUnknownAppIsIgnored(t *testing.T) {
	h := newHarness(t, Config{})
	h.coord.SetupDone()
	assert.NoError(t, h.coord.SignalLongMiss(1, 999, 1))
}

func TestMigrateRequestReadyFastPathDispatchesDirectly(t *testing.T) {
	// Static maps only app 1; with missing apps allowed, app 2 stays Ready
	// even though ctx 1 on core 1 is idle.
	h := newHarness(t, Config{ThreadSwapinCyc: 1, CtxCountHint: 2, Policy: policy.Config{
		SchedCtx: "Static", StaticSchedMap: map[int]int{1: 0}, StaticAllowMissingApps: true,
	}})
	require.NoError(t, h.coord.RegisterIdleCtx(0, 0))
	require.NoError(t, h.coord.RegisterIdleCtx(1, 1))
	h.coord.SetupDone()

	require.NoError(t, h.coord.AddReadyApp(0, 1))
	h.driveTo(1) // app 1 dispatched to ctx 0 and running

	require.NoError(t, h.coord.AddReadyApp(1, 2)) // no mapping: stays Ready

	done := false
	require.NoError(t, h.coord.MigrateRequest(2, 2, 1, noID, 2, false, -1, 0, func(appID int) { done = true }))

	a, err := h.coord.registry.GetApp(2)
	require.NoError(t, err)
	assert.Equal(t, finitestate.SwapIn, a.State())
	assert.Equal(t, int64(1), a.Migrates)

	h.driveTo(3)
	assert.True(t, done)
}

func TestAlterMutableMapSchedRequiresMutableMapPolicy(t *testing.T) {
	h := newHarness(t, Config{})
	h.coord.SetupDone()
	err := h.coord.AlterMutableMapSched(1, 0)
	assert.Error(t, err)
}

func TestAlterMutableMapSchedAddsAndRemoves(t *testing.T) {
	h := newHarness(t, Config{Policy: policy.Config{SchedCtx: "MutableMap"}})
	h.coord.SetupDone()

	require.NoError(t, h.coord.AlterMutableMapSched(1, 0))
	require.NoError(t, h.coord.AlterMutableMapSched(1, -1))
}

func TestRegisterIdleCtxRejectsDuplicateAfterSetupDone(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.coord.RegisterIdleCtx(0, 0))
	h.coord.SetupDone()
	err := h.coord.RegisterIdleCtx(0, 0)
	assert.Error(t, err)
}

func TestNoteCommitOnUnknownAppIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	assert.NotPanics(t, func() { h.coord.NoteCommit(999) })
}
