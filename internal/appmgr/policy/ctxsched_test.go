package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstIdleFIFO(t *testing.T) {
	f := NewFirstIdle()
	assert.False(t, f.WillSchedule())

	f.CtxIdle(5)
	f.CtxIdle(6)
	require.True(t, f.WillSchedule())

	ctx, ok := f.ScheduleOne(0)
	require.True(t, ok)
	assert.Equal(t, 5, ctx)
}

func TestFirstIdleScheduleGuessCoreAlwaysDeclines(t *testing.T) {
	f := NewFirstIdle()
	f.CtxIdle(1)
	_, ok := f.ScheduleGuessCore(0)
	assert.False(t, ok)
}

func TestFirstIdleCtxNotIdleRemoves(t *testing.T) {
	f := NewFirstIdle()
	f.CtxIdle(1)
	f.CtxIdle(2)
	f.CtxNotIdle(1)

	ctx, ok := f.ScheduleOne(0)
	require.True(t, ok)
	assert.Equal(t, 2, ctx)
}

func TestLightestLoadGuessesLeastLoadedCore(t *testing.T) {
	v := newFakeView(2)
	v.freeCtxByCore[0] = 1
	v.freeCtxByCore[1] = 1
	v.loadFactor[0] = 0.8
	v.loadFactor[1] = 0.2

	l := NewLightestLoad(v)
	l.CtxIdle(100)

	core, ok := l.ScheduleGuessCore(0)
	require.True(t, ok)
	assert.Equal(t, 1, core)
}

func TestLightestLoadNoCandidateWhenNoFreeCores(t *testing.T) {
	v := newFakeView(2)
	l := NewLightestLoad(v)
	l.CtxIdle(1)

	_, ok := l.ScheduleOne(0)
	assert.False(t, ok)
}

func TestLeastIpcPicksLowestIPCCore(t *testing.T) {
	v := newFakeView(2)
	v.freeCtxByCore[0] = 1
	v.freeCtxByCore[1] = 1
	v.recentIPC[0] = 1.5
	v.recentIPC[1] = 0.3

	l := NewLeastIpc(v)
	l.CtxIdle(1)

	core, ok := l.ScheduleGuessCore(0)
	require.True(t, ok)
	assert.Equal(t, 1, core)
}

func TestStaticRejectsOutOfRangeCtx(t *testing.T) {
	_, err := NewStatic(map[int]int{1: 5}, false, 3)
	assert.Error(t, err)
}

func TestStaticRejectsDuplicateTargetCtx(t *testing.T) {
	_, err := NewStatic(map[int]int{1: 0, 2: 0}, false, 3)
	assert.Error(t, err)
}

func TestStaticScheduleOneReturnsMappedCtx(t *testing.T) {
	s, err := NewStatic(map[int]int{1: 2}, false, 3)
	require.NoError(t, err)

	ctx, ok := s.ScheduleOne(1)
	require.True(t, ok)
	assert.Equal(t, 2, ctx)
}

func TestStaticAllowMissingAppsReturnsFalse(t *testing.T) {
	s, err := NewStatic(map[int]int{1: 0}, true, 3)
	require.NoError(t, err)

	_, ok := s.ScheduleOne(99)
	assert.False(t, ok)
}

func TestStaticPanicsOnMissingAppWhenNotAllowed(t *testing.T) {
	s, err := NewStatic(map[int]int{1: 0}, false, 3)
	require.NoError(t, err)

	assert.Panics(t, func() { s.ScheduleOne(99) })
}

func TestStaticSetAffinPrefersPermittedCoreSet(t *testing.T) {
	v := newFakeView(3)
	v.freeCtxByCore[0] = 1
	v.freeCtxByCore[2] = 1
	v.loadFactor[0] = 0.1
	v.loadFactor[2] = 0.9

	s := NewStaticSetAffin(v, map[int][]int{1: {2}}, false)
	s.CtxIdle(1)

	ctx, ok := s.ScheduleOne(1)
	require.True(t, ok)
	assert.Equal(t, 200, ctx)
}

func TestStaticSetAffinFallsBackWhenForceSched(t *testing.T) {
	v := newFakeView(2)
	v.freeCtxByCore[1] = 1
	v.loadFactor[1] = 0.5

	s := NewStaticSetAffin(v, map[int][]int{1: {0}}, true)
	s.CtxIdle(1)

	ctx, ok := s.ScheduleOne(1)
	require.True(t, ok)
	assert.Equal(t, 100, ctx)
}

func TestStaticSetAffinRefusesWithoutForceSched(t *testing.T) {
	v := newFakeView(2)
	v.freeCtxByCore[1] = 1

	s := NewStaticSetAffin(v, map[int][]int{1: {0}}, false)
	s.CtxIdle(1)

	_, ok := s.ScheduleOne(1)
	assert.False(t, ok)
}

func TestMutableMapRoutesThroughCoreMapping(t *testing.T) {
	v := newFakeView(2)
	v.freeCtxByCore[0] = 1

	m := NewMutableMap(v)
	m.CtxIdle(1)
	m.SchedAddApp(7, 0)

	assert.Equal(t, 1, m.GCoreSchedCount(0))

	ctx, ok := m.ScheduleOne(7)
	require.True(t, ok)
	assert.Equal(t, 0, ctx)
}

func TestMutableMapScheduleOneRefusesWhenCoreFull(t *testing.T) {
	v := newFakeView(1)
	v.full[0] = true

	m := NewMutableMap(v)
	m.SchedAddApp(7, 0)

	_, ok := m.ScheduleOne(7)
	assert.False(t, ok)
}

func TestMutableMapSchedRemoveAppClearsMapping(t *testing.T) {
	v := newFakeView(1)
	m := NewMutableMap(v)
	m.SchedAddApp(7, 0)
	m.SchedRemoveApp(7)

	assert.Equal(t, 0, m.GCoreSchedCount(0))
	_, ok := m.ScheduleGuessCore(7)
	assert.False(t, ok)
}

func TestMutableMapReassignUpdatesOldCoreCount(t *testing.T) {
	v := newFakeView(2)
	m := NewMutableMap(v)
	m.SchedAddApp(7, 0)
	m.SchedAddApp(7, 1)

	assert.Equal(t, 0, m.GCoreSchedCount(0))
	assert.Equal(t, 1, m.GCoreSchedCount(1))
}

func TestMutableMapIsCoreOversubscribedDelegatesToView(t *testing.T) {
	v := newFakeView(1)
	v.full[0] = true
	m := NewMutableMap(v)

	assert.True(t, m.IsCoreOversubscribed(0))
}
