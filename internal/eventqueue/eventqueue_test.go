package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunUpToOrdersByCycleThenSequence(t *testing.T) {
	q := New()
	var order []string

	q.Enqueue(5, CallbackFunc(func() int64 { order = append(order, "cyc5-a"); return -1 }))
	q.Enqueue(2, CallbackFunc(func() int64 { order = append(order, "cyc2"); return -1 }))
	q.Enqueue(5, CallbackFunc(func() int64 { order = append(order, "cyc5-b"); return -1 }))

	n := q.RunUpTo(10)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"cyc2", "cyc5-a", "cyc5-b"}, order)
}

func TestRunUpToLeavesLaterCallbacksQueued(t *testing.T) {
	q := New()
	fired := 0
	q.Enqueue(3, CallbackFunc(func() int64 { fired++; return -1 }))
	q.Enqueue(7, CallbackFunc(func() int64 { fired++; return -1 }))

	n := q.RunUpTo(5)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, q.Len())

	n = q.RunUpTo(7)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, fired)
	assert.Equal(t, 0, q.Len())
}

func TestRunUpToReschedulesNonNegativeReturn(t *testing.T) {
	q := New()
	calls := 0
	q.Enqueue(1, CallbackFunc(func() int64 {
		calls++
		if calls < 3 {
			return int64(calls + 1)
		}
		return -1
	}))

	n := q.RunUpTo(1)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.Len())

	n = q.RunUpTo(100)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, q.Len())
}

func TestCancelRemovesPendingCallback(t *testing.T) {
	q := New()
	fired := false
	h := q.Enqueue(5, CallbackFunc(func() int64 { fired = true; return -1 }))

	ok := q.Cancel(h)
	require.True(t, ok)
	assert.Equal(t, 0, q.Len())

	q.RunUpTo(10)
	assert.False(t, fired)
}

func TestCancelIsFalseOnceFired(t *testing.T) {
	q := New()
	h := q.Enqueue(1, CallbackFunc(func() int64 { return -1 }))
	q.RunUpTo(1)

	assert.False(t, q.Cancel(h))
}

func TestCancelIsFalseOnZeroValueHandle(t *testing.T) {
	q := New()
	assert.False(t, q.Cancel(Handle{}))
}

func TestPeekCycleEmptyQueue(t *testing.T) {
	q := New()
	_, ok := q.PeekCycle()
	assert.False(t, ok)
}

func TestPeekCycleReturnsSmallestPendingCycle(t *testing.T) {
	q := New()
	q.Enqueue(9, CallbackFunc(func() int64 { return -1 }))
	q.Enqueue(4, CallbackFunc(func() int64 { return -1 }))

	cyc, ok := q.PeekCycle()
	require.True(t, ok)
	assert.Equal(t, int64(4), cyc)
}
