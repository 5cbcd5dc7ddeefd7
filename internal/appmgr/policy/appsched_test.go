package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOldestAppFIFO(t *testing.T) {
	o := NewOldestApp()
	assert.False(t, o.WillSchedule())

	o.AppReady(1)
	o.AppReady(2)
	o.AppReady(3)
	require.True(t, o.WillSchedule())

	id, ok := o.ScheduleOne()
	require.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = o.ScheduleOne()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestOldestAppScheduleOneEmpty(t *testing.T) {
	o := NewOldestApp()
	_, ok := o.ScheduleOne()
	assert.False(t, ok)
}

func TestOldestAppUndoSchedulePushesToFront(t *testing.T) {
	o := NewOldestApp()
	o.AppReady(1)
	o.AppReady(2)

	id, _ := o.ScheduleOne()
	assert.Equal(t, 1, id)

	o.UndoSchedule(id)
	next, ok := o.ScheduleOne()
	require.True(t, ok)
	assert.Equal(t, 1, next, "undo_schedule puts the app back at the front of the queue")
}

func TestOldestAppNotReadyRemovesFromQueue(t *testing.T) {
	o := NewOldestApp()
	o.AppReady(1)
	o.AppReady(2)
	o.AppReady(3)

	o.AppNotReady(2)
	assert.False(t, contains(o.queue, 2))

	id, _ := o.ScheduleOne()
	assert.Equal(t, 1, id)
	id, _ = o.ScheduleOne()
	assert.Equal(t, 3, id)
}

func TestOldestAppNotReadyOnMissingIDIsNoop(t *testing.T) {
	o := NewOldestApp()
	o.AppReady(1)
	o.AppNotReady(99)
	assert.Equal(t, []int{1}, o.queue)
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
