// Package eventqueue is a minimal stand-in for a simulator's global
// callback queue, an external collaborator that an app manager only ever
// enqueues into. It is a container/heap priority queue ordered by (cycle,
// sequence) so that callbacks scheduled for the same cycle fire in the
// order they were enqueued.
//
// Grounded on the (cycle, sequence)-ordered event queue used by
// cluster.ClusterSimulator in the reference corpus, which orders
// cross-instance discrete events by (timestamp, instance index) with the
// same container/heap technique.
package eventqueue

import "container/heap"

// Callback is invoked when its scheduled cycle is reached. A return value
// >= 0 means "reschedule me for this cycle instead"; a negative return
// means "done, do not requeue". This mirrors the CBQ_Callback::invoke
// contract used by the original simulator's callback queue.
type Callback interface {
	Invoke() int64
}

// CallbackFunc adapts a plain function to Callback.
type CallbackFunc func() int64

// Invoke implements Callback.
func (f CallbackFunc) Invoke() int64 { return f() }

type entry struct {
	cycle int64
	seq int64
	cb Callback
	index int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].cycle != h[j].cycle {
		return h[i].cycle < h[j].cycle
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a cycle-ordered, cancellable callback queue.
type Queue struct {
	h entryHeap
	nextSeq int64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Handle identifies a previously-enqueued callback, for cancellation.
type Handle struct {
	e *entry
}

// Enqueue schedules cb to fire at cyc (or immediately pops if cyc is in the
// past relative to prior pops -- callers are expected to pass now-relative
// cycles). Returns a Handle usable with Cancel.
func (q *Queue) Enqueue(cyc int64, cb Callback) Handle {
	e := &entry{cycle: cyc, seq: q.nextSeq, cb: cb}
	q.nextSeq++
	heap.Push(&q.h, e)
	return Handle{e: e}
}

// Cancel removes a still-queued callback. Returns true if it was found and
// removed (matching callbackq_cancel_ret's boolean-success contract); false
// if it had already fired or been cancelled.
func (q *Queue) Cancel(h Handle) bool {
	if h.e == nil || h.e.index < 0 || h.e.index >= len(q.h) || q.h[h.e.index] != h.e {
		return false
	}
	heap.Remove(&q.h, h.e.index)
	return true
}

// Len returns the number of pending callbacks.
func (q *Queue) Len() int { return q.h.Len() }

// PeekCycle returns the cycle of the next callback to fire and whether one
// exists.
func (q *Queue) PeekCycle() (int64, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].cycle, true
}

// RunUpTo pops and invokes callbacks in (cycle, sequence) order while their
// cycle is <= now, re-enqueuing any whose Invoke returns a non-negative
// reschedule cycle. It returns the number of invocations performed.
func (q *Queue) RunUpTo(now int64) int {
	count := 0
	for {
		cyc, ok := q.PeekCycle()
		if !ok || cyc > now {
			return count
		}
		e := heap.Pop(&q.h).(*entry)
		resched := e.cb.Invoke()
		count++
		if resched >= 0 {
			e.seq = q.nextSeq
			q.nextSeq++
			e.cycle = resched
			heap.Push(&q.h, e)
		}
	}
}
