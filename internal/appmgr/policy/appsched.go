// Package policy implements the three pluggable strategy families
// (AppScheduler, CtxScheduler, SwapGate) as Go interfaces with one concrete
// type per variant, built once at construction time by Build instead of
// dispatched by name on every call.
package policy

// AppScheduler chooses which ready application to dispatch next.
type AppScheduler interface {
	AppReady(id int)
	AppNotReady(id int)
	WillSchedule() bool
	ScheduleOne() (int, bool)
	UndoSchedule(id int)
}

// OldestApp is the default AppScheduler: a FIFO of ready apps.
// undo_schedule pushes back to the front
type OldestApp struct {
	queue []int
}

// NewOldestApp constructs an empty OldestApp scheduler.
func NewOldestApp() *OldestApp { return &OldestApp{} }

func (o *OldestApp) AppReady(id int) {
	o.queue = append(o.queue, id)
}

func (o *OldestApp) AppNotReady(id int) {
	for i, v := range o.queue {
		if v == id {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			return
		}
	}
}

func (o *OldestApp) WillSchedule() bool { return len(o.queue) > 0 }

func (o *OldestApp) ScheduleOne() (int, bool) {
	if len(o.queue) == 0 {
		return 0, false
	}
	id := o.queue[0]
	o.queue = o.queue[1:]
	return id, true
}

func (o *OldestApp) UndoSchedule(id int) {
	o.queue = append([]int{id}, o.queue...)
}

var _ AppScheduler = (*OldestApp)(nil)
