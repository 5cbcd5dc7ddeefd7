package appmgr

import (
	"github.com/gofrs/uuid/v5"

	"github.com/jbrown-smtsim/appmgr/internal/eventqueue"
)

// PendingMigration tracks one in-flight asynchronous migration request.
type PendingMigration struct {
	RequestID uuid.UUID // identifies this request across recheck/timeout log lines
	AppID int
	TargCoreID int
	ReservedCtx int // noID if not yet reserved
	DoneCB func(appID int)
	recheckHandle eventqueue.Handle
	recheckCB *migrateRecheckCB // identity used by the timeout callback
	timeoutHandle eventqueue.Handle
	hasTimeout bool
	CancelOnMove bool
	EarliestCyc int64
	ExpireCyc int64 // -1 means no expiry
	HaltStyle int
	InProgress bool
	originCtx int // app's context at request time, for cancel_on_move
}

// PendingHalt is a bare app-id set.
type PendingHalt struct{}

// migrationRegistry is keyed by app id; each key has at most one entry,
// and insertion is fail-fast on duplicates.
type migrationRegistry struct {
	byApp map[int]*PendingMigration
	queue *eventqueue.Queue
}

func newMigrationRegistry(q *eventqueue.Queue) *migrationRegistry {
	return &migrationRegistry{byApp: make(map[int]*PendingMigration), queue: q}
}

func (r *migrationRegistry) isPending(app int) bool {
	_, ok := r.byApp[app]
	return ok
}

func (r *migrationRegistry) get(app int) (*PendingMigration, bool) {
	pm, ok := r.byApp[app]
	return pm, ok
}

// insert fails fast on a pre-existing entry for the same app.
func (r *migrationRegistry) insert(pm *PendingMigration) error {
	if r.isPending(pm.AppID) {
		return fatalApp("duplicate pending migration for app", pm.AppID)
	}
	r.byApp[pm.AppID] = pm
	return nil
}

// remove cancels any still-queued recheck/timeout callbacks and deletes
// the entry; destroying the entry also destroys its owned completion
// callback.
func (r *migrationRegistry) remove(app int) {
	pm, ok := r.byApp[app]
	if !ok {
		return
	}
	r.queue.Cancel(pm.recheckHandle)
	if pm.hasTimeout {
		r.queue.Cancel(pm.timeoutHandle)
	}
	delete(r.byApp, app)
}

// haltRegistry is a bare app-id set.
type haltRegistry struct {
	set map[int]struct{}
}

func newHaltRegistry() *haltRegistry {
	return &haltRegistry{set: make(map[int]struct{})}
}

func (r *haltRegistry) isPending(app int) bool {
	_, ok := r.set[app]
	return ok
}

func (r *haltRegistry) insert(app int) { r.set[app] = struct{}{} }
func (r *haltRegistry) remove(app int) { delete(r.set, app) }

// migrateRecheckCB re-examines feasibility for one PendingMigration each
// time it is invoked.
type migrateRecheckCB struct {
	app int
	coord *Coordinator
}

// Invoke implements eventqueue.Callback. It returns the next cycle to
// reschedule for, or a negative value once it has either begun or cancelled
// the migration -- so it does not requeue itself.
func (cb *migrateRecheckCB) Invoke() int64 {
	return cb.coord.recheckMigration(cb.app, cb)
}

// migrateTimeoutCB cancels a PendingMigration if its recheck callback is
// still the one this timeout was issued for, checked by pointer identity.
type migrateTimeoutCB struct {
	app int
	owner *migrateRecheckCB
	coord *Coordinator
}

func (cb *migrateTimeoutCB) Invoke() int64 {
	cb.coord.timeoutMigration(cb.app, cb.owner)
	return -1
}
