package appmgr

import "github.com/jbrown-smtsim/appmgr/internal/appmgr/stats"

// CoreRecord is the per-core bookkeeping record.
type CoreRecord struct {
	ID int
	CtxIDs []int
	NumAppsSched int // occupied contexts
	NumAppsStalled int // of those, long-missing but not evicted

	// TLP histograms, indexed by thread-level-parallelism.
	TLPBySched stats.HistCountInt // keyed by NumAppsSched
	TLPBySchedMinusStall stats.HistCountInt // keyed by NumAppsSched-NumAppsStalled

	// lastStop records, per app id, the cycle that app last stopped
	// running on this core -- used by the least_loaded_core tie-break.
	lastStop map[int]int64
}

func newCoreRecord(id int) *CoreRecord {
	return &CoreRecord{
		ID: id,
		lastStop: make(map[int]int64),
	}
}

// lastStopFor returns the last-stop timestamp for app on this core, or -1
// if the app never ran here.
func (c *CoreRecord) lastStopFor(app int) int64 {
	if v, ok := c.lastStop[app]; ok {
		return v
	}
	return -1
}

func (c *CoreRecord) recordStop(app int, now int64) {
	c.lastStop[app] = now
}

// noteTLP folds the current TLP snapshot into the two histograms, weighted
// by dwellCyc cycles of dwell time.
func (c *CoreRecord) noteTLP(dwellCyc int64) {
	c.TLPBySched.AddCount(c.NumAppsSched, dwellCyc)
	c.TLPBySchedMinusStall.AddCount(c.NumAppsSched-c.NumAppsStalled, dwellCyc)
}
