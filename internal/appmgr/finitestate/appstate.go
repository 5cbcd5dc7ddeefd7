// Package finitestate models the per-application lifecycle as an explicit
// go-fsm transition table: a map[string][]string handed to fsm.New,
// instead of scattering state writes across if/switch statements.
package finitestate

import (
	"fmt"
	"log/slog"

	"github.com/robbyt/go-fsm"
)

// Application lifecycle states.
const (
	Running = "running"
	RunningLongMiss = "running_long_miss"
	Ready = "ready"
	SwapIn = "swap_in"
	SwapOutLongMiss = "swap_out_long_miss"
	SwapOutLongMissCancel = "swap_out_long_miss_cancel"
	SwapOutMigrate = "swap_out_migrate"
	SwapOutSched = "swap_out_sched"
	WaitLongMiss = "wait_long_miss"
)

// AppTransitions enumerates every edge in the application state machine.
// Edges absent from this table are rejected by the underlying fsm.Machine,
// which gives us "unexpected state transition is a protocol violation"
// behavior for free.
var AppTransitions = map[string][]string{
	Ready: {
		SwapIn, // dispatch to context -- also used for the migrate-over-ready fast path
	},
	SwapIn: {
		Running, // swap-in done
	},
	Running: {
		SwapOutLongMiss, // long-miss, swap-out approved
		RunningLongMiss, // long-miss, swap-out denied
		SwapOutMigrate, // migrate requested
		SwapOutSched, // halt requested
	},
	RunningLongMiss: {
		Running, // miss done
		SwapOutSched, // halt requested (after re-accounting the stall)
		SwapOutMigrate, // migrate requested (after re-accounting the stall)
	},
	SwapOutLongMiss: {
		SwapOutLongMissCancel, // miss done before spill complete
		WaitLongMiss, // final spill committed
	},
	SwapOutLongMissCancel: {
		Ready, // final spill committed
	},
	SwapOutMigrate: {
		Ready, // final spill committed (then immediately re-dispatched)
	},
	SwapOutSched: {
		Ready, // final spill committed
	},
	WaitLongMiss: {
		Ready, // miss done
	},
}

// Machine is the per-app state machine. It is not safe for concurrent use:
// the coordinator driving it is single-threaded and cooperative, so no
// locking is needed.
type Machine struct {
	*fsm.Machine
}

// New creates a per-app state machine starting in Ready, the state every
// AppRecord begins in when add_ready_app is called.
func New(handler slog.Handler) (*Machine, error) {
	m, err := fsm.New(handler, Ready, AppTransitions)
	if err != nil {
		return nil, fmt.Errorf("finitestate: failed to build app state machine: %w", err)
	}
	return &Machine{Machine: m}, nil
}
