// Package statsreport renders a appmgr.View's accumulated accounting into
// a flat, csv-writer-backed tabular report: one section per concern
// (per-app state residence, per-app timing, per-core TLP histogram),
// each section a small table of rows sharing one "section" column so a
// single file holds all of them.
//
// encoding/csv is used instead of a bespoke string-builder table writer
// purely for field quoting/escaping; see DESIGN.md for why no third-party
// table or CSV library from the retrieved corpus fit this narrow a need.
package statsreport

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/finitestate"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/stats"
)

// Write renders every section of the stats report to out. prefix fills the
// second ("prefix") column of every data row, so multiple runs' reports can
// be concatenated and told apart (e.g. "run1", "run2"); header rows carry
// only the column names.
func Write(out io.Writer, prefix string, view appmgr.View) error {
	w := csv.NewWriter(out)

	if err := writeAppSection(w, prefix, view); err != nil {
		return err
	}
	if err := writeAppTimingSection(w, prefix, view); err != nil {
		return err
	}
	if err := writeAppResidencySection(w, prefix, view); err != nil {
		return err
	}
	if err := writeCoreSection(w, prefix, view); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

var appStates = []string{
	finitestate.Running,
	finitestate.RunningLongMiss,
	finitestate.Ready,
	finitestate.SwapIn,
	finitestate.SwapOutLongMiss,
	finitestate.SwapOutLongMissCancel,
	finitestate.SwapOutMigrate,
	finitestate.SwapOutSched,
	finitestate.WaitLongMiss,
}

func writeAppSection(w *csv.Writer, prefix string, view appmgr.View) error {
	header := append([]string{"section", "prefix", "app", "long_misses", "swap_outs",
		"swapin_repeats", "migrates", "same_core_fraction"}, appStates...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, id := range view.AppIDs() {
		a, err := view.GetApp(id)
		if err != nil {
			return fmt.Errorf("statsreport: app %d vanished mid-report: %w", id, err)
		}
		row := []string{
			"app", prefix, fmt.Sprintf("%d", id),
			fmt.Sprintf("%d", a.LongMisses),
			fmt.Sprintf("%d", a.SwapOuts),
			fmt.Sprintf("%d", a.SwapinRepeats),
			fmt.Sprintf("%d", a.Migrates),
			fmt.Sprintf("%.4f", sameCoreFraction(a)),
		}
		for _, st := range appStates {
			row = append(row, fmt.Sprintf("%d", a.StateResidence[st]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// sameCoreFraction mirrors appmgr.AppRecord's unexported method of the
// same name: the fraction of swap-ins that reused the prior hosting core.
func sameCoreFraction(a *appmgr.AppRecord) float64 {
	total := a.SwapinCountByCtx.Total()
	if total == 0 {
		return 0
	}
	return float64(a.SwapinRepeats) / float64(total)
}

func writeAppTimingSection(w *csv.Writer, prefix string, view appmgr.View) error {
	if err := w.Write([]string{"section", "prefix", "app", "metric", "n", "min", "mean", "max", "stddev"}); err != nil {
		return err
	}
	for _, id := range view.AppIDs() {
		a, err := view.GetApp(id)
		if err != nil {
			return fmt.Errorf("statsreport: app %d vanished mid-report: %w", id, err)
		}
		metrics := []struct {
			name string
			stat stats.BasicStat
		}{
			{"deact_halt", a.DeactHalt},
			{"deact_swapout", a.DeactSwapout},
			{"deact_sum", a.DeactSum},
			{"activ_fetch", a.ActivFetch},
			{"activ_commit", a.ActivCommit},
			{"migrate_fetch", a.MigrateFetch},
			{"migrate_commit", a.MigrateCommit},
		}
		for _, m := range metrics {
			row := []string{
				"app_timing", prefix, fmt.Sprintf("%d", id), m.name,
				fmt.Sprintf("%d", m.stat.Count()),
				fmt.Sprintf("%d", m.stat.Min()),
				fmt.Sprintf("%.4f", m.stat.Mean()),
				fmt.Sprintf("%d", m.stat.Max()),
				fmt.Sprintf("%.4f", m.stat.StdDev()),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeAppResidencySection(w *csv.Writer, prefix string, view appmgr.View) error {
	if err := w.Write([]string{"section", "prefix", "app", "ctx", "resident_cyc", "swapin_count"}); err != nil {
		return err
	}
	for _, id := range view.AppIDs() {
		a, err := view.GetApp(id)
		if err != nil {
			return fmt.Errorf("statsreport: app %d vanished mid-report: %w", id, err)
		}
		ctxKeys := a.ResidencyByCtx.Keys()
		sort.Ints(ctxKeys)
		for _, ctx := range ctxKeys {
			row := []string{
				"app_residency", prefix, fmt.Sprintf("%d", id), fmt.Sprintf("%d", ctx),
				fmt.Sprintf("%d", a.ResidencyByCtx.GetCount(ctx)),
				fmt.Sprintf("%d", a.SwapinCountByCtx.GetCount(ctx)),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCoreSection(w *csv.Writer, prefix string, view appmgr.View) error {
	if err := w.Write([]string{"section", "prefix", "core", "num_apps_sched", "num_apps_stalled", "recent_ipc", "load_factor"}); err != nil {
		return err
	}
	for _, id := range view.CoreIDs() {
		c, err := view.GetCore(id)
		if err != nil {
			return fmt.Errorf("statsreport: core %d vanished mid-report: %w", id, err)
		}
		row := []string{
			"core", prefix, fmt.Sprintf("%d", id),
			fmt.Sprintf("%d", c.NumAppsSched),
			fmt.Sprintf("%d", c.NumAppsStalled),
			fmt.Sprintf("%.4f", view.CoreRecentIPC(id, true)),
			fmt.Sprintf("%.4f", view.CoreLoadFactor(id, true)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	if err := w.Write([]string{"section", "prefix", "core", "tlp", "sched_dwell_cyc", "sched_minus_stall_dwell_cyc"}); err != nil {
		return err
	}
	for _, id := range view.CoreIDs() {
		c, err := view.GetCore(id)
		if err != nil {
			return fmt.Errorf("statsreport: core %d vanished mid-report: %w", id, err)
		}
		seen := make(map[int]struct{})
		for _, k := range c.TLPBySched.Keys() {
			seen[k] = struct{}{}
		}
		for _, k := range c.TLPBySchedMinusStall.Keys() {
			seen[k] = struct{}{}
		}
		levels := make([]int, 0, len(seen))
		for k := range seen {
			levels = append(levels, k)
		}
		sort.Ints(levels)
		for _, tlp := range levels {
			row := []string{
				"core_tlp", prefix, fmt.Sprintf("%d", id), fmt.Sprintf("%d", tlp),
				fmt.Sprintf("%d", c.TLPBySched.GetCount(tlp)),
				fmt.Sprintf("%d", c.TLPBySchedMinusStall.GetCount(tlp)),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}
