// Package stats holds the small accounting primitives AppMgr uses to keep
// per-app and per-core accounting consistent across every state transition:
// an online min/mean/max/n/stddev accumulator, and an integer-keyed
// cycle/count histogram.
package stats

import (
	"fmt"
	"math"
)

// BasicStat is an online (Welford) accumulator of min/mean/max/n/stddev.
// None of the reference repos ship a generic streaming-stats dependency for
// this; see DESIGN.md for why this stays a direct, minimal implementation.
type BasicStat struct {
	n       int64
	mean    float64
	m2      float64
	min     int64
	max     int64
	hasData bool
}

// AddSample folds one observation into the accumulator.
func (b *BasicStat) AddSample(v int64) {
	b.n++
	fv := float64(v)
	delta := fv - b.mean
	b.mean += delta / float64(b.n)
	delta2 := fv - b.mean
	b.m2 += delta * delta2

	if !b.hasData {
		b.min, b.max = v, v
		b.hasData = true
	} else {
		if v < b.min {
			b.min = v
		}
		if v > b.max {
			b.max = v
		}
	}
}

// Count returns the number of samples folded in.
func (b *BasicStat) Count() int64 { return b.n }

// Mean returns the running mean, or 0 if no samples were added.
func (b *BasicStat) Mean() float64 { return b.mean }

// Min returns the minimum observed sample, or 0 if no samples were added.
func (b *BasicStat) Min() int64 { return b.min }

// Max returns the maximum observed sample, or 0 if no samples were added.
func (b *BasicStat) Max() int64 { return b.max }

// StdDev returns the population standard deviation of samples seen so far.
func (b *BasicStat) StdDev() float64 {
	if b.n < 2 {
		return 0
	}
	return math.Sqrt(b.m2 / float64(b.n))
}

// Format renders the five fields as a single summary line, for use in the
// per-app timing breakdown in the stats report.
func (b *BasicStat) Format() string {
	return formatBasicStat(b)
}

// HistCountInt is a sparse histogram keyed by small non-negative integer
// index (context id, app-state ordinal, TLP level), accumulating i64 counts.
type HistCountInt struct {
	counts map[int]int64
}

// AddCount adds delta to the bucket for key.
func (h *HistCountInt) AddCount(key int, delta int64) {
	if h.counts == nil {
		h.counts = make(map[int]int64)
	}
	h.counts[key] += delta
}

// GetCount returns the accumulated count for key (0 if never touched).
func (h *HistCountInt) GetCount(key int) int64 {
	if h.counts == nil {
		return 0
	}
	return h.counts[key]
}

// Total returns the sum of all buckets.
func (h *HistCountInt) Total() int64 {
	var total int64
	for _, v := range h.counts {
		total += v
	}
	return total
}

// Keys returns the set of non-empty bucket keys, unordered.
func (h *HistCountInt) Keys() []int {
	keys := make([]int, 0, len(h.counts))
	for k := range h.counts {
		keys = append(keys, k)
	}
	return keys
}

func formatBasicStat(b *BasicStat) string {
	if b.n == 0 {
		return "n=0"
	}
	return fmt.Sprintf("n=%d min=%d mean=%.3f max=%d stddev=%.3f",
		b.n, b.Min(), b.Mean(), b.Max(), b.StdDev())
}
