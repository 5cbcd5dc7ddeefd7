package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicStatEmpty(t *testing.T) {
	var b BasicStat
	assert.Equal(t, int64(0), b.Count())
	assert.Equal(t, 0.0, b.Mean())
	assert.Equal(t, int64(0), b.Min())
	assert.Equal(t, int64(0), b.Max())
	assert.Equal(t, 0.0, b.StdDev())
	assert.Equal(t, "n=0", b.Format())
}

func TestBasicStatSingleSample(t *testing.T) {
	var b BasicStat
	b.AddSample(10)
	assert.Equal(t, int64(1), b.Count())
	assert.Equal(t, 10.0, b.Mean())
	assert.Equal(t, int64(10), b.Min())
	assert.Equal(t, int64(10), b.Max())
	assert.Equal(t, 0.0, b.StdDev())
}

func TestBasicStatMultipleSamples(t *testing.T) {
	var b BasicStat
	for _, v := range []int64{2, 4, 4, 4, 5, 5, 7, 9} {
		b.AddSample(v)
	}
	assert.Equal(t, int64(8), b.Count())
	assert.Equal(t, int64(2), b.Min())
	assert.Equal(t, int64(9), b.Max())
	assert.InDelta(t, 5.0, b.Mean(), 1e-9)
	assert.InDelta(t, 2.0, b.StdDev(), 1e-9)
}

func TestHistCountIntEmpty(t *testing.T) {
	var h HistCountInt
	assert.Equal(t, int64(0), h.GetCount(3))
	assert.Equal(t, int64(0), h.Total())
	assert.Empty(t, h.Keys())
}

func TestHistCountIntAccumulates(t *testing.T) {
	var h HistCountInt
	h.AddCount(1, 5)
	h.AddCount(2, 3)
	h.AddCount(1, 2)

	assert.Equal(t, int64(7), h.GetCount(1))
	assert.Equal(t, int64(3), h.GetCount(2))
	assert.Equal(t, int64(10), h.Total())
	assert.ElementsMatch(t, []int{1, 2}, h.Keys())
}
