package detector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onAxis returns a vector of the given magnitude along z.
func onAxis(mag float64) (float64, float64, float64) {
	return 0, 0, mag
}

func feed(d *Detector, mags []float64, ts []int64) int {
	steps := 0
	for i := range mags {
		x, y, z := onAxis(mags[i])
		if _, ok := d.Process(x, y, z, ts[i]); ok {
			steps++
		}
	}
	return steps
}

func TestDebounceSuppressesSecondPeak(t *testing.T) {
	d := New()
	assert.Equal(t, 1, feed(d, []float64{2.0, 2.0}, []int64{0, 100}))
	assert.True(t, d.IsWalking())
}

func TestPeaksOutsideWindowBothCount(t *testing.T) {
	d := New()
	assert.Equal(t, 2, feed(d, []float64{2.0, 2.0}, []int64{0, 400}))
	assert.Equal(t, int64(400), d.State().LastStepTimestamp)
}

func TestExactlyDebounceApartIsSuppressed(t *testing.T) {
	d := New()
	assert.Equal(t, 1, feed(d, []float64{2.0, 2.0}, []int64{1000, 1300}))
}

func TestBelowThresholdNeverCounts(t *testing.T) {
	d := New()
	assert.Equal(t, 0, feed(d, []float64{1.0, 1.2, 0.9}, []int64{0, 500, 1000}))
	assert.False(t, d.IsWalking())
	assert.Equal(t, State{}, d.State())
}

func TestThresholdIsExclusive(t *testing.T) {
	d := New()
	assert.Equal(t, 0, feed(d, []float64{Threshold}, []int64{10_000}))
}

func TestFirstCrossingAtZeroCounts(t *testing.T) {
	d := New()
	ev, ok := d.Process(0, 0, 2.0, 0)
	require.True(t, ok)
	assert.Equal(t, int64(0), ev.TimestampMillis)
	assert.InDelta(t, 2.0, ev.Magnitude, 1e-9)
}

func TestMagnitudeUsesAllAxes(t *testing.T) {
	assert.InDelta(t, math.Sqrt(3), Magnitude(1, 1, 1), 1e-12)

	d := New()
	// 0.9 on each axis is below threshold per axis but 1.56 overall.
	_, ok := d.Process(0.9, 0.9, 0.9, 0)
	assert.True(t, ok)
}

func TestIdleResetsWalkingButKeepsTimestamp(t *testing.T) {
	d := New()
	feed(d, []float64{2.0, 1.0}, []int64{50, 60})
	assert.Equal(t, State{LastStepTimestamp: 50, IsWalking: false}, d.State())
}

func TestDebouncedSampleLeavesStateUnchanged(t *testing.T) {
	d := New()
	feed(d, []float64{2.0, 1.0}, []int64{0, 50})
	before := d.State()
	_, ok := d.Process(0, 0, 3.0, 200)
	assert.False(t, ok)
	assert.Equal(t, before, d.State())
}

func TestOutOfOrderSampleIsDebounced(t *testing.T) {
	d := New()
	feed(d, []float64{2.0}, []int64{5000})
	_, ok := d.Process(0, 0, 2.0, 1000)
	assert.False(t, ok)
	assert.Equal(t, int64(5000), d.State().LastStepTimestamp)
}

// TestCountMatchesReferencePolicy compares the detector against a direct
// restatement of the counting rule over random streams.
func TestCountMatchesReferencePolicy(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		d := New()
		var ts int64
		var last int64
		counted, expected := 0, 0
		prevCount := 0
		for i := 0; i < 500; i++ {
			ts += int64(rng.Intn(200))
			mag := rng.Float64() * 3
			if mag > Threshold && (expected == 0 || ts-last > DebounceMillis) {
				expected++
				last = ts
			}
			if _, ok := d.Process(0, mag, 0, ts); ok {
				counted++
			}
			require.GreaterOrEqual(t, counted, prevCount)
			require.LessOrEqual(t, d.State().LastStepTimestamp, ts)
			prevCount = counted
		}
		assert.Equal(t, expected, counted, "run %d", run)
	}
}

func TestHistoryRecordsMagnitudes(t *testing.T) {
	d := New()
	feed(d, []float64{1.0, 2.0}, []int64{0, 10})
	assert.Equal(t, 2, d.SampleCount)
	assert.Equal(t, []float64{1.0, 2.0}, d.History.Slice())
	assert.InDelta(t, 2.0, d.LatestMag, 1e-12)
}
