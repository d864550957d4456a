package pedometer

import (
	"errors"
	"sync"

	"github.com/taigrr/pedometer/detector"
	"github.com/taigrr/pedometer/metrics"
	"github.com/taigrr/pedometer/sensor"
)

// Origin names the path a sample arrived through.
type Origin string

const (
	Foreground Origin = "foreground"
	Background Origin = "background"
)

// ErrStaleSample is returned by FeedNew for a sample no newer than one the
// tracker already processed.
var ErrStaleSample = errors.New("sample already processed")

// Snapshot is a point-in-time view of the tracker for display.
type Snapshot struct {
	Steps      int
	Walking    bool
	LastStep   int64
	Samples    int
	Magnitude  float64
	Magnitudes []float64
}

// Tracker serializes every write to the detector state and the counter. The
// foreground listener and the background task both feed it.
type Tracker struct {
	mu      sync.Mutex
	det     *detector.Detector
	counter *Counter

	// newest sample timestamp fed so far
	lastSeen int64
	seen     bool
}

// NewTracker creates a Tracker with a fresh detector and counter.
func NewTracker() *Tracker {
	return &Tracker{det: detector.New(), counter: NewCounter()}
}

// Counter returns the step counter.
func (t *Tracker) Counter() *Counter {
	return t.counter
}

// Feed runs one sample through the detector and counts a step when one is
// detected. It returns the step count after processing.
func (t *Tracker) Feed(s sensor.Sample, origin Origin) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feed(s, origin)
}

// FeedNew is Feed for samples that may already have been processed, such as
// a source's cached latest sample. A sample not newer than the newest one
// seen returns ErrStaleSample and leaves the tracker untouched.
func (t *Tracker) FeedNew(s sensor.Sample, origin Origin) (int, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen && s.TimestampMillis <= t.lastSeen {
		return t.counter.Value(), false, ErrStaleSample
	}
	n, stepped := t.feed(s, origin)
	return n, stepped, nil
}

// Fresh reports whether s is newer than every sample fed so far.
func (t *Tracker) Fresh(s sensor.Sample) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.seen || s.TimestampMillis > t.lastSeen
}

// feed processes one sample. Callers hold t.mu.
func (t *Tracker) feed(s sensor.Sample, origin Origin) (int, bool) {
	if !t.seen || s.TimestampMillis > t.lastSeen {
		t.lastSeen = s.TimestampMillis
		t.seen = true
	}

	metrics.SamplesTotal.Inc()
	_, stepped := t.det.Process(s.X, s.Y, s.Z, s.TimestampMillis)
	if t.det.IsWalking() {
		metrics.Walking.Set(1)
	} else {
		metrics.Walking.Set(0)
	}
	if !stepped {
		return t.counter.Value(), false
	}

	n := t.counter.Increment()
	metrics.StepsTotal.WithLabelValues(string(origin)).Inc()
	metrics.CurrentSteps.Set(float64(n))
	return n, true
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.det.State()
	return Snapshot{
		Steps:      t.counter.Value(),
		Walking:    st.IsWalking,
		LastStep:   st.LastStepTimestamp,
		Samples:    t.det.SampleCount,
		Magnitude:  t.det.LatestMag,
		Magnitudes: t.det.History.Slice(),
	}
}
