// Package detector turns a raw accelerometer stream into discrete step events
// using a fixed magnitude threshold with a debounce window.
package detector

import "math"

const (
	// Threshold is the acceleration magnitude (in g) above which a sample is
	// a step candidate. Resting gravity reads ~1.0.
	Threshold = 1.5

	// DebounceMillis is the minimum gap between two counted steps.
	DebounceMillis = 300

	// HistoryLen is the number of magnitudes kept for display.
	HistoryLen = 120
)

// State is the detector's mutable state.
type State struct {
	LastStepTimestamp int64
	IsWalking         bool
}

// StepEvent is emitted once per counted step.
type StepEvent struct {
	TimestampMillis int64
	Magnitude       float64
}

// Detector is a two-state (idle/walking) step detector. It is not safe for
// concurrent use; callers serialize access.
type Detector struct {
	state   State
	stepped bool

	SampleCount int
	LatestMag   float64
	History     *RingFloat
}

// New creates a Detector in the idle state.
func New() *Detector {
	return &Detector{History: NewRingFloat(HistoryLen)}
}

// Magnitude returns the euclidean norm of an acceleration vector.
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// Process ingests one accelerometer sample taken at tMillis and reports
// whether it counts as a step.
func (d *Detector) Process(x, y, z float64, tMillis int64) (StepEvent, bool) {
	d.SampleCount++
	mag := Magnitude(x, y, z)
	d.LatestMag = mag
	d.History.Push(mag)

	if mag <= Threshold {
		d.state.IsWalking = false
		return StepEvent{}, false
	}

	// Until the first step there is nothing to debounce against.
	if d.stepped && tMillis-d.state.LastStepTimestamp <= DebounceMillis {
		return StepEvent{}, false
	}

	d.stepped = true
	d.state.IsWalking = true
	d.state.LastStepTimestamp = tMillis
	return StepEvent{TimestampMillis: tMillis, Magnitude: mag}, true
}

// State returns a copy of the current state.
func (d *Detector) State() State {
	return d.state
}

// IsWalking reports whether the last sample was part of a step.
func (d *Detector) IsWalking() bool {
	return d.state.IsWalking
}
