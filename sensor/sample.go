// Package sensor delivers tri-axial accelerometer samples to subscribed
// listeners. Sources either read the shared-memory ring written by stepd or
// synthesize a walking gait.
package sensor

import (
	"context"
	"errors"
	"time"
)

// DefaultUpdateInterval is the nominal delivery cadence.
const DefaultUpdateInterval = 100 * time.Millisecond

// ErrUnavailable is returned when no motion sensor can be opened.
var ErrUnavailable = errors.New("motion sensor unavailable")

// Sample is a single accelerometer reading in g.
type Sample struct {
	X, Y, Z         float64
	TimestampMillis int64
}

// Listener receives samples. Listeners run on the source's dispatch
// goroutine and must return before the next sample is delivered.
type Listener func(Sample)

// Subscription identifies a registered listener.
type Subscription uint64

// Source produces samples at a configurable interval.
type Source interface {
	Subscribe(l Listener) Subscription
	Unsubscribe(s Subscription)
	RemoveAllListeners()
	SetUpdateInterval(d time.Duration)
	// Latest returns the most recently delivered sample.
	Latest() (Sample, bool)
	// Run delivers samples until ctx is done.
	Run(ctx context.Context) error
}

// Clock provides wall time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}
