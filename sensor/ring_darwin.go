//go:build darwin

package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/taigrr/pedometer/shm"
)

// maxBatch caps how many backlogged samples are replayed per poll.
const maxBatch = 200

// RingSource reads the accelerometer ring written by stepd. Each update
// interval it delivers every sample written since the last poll, oldest
// first, capped at maxBatch.
type RingSource struct {
	*Hub
	name string
}

// NewRingSource creates a source for the named shared memory ring.
func NewRingSource(name string) (*RingSource, error) {
	if name == "" {
		name = shm.NameAccel
	}
	return &RingSource{Hub: NewHub(), name: name}, nil
}

// Run polls the ring until ctx is done. It fails with ErrUnavailable when the
// ring does not exist (stepd not running).
func (r *RingSource) Run(ctx context.Context) error {
	ring, err := shm.OpenRing(r.name)
	if err != nil {
		return fmt.Errorf("%w: opening %s (is stepd running?): %v", ErrUnavailable, r.name, err)
	}
	defer ring.Close()
	defer r.RemoveAllListeners()

	// Start from whatever is already in the ring.
	_, lastTotal := ring.ReadNew(0, shm.AccelScale)

	cur := r.UpdateInterval()
	ticker := time.NewTicker(cur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		samples, total := ring.ReadNew(lastTotal, shm.AccelScale)
		lastTotal = total
		if len(samples) > maxBatch {
			samples = samples[len(samples)-maxBatch:]
		}
		// The ring runs at the hardware rate; deliver every sample so no
		// peak is lost between polls.
		for _, s := range samples {
			r.Dispatch(Sample{X: s.X, Y: s.Y, Z: s.Z, TimestampMillis: s.TimestampMillis})
		}
		cur = r.resetTicker(ticker, cur)
	}
}
