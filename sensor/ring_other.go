//go:build !darwin

package sensor

import (
	"context"
	"fmt"
	"runtime"
)

// RingSource is only backed by hardware on Apple Silicon Macs. Elsewhere it
// accepts listeners but never delivers.
type RingSource struct {
	*Hub
	name string
}

// NewRingSource creates a source whose Run reports ErrUnavailable.
func NewRingSource(name string) (*RingSource, error) {
	return &RingSource{Hub: NewHub(), name: name}, nil
}

// Run always fails on this platform.
func (r *RingSource) Run(context.Context) error {
	defer r.RemoveAllListeners()
	return fmt.Errorf("%w: shared memory ring %q not supported on %s", ErrUnavailable, r.name, runtime.GOOS)
}
