package detector

// RingFloat is a fixed-capacity ring buffer for float64 values.
type RingFloat struct {
	data []float64
	pos  int
	full bool
}

// NewRingFloat creates a RingFloat with the given capacity.
func NewRingFloat(capacity int) *RingFloat {
	return &RingFloat{data: make([]float64, max(1, capacity))}
}

// Push adds a value, overwriting the oldest once the ring is full.
func (r *RingFloat) Push(v float64) {
	r.data[r.pos] = v
	r.pos++
	if r.pos == len(r.data) {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of stored values.
func (r *RingFloat) Len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

// Slice returns the buffer contents oldest first.
func (r *RingFloat) Slice() []float64 {
	out := make([]float64, r.Len())
	if r.full {
		n := copy(out, r.data[r.pos:])
		copy(out[n:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}
