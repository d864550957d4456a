package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// DefaultCadence is the simulated time between heel strikes.
const DefaultCadence = 550 * time.Millisecond

// Simulator synthesizes a walking gait: resting gravity with a sharp impact
// peak once per cadence.
type Simulator struct {
	*Hub

	clock   Clock
	cadence time.Duration
	start   time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	walking bool
}

// NewSimulator creates a walking Simulator. A nil clock uses the system clock.
func NewSimulator(clock Clock, cadence time.Duration) *Simulator {
	if clock == nil {
		clock = RealClock{}
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Simulator{
		Hub:     NewHub(),
		clock:   clock,
		cadence: cadence,
		start:   clock.Now(),
		rng:     rand.New(rand.NewSource(clock.Now().UnixNano())),
		walking: true,
	}
}

// SetWalking switches between a walking gait and standing still.
func (s *Simulator) SetWalking(walking bool) {
	s.mu.Lock()
	s.walking = walking
	s.mu.Unlock()
}

// Sample synthesizes the reading at t.
func (s *Simulator) Sample(t time.Time) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	mag := 1.0 + (s.rng.Float64()-0.5)*0.1
	if s.walking {
		phase := t.Sub(s.start) % s.cadence
		if phase < s.UpdateInterval() {
			mag = 1.8 + s.rng.Float64()*0.4
		}
	}

	// Tilt the vector slightly off vertical.
	theta := 0.15 + s.rng.Float64()*0.05
	return Sample{
		X:               mag * math.Sin(theta) * 0.6,
		Y:               mag * math.Sin(theta) * 0.8,
		Z:               mag * math.Cos(theta),
		TimestampMillis: t.UnixMilli(),
	}
}

// Run dispatches one synthesized sample per update interval.
func (s *Simulator) Run(ctx context.Context) error {
	cur := s.UpdateInterval()
	ticker := time.NewTicker(cur)
	defer ticker.Stop()
	defer s.RemoveAllListeners()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s.Dispatch(s.Sample(s.clock.Now()))
		cur = s.resetTicker(ticker, cur)
	}
}
