// Package background re-enters step detection on a recurring schedule while
// the foreground session is not driving it. Registrations are persisted so
// they outlive the process that created them.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taigrr/pedometer/metrics"
	"github.com/taigrr/pedometer/sensor"
)

// MinimumInterval is the shortest allowed interval between invocations.
const MinimumInterval = 60 * time.Second

// ErrUndefinedTask is returned for task names with no defined handler.
var ErrUndefinedTask = errors.New("background task not defined")

// Options configure a registration.
type Options struct {
	MinimumInterval time.Duration
	StopOnTerminate bool
	StartOnBoot     bool
}

// Input is what a handler receives on each invocation. Err is set when no
// sample could be supplied.
type Input struct {
	Sample sensor.Sample
	Err    error
}

// Handler runs one invocation. Returned errors are logged and do not stop
// later invocations.
type Handler func(ctx context.Context, in Input) error

// SampleProvider supplies a fresh or cached sample for an invocation.
type SampleProvider func(ctx context.Context) (sensor.Sample, error)

// Scheduler defines tasks and runs registered ones at their interval.
type Scheduler struct {
	registry *Registry
	provider SampleProvider
	logger   zerolog.Logger
	floor    time.Duration

	mu      sync.Mutex
	tasks   map[string]Handler
	loops   map[string]context.CancelFunc
	runCtx  context.Context
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a Scheduler persisting to registry.
func NewScheduler(registry *Registry, provider SampleProvider, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		registry: registry,
		provider: provider,
		logger:   logger.With().Str("component", "background").Logger(),
		floor:    MinimumInterval,
		tasks:    make(map[string]Handler),
		loops:    make(map[string]context.CancelFunc),
	}
}

// DefineTask associates name with h. Redefining replaces the handler.
func (s *Scheduler) DefineTask(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = h
}

// IsTaskRegistered reports whether name has a persisted registration.
func (s *Scheduler) IsTaskRegistered(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.registry.Get(ctx, name)
	return ok, err
}

// RegisterTask persists a registration for a defined task and, if the
// scheduler is running, starts invoking it. Registering an already
// registered task is a no-op.
func (s *Scheduler) RegisterTask(ctx context.Context, name string, opts Options) error {
	s.mu.Lock()
	_, defined := s.tasks[name]
	s.mu.Unlock()
	if !defined {
		return fmt.Errorf("register %s: %w", name, ErrUndefinedTask)
	}

	reg := Registration{
		Name:         name,
		Interval:     max(opts.MinimumInterval, s.floor),
		StopOnTerm:   opts.StopOnTerminate,
		StartOnBoot:  opts.StartOnBoot,
		RegisteredAt: time.Now().UTC(),
	}
	stored, err := s.registry.PutIfAbsent(ctx, reg)
	if err != nil {
		return err
	}
	if !stored {
		s.logger.Debug().Str("task", name).Msg("task already registered")
		return nil
	}

	s.logger.Info().
		Str("task", name).
		Dur("interval", reg.Interval).
		Bool("start_on_boot", reg.StartOnBoot).
		Bool("stop_on_terminate", reg.StopOnTerm).
		Msg("task registered")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.arm(reg)
	}
	return nil
}

// Unregister stops and removes a registration.
func (s *Scheduler) Unregister(ctx context.Context, name string) error {
	s.mu.Lock()
	if cancel, ok := s.loops[name]; ok {
		cancel()
		delete(s.loops, name)
	}
	s.mu.Unlock()
	return s.registry.Delete(ctx, name)
}

// Registrations lists persisted registrations.
func (s *Scheduler) Registrations(ctx context.Context) ([]Registration, error) {
	return s.registry.List(ctx)
}

// Run re-arms every persisted registration that has a defined task, then
// blocks until ctx is done. On return all invocation loops have stopped and
// registrations marked StopOnTerminate are removed.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	regs, err := s.registry.List(context.WithoutCancel(ctx))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.runCtx = ctx
	s.running = true
	for _, reg := range regs {
		if _, ok := s.tasks[reg.Name]; !ok {
			s.logger.Warn().Str("task", reg.Name).Msg("registered task has no handler, skipping")
			continue
		}
		s.arm(reg)
	}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.running = false
	for name, cancel := range s.loops {
		cancel()
		delete(s.loops, name)
	}
	s.mu.Unlock()
	s.wg.Wait()

	// ctx is done; cleanup needs its own context.
	cleanup := context.Background()
	regs, err = s.registry.List(cleanup)
	if err != nil {
		return err
	}
	for _, reg := range regs {
		if reg.StopOnTerm {
			if err := s.registry.Delete(cleanup, reg.Name); err != nil {
				s.logger.Error().Err(err).Str("task", reg.Name).Msg("remove stop-on-terminate task")
			}
		}
	}
	return nil
}

// RunNow invokes a defined task once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	h, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s: %w", name, ErrUndefinedTask)
	}
	s.invoke(ctx, name, h)
	return nil
}

// arm starts the invocation loop for reg. Callers hold s.mu.
func (s *Scheduler) arm(reg Registration) {
	if _, ok := s.loops[reg.Name]; ok {
		return
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	s.loops[reg.Name] = cancel
	interval := max(reg.Interval, s.floor)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			s.mu.Lock()
			h := s.tasks[reg.Name]
			s.mu.Unlock()
			s.invoke(ctx, reg.Name, h)
		}
	}()
}

// invoke runs h once. Nothing escapes: errors and panics are logged.
func (s *Scheduler) invoke(ctx context.Context, name string, h Handler) {
	var in Input
	if s.provider == nil {
		in.Err = sensor.ErrUnavailable
	} else {
		in.Sample, in.Err = s.provider(ctx)
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return h(ctx, in)
	}()

	result := "ok"
	if err != nil {
		result = "error"
		s.logger.Error().Err(err).Str("task", name).Msg("background task failed")
	}
	metrics.BackgroundRunsTotal.WithLabelValues(name, result).Inc()

	if rerr := s.registry.RecordRun(name, time.Now().UTC(), err != nil); rerr != nil {
		s.logger.Warn().Err(rerr).Str("task", name).Msg("record task run")
	}
}
