package background

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/taigrr/pedometer/sensor"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func cachedSample(s sensor.Sample) SampleProvider {
	return func(context.Context) (sensor.Sample, error) { return s, nil }
}

func noop(context.Context, Input) error { return nil }

func TestRegisterTaskIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(openTestRegistry(t), nil, zerolog.Nop())
	s.DefineTask("steps", noop)

	ok, err := s.IsTaskRegistered(ctx, "steps")
	require.NoError(t, err)
	assert.False(t, ok)

	opts := Options{MinimumInterval: 60 * time.Second, StartOnBoot: true}
	require.NoError(t, s.RegisterTask(ctx, "steps", opts))
	require.NoError(t, s.RegisterTask(ctx, "steps", opts))

	regs, err := s.Registrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "steps", regs[0].Name)
	assert.True(t, regs[0].StartOnBoot)

	ok, err = s.IsTaskRegistered(ctx, "steps")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterClampsInterval(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	s := NewScheduler(reg, nil, zerolog.Nop())
	s.DefineTask("steps", noop)

	require.NoError(t, s.RegisterTask(ctx, "steps", Options{MinimumInterval: time.Second}))
	got, ok, err := reg.Get(ctx, "steps")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MinimumInterval, got.Interval)
}

func TestRegisterUndefinedTask(t *testing.T) {
	s := NewScheduler(openTestRegistry(t), nil, zerolog.Nop())
	err := s.RegisterTask(context.Background(), "missing", Options{})
	assert.ErrorIs(t, err, ErrUndefinedTask)
	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrUndefinedTask)
}

func TestRunNowSuppliesSample(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	want := sensor.Sample{Z: 2, TimestampMillis: 99}
	s := NewScheduler(reg, cachedSample(want), zerolog.Nop())

	var got Input
	s.DefineTask("steps", func(_ context.Context, in Input) error {
		got = in
		return nil
	})
	require.NoError(t, s.RegisterTask(ctx, "steps", Options{}))
	require.NoError(t, s.RunNow(ctx, "steps"))

	assert.NoError(t, got.Err)
	assert.Equal(t, want, got.Sample)

	stored, _, err := reg.Get(ctx, "steps")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Runs)
	assert.False(t, stored.LastRun.IsZero())
}

func TestHandlerErrorsAreContained(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	providerErr := errors.New("no sample yet")
	s := NewScheduler(reg, func(context.Context) (sensor.Sample, error) {
		return sensor.Sample{}, providerErr
	}, zerolog.Nop())

	s.DefineTask("steps", func(_ context.Context, in Input) error {
		return in.Err
	})
	s.DefineTask("panics", func(context.Context, Input) error {
		panic("boom")
	})
	require.NoError(t, s.RegisterTask(ctx, "steps", Options{}))

	require.NoError(t, s.RunNow(ctx, "steps"))
	require.NoError(t, s.RunNow(ctx, "panics"))

	stored, _, err := reg.Get(ctx, "steps")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Failures)
}

func TestRunInvokesRepeatedlyDespiteErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := openTestRegistry(t)
	s := NewScheduler(reg, cachedSample(sensor.Sample{}), zerolog.Nop())
	s.floor = 5 * time.Millisecond

	var calls atomic.Int32
	s.DefineTask("steps", func(context.Context, Input) error {
		calls.Add(1)
		return errors.New("host error")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.RegisterTask(context.Background(), "steps", Options{}))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunRearmsPersistedRegistrations(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "tasks.db")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	first := NewScheduler(reg, nil, zerolog.Nop())
	first.DefineTask("steps", noop)
	require.NoError(t, first.RegisterTask(context.Background(), "steps", Options{}))
	require.NoError(t, reg.Close())

	// A new process reopens the registry and defines the same task.
	reg, err = OpenRegistry(path)
	require.NoError(t, err)
	defer reg.Close()

	second := NewScheduler(reg, cachedSample(sensor.Sample{}), zerolog.Nop())
	second.floor = 5 * time.Millisecond
	var calls atomic.Int32
	second.DefineTask("steps", func(context.Context, Input) error {
		calls.Add(1)
		return nil
	})

	// The persisted interval is a minute; lower it to observe the loop.
	require.NoError(t, reg.Delete(context.Background(), "steps"))
	_, err = reg.PutIfAbsent(context.Background(), Registration{Name: "steps", Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- second.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestStopOnTerminateRemovesRegistration(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := openTestRegistry(t)
	s := NewScheduler(reg, nil, zerolog.Nop())
	s.DefineTask("ephemeral", noop)
	s.DefineTask("durable", noop)
	require.NoError(t, s.RegisterTask(context.Background(), "ephemeral", Options{StopOnTerminate: true}))
	require.NoError(t, s.RegisterTask(context.Background(), "durable", Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	regs, err := s.Registrations(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "durable", regs[0].Name)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(openTestRegistry(t), nil, zerolog.Nop())
	s.DefineTask("steps", noop)
	require.NoError(t, s.RegisterTask(ctx, "steps", Options{}))
	require.NoError(t, s.Unregister(ctx, "steps"))
	require.NoError(t, s.Unregister(ctx, "steps"))

	ok, err := s.IsTaskRegistered(ctx, "steps")
	require.NoError(t, err)
	assert.False(t, ok)
}
