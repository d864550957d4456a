package background

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)

	stored, err := reg.PutIfAbsent(ctx, Registration{Name: "b", Interval: time.Minute})
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = reg.PutIfAbsent(ctx, Registration{Name: "b", Interval: time.Hour})
	require.NoError(t, err)
	assert.False(t, stored, "existing registration is kept")
	_, err = reg.PutIfAbsent(ctx, Registration{Name: "a", Interval: time.Minute})
	require.NoError(t, err)

	regs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "a", regs[0].Name)
	assert.Equal(t, "b", regs[1].Name)
	assert.Equal(t, time.Minute, regs[1].Interval)
}

func TestRegistryRecordRun(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	_, err := reg.PutIfAbsent(ctx, Registration{Name: "steps"})
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.RecordRun("steps", at, false))
	require.NoError(t, reg.RecordRun("steps", at.Add(time.Minute), true))
	require.NoError(t, reg.RecordRun("unknown", at, true))

	got, ok, err := reg.Get(ctx, "steps")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Runs)
	assert.Equal(t, int64(1), got.Failures)
	assert.True(t, got.LastRun.Equal(at.Add(time.Minute)))

	_, ok, err = reg.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryHonorsCanceledContext(t *testing.T) {
	reg := openTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = reg.PutIfAbsent(ctx, Registration{Name: "steps"})
	assert.ErrorIs(t, err, context.Canceled)
}
