package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestUpdaterDismissesThenSchedules(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := NewRecorder(true)
	_, _ = rec.RequestPermission(context.Background())
	u := NewUpdater(rec, 4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()

	require.True(t, u.Enqueue(1))
	require.True(t, u.Enqueue(2))
	require.Eventually(t, func() bool { return rec.Delivered() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{
		"dismiss", "schedule:You have taken 1 steps.",
		"dismiss", "schedule:You have taken 2 steps.",
	}, rec.Ops())
	require.Len(t, rec.Active(), 1)
	assert.Equal(t, "You have taken 2 steps.", rec.Active()[0].Body)
}

func TestUpdaterKeepsNewestWhenFull(t *testing.T) {
	rec := NewRecorder(true)
	u := NewUpdater(rec, 1, zerolog.Nop())
	assert.True(t, u.Enqueue(1))
	assert.False(t, u.Enqueue(2))
	assert.Equal(t, 2, <-u.queue)
}

// gatedPresenter blocks every DismissAll until the gate is closed.
type gatedPresenter struct {
	*Recorder
	gate chan struct{}
}

func (g gatedPresenter) DismissAll(ctx context.Context) error {
	<-g.gate
	return g.Recorder.DismissAll(ctx)
}

func TestUpdaterShowsLastCountAfterBacklog(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := NewRecorder(true)
	_, _ = rec.RequestPermission(context.Background())
	p := gatedPresenter{Recorder: rec, gate: make(chan struct{})}
	u := NewUpdater(p, 4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()

	for n := 1; n <= 10; n++ {
		u.Enqueue(n)
	}
	close(p.gate)

	require.Eventually(t, func() bool {
		active := rec.Active()
		return len(active) == 1 && active[0].Body == "You have taken 10 steps."
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.LessOrEqual(t, rec.Delivered(), 2, "backlog is coalesced")
}

func TestUpdaterSurvivesScheduleErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := NewRecorder(true)
	_, _ = rec.RequestPermission(context.Background())
	rec.FailWith(errors.New("host busy"))
	u := NewUpdater(rec, 4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()

	u.Enqueue(1)
	require.Eventually(t, func() bool { return len(rec.Ops()) == 1 }, time.Second, 5*time.Millisecond)
	rec.FailWith(nil)
	u.Enqueue(2)
	require.Eventually(t, func() bool { return rec.Delivered() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
