package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/taigrr/pedometer/metrics"
)

// DefaultQueueSize bounds pending notification updates.
const DefaultQueueSize = 16

// Updater replaces the step notification on every count change: dismiss
// everything, then schedule the new count. Updates are fire-and-forget and
// coalesce: a full queue sheds its oldest entry and delivery skips ahead to
// the newest queued count, so the last count is always shown.
type Updater struct {
	presenter Presenter
	queue     chan int
	logger    zerolog.Logger
}

// NewUpdater creates an Updater delivering through p.
func NewUpdater(p Presenter, size int, logger zerolog.Logger) *Updater {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Updater{
		presenter: p,
		queue:     make(chan int, size),
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Enqueue queues a notification for steps without blocking. When the queue
// is full the oldest pending update is dropped to make room; it reports
// false in that case. Callers are serialized by the counter.
func (u *Updater) Enqueue(steps int) bool {
	select {
	case u.queue <- steps:
		return true
	default:
	}
	select {
	case old := <-u.queue:
		u.dropped(old)
	default:
	}
	select {
	case u.queue <- steps:
	default:
		u.dropped(steps)
	}
	return false
}

func (u *Updater) dropped(steps int) {
	metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
	u.logger.Debug().Int("steps", steps).Msg("notification superseded")
}

// Run delivers queued updates until ctx is done.
func (u *Updater) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case steps := <-u.queue:
			u.deliver(ctx, u.newest(steps))
		}
	}
}

// newest drains the queue and returns the last queued count.
func (u *Updater) newest(steps int) int {
	for {
		select {
		case next := <-u.queue:
			u.dropped(steps)
			steps = next
		default:
			return steps
		}
	}
}

func (u *Updater) deliver(ctx context.Context, steps int) {
	if err := u.presenter.DismissAll(ctx); err != nil {
		u.logger.Warn().Err(err).Msg("dismiss notifications")
	}
	id, err := u.presenter.Schedule(ctx, StepContent(steps), Trigger{})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		u.logger.Warn().Err(err).Int("steps", steps).Msg("schedule notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	u.logger.Debug().Str("id", id).Int("steps", steps).Msg("notification updated")
}
