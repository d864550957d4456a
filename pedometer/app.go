package pedometer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/pedometer/background"
	"github.com/taigrr/pedometer/notify"
	"github.com/taigrr/pedometer/sensor"
)

// TaskName is the background task that re-enters step detection.
const TaskName = "step-count"

// ErrNoSample is reported to the background task before the source has
// delivered anything.
var ErrNoSample = errors.New("no motion sample received yet")

// AlertKind classifies user-facing alerts.
type AlertKind string

const (
	AlertPermissionDenied  AlertKind = "permission-denied"
	AlertSensorUnavailable AlertKind = "sensor-unavailable"
)

// Alert is a condition the user must be told about. Execution continues.
type Alert struct {
	Kind    AlertKind
	Message string
	Err     error
}

// Config wires an App.
type Config struct {
	Source    sensor.Source
	Presenter notify.Presenter
	Policy    notify.Policy
	// Registry enables the background task when non-nil.
	Registry     *background.Registry
	TaskInterval time.Duration
	QueueSize    int
	// OnAlert receives alerts. It may block until the user acknowledges.
	OnAlert func(Alert)
	Logger  zerolog.Logger
}

// App is the application root. It owns the tracker and hands it to the
// sensor listener, the background task and the display.
type App struct {
	cfg       Config
	tracker   *Tracker
	scheduler *background.Scheduler
	logger    zerolog.Logger
}

// New creates an App. The background task is defined immediately so
// persisted registrations can be re-armed when Run starts.
func New(cfg Config) *App {
	a := &App{
		cfg:     cfg,
		tracker: NewTracker(),
		logger:  cfg.Logger.With().Str("component", "app").Logger(),
	}
	if cfg.Registry != nil {
		a.scheduler = background.NewScheduler(cfg.Registry, a.latestSample, cfg.Logger)
		a.scheduler.DefineTask(TaskName, a.backgroundStep)
	}
	return a
}

// Tracker returns the shared step tracker.
func (a *App) Tracker() *Tracker {
	return a.tracker
}

// Scheduler returns the background scheduler, or nil when disabled.
func (a *App) Scheduler() *background.Scheduler {
	return a.scheduler
}

// Run activates the app until ctx is done: notifications are set up, the
// background task is registered, and the sensor subscription is held for
// the lifetime of the call.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	updater := notify.NewUpdater(a.setupNotifications(ctx), a.cfg.QueueSize, a.cfg.Logger)
	g.Go(func() error {
		updater.Run(ctx)
		return nil
	})
	unsubscribe := a.tracker.Counter().Subscribe(func(n int) { updater.Enqueue(n) })
	defer unsubscribe()

	if a.scheduler != nil {
		g.Go(func() error {
			if err := a.scheduler.Run(ctx); err != nil {
				a.logger.Error().Err(err).Msg("background scheduler stopped")
			}
			return nil
		})
		a.startBackgroundTask(ctx)
	}

	g.Go(func() error {
		return a.runSensor(ctx)
	})

	return g.Wait()
}

// setupNotifications requests permission and returns the presenter to use.
// A refusal is alerted and notifications are discarded from then on.
func (a *App) setupNotifications(ctx context.Context) notify.Presenter {
	p := a.cfg.Presenter
	if p == nil {
		return notify.Discard{}
	}

	perm, err := p.RequestPermission(ctx)
	if err == nil && perm != notify.PermissionGranted {
		err = notify.ErrPermissionDenied
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("notifications disabled")
		a.alert(Alert{
			Kind:    AlertPermissionDenied,
			Message: "Notification permission not granted; the step count will only be shown on screen.",
			Err:     err,
		})
		return notify.Discard{}
	}

	p.SetHandler(a.cfg.Policy)
	a.logger.Debug().Stringer("policy", a.cfg.Policy).Msg("notifications enabled")
	return p
}

// startBackgroundTask registers the step task unless it already is.
// Failures are logged; counting continues in the foreground.
func (a *App) startBackgroundTask(ctx context.Context) {
	registered, err := a.scheduler.IsTaskRegistered(ctx, TaskName)
	if err != nil {
		a.logger.Error().Err(err).Msg("check background task registration")
		return
	}
	if registered {
		return
	}
	err = a.scheduler.RegisterTask(ctx, TaskName, background.Options{
		MinimumInterval: a.cfg.TaskInterval,
		StopOnTerminate: false,
		StartOnBoot:     true,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("register background task")
	}
}

// runSensor holds the sensor subscription while the source runs. The
// subscription is released on every exit path.
func (a *App) runSensor(ctx context.Context) error {
	src := a.cfg.Source
	sub := src.Subscribe(func(s sensor.Sample) {
		if n, ok := a.tracker.Feed(s, Foreground); ok {
			a.logger.Debug().Int("steps", n).Int64("t", s.TimestampMillis).Msg("step")
		}
	})
	defer src.Unsubscribe(sub)

	err := src.Run(ctx)
	if errors.Is(err, sensor.ErrUnavailable) {
		a.logger.Error().Err(err).Msg("motion sensor unavailable")
		a.alert(Alert{
			Kind:    AlertSensorUnavailable,
			Message: "No motion sensor is available; steps cannot be counted.",
			Err:     err,
		})
		<-ctx.Done()
		return nil
	}
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	return nil
}

// latestSample hands the background task the source's newest sample, or
// ErrStaleSample when the foreground listener already processed it.
func (a *App) latestSample(context.Context) (sensor.Sample, error) {
	s, ok := a.cfg.Source.Latest()
	if !ok {
		return sensor.Sample{}, ErrNoSample
	}
	if !a.tracker.Fresh(s) {
		return sensor.Sample{}, ErrStaleSample
	}
	return s, nil
}

func (a *App) backgroundStep(_ context.Context, in background.Input) error {
	err := in.Err
	if err == nil {
		var n int
		var stepped bool
		n, stepped, err = a.tracker.FeedNew(in.Sample, Background)
		if stepped {
			a.logger.Info().Int("steps", n).Msg("step counted in background")
		}
	}
	if errors.Is(err, ErrStaleSample) {
		// The foreground is live; nothing for the background task to do.
		a.logger.Debug().Msg("no fresh sample for background task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("background sample: %w", err)
	}
	return nil
}

func (a *App) alert(al Alert) {
	if a.cfg.OnAlert != nil {
		a.cfg.OnAlert(al)
	}
}
