package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"golang.org/x/time/rate"
)

// DefaultDesktopInterval is the minimum gap between two desktop banners.
const DefaultDesktopInterval = 5 * time.Second

// Desktop delivers notifications through the operating system's
// notification center. The OS owns delivered banners and has no sticky
// style, so updates are throttled instead: at most one banner per interval,
// always carrying the newest content. DismissAll only cancels deliveries
// that have not fired yet.
type Desktop struct {
	host
	send func(title, body string) error

	limiter *rate.Limiter

	mu       sync.Mutex
	held     *Content
	flush    *time.Timer
	flushErr error
}

// NewDesktop creates a desktop presenter posting at most once per interval.
func NewDesktop(allowed bool, chime Chime, interval time.Duration) *Desktop {
	if interval <= 0 {
		interval = DefaultDesktopInterval
	}
	d := &Desktop{
		send: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
	d.init(allowed, chime)
	return d
}

func (d *Desktop) RequestPermission(ctx context.Context) (Permission, error) {
	return d.requestPermission(ctx)
}

func (d *Desktop) SetHandler(p Policy) {
	d.setHandler(p)
}

func (d *Desktop) DismissAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.cancelPending()
	return nil
}

func (d *Desktop) Schedule(ctx context.Context, c Content, t Trigger) (string, error) {
	return d.schedule(ctx, t, func(string) error {
		return d.throttle(c)
	})
}

// throttle posts c now when the limiter allows, otherwise holds it until the
// next slot. A held banner is replaced by newer content.
func (d *Desktop) throttle(c Content) error {
	d.mu.Lock()
	err := d.flushErr
	d.flushErr = nil
	if d.flush != nil {
		d.held = &c
		d.mu.Unlock()
		return err
	}
	r := d.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		d.held = &c
		d.flush = time.AfterFunc(delay, d.flushHeld)
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	if perr := d.post(c); perr != nil {
		return perr
	}
	return err
}

func (d *Desktop) flushHeld() {
	if err := d.Flush(); err != nil {
		d.mu.Lock()
		d.flushErr = err
		d.mu.Unlock()
	}
}

// Flush posts the held banner immediately, if any. Call it on shutdown so
// the final count is shown.
func (d *Desktop) Flush() error {
	d.mu.Lock()
	c := d.held
	d.held = nil
	if d.flush != nil {
		d.flush.Stop()
		d.flush = nil
	}
	d.mu.Unlock()
	if c == nil {
		return nil
	}
	return d.post(*c)
}

func (d *Desktop) post(c Content) error {
	if err := d.send(c.Title, c.Body); err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}
	return nil
}
