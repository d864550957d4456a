package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// autoDismissAfter is how long a non-sticky, auto-dismissing notification
// stays in the status line.
const autoDismissAfter = 5 * time.Second

// Terminal presents notifications as a status line. The dashboard renders
// Current; headless runs write each delivery to out.
type Terminal struct {
	host

	out io.Writer

	mu       sync.Mutex
	active   []entry
	onChange func()
}

type entry struct {
	id      string
	content Content
}

// NewTerminal creates a terminal presenter. out may be nil.
func NewTerminal(out io.Writer, allowed bool, chime Chime) *Terminal {
	t := &Terminal{out: out}
	t.init(allowed, chime)
	return t
}

// OnChange registers fn to run after every delivery or dismissal.
func (t *Terminal) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Terminal) RequestPermission(ctx context.Context) (Permission, error) {
	return t.requestPermission(ctx)
}

func (t *Terminal) SetHandler(p Policy) {
	t.setHandler(p)
}

func (t *Terminal) DismissAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.cancelPending()
	t.mu.Lock()
	t.active = nil
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (t *Terminal) Schedule(ctx context.Context, c Content, tr Trigger) (string, error) {
	return t.schedule(ctx, tr, func(id string) error {
		t.mu.Lock()
		t.active = append(t.active, entry{id: id, content: c})
		fn := t.onChange
		t.mu.Unlock()

		if t.out != nil {
			if _, err := fmt.Fprintln(t.out, t.Format(c)); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
		}
		if !c.Sticky && c.AutoDismiss {
			time.AfterFunc(autoDismissAfter, func() { t.remove(id) })
		}
		if fn != nil {
			fn()
		}
		return nil
	})
}

// Current returns the most recently delivered notification still showing.
func (t *Terminal) Current() (Content, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.active) == 0 {
		return Content{}, false
	}
	return t.active[len(t.active)-1].content, true
}

// Format renders c as a single status line, with the badge when the policy
// asks for one.
func (t *Terminal) Format(c Content) string {
	line := fmt.Sprintf("[%s] %s", c.Title, c.Body)
	if t.currentPolicy().SetBadge && c.Badge > 0 {
		line = fmt.Sprintf("%s (%d)", line, c.Badge)
	}
	return line
}

func (t *Terminal) remove(id string) {
	t.mu.Lock()
	for i, e := range t.active {
		if e.id == id {
			t.active = append(t.active[:i], t.active[i+1:]...)
			break
		}
	}
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
