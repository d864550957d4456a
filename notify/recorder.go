package notify

import (
	"context"
	"sync"
)

// Recorder is an in-memory Presenter that records every call.
type Recorder struct {
	host

	mu     sync.Mutex
	ops    []string
	active []Content
	next   int
	fail   error
}

// NewRecorder creates a Recorder that grants permission when allowed.
func NewRecorder(allowed bool) *Recorder {
	r := &Recorder{}
	r.init(allowed, nil)
	return r
}

// FailWith makes subsequent Schedule calls return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *Recorder) RequestPermission(ctx context.Context) (Permission, error) {
	return r.requestPermission(ctx)
}

func (r *Recorder) SetHandler(p Policy) {
	r.setHandler(p)
}

func (r *Recorder) DismissAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "dismiss")
	r.active = nil
	return nil
}

func (r *Recorder) Schedule(ctx context.Context, c Content, t Trigger) (string, error) {
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return "", fail
	}
	return r.schedule(ctx, t, func(string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.next++
		r.ops = append(r.ops, "schedule:"+c.Body)
		r.active = append(r.active, c)
		return nil
	})
}

// Ops returns the recorded calls in order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Active returns the notifications currently showing.
func (r *Recorder) Active() []Content {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Content(nil), r.active...)
}

// Delivered returns how many notifications were scheduled successfully.
func (r *Recorder) Delivered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Discard is a Presenter used after permission was refused. Every call
// succeeds without presenting anything.
type Discard struct{}

func (Discard) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}
func (Discard) SetHandler(Policy)                 {}
func (Discard) DismissAll(context.Context) error { return nil }
func (Discard) Schedule(context.Context, Content, Trigger) (string, error) {
	return "", nil
}
