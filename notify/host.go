package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// host holds the permission and policy state shared by presenters, plus the
// pending-delivery timers for future triggers.
type host struct {
	mu      sync.Mutex
	allowed bool
	asked   bool
	perm    Permission
	policy  Policy
	chime   Chime
	timers  map[string]*time.Timer
}

func (h *host) init(allowed bool, chime Chime) {
	h.allowed = allowed
	h.policy = DefaultPolicy
	h.chime = chime
	h.timers = make(map[string]*time.Timer)
}

func (h *host) requestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionUndetermined, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.asked {
		h.asked = true
		h.perm = PermissionDenied
		if h.allowed {
			h.perm = PermissionGranted
		}
	}
	return h.perm, nil
}

func (h *host) granted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perm == PermissionGranted
}

func (h *host) setHandler(p Policy) {
	h.mu.Lock()
	h.policy = p
	h.mu.Unlock()
}

func (h *host) currentPolicy() Policy {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.policy
}

// schedule runs deliver now or when t fires. It fails with
// ErrPermissionDenied unless permission was granted.
func (h *host) schedule(ctx context.Context, t Trigger, deliver func(id string) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !h.granted() {
		return "", ErrPermissionDenied
	}
	id := uuid.NewString()
	if t.Immediate() {
		return id, h.present(id, deliver)
	}

	h.mu.Lock()
	h.timers[id] = time.AfterFunc(time.Until(t.At), func() {
		h.mu.Lock()
		delete(h.timers, id)
		h.mu.Unlock()
		_ = h.present(id, deliver)
	})
	h.mu.Unlock()
	return id, nil
}

func (h *host) present(id string, deliver func(id string) error) error {
	p := h.currentPolicy()
	if !p.ShowAlert {
		return nil
	}
	if err := deliver(id); err != nil {
		return err
	}
	if p.PlaySound && h.chime != nil {
		go func() { _ = h.chime.Play() }()
	}
	return nil
}

// cancelPending stops every future delivery.
func (h *host) cancelPending() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
}
