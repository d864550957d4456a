// Package notify presents the live step count as a sticky notification.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied is returned when the host refuses notifications.
var ErrPermissionDenied = errors.New("notification permission denied")

// Permission is the outcome of a permission request.
type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// Policy decides how a delivered notification is presented.
type Policy struct {
	ShowAlert bool
	PlaySound bool
	SetBadge  bool
}

func (p Policy) String() string {
	return fmt.Sprintf("alert=%t sound=%t badge=%t", p.ShowAlert, p.PlaySound, p.SetBadge)
}

// DefaultPolicy shows the alert and badge without sound.
var DefaultPolicy = Policy{ShowAlert: true, SetBadge: true}

// Content is what a notification displays.
type Content struct {
	Title       string
	Body        string
	Badge       int
	Sticky      bool
	AutoDismiss bool
}

// Trigger schedules delivery. The zero Trigger delivers immediately.
type Trigger struct {
	At time.Time
}

// Immediate reports whether the trigger fires right away.
func (t Trigger) Immediate() bool {
	return t.At.IsZero() || !t.At.After(time.Now())
}

// Presenter is a notification host.
type Presenter interface {
	// RequestPermission asks the host for permission. Repeated calls return
	// the first answer.
	RequestPermission(ctx context.Context) (Permission, error)
	SetHandler(p Policy)
	DismissAll(ctx context.Context) error
	// Schedule delivers c when t fires and returns the notification id.
	Schedule(ctx context.Context, c Content, t Trigger) (string, error)
}

// StepTitle is the title of the step notification.
const StepTitle = "Step Counter"

// StepContent builds the sticky notification for a step count.
func StepContent(steps int) Content {
	return Content{
		Title:       StepTitle,
		Body:        fmt.Sprintf("You have taken %d steps.", steps),
		Badge:       steps,
		Sticky:      true,
		AutoDismiss: false,
	}
}
