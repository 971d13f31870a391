package escrow

import (
	"context"
)

// Notification describes a committed transition for outbound delivery.
// Recipients are the escrow parties other than the actor.
type Notification struct {
	EscrowID   string
	Title      string
	From       EscrowStatus
	To         EscrowStatus
	ActorID    string
	Recipients []string
}

// Notifier delivers notifications best-effort. Errors are logged by the
// state machine and never revert a transition.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error {
	return nil
}

// MultiNotifier fans a notification out to every notifier and returns the
// first error after all have run.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) error {
		var first error
		for _, nt := range notifiers {
			if nt == nil {
				continue
			}
			if err := nt.Notify(ctx, n); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
