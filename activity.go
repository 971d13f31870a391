package escrow

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventStatusChanged  ActivityEventType = "escrow.status.changed"
	ActivityEventForceCompleted ActivityEventType = "escrow.status.force_completed"
	ActivityEventCreated        ActivityEventType = "escrow.created"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType    ActivityEventType
	Actor        Actor
	EscrowID     string
	Action       Action
	FromStatus   EscrowStatus
	ToStatus     EscrowStatus
	AuditFailed  bool
	NotifyFailed bool
	Metadata     map[string]any
	OccurredAt   time.Time
}

// ActivitySink consumes activity events for telemetry purposes. Sinks run
// best-effort: errors are logged and never fail a transition.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// MultiActivitySink records the event on every sink and returns the first
// error after all have run.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
