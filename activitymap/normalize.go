// Package activitymap flattens escrow activity events into a transport
// agnostic record for logs, queues and audit stores.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-escrow"
)

const (
	MetadataKeyActorRole    = "actor_role"
	MetadataKeyAction       = "action"
	MetadataKeyFromStatus   = "from_status"
	MetadataKeyToStatus     = "to_status"
	MetadataKeyAuditFailed  = "audit_failed"
	MetadataKeyNotifyFailed = "notify_failed"
)

const (
	defaultChannel    = "escrow"
	defaultObjectType = "escrow"
	defaultActorID    = "system"
)

// Normalized is the flattened activity shape.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Fields returns n as key/value pairs for structured loggers.
func (n Normalized) Fields() []any {
	out := []any{
		"actor_id", n.ActorID,
		"object_type", n.ObjectType,
		"object_id", n.ObjectID,
		"channel", n.Channel,
		"occurred_at", n.OccurredAt,
	}
	for _, key := range []string{
		MetadataKeyAction,
		MetadataKeyFromStatus,
		MetadataKeyToStatus,
		MetadataKeyAuditFailed,
		MetadataKeyNotifyFailed,
	} {
		if v, ok := n.Metadata[key]; ok {
			out = append(out, key, v)
		}
	}
	return out
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an escrow.ActivityEvent into a Normalized record. The
// event metadata is copied, never mutated.
func Normalize(event escrow.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.EscrowID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used when the event has no timestamp.
func WithClock(clock func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if clock != nil {
			opts.now = clock
		}
	}
}

func normalizeMetadata(event escrow.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+6)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if role := strings.TrimSpace(event.Actor.Role); role != "" {
		if _, exists := metadata[MetadataKeyActorRole]; !exists {
			metadata[MetadataKeyActorRole] = role
		}
	}
	if event.Action != "" {
		metadata[MetadataKeyAction] = string(event.Action)
	}
	if event.FromStatus != "" {
		metadata[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		metadata[MetadataKeyToStatus] = string(event.ToStatus)
	}
	if event.AuditFailed {
		metadata[MetadataKeyAuditFailed] = true
	}
	if event.NotifyFailed {
		metadata[MetadataKeyNotifyFailed] = true
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

// Sink adapts a structured logger into an escrow.ActivitySink that logs
// every normalized event at info level.
func Sink(logger escrow.Logger, opts ...Option) escrow.ActivitySink {
	return escrow.ActivitySinkFunc(func(_ context.Context, event escrow.ActivityEvent) error {
		n := Normalize(event, opts...)
		logger.Info(n.Verb, n.Fields()...)
		return nil
	})
}
