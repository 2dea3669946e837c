package activitymap

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
)

// MetadataKeyOutcome stores the final segment of the event type, "success"
// or "failure".
const MetadataKeyOutcome = "outcome"

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	anonymousActorID  = "anonymous"
)

// Normalized is a transport agnostic activity record.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	clock         func() time.Time
}

// Normalize converts an auth.ActivityEvent into a Normalized record. Events
// without a user, such as failed logins, are attributed to the fallback
// actor.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	objectID := ""
	if event.UserID > 0 {
		objectID = strconv.FormatInt(event.UserID, 10)
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.clock()
	}

	return Normalized{
		ActorID:    firstNonEmpty(objectID, options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// WithDefaultChannel sets the channel of normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if channel = strings.TrimSpace(channel); channel != "" {
			opts.channel = channel
		}
	}
}

// WithDefaultObjectType sets the object type of normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if objectType = strings.TrimSpace(objectType); objectType != "" {
			opts.objectType = objectType
		}
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithClock sets the time source for events missing OccurredAt.
func WithClock(clock func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

// LogSink is an auth.ActivitySink writing normalized records to a slog
// logger, one "activity" entry per event.
type LogSink struct {
	logger *slog.Logger
	opts   []Option
}

// NewLogSink returns a sink logging to logger. A nil logger uses
// slog.Default.
func NewLogSink(logger *slog.Logger, opts ...Option) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, opts: opts}
}

// Record implements auth.ActivitySink.
func (s *LogSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	rec := Normalize(event, s.opts...)

	level := slog.LevelInfo
	if rec.Metadata[MetadataKeyOutcome] == "failure" {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("actor_id", rec.ActorID),
		slog.String("verb", rec.Verb),
		slog.String("object_type", rec.ObjectType),
		slog.String("channel", rec.Channel),
		slog.Time("occurred_at", rec.OccurredAt),
	}
	if rec.ObjectID != "" {
		attrs = append(attrs, slog.String("object_id", rec.ObjectID))
	}
	if len(rec.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", rec.Metadata))
	}

	s.logger.LogAttrs(ctx, level, "activity", attrs...)
	return nil
}

var _ auth.ActivitySink = (*LogSink)(nil)

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: anonymousActorID,
		clock:         time.Now,
	}
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	verb := string(event.EventType)
	if i := strings.LastIndex(verb, "."); i >= 0 && i < len(verb)-1 {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyOutcome]; !exists {
			metadata[MetadataKeyOutcome] = verb[i+1:]
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
