package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/internal/platform/kafka/consumer"
	"gatehouse/internal/waitlist"
	"gatehouse/internal/waitlist/metrics"
	"gatehouse/pkg/requestcontext"
)

// Notification results recorded in metrics.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
	resultMalformed = "malformed"
	resultStale     = "stale"
)

// Sink receives decoded lifecycle notifications. *waitlist.Synchronizer is the
// production implementation.
type Sink interface {
	Resync(ctx context.Context, members []waitlist.MemberStatus) error
	MemberJoined(ctx context.Context, m waitlist.MemberStatus) error
	MemberLeft(ctx context.Context, id waitlist.MemberID) error
}

// Handler decodes member lifecycle records and applies them to the sink. It
// implements consumer.Handler.
type Handler struct {
	sink     Sink
	deduper  Deduper
	logger   *slog.Logger
	metrics  *metrics.Metrics
	baseline time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithDeduper overrides the default in-memory deduper.
func WithDeduper(d Deduper) Option {
	return func(h *Handler) {
		h.deduper = d
	}
}

// WithBaseline skips events that occurred before t. The startup resync
// started at t already reflects them, and replaying them would roll the
// waitlist back.
func WithBaseline(t time.Time) Option {
	return func(h *Handler) {
		h.baseline = t
	}
}

func NewHandler(sink Sink, opts ...Option) (*Handler, error) {
	if sink == nil {
		return nil, errors.New("feed sink is required")
	}
	h := &Handler{
		sink:    sink,
		deduper: NewMemoryDeduper(DefaultDedupeTTL),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle applies one record. Malformed, stale, duplicate and unknown events
// are logged and swallowed so the record is committed. A sink failure is
// returned and the event id is released so a redelivery is retried.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "dropping malformed lifecycle notification",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		h.metrics.IncrementNotification("unknown", resultMalformed)
		return nil
	}

	ctx = requestcontext.WithRequestID(ctx, env.EventID)

	if h.isStale(env) {
		h.logger.InfoContext(ctx, "skipping lifecycle notification older than startup resync",
			"event_id", env.EventID,
			"event_type", env.EventType,
			"occurred_at", env.OccurredAt,
		)
		h.metrics.IncrementNotification(env.EventType, resultStale)
		return nil
	}

	first, err := h.deduper.MarkSeen(ctx, env.EventID)
	if err != nil {
		h.logger.WarnContext(ctx, "dedupe check failed, processing notification anyway",
			"event_id", env.EventID,
			"error", err,
		)
		first = true
	}
	if !first {
		h.logger.DebugContext(ctx, "skipping duplicate lifecycle notification",
			"event_id", env.EventID,
			"event_type", env.EventType,
		)
		h.metrics.IncrementNotification(env.EventType, resultDuplicate)
		return nil
	}

	result, err := h.dispatch(ctx, env)
	h.metrics.IncrementNotification(env.EventType, result)
	if err != nil {
		if ferr := h.deduper.Forget(ctx, env.EventID); ferr != nil {
			h.logger.WarnContext(ctx, "failed to release event id after sink failure",
				"event_id", env.EventID,
				"error", ferr,
			)
		}
		return fmt.Errorf("apply %s %s: %w", env.EventType, env.EventID, err)
	}
	return nil
}

// isStale reports whether env predates the baseline. Events without a
// timestamp are never stale.
func (h *Handler) isStale(env Envelope) bool {
	if h.baseline.IsZero() || env.OccurredAt.IsZero() {
		return false
	}
	return env.OccurredAt.Before(h.baseline)
}

func (h *Handler) dispatch(ctx context.Context, env Envelope) (string, error) {
	switch env.EventType {
	case EventMemberSnapshot:
		members, err := DecodeSnapshot(env.Data)
		if err != nil {
			return h.malformed(ctx, env, err)
		}
		if err := h.sink.Resync(ctx, members); err != nil {
			return resultFailed, err
		}
	case EventMemberJoined:
		member, err := DecodeJoined(env.Data)
		if err != nil {
			return h.malformed(ctx, env, err)
		}
		if err := h.sink.MemberJoined(ctx, member); err != nil {
			return resultFailed, err
		}
	case EventMemberLeft:
		id, err := DecodeLeft(env.Data)
		if err != nil {
			return h.malformed(ctx, env, err)
		}
		if err := h.sink.MemberLeft(ctx, id); err != nil {
			return resultFailed, err
		}
	default:
		h.logger.WarnContext(ctx, "no handler for lifecycle event type, skipping",
			"event_id", env.EventID,
			"event_type", env.EventType,
		)
		return resultSkipped, nil
	}
	return resultApplied, nil
}

func (h *Handler) malformed(ctx context.Context, env Envelope, err error) (string, error) {
	h.logger.WarnContext(ctx, "dropping lifecycle notification with malformed data",
		"event_id", env.EventID,
		"event_type", env.EventType,
		"error", err,
	)
	return resultMalformed, nil
}
