package waitlist

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store,RoleGranter,AuditPublisher

import (
	"context"
	"log/slog"

	"gatehouse/internal/waitlist/metrics"
	"gatehouse/pkg/platform/audit"
)

// Store is the registry contract the synchronizer and coordinator depend on.
// *Registry is the only production implementation.
type Store interface {
	Insert(id MemberID, displayName string) error
	Remove(id MemberID) (bool, error)
	Contains(id MemberID) (bool, error)
	Len() (int, error)
	Snapshot() ([]PendingMember, error)
	Replace(members []PendingMember) error
}

// RoleGranter is the external capability that gives a member the verified
// role on the platform.
type RoleGranter interface {
	GrantVerifiedRole(ctx context.Context, id MemberID) error
}

// AuditPublisher emits audit events for verification and resync activity.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type options struct {
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

// Option configures a Synchronizer or Coordinator.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(o *options) {
		o.auditPublisher = publisher
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
