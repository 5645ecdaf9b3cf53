package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers access decisions with lasting effect: a member
	// being granted verified status.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied or failed privileged actions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as resyncs.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject is the member the action applies to, if any.
	Subject string
	Action  string
	// ActorID is the operator who issued the command; empty for feed-driven events.
	ActorID   string
	Decision  string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventMemberVerified          AuditEvent = "member_verified"
	EventVerificationStale       AuditEvent = "verification_registry_stale"
	EventVerificationGrantFailed AuditEvent = "verification_grant_failed"
	EventVerificationDenied      AuditEvent = "verification_denied"
	EventRegistryUnavailable     AuditEvent = "waitlist_registry_unavailable"
	EventWaitlistResynced        AuditEvent = "waitlist_resynced"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventMemberVerified:    CategoryCompliance,
	EventVerificationStale: CategoryCompliance,

	EventVerificationGrantFailed: CategorySecurity,
	EventVerificationDenied:      CategorySecurity,
	EventRegistryUnavailable:     CategorySecurity,

	EventWaitlistResynced: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
