package waitlist

import (
	"context"
	"errors"
	"fmt"

	"gatehouse/pkg/platform/audit"
)

// Synchronizer applies lifecycle notifications to the registry. Each call is
// independent: a failure is returned to the caller and never affects later
// notifications.
type Synchronizer struct {
	options
	store Store
}

// NewSynchronizer creates a Synchronizer over store.
func NewSynchronizer(store Store, opts ...Option) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("waitlist store is required")
	}
	return &Synchronizer{options: newOptions(opts), store: store}, nil
}

// Resync rebuilds the registry from a full member listing, keeping every
// member that is not verified. It is the only operation derived from ground
// truth; everything else patches forward from it.
func (s *Synchronizer) Resync(ctx context.Context, members []MemberStatus) error {
	pending := make([]PendingMember, 0, len(members))
	for _, m := range members {
		if !m.Verified {
			pending = append(pending, PendingMember{ID: m.ID, DisplayName: m.DisplayName})
		}
	}

	if err := s.store.Replace(pending); err != nil {
		return fmt.Errorf("resync waitlist: %w", err)
	}

	s.metrics.SetPending(len(pending))
	s.logAudit(ctx, audit.EventWaitlistResynced,
		"members", len(members),
		"pending", len(pending),
		"reason", fmt.Sprintf("%d of %d members pending", len(pending), len(members)),
	)
	return nil
}

// MemberJoined adds a newly joined member if they are not already verified.
func (s *Synchronizer) MemberJoined(ctx context.Context, m MemberStatus) error {
	if m.Verified {
		s.logger.DebugContext(ctx, "joined member already verified, not waitlisted",
			"member_id", m.ID.String(),
		)
		return nil
	}

	if err := s.store.Insert(m.ID, m.DisplayName); err != nil {
		return fmt.Errorf("add member %s to waitlist: %w", m.ID, err)
	}

	s.logger.InfoContext(ctx, "member added to waitlist",
		"member_id", m.ID.String(),
		"display_name", m.DisplayName,
	)
	s.refreshPending()
	return nil
}

// MemberLeft removes a departed member. Unknown ids are a silent no-op.
func (s *Synchronizer) MemberLeft(ctx context.Context, id MemberID) error {
	removed, err := s.store.Remove(id)
	if err != nil {
		return fmt.Errorf("remove member %s from waitlist: %w", id, err)
	}

	if removed {
		s.logger.InfoContext(ctx, "member left, removed from waitlist", "member_id", id.String())
		s.refreshPending()
	}
	return nil
}

func (s *Synchronizer) refreshPending() {
	if n, err := s.store.Len(); err == nil {
		s.metrics.SetPending(n)
	}
}
