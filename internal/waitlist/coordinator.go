package waitlist

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/audit"
)

// VerifyCommand is an operator's request to verify one member. Authorized is
// resolved by the caller; the coordinator trusts it.
type VerifyCommand struct {
	TargetID   MemberID
	TargetName string
	Authorized bool
}

// Coordinator implements the operator commands over the waitlist.
type Coordinator struct {
	options
	store   Store
	granter RoleGranter
	tracer  trace.Tracer
}

// NewCoordinator creates a Coordinator that grants roles through granter.
func NewCoordinator(store Store, granter RoleGranter, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("waitlist store is required")
	}
	if granter == nil {
		return nil, errors.New("role granter is required")
	}
	return &Coordinator{
		options: newOptions(opts),
		store:   store,
		granter: granter,
		tracer:  otel.Tracer("gatehouse/internal/waitlist"),
	}, nil
}

// ListPending returns the current waitlist. An unavailable registry is an
// error, never an empty list.
func (c *Coordinator) ListPending(ctx context.Context) (PendingList, error) {
	members, err := c.store.Snapshot()
	if err != nil {
		c.logAudit(ctx, audit.EventRegistryUnavailable, "reason", "list pending: "+err.Error())
		return PendingList{}, dErrors.Wrap(err, dErrors.CodeUnavailable, MessageListUnavailable)
	}
	return PendingList{Members: members}, nil
}

// Verify grants the verified role to cmd.TargetID and removes them from the
// waitlist. The waitlist check is advisory: the platform role is the source
// of truth and the waitlist may lag behind it.
func (c *Coordinator) Verify(ctx context.Context, cmd VerifyCommand) (Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "waitlist.Verify",
		trace.WithAttributes(attribute.String("member_id", cmd.TargetID.String())),
	)
	defer span.End()

	if !cmd.Authorized {
		c.logAudit(ctx, audit.EventVerificationDenied,
			"member_id", cmd.TargetID,
			"reason", "caller lacks moderator role",
		)
		span.SetStatus(codes.Error, "forbidden")
		return 0, dErrors.New(dErrors.CodeForbidden, MessagePermissionDenied)
	}

	pending, err := c.store.Contains(cmd.TargetID)
	if err != nil {
		c.logAudit(ctx, audit.EventRegistryUnavailable,
			"member_id", cmd.TargetID,
			"reason", "verify check: "+err.Error(),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry unavailable")
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, MessageCheckUnavailable)
	}

	outcome := c.verifyPending(ctx, cmd, pending)
	c.metrics.IncrementOutcome(outcome.String())
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	return outcome, nil
}

func (c *Coordinator) verifyPending(ctx context.Context, cmd VerifyCommand, pending bool) Outcome {
	memberID := cmd.TargetID.String()

	if !pending {
		c.logger.InfoContext(ctx, "verify skipped, member not on waitlist",
			"member_id", memberID,
			"display_name", cmd.TargetName,
		)
		return OutcomeAlreadyVerified
	}

	start := time.Now()
	err := c.granter.GrantVerifiedRole(ctx, cmd.TargetID)
	c.metrics.ObserveGrantLatency(time.Since(start))
	if err != nil {
		c.logAudit(ctx, audit.EventVerificationGrantFailed,
			"member_id", memberID,
			"display_name", cmd.TargetName,
			"outcome", OutcomeGrantFailed.String(),
			"reason", err.Error(),
		)
		return OutcomeGrantFailed
	}

	if _, err := c.store.Remove(cmd.TargetID); err != nil {
		c.logAudit(ctx, audit.EventVerificationStale,
			"member_id", memberID,
			"display_name", cmd.TargetName,
			"outcome", OutcomeVerifiedButRegistryStale.String(),
			"reason", err.Error(),
		)
		return OutcomeVerifiedButRegistryStale
	}

	if n, err := c.store.Len(); err == nil {
		c.metrics.SetPending(n)
	}
	c.logAudit(ctx, audit.EventMemberVerified,
		"member_id", memberID,
		"display_name", cmd.TargetName,
		"outcome", OutcomeVerified.String(),
	)
	return OutcomeVerified
}
