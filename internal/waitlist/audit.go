package waitlist

import (
	"context"

	"gatehouse/pkg/attrs"
	"gatehouse/pkg/platform/audit"
	"gatehouse/pkg/requestcontext"
)

// logAudit logs to the structured logger and emits to the audit publisher if
// one is configured. attrList is a slog-style key/value list; "member_id",
// "outcome" and "reason" are lifted into the audit event.
func (o *options) logAudit(ctx context.Context, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	operatorID := requestcontext.OperatorID(ctx)
	if operatorID != "" {
		attrList = append(attrList, "operator_id", operatorID)
	}

	args := append(attrList, "event", string(event), "log_type", "audit")
	o.logger.InfoContext(ctx, string(event), args...)

	if o.auditPublisher == nil {
		return
	}
	err := o.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		Subject:   attrs.ExtractString(attrList, "member_id"),
		Action:    string(event),
		ActorID:   operatorID,
		Decision:  attrs.ExtractString(attrList, "outcome"),
		Reason:    attrs.ExtractString(attrList, "reason"),
		RequestID: requestID,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
