package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/operator"
	"gatehouse/internal/platform/middleware"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/audit"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/platform/middleware/auth"
	"gatehouse/pkg/requestcontext"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler exposes the audit trail to moderators.
type Handler struct {
	store     audit.Store
	policy    operator.Policy
	validator auth.TokenValidator
	logger    *slog.Logger
}

func New(store audit.Store, policy operator.Policy, validator auth.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{store: store, policy: policy, validator: validator, logger: logger}
}

// Register mounts the admin routes under /admin.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.Recovery(h.logger))
		ar.Use(middleware.RequestID)
		ar.Use(middleware.Logger(h.logger))
		ar.Use(auth.RequireOperator(h.validator, h.logger))
		ar.Get("/audit", h.handleListAudit)
	})
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.policy.IsModerator(requestcontext.OperatorRoles(ctx)) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "moderator role required"))
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxLimit)
	}

	events, err := h.store.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	resp := AuditListResponse{Events: make([]AuditEventResponse, 0, len(events)), Total: len(events)}
	for _, e := range events {
		resp.Events = append(resp.Events, AuditEventResponse{
			ID:        e.ID.String(),
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			Action:    e.Action,
			Subject:   e.Subject,
			ActorID:   e.ActorID,
			Decision:  e.Decision,
			Reason:    e.Reason,
			RequestID: e.RequestID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
