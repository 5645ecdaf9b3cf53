package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/operator"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/platform/middleware"
	"gatehouse/internal/waitlist"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/platform/middleware/auth"
	"gatehouse/pkg/platform/middleware/requesttime"
	"gatehouse/pkg/requestcontext"
)

const (
	commandShow   = "waitlist show"
	commandVerify = "waitlist verify"

	maxVerifyBodyBytes = 16 << 10
)

// Service is the waitlist surface exposed to operators.
type Service interface {
	ListPending(ctx context.Context) (waitlist.PendingList, error)
	Verify(ctx context.Context, cmd waitlist.VerifyCommand) (waitlist.Outcome, error)
}

// Handler serves the operator waitlist commands.
type Handler struct {
	service   Service
	policy    operator.Policy
	validator auth.TokenValidator
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(service Service, policy operator.Policy, validator auth.TokenValidator, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:   service,
		policy:    policy,
		validator: validator,
		logger:    logger,
		metrics:   m,
	}
}

// Register mounts the waitlist routes on r.
func (h *Handler) Register(r chi.Router) {
	waitlistRouter := chi.NewRouter()
	waitlistRouter.Use(middleware.Recovery(h.logger))
	waitlistRouter.Use(middleware.RequestID)
	waitlistRouter.Use(requesttime.Middleware)
	waitlistRouter.Use(middleware.Logger(h.logger))
	waitlistRouter.Use(middleware.Timeout(30 * time.Second))
	waitlistRouter.Use(middleware.LatencyMiddleware(h.metrics))
	waitlistRouter.Use(auth.RequireOperator(h.validator, h.logger))
	waitlistRouter.Get("/waitlist", h.handleShow)
	waitlistRouter.With(middleware.ContentTypeJSON).Post("/waitlist/verify", h.handleVerify)

	r.Mount("/", waitlistRouter)
}

type memberResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type showResponse struct {
	Message string           `json:"message"`
	Members []memberResponse `json:"members"`
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	done := h.logCommand(ctx, commandShow)

	list, err := h.service.ListPending(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list waitlist",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	members := make([]memberResponse, 0, len(list.Members))
	for _, m := range list.Members {
		members = append(members, memberResponse{ID: m.ID.String(), DisplayName: m.DisplayName})
	}
	httputil.WriteJSON(w, http.StatusOK, showResponse{Message: list.Message(), Members: members})
	done()
}

type verifyRequest struct {
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
}

type verifyResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	done := h.logCommand(ctx, commandVerify)

	var req verifyRequest
	body := http.MaxBytesReader(w, r.Body, maxVerifyBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	target, err := waitlist.ParseMemberID(req.MemberID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.service.Verify(ctx, waitlist.VerifyCommand{
		TargetID:   target,
		TargetName: req.DisplayName,
		Authorized: h.policy.IsModerator(requestcontext.OperatorRoles(ctx)),
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			h.logger.InfoContext(ctx, "operator tried to run command without the correct permissions",
				"operator", requestcontext.OperatorName(ctx),
				"operator_id", requestcontext.OperatorID(ctx),
				"command", commandVerify,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, outcomeStatus(outcome), verifyResponse{
		Outcome: outcome.String(),
		Message: outcome.Message(target),
	})
	done()
}

func outcomeStatus(o waitlist.Outcome) int {
	if o == waitlist.OutcomeGrantFailed {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// logCommand writes the "executing" line and returns a func that writes the
// "executed" line once the command has completed.
func (h *Handler) logCommand(ctx context.Context, command string) func() {
	name := requestcontext.OperatorName(ctx)
	h.logger.InfoContext(ctx, "operator executing command",
		"operator", name,
		"command", command,
		"request_id", middleware.GetRequestID(ctx),
	)
	return func() {
		h.logger.InfoContext(ctx, "operator executed command",
			"operator", name,
			"command", command,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}
