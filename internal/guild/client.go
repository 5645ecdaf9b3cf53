package guild

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gatehouse/internal/waitlist"
	"gatehouse/pkg/platform/circuit"
)

const (
	pageLimit   = 1000
	auditReason = "Verified by moderator"
)

// Config identifies the guild and the role that marks a member as verified.
type Config struct {
	BaseURL        string
	GuildID        string
	VerifiedRoleID string
	Token          string
}

var _ waitlist.RoleGranter = (*Client)(nil)

// Client talks to the platform REST API for a single guild. It grants the
// verified role and lists members for full resyncs.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("guild api base url is required")
	}
	if cfg.GuildID == "" {
		return nil, errors.New("guild id is required")
	}
	if cfg.VerifiedRoleID == "" {
		return nil, errors.New("verified role id is required")
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New("guild-api"),
		logger:  slog.Default(),
		tracer:  otel.Tracer("gatehouse/internal/guild"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GrantVerifiedRole adds the verified role to a member.
func (c *Client) GrantVerifiedRole(ctx context.Context, id waitlist.MemberID) error {
	const op = "grant_role"
	ctx, span := c.tracer.Start(ctx, "guild.GrantVerifiedRole",
		trace.WithAttributes(attribute.String("member_id", id.String())),
	)
	defer span.End()

	endpoint := fmt.Sprintf("%s/guilds/%s/members/%s/roles/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.GuildID), id.String(), url.PathEscape(c.cfg.VerifiedRoleID))

	resp, err := c.do(ctx, op, http.MethodPut, endpoint)
	if err != nil {
		recordSpanError(span, err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.InfoContext(ctx, "verified role granted", "member_id", id.String())
	return nil
}

type apiUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

type apiMember struct {
	User  apiUser  `json:"user"`
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}

func (m apiMember) displayName() string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User.GlobalName != "":
		return m.User.GlobalName
	default:
		return m.User.Username
	}
}

// ListMembers pages through every guild member. A member is verified when
// they hold the configured verified role.
func (c *Client) ListMembers(ctx context.Context) ([]waitlist.MemberStatus, error) {
	const op = "list_members"
	ctx, span := c.tracer.Start(ctx, "guild.ListMembers")
	defer span.End()

	var (
		members []waitlist.MemberStatus
		after   string
	)
	for {
		page, err := c.listPage(ctx, after)
		if err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		for _, m := range page {
			id, err := waitlist.ParseMemberID(m.User.ID)
			if err != nil {
				err = newAPIError(ErrorBadData, op, 0, fmt.Errorf("member id %q: %w", m.User.ID, err))
				recordSpanError(span, err)
				return nil, err
			}
			members = append(members, waitlist.MemberStatus{
				ID:          id,
				DisplayName: m.displayName(),
				Verified:    slices.Contains(m.Roles, c.cfg.VerifiedRoleID),
			})
		}
		if len(page) < pageLimit {
			break
		}
		after = page[len(page)-1].User.ID
	}

	span.SetAttributes(attribute.Int("member_count", len(members)))
	return members, nil
}

func (c *Client) listPage(ctx context.Context, after string) ([]apiMember, error) {
	const op = "list_members"

	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	if after != "" {
		q.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/guilds/%s/members?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.GuildID), q.Encode())

	resp, err := c.do(ctx, op, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page []apiMember
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, newAPIError(ErrorBadData, op, resp.StatusCode, fmt.Errorf("decode members: %w", err))
	}
	return page, nil
}

// do sends an authenticated request through the circuit breaker. Non-2xx
// responses are returned as *APIError with the body closed.
func (c *Client) do(ctx context.Context, op, method, endpoint string) (*http.Response, error) {
	if !c.breaker.Allow() {
		return nil, newAPIError(ErrorOutage, op, 0, circuit.ErrOpen)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, newAPIError(ErrorInternal, op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.Token)
	if method != http.MethodGet {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(auditReason))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		category := ErrorOutage
		if errors.Is(err, context.DeadlineExceeded) {
			category = ErrorTimeout
		}
		c.recordResult(ctx, op, category)
		return nil, newAPIError(category, op, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		category := categorizeStatus(resp.StatusCode)
		c.recordResult(ctx, op, category)
		return nil, newAPIError(category, op, resp.StatusCode, errors.New(string(body)))
	}

	c.recordResult(ctx, op, "")
	return resp, nil
}

// recordResult feeds the breaker. Only transient failures count against the
// platform; a permissions error says nothing about its health.
func (c *Client) recordResult(ctx context.Context, op string, category ErrorCategory) {
	switch category {
	case ErrorOutage, ErrorTimeout, ErrorRateLimited:
		if c.breaker.RecordFailure() {
			c.logger.WarnContext(ctx, "guild api circuit opened", "operation", op, "category", string(category))
		}
	default:
		if c.breaker.RecordSuccess() {
			c.logger.InfoContext(ctx, "guild api circuit closed", "operation", op)
		}
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(CategoryOf(err)))
}
