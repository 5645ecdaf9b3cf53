package guild

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/waitlist"
	"gatehouse/pkg/platform/circuit"
)

const (
	testGuild = "900"
	testRole  = "555"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	c, err := New(Config{BaseURL: srv.URL, GuildID: testGuild, VerifiedRoleID: testRole, Token: "secret"}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{GuildID: "1", VerifiedRoleID: "2"})
	assert.ErrorContains(t, err, "base url")
	_, err = New(Config{BaseURL: "http://x", VerifiedRoleID: "2"})
	assert.ErrorContains(t, err, "guild id")
	_, err = New(Config{BaseURL: "http://x", GuildID: "1"})
	assert.ErrorContains(t, err, "verified role")
}

func TestGrantVerifiedRole(t *testing.T) {
	t.Run("puts the role with bot credentials", func(t *testing.T) {
		var gotMethod, gotPath, gotAuth, gotReason string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotReason = r.Header.Get("X-Audit-Log-Reason")
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, c.GrantVerifiedRole(context.Background(), 42))
		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "/guilds/900/members/42/roles/555", gotPath)
		assert.Equal(t, "Bot secret", gotAuth)
		assert.NotEmpty(t, gotReason)
	})

	tests := []struct {
		status    int
		category  ErrorCategory
		retryable bool
	}{
		{http.StatusForbidden, ErrorAuthentication, false},
		{http.StatusNotFound, ErrorNotFound, false},
		{http.StatusTooManyRequests, ErrorRateLimited, true},
		{http.StatusBadGateway, ErrorOutage, true},
		{http.StatusBadRequest, ErrorBadData, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d is %s", tt.status, tt.category), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"message":"nope"}`, tt.status)
			})

			err := c.GrantVerifiedRole(context.Background(), 42)
			require.Error(t, err)
			assert.Equal(t, tt.category, CategoryOf(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestGrantFailsFastWhenCircuitOpen(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2))))

	for range 2 {
		require.Error(t, c.GrantVerifiedRole(context.Background(), 1))
	}
	err := c.GrantVerifiedRole(context.Background(), 1)
	require.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, ErrorOutage, CategoryOf(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestAuthenticationErrorsDoNotTripBreaker(t *testing.T) {
	breaker := circuit.New("test", circuit.WithFailureThreshold(1))
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, WithBreaker(breaker))

	require.Error(t, c.GrantVerifiedRole(context.Background(), 1))
	assert.False(t, breaker.IsOpen())
}

func TestListMembers(t *testing.T) {
	const total = pageLimit + 3
	var pages atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		assert.Equal(t, "/guilds/900/members", r.URL.Path)
		assert.Equal(t, strconv.Itoa(pageLimit), r.URL.Query().Get("limit"))

		after, _ := strconv.Atoi(r.URL.Query().Get("after"))
		var page []apiMember
		for id := after + 1; id <= total && len(page) < pageLimit; id++ {
			m := apiMember{User: apiUser{ID: strconv.Itoa(id), Username: "user" + strconv.Itoa(id)}}
			if id%2 == 0 {
				m.Roles = []string{"1", testRole}
			}
			if id == 1 {
				m.Nick = "nickname"
			}
			page = append(page, m)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	})

	members, err := c.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, total)
	assert.Equal(t, int32(2), pages.Load())

	assert.Equal(t, waitlist.MemberStatus{ID: 1, DisplayName: "nickname", Verified: false}, members[0])
	assert.Equal(t, waitlist.MemberStatus{ID: 2, DisplayName: "user2", Verified: true}, members[1])
	assert.Equal(t, waitlist.MemberID(total), members[total-1].ID)
}

func TestListMembersRejectsBadPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := c.ListMembers(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrorBadData, CategoryOf(err))
}
