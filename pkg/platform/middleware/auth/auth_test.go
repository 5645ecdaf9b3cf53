package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/operator"
	"gatehouse/pkg/requestcontext"
)

func TestRequireOperator(t *testing.T) {
	tokens := operator.NewTokenService("key", "gatehouse", "gatehouse-api")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var gotID, gotName string
	var gotRoles []string
	h := RequireOperator(tokens, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = requestcontext.OperatorID(r.Context())
		gotName = requestcontext.OperatorName(r.Context())
		gotRoles = requestcontext.OperatorRoles(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token populates operator", func(t *testing.T) {
		token, err := tokens.IssueToken("77", "mod", []string{"r1"}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "77", gotID)
		assert.Equal(t, "mod", gotName)
		assert.Equal(t, []string{"r1"}, gotRoles)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing or invalid Authorization header")
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized","error_description":"Invalid or expired token"}`, rec.Body.String())
	})
}
