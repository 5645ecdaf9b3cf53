// Package requesttime pins a single "now" for the lifetime of a request so
// audit entries and log lines written while handling it agree on the time.
package requesttime

import (
	"net/http"
	"time"

	"gatehouse/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
