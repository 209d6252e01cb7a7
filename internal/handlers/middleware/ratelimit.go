package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/handlers/render"
)

type limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Reject requests with 429 when client exceeds the limit
// Client is identified by remote IP
func RateLimit(lim limiter, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Path + ":" + clientIP(r)
			if !lim.Allow(r.Context(), key) {
				render.Error(w, apperrors.ErrTooManyRequests, l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
