package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/models"
)

type authService interface {
	// Any failure has to be apperrors.ErrUnauthorized
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

// Attach authenticated user to request context or reject request with 401
func AuthMiddleware(as authService, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.GetUserFromRequest(r.Context(), r)
			if err != nil {
				render.Error(w, err, l)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
