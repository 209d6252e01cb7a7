package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/nkiryanov/videotube/internal/handlers/render"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Turn handler panic into 500 envelope
func Recover(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Client went away, let net/http abort the response
				if rec == http.ErrAbortHandler { //nolint:errorlint
					panic(rec)
				}

				l.Error("Handler panicked", "panic", rec, "uri", r.RequestURI, "stack", string(debug.Stack()))
				render.Error(w, errors.New("panic recovered"), noopLogger{})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Panic is logged already with stack
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
