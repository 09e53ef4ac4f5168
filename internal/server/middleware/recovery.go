// Package middleware holds HTTP middleware for the admin server.
package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/ktedit/kbridge/internal/errors"
)

// Recovery converts handler panics into a 500 with the standard error
// envelope instead of tearing down the connection.
func Recovery(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("admin handler panicked",
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec))
					apperrors.RespondWithError(w, http.StatusInternalServerError,
						apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
