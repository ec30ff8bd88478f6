package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"mindlink/internal/platform/jwt"
	"mindlink/pkg/requestcontext"
)

// TokenValidator defines the interface for validating admin bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// RequireAdmin rejects requests that do not carry a valid bearer token with the
// admin role. The token subject becomes the request actor for audit events.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusUnauthorized,
					`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusUnauthorized,
					`{"error":"unauthorized","error_description":"Invalid or expired token"}`)
				return
			}

			if claims.Role != jwt.RoleAdmin {
				logger.WarnContext(ctx, "forbidden - admin role required",
					"subject", claims.Subject,
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusForbidden,
					`{"error":"forbidden","error_description":"Admin role required"}`)
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write auth error response",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
}
