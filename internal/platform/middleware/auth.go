package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SessionVerifier validates a session token and returns the username it was
// issued to.
type SessionVerifier interface {
	Verify(tokenString string) (string, error)
}

type contextKeyUsername struct{}

// GetUsername retrieves the authenticated username from the context.
func GetUsername(ctx context.Context) string {
	username, ok := ctx.Value(contextKeyUsername{}).(string)
	if !ok {
		return ""
	}
	return username
}

// RequireUser rejects requests without a valid bearer session token and puts
// the verified username on the context for handlers.
func RequireUser(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w, r, logger, "missing bearer token")
				return
			}
			username, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, r, logger, "invalid session token")
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyUsername{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.WarnContext(r.Context(), "unauthorized request",
		"reason", reason,
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
