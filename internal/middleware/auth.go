package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// UserKey carries the authenticated user id through the request context.
const UserKey contextKey = "user_id"

// TokenVerifier is the slice of the user service the middleware needs.
// Keeping it an interface here avoids an import cycle with the user package.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (string, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(v TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

// BearerToken extracts the raw credential from a request: the Authorization
// header first, then a token query parameter (browsers cannot set headers
// on a websocket upgrade).
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 {
			return parts[1]
		}
		return authHeader
	}
	return r.URL.Query().Get("token")
}

func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		userID, err := am.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
