package httpx

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
)

const (
	HeaderSubject = "X-User-Id"
	HeaderRole    = "X-Role"
)

// RequireBearer verifies an HS256 bearer token and forwards its subject and role as
// trusted headers. Client-supplied copies of those headers are always dropped first.
func RequireBearer(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(HeaderSubject)
			r.Header.Del(HeaderRole)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			r.Header.Set(HeaderSubject, claims.Sub)
			r.Header.Set(HeaderRole, claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}

func RequireRole(roles ...string) Middleware {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[r.Header.Get(HeaderRole)]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
