package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openlistings/leadsync/pkg/config"
)

type Middleware struct {
	jwtSecret  []byte
	syncAPIKey string
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret:  []byte(cfg.JWTSecret),
		syncAPIKey: cfg.SyncAPIKey,
	}
}

// AuthMiddleware verifies the JWT token from the admin cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("auth_token")
		if err != nil {
			if isAPIRequest(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			} else {
				http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
			}
			return
		}

		tokenString := cookie.Value
		claims := &jwt.RegisteredClaims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		})

		if err != nil || !token.Valid {
			if isAPIRequest(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			} else {
				http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
			}
			return
		}

		ctx := context.WithValue(r.Context(), "user_email", claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIKeyMiddleware guards the sync endpoints with the shared secret
// the partner and hub agree on. Unconfigured key means the site does
// not participate in replication, so the endpoints are closed.
func (m *Middleware) APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if m.syncAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(m.syncAPIKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
