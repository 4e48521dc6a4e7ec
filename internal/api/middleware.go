/**
 * @description
 * This file contains custom middleware for the HTTP router. The authentication
 * middleware validates the bearer token issued by the core-banking API, builds the
 * per-request session from its claims, and optionally enriches it with the cached
 * profile from the session store. Handlers never read identity from anywhere but
 * the request context.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: HMAC token validation.
 * - internal/session: Session value and profile store.
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quetzalbank/banking-gateway/internal/session"
)

// sessionContextKey is a custom type for the context key to avoid collisions.
type sessionContextKey struct{}

// AuthMiddleware creates a middleware that validates HMAC-signed bearer tokens and
// attaches the resulting session to the request context. The raw token is kept on
// the session so upstream calls can forward it. The store is optional; when a
// cached profile exists it fills in claims the token does not carry.
func AuthMiddleware(secret string, store session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			userID, ok := claims["sub"].(string)
			if !ok || userID == "" {
				writeError(w, http.StatusUnauthorized, "User ID not found in token")
				return
			}

			sess := &session.Session{
				UserID: userID,
				Token:  tokenString,
			}
			if name, ok := claims["name"].(string); ok {
				sess.Name = name
			}
			if email, ok := claims["email"].(string); ok {
				sess.Email = email
			}
			if role, ok := claims["role"].(string); ok {
				sess.Role = role
			}

			if store != nil {
				profile, err := store.Load(r.Context(), userID)
				switch {
				case err == nil:
					if sess.Name == "" {
						sess.Name = profile.Name
					}
					if sess.Email == "" {
						sess.Email = profile.Email
					}
					if sess.Role == "" {
						sess.Role = profile.Role
					}
				case !errors.Is(err, session.ErrNotFound):
					// The token alone is enough to serve the request.
					log.Printf("level=warn component=api msg=\"session store lookup failed\" user_id=%s err=%v", userID, err)
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession retrieves the authenticated session from the request context.
// Handlers should use this function instead of re-parsing the token.
func GetSession(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok
}

// RequireAdmin rejects requests whose session does not carry the admin role. It
// must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := GetSession(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !sess.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
