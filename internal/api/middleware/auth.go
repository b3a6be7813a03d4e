package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/auth"
	"github.com/acumant/ai-portal/internal/database/models"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	CurrentUserKey contextKey = "current_user"
)

// UserLoader resolves the signed-in user from a token subject. A nil user
// means the account no longer exists or is inactive.
type UserLoader interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// tokenFromRequest checks, in order, the Authorization header (API clients),
// the token cookie (browser sessions) and X-Auth-Token (localStorage fallback).
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get("X-Auth-Token")
}

// withClaims keeps only the subject; role and organization are read from
// the stored user by LoadUser.
func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, UserIDKey, claims.UserID)
}

func Auth(jwtService auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				handleUnauthorized(w, r)
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				handleUnauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth adds claims when a valid token is present and otherwise lets
// the request through anonymously.
func OptionalAuth(jwtService auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := tokenFromRequest(r); token != "" {
				if claims, err := jwtService.ValidateToken(token); err == nil {
					r = r.WithContext(withClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoadUser reloads the token's user on every request so role changes and
// deactivations apply immediately. Must run after Auth.
func LoadUser(loader UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := loader.CurrentUser(r.Context(), GetUserID(r.Context()))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}
			if user == nil {
				handleUnauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), CurrentUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// handleUnauthorized returns appropriate response based on request type
func handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	isWebRequest := strings.Contains(accept, "text/html") && !strings.HasPrefix(r.URL.Path, "/api/")

	if isWebRequest {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: msg})
}

// GetUserID returns the token subject set by Auth or OptionalAuth.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetCurrentUser returns the user stored by LoadUser, or nil.
func GetCurrentUser(ctx context.Context) *models.User {
	if u, ok := ctx.Value(CurrentUserKey).(*models.User); ok {
		return u
	}
	return nil
}

// RequireRole ensures the loaded user has one of roles. The token's role
// claim is ignored. Must run after LoadUser.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetCurrentUser(r.Context())
			if user == nil {
				handleUnauthorized(w, r)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
}

func RequireSuperAdmin() func(http.Handler) http.Handler {
	return RequireRole(models.RoleSuperAdmin)
}
