package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kavexa/storefront/internal/auth"
	"github.com/kavexa/storefront/internal/middleware"
)

// identityContextKey is the context key for the authenticated identity.
type identityContextKey struct{}

// Identity is the authenticated caller extracted from an access token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == "admin"
}

// GetIdentity returns the authenticated identity from the context, or
// nil for unauthenticated requests.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// RequireAuth returns middleware that validates the Bearer access token
// and attaches the caller's identity to the request context. Requests
// with a missing, malformed, expired, or non-access token get 401.
func RequireAuth(jwtSvc *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
				WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
				return
			}

			claims, err := jwtSvc.ValidateToken(token)
			if err != nil {
				slog.WarnContext(ctx, "token validation failed", "error", err)
				ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
				WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
				WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "access token required")
				return
			}

			identity := &Identity{
				UserID: claims.Subject,
				Email:  claims.Email,
				Role:   claims.Role,
			}
			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			ctx = middleware.SetUserID(ctx, identity.UserID)
			middleware.UpdateResponseContext(w, ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that rejects non-admin identities.
// It must run inside RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !GetIdentity(ctx).IsAdmin() {
			ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
