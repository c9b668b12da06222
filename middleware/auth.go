package middleware

import (
	"context"
	"errors"
	"net/http"

	"greenexchange/models"
	"greenexchange/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Key type for context
type contextKey string

const IdentityContextKey = contextKey("identity")

// Authenticator resolves a session token into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// IdentityFromContext returns the identity attached by SessionMiddleware.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*models.Identity)
	return identity, ok && identity != nil
}

// SessionMiddleware reads the session cookie and, when it resolves to a live
// session, attaches the identity to the request context. Requests without a
// valid session pass through anonymously.
func SessionMiddleware(auth Authenticator, cookieName string, logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := auth.Authenticate(r.Context(), cookie.Value)
			switch {
			case err == nil:
				r = r.WithContext(WithIdentity(r.Context(), identity))
			case errors.Is(err, services.ErrUnauthenticated):
				http.SetCookie(w, ExpiredCookie(cookieName))
			default:
				logger.Error("session lookup failed", zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects anonymous requests. Page loads are sent to the
// login form; other methods get a 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			if r.Method == http.MethodGet {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Error(w, "Please log in first", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExpiredCookie returns a cookie that makes the browser drop the session.
func ExpiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
