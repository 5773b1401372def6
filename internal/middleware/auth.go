package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"todoTracker/internal/auth"
	"todoTracker/internal/logger"
	"todoTracker/internal/models/user"

	"go.uber.org/zap"
)

type SessionReader interface {
	UserID(r *http.Request) (int64, error)
	Logout(w http.ResponseWriter)
}

type UserLoader interface {
	CurrentUser(ctx context.Context, id int64) (*user.User, error)
}

// LoginURL is where RequireLogin sends anonymous visitors.
const LoginURL = "/login/"

// Authenticate resolves the session cookie to an active user and stores it in
// the request context. A stale or tampered cookie is cleared and the request
// continues anonymously.
func Authenticate(sessions SessionReader, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.UserID(r)
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					logger.Info("Middleware: Dropping invalid session",
						zap.String("request_id", GetRequestID(r.Context())),
						zap.Error(err))
					sessions.Logout(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			u, err := users.CurrentUser(r.Context(), id)
			if err != nil {
				logger.Info("Middleware: Session user unavailable",
					zap.Int64("user_id", id),
					zap.Error(err))
				sessions.Logout(w)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireLogin redirects anonymous requests to the login page, carrying the
// original path in ?next=.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			target := LoginURL + "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userKey).(*user.User)
	return u, ok && u != nil
}
