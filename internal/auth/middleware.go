package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippets/internal/model"
)

// TokenCookie is the HttpOnly cookie that carries the JWT for browsers.
const TokenCookie = "token"

// contextKey is unexported so no other package can read or shadow the value.
type contextKey string

const userKey contextKey = "user"

// UserLookup resolves a JWT to the user it names.
type UserLookup interface {
	UserForToken(ctx context.Context, token string) (*model.User, error)
}

// Authenticate attaches the acting user to the request context when the
// request carries a valid token, taken from "Authorization: Bearer <jwt>" or
// from the token cookie, in that order.
//
// It never rejects a request. Missing, expired or unknown tokens leave the
// request anonymous, and the access policy decides what an anonymous actor
// may do.
func Authenticate(lookup UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := lookup.UserForToken(r.Context(), token)
			if err != nil {
				logger.Debug("ignoring credentials",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAuth answers 401 when Authenticate found no user. Use it on routes
// that only make sense for a signed-in caller, such as /auth/me.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized","message":"Authentication credentials were not provided."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the acting user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}
