package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CMSgov/dpc-portal/internal/authn"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	ClaimsKey contextKey = "claims"
	UserKey   contextKey = "user"
)

// SessionCookie is the name of the cookie holding the signed session token.
const SessionCookie = "dpc_portal_session"

// SessionParser verifies session tokens.
type SessionParser interface {
	Parse(token string) (authn.Claims, error)
}

// UserLoader loads the user behind a session.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// WithSession reads the session from the session cookie, or from a bearer token for API
// clients, and adds the claims to the request context. Requests without a valid session
// pass through anonymously.
func WithSession(sessions SessionParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := sessions.Parse(token)
			if err != nil {
				logger.Debug().Err(err).Msg("ignoring invalid session token")
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireUser loads the signed in user into the request context. Requests without a
// session, or whose user can no longer sign in, are handed to onMissing instead.
func RequireUser(users UserLoader, onMissing http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context()).With().
				Str("handler", "RequireUser").Logger()

			claims, ok := r.Context().Value(ClaimsKey).(authn.Claims)
			if !ok {
				onMissing.ServeHTTP(w, r)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				logger.Warn().Err(err).Msg("session subject is not a user id")
				onMissing.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil || !user.CanSignIn() {
				logger.Info().Err(err).Str("user_id", userID.String()).Msg("session user cannot sign in")
				onMissing.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, *user)
			ctx = zerolog.Ctx(ctx).With().Str("user_id", user.ID.String()).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user stored by RequireUser.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(UserKey).(models.User)
	return user, ok
}

// WithLogger adds a logger to the context and logs request information.
func WithLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			logger := log.With().
				Str("request_id", uuid.NewString()).
				Str("host", r.Host).
				Str("method", r.Method).
				Str("url", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Time("timestamp", time.Now()).
				Logger()

			// Query strings may carry invitation and reset tokens so only the path is logged
			ctx := logger.WithContext(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		},
	)
}

// maxTrackedClients bounds the limiter table; it is reset when full.
const maxTrackedClients = 4096

// Throttle limits each client address to limit requests per second with the given burst.
// It guards the forms that check passwords or send email.
func Throttle(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	allow := func(client string) bool {
		mu.Lock()
		defer mu.Unlock()

		l, ok := limiters[client]
		if !ok {
			if len(limiters) >= maxTrackedClients {
				limiters = make(map[string]*rate.Limiter)
			}
			l = rate.NewLimiter(limit, burst)
			limiters[client] = l
		}
		return l.Allow()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				client = r.RemoteAddr
			}

			if !allow(client) {
				zerolog.Ctx(r.Context()).Warn().Str("client", client).Msg("request throttled")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
