package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CMSgov/dpc-portal/internal/authn"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubUsers map[uuid.UUID]models.User

func (s stubUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &user, nil
}

var unauthorized = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusUnauthorized)
})

func TestWithSession_Cookie(t *testing.T) {
	issuer := authn.NewSessionIssuer("secret", time.Hour)
	userID := uuid.New()
	token, err := issuer.Issue(userID, "ada@example.org", "impl-1")
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(ClaimsKey).(authn.Claims)
		require.True(t, ok)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Equal(t, "impl-1", claims.ImplementerID)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	w := httptest.NewRecorder()
	WithSession(issuer)(next).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithSession_BearerToken(t *testing.T) {
	issuer := authn.NewSessionIssuer("secret", time.Hour)
	token, err := issuer.Issue(uuid.New(), "ada@example.org", "impl-1")
	require.NoError(t, err)

	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = r.Context().Value(ClaimsKey).(authn.Claims)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credentials", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	WithSession(issuer)(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, found)
}

func TestWithSession_InvalidTokenIsAnonymous(t *testing.T) {
	issuer := authn.NewSessionIssuer("secret", time.Hour)

	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = r.Context().Value(ClaimsKey).(authn.Claims)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "invalid-token"})

	w := httptest.NewRecorder()
	WithSession(issuer)(next).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, found)
}

func TestRequireUser(t *testing.T) {
	active := models.User{ID: uuid.New(), State: models.AccountActivated, OrganizationID: "org-1"}
	invited := models.User{ID: uuid.New(), State: models.AccountInvited}
	users := stubUsers{active.ID: active, invited.ID: invited}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "org-1", user.OrganizationID)
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireUser(users, unauthorized)(next)

	tests := []struct {
		name   string
		claims *authn.Claims
		want   int
	}{
		{name: "no session", want: http.StatusUnauthorized},
		{name: "active user", claims: claimsFor(active.ID.String()), want: http.StatusOK},
		{name: "invited user", claims: claimsFor(invited.ID.String()), want: http.StatusUnauthorized},
		{name: "unknown user", claims: claimsFor(uuid.NewString()), want: http.StatusUnauthorized},
		{name: "malformed subject", claims: claimsFor("not-a-uuid"), want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), ClaimsKey, *tt.claims))
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func claimsFor(subject string) *authn.Claims {
	claims := authn.Claims{}
	claims.Subject = subject
	return &claims
}

func TestWithLogger(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, zerolog.Disabled, zerolog.Ctx(r.Context()).GetLevel())
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	WithLogger(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/password/edit?reset_password_token=x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestThrottle(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Throttle(rate.Every(time.Hour), 2)(next)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/users/sign_in", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5002"))

	// Other clients have their own budget
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000"))
}

func TestAccessLog_OmitsQuery(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = previous }()
	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	defer zerolog.SetGlobalLevel(level)

	h := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/password/edit?reset_password_token=secret", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Contains(t, buf.String(), `"path":"/users/password/edit"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.NotContains(t, buf.String(), "secret")
}
