package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/CMSgov/dpc-portal/api/middleware"
	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/CMSgov/dpc-portal/internal/authn"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t        *testing.T
	router   *mux.Router
	dir      *services.FakeOrgDirectory
	users    *services.MockUserStore
	orgs     *services.MockOrganizationStore
	mail     *services.MockMailer
	sessions *authn.SessionIssuer
	user     models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	dir := services.NewFakeOrgDirectory()
	users := new(services.MockUserStore)
	orgs := new(services.MockOrganizationStore)
	mail := new(services.MockMailer)

	svc := &services.Service{
		Credentials: services.NewCredentialLifecycleManager(dir, nil),
		Accounts: &services.AccountService{
			Users:            users,
			Directory:        dir,
			Mailer:           mail,
			PortalURL:        "http://portal.test",
			InvitationTTL:    72 * time.Hour,
			PasswordResetTTL: 6 * time.Hour,
		},
		Organizations: &services.OrganizationService{Directory: dir, Orgs: orgs, Users: users},
	}

	sessions := authn.NewSessionIssuer("test-secret", time.Hour)
	portal, err := NewPortal(svc, sessions, nil, false)
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Use(middleware.WithSession(sessions))
	RegisterAPIRoutes(router.PathPrefix("/api/v1").Subrouter(), portal)
	RegisterRoutes(router, portal)

	impl, err := dir.CreateImplementer(ctx, "Clinic Group")
	require.NoError(t, err)
	org, err := dir.CreateProviderOrg(ctx, impl.ID, "1234567893")
	require.NoError(t, err)

	user := models.User{
		ID:             uuid.New(),
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Email:          "ada@example.org",
		State:          models.AccountActivated,
		ImplementerID:  impl.ID,
		OrganizationID: org.OrgID,
	}
	users.On("GetUserByID", mock.Anything, user.ID).Return(&user, nil).Maybe()

	return &harness{t: t, router: router, dir: dir, users: users, orgs: orgs, mail: mail, sessions: sessions, user: user}
}

func (h *harness) sessionCookie() *http.Cookie {
	token, err := h.sessions.Issue(h.user.ID, h.user.Email, h.user.ImplementerID)
	require.NoError(h.t, err)
	return &http.Cookie{Name: middleware.SessionCookie, Value: token}
}

// newRequest builds a request, signed in unless anonymous is set. Extra cookies are
// carried over from earlier responses.
func (h *harness) newRequest(method, target string, form url.Values, anonymous bool, cookies ...*http.Cookie) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if !anonymous {
		req.AddCookie(h.sessionCookie())
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) do(method, target string, form url.Values, anonymous bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return h.serve(h.newRequest(method, target, form, anonymous, cookies...))
}

func (h *harness) tokens() []models.ClientToken {
	tokens, err := h.dir.GetClientTokens(context.Background(), h.user.OrganizationID)
	require.NoError(h.t, err)
	return tokens
}

func flashCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == flashCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("response did not set a flash cookie")
	return nil
}
