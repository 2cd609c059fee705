package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/CMSgov/dpc-portal/api/middleware"
	"github.com/CMSgov/dpc-portal/db"
	"github.com/CMSgov/dpc-portal/internal/authn"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sessionFrom(w interface{ Result() *http.Response }) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestSignIn(t *testing.T) {
	h := newHarness(t)
	hash, err := authn.HashPassword("correct horse battery")
	require.NoError(t, err)

	user := h.user
	user.PasswordHash = hash
	h.users.On("GetUserByEmail", mock.Anything, "ada@example.org").Return(&user, nil)

	w := h.do(http.MethodPost, "/users/sign_in", url.Values{"email": {"ada@example.org"}, "password": {"wrong password!"}}, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password.")
	assert.Nil(t, sessionFrom(w))

	w = h.do(http.MethodPost, "/users/sign_in", url.Values{"email": {"ada@example.org"}, "password": {"correct horse battery"}}, true)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	session := sessionFrom(w)
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	claims, err := h.sessions.Parse(session.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
}

func TestSignOut(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/users/sign_out", nil, false)
	assert.Equal(t, http.StatusFound, w.Code)

	session := sessionFrom(w)
	require.NotNil(t, session)
	assert.Empty(t, session.Value)
	assert.Less(t, session.MaxAge, 0)
}

func TestSignUp_Validation(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/users/sign_up", url.Values{
		"first_name":            {"Grace"},
		"last_name":             {"Hopper"},
		"email":                 {"grace@example.org"},
		"organization":          {"Compilers Inc"},
		"password":              {"short"},
		"password_confirmation": {"short"},
		"agree_to_terms":        {"true"},
	}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Password is too short")
	assert.Contains(t, w.Body.String(), "grace@example.org")
	h.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestSignUp(t *testing.T) {
	h := newHarness(t)
	created := &models.User{ID: uuid.New(), Email: "grace@example.org", State: models.AccountRegistered}

	h.users.On("GetUserByEmail", mock.Anything, "grace@example.org").Return(nil, db.ErrNotFound)
	h.users.On("CreateUser", mock.Anything, mock.Anything).Return(created, nil)

	w := h.do(http.MethodPost, "/users/sign_up", url.Values{
		"first_name":            {"Grace"},
		"last_name":             {"Hopper"},
		"email":                 {"grace@example.org"},
		"organization":          {"Compilers Inc"},
		"password":              {"correct horse battery"},
		"password_confirmation": {"correct horse battery"},
		"agree_to_terms":        {"true"},
	}, true)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.NotNil(t, sessionFrom(w))
}

func TestInviteMember(t *testing.T) {
	h := newHarness(t)
	invitee := &models.User{ID: uuid.New(), FirstName: "Bob", LastName: "Babbage", Email: "bob@example.org", State: models.AccountInvited}

	h.users.On("GetUserByEmail", mock.Anything, "bob@example.org").Return(nil, db.ErrNotFound)
	h.users.On("CreateUser", mock.Anything, mock.Anything).Return(invitee, nil)
	h.users.On("SetInvitation", mock.Anything, invitee.ID, mock.Anything, mock.Anything).Return(nil)
	h.users.On("ListImplementerUsers", mock.Anything, h.user.ImplementerID).Return([]models.User{h.user, *invitee}, nil)
	h.mail.On("Send", mock.Anything, mock.Anything).Return(nil)

	w := h.do(http.MethodPost, "/members", url.Values{"first_name": {"Bob"}, "last_name": {"Babbage"}, "email": {"bob@example.org"}}, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/members", w.Header().Get("Location"))

	page := h.do(http.MethodGet, "/members", nil, false, flashCookieFrom(t, w))
	assert.Contains(t, page.Body.String(), "User invited.")
	assert.Contains(t, page.Body.String(), "bob@example.org")
	assert.Contains(t, page.Body.String(), "Invited")
	h.mail.AssertNumberOfCalls(t, "Send", 1)
}

func TestInviteMember_MissingFields(t *testing.T) {
	h := newHarness(t)
	h.users.On("ListImplementerUsers", mock.Anything, h.user.ImplementerID).Return([]models.User{h.user}, nil)

	w := h.do(http.MethodPost, "/members", url.Values{"first_name": {"Bob"}}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "All fields are required to invite a new user.")
}

func TestAcceptInvitation_InvalidToken(t *testing.T) {
	h := newHarness(t)
	h.users.On("GetUserByInvitationDigest", mock.Anything, authn.Digest("nope")).Return(nil, db.ErrNotFound)

	w := h.do(http.MethodGet, "/users/invitation/accept", nil, true)
	assert.Equal(t, http.StatusFound, w.Code)

	w = h.do(http.MethodGet, "/users/invitation/accept?invitation_token=nope", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="nope"`)

	w = h.do(http.MethodPost, "/users/invitation/accept", url.Values{
		"invitation_token":      {"nope"},
		"password":              {"correct horse battery"},
		"password_confirmation": {"correct horse battery"},
		"agree_to_terms":        {"true"},
	}, true)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))
	assert.Nil(t, sessionFrom(w))
}

func TestPasswordReset_DoesNotRevealAccounts(t *testing.T) {
	h := newHarness(t)
	h.users.On("GetUserByEmail", mock.Anything, "nobody@example.org").Return(nil, db.ErrNotFound)

	w := h.do(http.MethodPost, "/users/password", url.Values{"email": {"nobody@example.org"}}, true)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))
	h.mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
