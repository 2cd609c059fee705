package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHome_RequiresSignIn(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/", nil, true)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/sign_in", w.Header().Get("Location"))
}

func TestHome_ShowsOrganizationsAndCredentials(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/credentials", url.Values{"label": {"Ops Key"}}, false)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Organization 1234567893")
	assert.Contains(t, w.Body.String(), "Ops Key")
	assert.NotContains(t, w.Body.String(), "material-")
}

func TestHome_DirectoryUnavailable(t *testing.T) {
	h := newHarness(t)
	h.dir.Err = errors.New("directory down")

	w := h.do(http.MethodGet, "/portal", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Organizations are temporarily unavailable")
}

func TestCreateCredential_BlankLabel(t *testing.T) {
	h := newHarness(t)

	for _, label := range []string{"", "   "} {
		w := h.do(http.MethodPost, "/credentials", url.Values{"label": {label}}, false)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Label required.")
	}
	assert.Empty(t, h.tokens())
}

func TestCreateCredential_ShowsMaterialOnce(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/credentials", url.Values{"label": {"Ops Key"}}, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	tokens := h.tokens()
	require.Len(t, tokens, 1)
	assert.Equal(t, "Ops Key", tokens[0].Label)
	assert.Contains(t, w.Body.String(), "material-"+tokens[0].ID)
	assert.Contains(t, w.Body.String(), "Ops Key")
}

func TestCreateCredential_RemoteFailure(t *testing.T) {
	h := newHarness(t)
	h.dir.Err = errors.New("directory down")

	w := h.do(http.MethodPost, "/credentials", url.Values{"label": {"Ops Key"}}, false)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgTokenCreateFailed)
	assert.NotContains(t, w.Body.String(), "directory down")
}

func TestDestroyCredential_Success(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/credentials", url.Values{"label": {"Ops Key"}}, false)
	id := h.tokens()[0].ID

	w := h.do(http.MethodGet, "/credentials/"+id+"/destroy", nil, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Empty(t, h.tokens())

	page := h.do(http.MethodGet, "/", nil, false, flashCookieFrom(t, w))
	assert.Contains(t, page.Body.String(), "Client token successfully deleted.")
}

func TestDestroyCredential_Refused(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/credentials", url.Values{"label": {"Ops Key"}}, false)
	id := h.tokens()[0].ID
	h.dir.DenyDeletes = true

	w := h.do(http.MethodGet, "/credentials/"+id+"/destroy", nil, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/portal", w.Header().Get("Location"))
	assert.Len(t, h.tokens(), 1)

	page := h.do(http.MethodGet, "/portal", nil, false, flashCookieFrom(t, w))
	assert.Contains(t, page.Body.String(), "Client token could not be deleted.")

	// The flash is shown only once
	page = h.do(http.MethodGet, "/portal", nil, false)
	assert.NotContains(t, page.Body.String(), "Client token could not be deleted.")
}

func TestDestroyCredential_RedirectsToReferer(t *testing.T) {
	h := newHarness(t)
	h.dir.DenyDeletes = true

	tests := []struct {
		referer, want string
	}{
		{referer: "", want: "/portal"},
		{referer: "http://example.com/new-credential", want: "/new-credential"},
		{referer: "https://elsewhere.test/phish", want: "/portal"},
	}

	for _, tt := range tests {
		req := h.newRequest(http.MethodGet, "/credentials/tok-9/destroy", nil, false)
		if tt.referer != "" {
			req.Header.Set("Referer", tt.referer)
		}
		w := h.serve(req)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, tt.want, w.Header().Get("Location"), tt.referer)
	}
}

func rsaPublicKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestCreatePublicKey(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/public-keys", url.Values{"label": {"Signing"}, "public_key": {"garbage"}}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Public key must be a PEM encoded RSA")

	w = h.do(http.MethodPost, "/public-keys", url.Values{"label": {"Signing"}, "public_key": {rsaPublicKeyPEM(t)}}, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	page := h.do(http.MethodGet, "/", nil, false, flashCookieFrom(t, w))
	assert.Contains(t, page.Body.String(), "Signing")
	assert.Contains(t, page.Body.String(), "Public key successfully created.")
}
