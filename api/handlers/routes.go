package handlers

import (
	"net/http"

	"github.com/CMSgov/dpc-portal/api/middleware"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// RegisterRoutes adds the HTML portal to r. Pages other than the sign in, sign up,
// invitation and password forms require a signed in user.
func RegisterRoutes(r *mux.Router, p *Portal) {
	protected := middleware.RequireUser(p.Service.Accounts, http.HandlerFunc(p.SignInRedirect))
	throttled := middleware.Throttle(rate.Limit(1), 5)

	handle := func(path string, h http.HandlerFunc, method string) {
		r.Handle(path, protected(h)).Methods(method)
	}
	public := func(path string, h http.HandlerFunc, method string) {
		if method == http.MethodPost {
			r.Handle(path, throttled(h)).Methods(method)
			return
		}
		r.HandleFunc(path, h).Methods(method)
	}

	handle("/", p.Home, http.MethodGet)
	handle("/portal", p.Home, http.MethodGet)

	handle("/new-credential", p.NewCredential, http.MethodGet)
	handle("/credentials", p.CreateCredential, http.MethodPost)
	handle("/credentials/{id}/destroy", p.DestroyCredential, http.MethodGet)

	handle("/new-public-key", p.NewPublicKey, http.MethodGet)
	handle("/public-keys", p.CreatePublicKey, http.MethodPost)
	handle("/public-keys/{id}/destroy", p.DestroyPublicKey, http.MethodGet)

	handle("/organizations", p.CreateOrganization, http.MethodPost)
	handle("/organizations/{id}/edit", p.EditOrganization, http.MethodGet)
	handle("/organizations/{id}", p.UpdateOrganization, http.MethodPost)
	handle("/organizations/{id}/select", p.SelectOrganization, http.MethodPost)

	handle("/members", p.Members, http.MethodGet)
	handle("/members", p.InviteMember, http.MethodPost)
	handle("/users/sign_out", p.DestroySession, http.MethodPost)

	public("/users/sign_up", p.NewRegistration, http.MethodGet)
	public("/users/sign_up", p.CreateRegistration, http.MethodPost)
	public("/users/sign_in", p.NewSession, http.MethodGet)
	public("/users/sign_in", p.CreateSession, http.MethodPost)
	public("/users/invitation/accept", p.EditInvitation, http.MethodGet)
	public("/users/invitation/accept", p.AcceptInvitation, http.MethodPost)
	public("/users/confirmation/new", p.NewConfirmation, http.MethodGet)
	public("/users/confirmation", p.CreateConfirmation, http.MethodPost)
	public("/users/password/new", p.NewPassword, http.MethodGet)
	public("/users/password", p.CreatePassword, http.MethodPost)
	public("/users/password/edit", p.EditPassword, http.MethodGet)
	public("/users/password/reset", p.UpdatePassword, http.MethodPost)
}

// RegisterAPIRoutes adds the JSON API to api. Every route requires a session.
func RegisterAPIRoutes(api *mux.Router, p *Portal) {
	api.Use(middleware.RequireUser(p.Service.Accounts, http.HandlerFunc(Unauthorized)))

	api.HandleFunc("/credentials", ListCredentials(p.Service)).Methods(http.MethodGet)
	api.HandleFunc("/credentials", CreateCredential(p.Service)).Methods(http.MethodPost)
	api.HandleFunc("/credentials/{id}", DeleteCredential(p.Service)).Methods(http.MethodDelete)
	api.HandleFunc("/public-keys", CreatePublicKey(p.Service)).Methods(http.MethodPost)
	api.HandleFunc("/public-keys/{id}", DeletePublicKey(p.Service)).Methods(http.MethodDelete)
	api.HandleFunc("/organizations", ListOrganizations(p.Service)).Methods(http.MethodGet)
}
