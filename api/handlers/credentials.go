package handlers

import (
	"net/http"
	"net/url"

	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Home shows the portal: the user's organizations, the credentials of the selected
// organization and its recent credential activity.
func (p *Portal) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	data := page{
		Title:       "Portal",
		Orgs:        p.Service.Credentials.PrepareOrganizationView(ctx, user),
		Credentials: p.Service.Credentials.ListCredentials(ctx, user),
	}

	if p.Events != nil && user.OrganizationID != "" {
		events, err := p.Events.ListCredentialEvents(ctx, user.OrganizationID, recentEventLimit)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to load credential activity")
		}
		data.Events = events
	}

	p.render(w, r, http.StatusOK, "portal.html", data)
}

// NewCredential shows the client token form.
func (p *Portal) NewCredential(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "new_credential.html", page{Title: "Create client token"})
}

// CreateCredential issues a client token and shows its material once. The page is never
// cached and the material is not kept after the response is written.
func (p *Portal) CreateCredential(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.render(w, r, http.StatusBadRequest, "new_credential.html", page{Title: "Create client token", Error: "Invalid form."})
		return
	}

	bundle, err := p.Service.Credentials.InitiateCredentialCreation(r.Context(), currentUser(r), r.PostForm.Get("label"))
	if err != nil {
		p.render(w, r, credentialStatus(err), "new_credential.html", page{
			Title: "Create client token",
			Error: services.UserMessage(err, services.MsgTokenCreateFailed),
			Form:  r.PostForm,
		})
		return
	}

	p.render(w, r, http.StatusOK, "credential_created.html", page{Title: "Client token created", Bundle: bundle})
}

// DestroyCredential revokes a client token.
func (p *Portal) DestroyCredential(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := p.Service.Credentials.RevokeCredential(r.Context(), currentUser(r), id); err != nil {
		p.redirectBack(w, r, models.Flash{Alert: services.UserMessage(err, services.MsgTokenDeleteFailed)})
		return
	}
	p.redirect(w, r, "/", models.Flash{Notice: "Client token successfully deleted."})
}

// NewPublicKey shows the public key form.
func (p *Portal) NewPublicKey(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "new_public_key.html", page{Title: "Add public key"})
}

// CreatePublicKey registers a PEM public key with the organization.
func (p *Portal) CreatePublicKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.render(w, r, http.StatusBadRequest, "new_public_key.html", page{Title: "Add public key", Error: "Invalid form."})
		return
	}

	_, err := p.Service.Credentials.RegisterPublicKey(r.Context(), currentUser(r), r.PostForm.Get("label"), r.PostForm.Get("public_key"))
	if err != nil {
		p.render(w, r, credentialStatus(err), "new_public_key.html", page{
			Title: "Add public key",
			Error: services.UserMessage(err, services.MsgKeyCreateFailed),
			Form:  url.Values{"label": {r.PostForm.Get("label")}, "public_key": {r.PostForm.Get("public_key")}},
		})
		return
	}
	p.redirect(w, r, "/", models.Flash{Notice: "Public key successfully created."})
}

// DestroyPublicKey removes a registered public key.
func (p *Portal) DestroyPublicKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := p.Service.Credentials.RevokePublicKey(r.Context(), currentUser(r), id); err != nil {
		p.redirectBack(w, r, models.Flash{Alert: services.UserMessage(err, services.MsgKeyDeleteFailed)})
		return
	}
	p.redirect(w, r, "/", models.Flash{Notice: "Public key successfully deleted."})
}

// credentialStatus maps credential failures to HTTP statuses.
func credentialStatus(err error) int {
	switch {
	case services.IsKind(err, services.ValidationError):
		return http.StatusUnprocessableEntity
	case services.IsKind(err, services.RemoteError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
