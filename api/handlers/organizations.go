package handlers

import (
	"errors"
	"net/http"

	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/gorilla/mux"
)

// CreateOrganization links a provider organization to the user's implementer by NPI.
func (p *Portal) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.redirect(w, r, "/", models.Flash{Alert: services.ErrInvalidNPI.Message})
		return
	}

	if _, err := p.Service.Organizations.AddProviderOrg(r.Context(), currentUser(r), r.PostForm.Get("npi")); err != nil {
		p.redirect(w, r, "/", models.Flash{Alert: services.UserMessage(err, services.ErrOrganizationNotAdded.Message)})
		return
	}
	p.redirect(w, r, "/", models.Flash{Notice: services.MsgOrganizationAdded})
}

// EditOrganization shows the organization form.
func (p *Portal) EditOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := p.Service.Organizations.GetOrganization(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		p.organizationError(w, r, err)
		return
	}
	p.render(w, r, http.StatusOK, "organization_edit.html", page{Title: "Edit organization", Organization: org})
}

// UpdateOrganization saves the organization form.
func (p *Portal) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user := currentUser(r)

	if err := r.ParseForm(); err != nil {
		p.redirect(w, r, "/organizations/"+id+"/edit", models.Flash{Alert: services.ErrOrganizationNotUpdated.Message})
		return
	}

	update := models.OrganizationUpdate{
		NPI:    r.PostForm.Get("npi"),
		Vendor: r.PostForm.Get("vendor") == "true",
	}

	if _, err := p.Service.Organizations.UpdateOrganization(r.Context(), user, id, update); err != nil {
		if errors.Is(err, services.ErrOrganizationNotFound) {
			p.organizationError(w, r, err)
			return
		}

		current, getErr := p.Service.Organizations.GetOrganization(r.Context(), user, id)
		if getErr != nil {
			p.organizationError(w, r, getErr)
			return
		}
		submitted := *current
		submitted.NPI = update.NPI
		submitted.Vendor = update.Vendor
		p.render(w, r, http.StatusUnprocessableEntity, "organization_edit.html", page{
			Title:        "Edit organization",
			Organization: &submitted,
			Error:        services.UserMessage(err, services.ErrOrganizationNotUpdated.Message),
		})
		return
	}

	p.redirect(w, r, "/", models.Flash{Notice: services.MsgOrganizationUpdated})
}

// SelectOrganization switches the organization whose credentials are managed.
func (p *Portal) SelectOrganization(w http.ResponseWriter, r *http.Request) {
	if err := p.Service.Organizations.SelectOrganization(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		p.redirect(w, r, "/", models.Flash{Alert: services.UserMessage(err, services.ErrOrganizationNotFound.Message)})
		return
	}
	p.redirect(w, r, "/", models.Flash{Notice: services.MsgOrganizationSelected})
}

func (p *Portal) organizationError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrOrganizationNotFound) {
		http.NotFound(w, r)
		return
	}
	p.redirect(w, r, "/", models.Flash{Alert: services.UserMessage(err, "Organization could not be loaded.")})
}
