package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/gorilla/mux"
)

// Unauthorized answers API requests without a valid session.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	services.HandleErrResponse(w, http.StatusUnauthorized, errors.New("unauthorized"))
}

// apiStatus maps credential failures to API statuses.
func apiStatus(err error) int {
	switch {
	case services.IsKind(err, services.ValidationError):
		return http.StatusUnprocessableEntity
	case services.IsKind(err, services.RemoteError), services.IsKind(err, services.RevocationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ListCredentials godoc
// @Summary List the credentials of the selected organization
// @Description Token material is never included. unavailable is true when the organization directory could not be reached.
// @Tags credentials
// @Produce json
// @Success 200 {object} models.CredentialList
// @Failure 401 {object} models.Response
// @Router /credentials [get]
func ListCredentials(svc *services.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := svc.Credentials.ListCredentials(r.Context(), currentUser(r))
		services.WriteResponse(w, http.StatusOK, list)
	}
}

// CreateCredential godoc
// @Summary Issue a client token
// @Description The response holds the token material. It is returned once and cannot be retrieved again.
// @Tags credentials
// @Accept json
// @Produce json
// @Param body body models.CredentialRequest true "Token label"
// @Success 201 {object} models.CredentialBundle
// @Failure 400 {object} models.Response
// @Failure 401 {object} models.Response
// @Failure 422 {object} models.Response
// @Failure 502 {object} models.Response
// @Router /credentials [post]
func CreateCredential(svc *services.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CredentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			services.HandleErrResponse(w, http.StatusBadRequest, err)
			return
		}

		bundle, err := svc.Credentials.InitiateCredentialCreation(r.Context(), currentUser(r), req.Label)
		if err != nil {
			services.HandleErrResponse(w, apiStatus(err), err)
			return
		}

		services.WriteResponse(w, http.StatusCreated, bundle)
	}
}

// DeleteCredential godoc
// @Summary Revoke a client token
// @Tags credentials
// @Param id path string true "Client token ID"
// @Success 204
// @Failure 401 {object} models.Response
// @Failure 502 {object} models.Response
// @Router /credentials/{id} [delete]
func DeleteCredential(svc *services.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Credentials.RevokeCredential(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
			services.HandleErrResponse(w, apiStatus(err), err)
			return
		}
		services.WriteResponse(w, http.StatusNoContent, nil)
	}
}

// CreatePublicKey godoc
// @Summary Register a public key
// @Description The key must be a PEM encoded RSA (2048 bits or more) or EC public key.
// @Tags credentials
// @Accept json
// @Produce json
// @Param body body models.PublicKeyRequest true "Public key"
// @Success 201 {object} models.PublicKey
// @Failure 400 {object} models.Response
// @Failure 401 {object} models.Response
// @Failure 422 {object} models.Response
// @Failure 502 {object} models.Response
// @Router /public-keys [post]
func CreatePublicKey(svc *services.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PublicKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			services.HandleErrResponse(w, http.StatusBadRequest, err)
			return
		}

		key, err := svc.Credentials.RegisterPublicKey(r.Context(), currentUser(r), req.Label, req.PublicKey)
		if err != nil {
			services.HandleErrResponse(w, apiStatus(err), err)
			return
		}

		services.WriteResponse(w, http.StatusCreated, key)
	}
}

// DeletePublicKey godoc
// @Summary Remove a public key
// @Tags credentials
// @Param id path string true "Public key ID"
// @Success 204
// @Failure 401 {object} models.Response
// @Failure 502 {object} models.Response
// @Router /public-keys/{id} [delete]
func DeletePublicKey(svc *services.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Credentials.RevokePublicKey(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
			services.HandleErrResponse(w, apiStatus(err), err)
			return
		}
		services.WriteResponse(w, http.StatusNoContent, nil)
	}
}

// ListOrganizations godoc
// @Summary List the organizations of the user's implementer
// @Tags organizations
// @Produce json
// @Success 200 {object} models.OrganizationView
// @Failure 401 {object} models.Response
// @Router /organizations [get]
func ListOrganizations(svc *services.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := svc.Credentials.PrepareOrganizationView(r.Context(), currentUser(r))
		services.WriteResponse(w, http.StatusOK, view)
	}
}
