package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CMSgov/dpc-portal/db"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidNPI             = &UserError{Message: "NPI must be valid."}
	ErrOrganizationNotFound   = &UserError{Message: "Organization not found."}
	ErrOrganizationNotAdded   = &UserError{Message: "Organization could not be added."}
	ErrOrganizationNotUpdated = &UserError{Message: "Organization could not be updated."}
	ErrImplementerRequired    = &UserError{Message: "Your account is not linked to an implementer."}
)

const (
	MsgOrganizationAdded    = "Organization added."
	MsgOrganizationUpdated  = "Organization updated."
	MsgOrganizationSelected = "Organization selected."

	// mirrorMaxAge is how long a local organization copy is served without asking the directory.
	mirrorMaxAge = 24 * time.Hour
)

// OrganizationService manages the provider organizations of an implementer. The directory
// is the source of truth; a local mirror keeps the editable fields.
type OrganizationService struct {
	Directory OrgDirectoryClient
	Orgs      OrganizationStore
	Users     UserStore
}

// AddProviderOrg links the organization identified by npi to the user's implementer. The
// first organization added becomes the user's current organization.
func (s *OrganizationService) AddProviderOrg(ctx context.Context, user models.User, npi string) (*models.ProviderOrg, error) {
	logger := zerolog.Ctx(ctx).With().Str("user_id", user.ID.String()).Logger()

	npi = strings.TrimSpace(npi)
	if !ValidNPI(npi) {
		return nil, ErrInvalidNPI
	}
	if user.ImplementerID == "" {
		return nil, ErrImplementerRequired
	}

	org, err := s.Directory.CreateProviderOrg(ctx, user.ImplementerID, npi)
	if err != nil {
		logger.Error().Err(err).Str("implementer_id", user.ImplementerID).Msg("Failed to add provider organization")
		return nil, userError(ErrOrganizationNotAdded, err)
	}

	if err := s.Orgs.UpsertOrganization(ctx, mirrorOf(user.ImplementerID, *org)); err != nil {
		return nil, fmt.Errorf("failed to mirror organization: %w", err)
	}

	if user.OrganizationID == "" {
		if err := s.Users.SetUserOrganization(ctx, user.ID, org.OrgID); err != nil {
			return nil, fmt.Errorf("failed to select organization: %w", err)
		}
	}

	logger.Info().Str("org_id", org.OrgID).Msg("Provider organization added")
	return org, nil
}

// GetOrganization returns an organization of the user's implementer. When the mirror is
// missing or stale it is refreshed from the directory.
func (s *OrganizationService) GetOrganization(ctx context.Context, user models.User, orgID string) (*models.Organization, error) {
	org, err := s.Orgs.GetOrganization(ctx, orgID)
	switch {
	case err == nil && org.ImplementerID != user.ImplementerID:
		return nil, ErrOrganizationNotFound
	case err == nil && time.Since(org.UpdatedAt) < mirrorMaxAge:
		return org, nil
	case err != nil && !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	synced, syncErr := s.syncOrganization(ctx, user, orgID, org)
	if syncErr != nil {
		if org != nil {
			zerolog.Ctx(ctx).Warn().Err(syncErr).Str("org_id", orgID).Msg("Failed to refresh organization, using local copy")
			return org, nil
		}
		return nil, syncErr
	}
	return synced, nil
}

// syncOrganization refreshes the mirror from the directory. NPI and vendor are edited
// locally, so an existing mirror keeps its values for them.
func (s *OrganizationService) syncOrganization(ctx context.Context, user models.User, orgID string, local *models.Organization) (*models.Organization, error) {
	if user.ImplementerID == "" {
		return nil, ErrOrganizationNotFound
	}

	orgs, err := s.Directory.GetProviderOrgs(ctx, user.ImplementerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider organizations: %w", err)
	}

	for _, o := range orgs {
		if o.OrgID != orgID {
			continue
		}
		mirrored := mirrorOf(user.ImplementerID, o)
		if local != nil {
			mirrored.NPI = local.NPI
			mirrored.Vendor = local.Vendor
		}
		if err := s.Orgs.UpsertOrganization(ctx, mirrored); err != nil {
			return nil, fmt.Errorf("failed to mirror organization: %w", err)
		}
		return s.Orgs.GetOrganization(ctx, orgID)
	}
	return nil, ErrOrganizationNotFound
}

// UpdateOrganization changes the NPI and vendor flag of an organization.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, user models.User, orgID string, update models.OrganizationUpdate) (*models.Organization, error) {
	update.NPI = strings.TrimSpace(update.NPI)
	if err := validate.Struct(update); err != nil {
		return nil, ErrInvalidNPI
	}

	if _, err := s.GetOrganization(ctx, user, orgID); err != nil {
		return nil, err
	}

	org, err := s.Orgs.UpdateOrganization(ctx, orgID, update)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("org_id", orgID).Msg("Failed to update organization")
		return nil, userError(ErrOrganizationNotUpdated, err)
	}
	return org, nil
}

// SelectOrganization makes orgID the organization whose credentials the user manages.
func (s *OrganizationService) SelectOrganization(ctx context.Context, user models.User, orgID string) error {
	if _, err := s.GetOrganization(ctx, user, orgID); err != nil {
		return err
	}
	if err := s.Users.SetUserOrganization(ctx, user.ID, orgID); err != nil {
		return fmt.Errorf("failed to select organization: %w", err)
	}
	return nil
}

func mirrorOf(implementerID string, org models.ProviderOrg) models.Organization {
	return models.Organization{
		ID:            org.OrgID,
		ImplementerID: implementerID,
		Name:          org.Name,
		NPI:           org.NPI,
	}
}
