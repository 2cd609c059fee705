package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMSgov/dpc-portal/models"
)

// UpsertOrganization mirrors a directory organization locally. NPI and vendor are only
// written on insert; afterwards they change through UpdateOrganization.
func (p *PortalDB) UpsertOrganization(ctx context.Context, org models.Organization) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, `
			INSERT INTO organizations (id, implementer_id, name, npi, vendor, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET implementer_id = EXCLUDED.implementer_id, name = EXCLUDED.name,
				updated_at = EXCLUDED.updated_at`,
			org.ID, org.ImplementerID, org.Name, org.NPI, org.Vendor, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("error upserting organization: %w", err)
		}
		return nil
	})
}

// GetOrganization retrieves the local mirror of an organization.
func (p *PortalDB) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := p.DB.QueryRowContext(ctx, `
		SELECT id, implementer_id, name, npi, vendor, updated_at FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.ImplementerID, &org.Name, &org.NPI, &org.Vendor, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving organization: %w", err)
	}
	return &org, nil
}

// UpdateOrganization changes the editable fields of an organization.
func (p *PortalDB) UpdateOrganization(ctx context.Context, id string, update models.OrganizationUpdate) (*models.Organization, error) {
	var org models.Organization
	err := p.DB.QueryRowContext(ctx, `
		UPDATE organizations SET npi = $1, vendor = $2, updated_at = $3 WHERE id = $4
		RETURNING id, implementer_id, name, npi, vendor, updated_at`,
		update.NPI, update.Vendor, time.Now().UTC(), id).
		Scan(&org.ID, &org.ImplementerID, &org.Name, &org.NPI, &org.Vendor, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating organization: %w", err)
	}
	return &org, nil
}
