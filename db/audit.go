package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
)

// RecordCredentialEvent stores an audit event. Redelivered events are ignored.
func (p *PortalDB) RecordCredentialEvent(ctx context.Context, event models.CredentialEvent) error {
	var actor uuid.NullUUID
	if event.Actor != uuid.Nil {
		actor = uuid.NullUUID{UUID: event.Actor, Valid: true}
	}

	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, `
			INSERT INTO credential_events (id, type, organization_id, credential_id, label, actor, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			event.ID, event.Type, event.OrganizationID, event.CredentialID, event.Label, actor,
			time.Unix(event.Timestamp, 0).UTC())
		if err != nil {
			return fmt.Errorf("error recording credential event: %w", err)
		}
		return nil
	})
}

// ListCredentialEvents returns the most recent events of an organization.
func (p *PortalDB) ListCredentialEvents(ctx context.Context, orgID string, limit int) ([]models.CredentialEvent, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT id, type, organization_id, credential_id, label, actor, occurred_at
		FROM credential_events WHERE organization_id = $1 ORDER BY occurred_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("error retrieving credential events: %w", err)
	}
	defer rows.Close()

	events := []models.CredentialEvent{}
	for rows.Next() {
		var (
			ev         models.CredentialEvent
			actor      uuid.NullUUID
			occurredAt time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.OrganizationID, &ev.CredentialID, &ev.Label, &actor, &occurredAt); err != nil {
			return nil, fmt.Errorf("error scanning credential events: %w", err)
		}
		ev.Actor = actor.UUID
		ev.Timestamp = occurredAt.Unix()
		events = append(events, ev)
	}
	return events, rows.Err()
}
