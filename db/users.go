package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
)

const userColumns = `id, first_name, last_name, email, password_hash, state, implementer_id,
	organization_id, invited_by, invitation_sent_at, invitation_accepted_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		orgID      sql.NullString
		invitedBy  uuid.NullUUID
		sentAt     sql.NullTime
		acceptedAt sql.NullTime
	)

	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.State,
		&u.ImplementerID, &orgID, &invitedBy, &sentAt, &acceptedAt, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}

	u.OrganizationID = orgID.String
	if invitedBy.Valid {
		u.InvitedBy = &invitedBy.UUID
	}
	if sentAt.Valid {
		u.InvitationSentAt = &sentAt.Time
	}
	if acceptedAt.Valid {
		u.InvitationAcceptedAt = &acceptedAt.Time
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateUser inserts a new user and returns it with its generated id.
func (p *PortalDB) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	created := *user
	created.ID = uuid.New()
	created.CreatedAt = time.Now().UTC()

	var invitedBy uuid.NullUUID
	if user.InvitedBy != nil {
		invitedBy = uuid.NullUUID{UUID: *user.InvitedBy, Valid: true}
	}

	err := p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, `
			INSERT INTO users (id, first_name, last_name, email, password_hash, state, implementer_id, organization_id, invited_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			created.ID, created.FirstName, created.LastName, created.Email, created.PasswordHash,
			created.State, created.ImplementerID, nullString(created.OrganizationID), invitedBy, created.CreatedAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("error inserting user: %w", err)
	}

	return &created, nil
}

// GetUserByID retrieves a single user.
func (p *PortalDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (p *PortalDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// GetUserByInvitationDigest finds the user holding an outstanding invitation token.
func (p *PortalDB) GetUserByInvitationDigest(ctx context.Context, digest string) (*models.User, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE invitation_digest = $1`, digest)
	return scanUser(row)
}

// ListImplementerUsers returns every user sharing the implementer, oldest first.
func (p *PortalDB) ListImplementerUsers(ctx context.Context, implementerID string) ([]models.User, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE implementer_id = $1 ORDER BY created_at`, implementerID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetInvitation stores a fresh invitation digest, replacing any earlier one.
func (p *PortalDB) SetInvitation(ctx context.Context, userID uuid.UUID, digest string, sentAt time.Time) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execQuery(ctx, tx, `
			UPDATE users SET invitation_digest = $1, invitation_sent_at = $2
			WHERE id = $3 AND state = 'invited'`,
			digest, sentAt, userID)
		if err != nil {
			return fmt.Errorf("error storing invitation: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AcceptInvitation activates an invited user and burns the invitation digest.
func (p *PortalDB) AcceptInvitation(ctx context.Context, userID uuid.UUID, passwordHash string, at time.Time) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execQuery(ctx, tx, `
			UPDATE users SET password_hash = $1, state = 'activated', invitation_accepted_at = $2, invitation_digest = NULL
			WHERE id = $3 AND state = 'invited'`,
			passwordHash, at, userID)
		if err != nil {
			return fmt.Errorf("error accepting invitation: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ExpireInvitations clears invitation digests sent before the cutoff so their links stop working.
func (p *PortalDB) ExpireInvitations(ctx context.Context, sentBefore time.Time) (int64, error) {
	var expired int64
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execQuery(ctx, tx, `
			UPDATE users SET invitation_digest = NULL
			WHERE state = 'invited' AND invitation_digest IS NOT NULL AND invitation_sent_at < $1`,
			sentBefore)
		expired = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("error expiring invitations: %w", err)
	}
	return expired, nil
}

// SetUserOrganization changes the organization the user manages credentials for.
func (p *PortalDB) SetUserOrganization(ctx context.Context, userID uuid.UUID, orgID string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, `UPDATE users SET organization_id = $1 WHERE id = $2`, orgID, userID)
		return err
	})
}

// UpdatePassword replaces the password hash of a user.
func (p *PortalDB) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execQuery(ctx, tx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
		if err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreatePasswordReset stores a reset digest and discards earlier unused ones for the user.
func (p *PortalDB) CreatePasswordReset(ctx context.Context, userID uuid.UUID, digest string, expiresAt time.Time) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := execQuery(ctx, tx, `DELETE FROM password_resets WHERE user_id = $1 AND used_at IS NULL`, userID); err != nil {
			return err
		}
		_, err := execQuery(ctx, tx, `
			INSERT INTO password_resets (digest, user_id, expires_at) VALUES ($1, $2, $3)`,
			digest, userID, expiresAt)
		return err
	})
}

// ConsumePasswordReset marks an unexpired reset as used and returns its user.
func (p *PortalDB) ConsumePasswordReset(ctx context.Context, digest string, now time.Time) (uuid.UUID, error) {
	var userID uuid.UUID
	err := p.DB.QueryRowContext(ctx, `
		UPDATE password_resets SET used_at = $2
		WHERE digest = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING user_id`, digest, now).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("error consuming password reset: %w", err)
	}
	return userID, nil
}
