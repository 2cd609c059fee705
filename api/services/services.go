package services

import (
	"context"
	"time"

	"github.com/CMSgov/dpc-portal/internal/mailer"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
)

// UserStore persists users, invitations and password resets.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByInvitationDigest(ctx context.Context, digest string) (*models.User, error)
	ListImplementerUsers(ctx context.Context, implementerID string) ([]models.User, error)
	SetInvitation(ctx context.Context, userID uuid.UUID, digest string, sentAt time.Time) error
	AcceptInvitation(ctx context.Context, userID uuid.UUID, passwordHash string, at time.Time) error
	SetUserOrganization(ctx context.Context, userID uuid.UUID, orgID string) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	CreatePasswordReset(ctx context.Context, userID uuid.UUID, digest string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, digest string, now time.Time) (uuid.UUID, error)
}

// OrganizationStore persists the local organization mirror.
type OrganizationStore interface {
	UpsertOrganization(ctx context.Context, org models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, id string, update models.OrganizationUpdate) (*models.Organization, error)
}

// Mailer delivers account emails.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Service contains all shared dependencies for handlers.
type Service struct {
	Credentials   *CredentialLifecycleManager
	Accounts      *AccountService
	Organizations *OrganizationService
}
