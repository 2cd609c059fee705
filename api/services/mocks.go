package services

import (
	"context"
	"time"

	"github.com/CMSgov/dpc-portal/internal/mailer"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

type MockOrganizationStore struct {
	mock.Mock
}

type MockMailer struct {
	mock.Mock
}

type MockEventPublisher struct {
	mock.Mock
}

type MockOrgDirectory struct {
	mock.Mock
}

func userResult(args mock.Arguments) (*models.User, error) {
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	return userResult(m.Called(ctx, user))
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return userResult(m.Called(ctx, id))
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return userResult(m.Called(ctx, email))
}

func (m *MockUserStore) GetUserByInvitationDigest(ctx context.Context, digest string) (*models.User, error) {
	return userResult(m.Called(ctx, digest))
}

func (m *MockUserStore) ListImplementerUsers(ctx context.Context, implementerID string) ([]models.User, error) {
	args := m.Called(ctx, implementerID)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserStore) SetInvitation(ctx context.Context, userID uuid.UUID, digest string, sentAt time.Time) error {
	return m.Called(ctx, userID, digest, sentAt).Error(0)
}

func (m *MockUserStore) AcceptInvitation(ctx context.Context, userID uuid.UUID, passwordHash string, at time.Time) error {
	return m.Called(ctx, userID, passwordHash, at).Error(0)
}

func (m *MockUserStore) SetUserOrganization(ctx context.Context, userID uuid.UUID, orgID string) error {
	return m.Called(ctx, userID, orgID).Error(0)
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return m.Called(ctx, userID, passwordHash).Error(0)
}

func (m *MockUserStore) CreatePasswordReset(ctx context.Context, userID uuid.UUID, digest string, expiresAt time.Time) error {
	return m.Called(ctx, userID, digest, expiresAt).Error(0)
}

func (m *MockUserStore) ConsumePasswordReset(ctx context.Context, digest string, now time.Time) (uuid.UUID, error) {
	args := m.Called(ctx, digest, now)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockOrganizationStore) UpsertOrganization(ctx context.Context, org models.Organization) error {
	return m.Called(ctx, org).Error(0)
}

func (m *MockOrganizationStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	args := m.Called(ctx, id)
	org, _ := args.Get(0).(*models.Organization)
	return org, args.Error(1)
}

func (m *MockOrganizationStore) UpdateOrganization(ctx context.Context, id string, update models.OrganizationUpdate) (*models.Organization, error) {
	args := m.Called(ctx, id, update)
	org, _ := args.Get(0).(*models.Organization)
	return org, args.Error(1)
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockEventPublisher) Publish(ctx context.Context, event models.CredentialEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockOrgDirectory) CreateImplementer(ctx context.Context, name string) (*models.Implementer, error) {
	args := m.Called(ctx, name)
	impl, _ := args.Get(0).(*models.Implementer)
	return impl, args.Error(1)
}

func (m *MockOrgDirectory) CreateProviderOrg(ctx context.Context, implementerID, npi string) (*models.ProviderOrg, error) {
	args := m.Called(ctx, implementerID, npi)
	org, _ := args.Get(0).(*models.ProviderOrg)
	return org, args.Error(1)
}

func (m *MockOrgDirectory) GetProviderOrgs(ctx context.Context, implementerID string) ([]models.ProviderOrg, error) {
	args := m.Called(ctx, implementerID)
	orgs, _ := args.Get(0).([]models.ProviderOrg)
	return orgs, args.Error(1)
}

func (m *MockOrgDirectory) CreateClientToken(ctx context.Context, orgID, label string) (*models.ClientToken, error) {
	args := m.Called(ctx, orgID, label)
	token, _ := args.Get(0).(*models.ClientToken)
	return token, args.Error(1)
}

func (m *MockOrgDirectory) DeleteClientToken(ctx context.Context, orgID, tokenID string) (bool, error) {
	args := m.Called(ctx, orgID, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrgDirectory) GetClientTokens(ctx context.Context, orgID string) ([]models.ClientToken, error) {
	args := m.Called(ctx, orgID)
	tokens, _ := args.Get(0).([]models.ClientToken)
	return tokens, args.Error(1)
}

func (m *MockOrgDirectory) CreatePublicKey(ctx context.Context, orgID, label, publicKey string) (*models.PublicKey, error) {
	args := m.Called(ctx, orgID, label, publicKey)
	key, _ := args.Get(0).(*models.PublicKey)
	return key, args.Error(1)
}

func (m *MockOrgDirectory) DeletePublicKey(ctx context.Context, orgID, keyID string) (bool, error) {
	args := m.Called(ctx, orgID, keyID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrgDirectory) GetPublicKeys(ctx context.Context, orgID string) ([]models.PublicKey, error) {
	args := m.Called(ctx, orgID)
	keys, _ := args.Get(0).([]models.PublicKey)
	return keys, args.Error(1)
}
