package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CMSgov/dpc-portal/internal/events"
	"github.com/CMSgov/dpc-portal/internal/keys"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrorKind classifies credential lifecycle failures.
type ErrorKind string

const (
	ValidationError  ErrorKind = "ValidationError"
	RemoteError      ErrorKind = "RemoteError"
	RevocationFailed ErrorKind = "RevocationFailed"
)

const (
	MsgLabelRequired        = "Label required."
	MsgOrganizationRequired = "Organization required."
	MsgTokenCreateFailed    = "Client token could not be created."
	MsgTokenDeleteFailed    = "Client token could not be deleted."
	MsgKeyRequired          = "Public key required."
	MsgKeyInvalid           = "Public key must be a PEM encoded RSA (2048 bits or more) or EC public key."
	MsgKeyCreateFailed      = "Public key could not be created."
	MsgKeyDeleteFailed      = "Public key could not be deleted."
)

var errDeletionDenied = errors.New("organization directory did not delete the credential")

// CredentialError is returned by every CredentialLifecycleManager failure. Message is safe
// to show to the user; Err holds the underlying cause for logs.
type CredentialError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a CredentialError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr) && credErr.Kind == kind
}

// CredentialLifecycleManager issues and revokes API credentials of the requesting user's
// organization through the organization directory. It holds no per-request state.
type CredentialLifecycleManager struct {
	Directory OrgDirectoryClient
	Publisher events.Publisher
	Now       func() time.Time
}

func NewCredentialLifecycleManager(directory OrgDirectoryClient, publisher events.Publisher) *CredentialLifecycleManager {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &CredentialLifecycleManager{Directory: directory, Publisher: publisher, Now: time.Now}
}

// InitiateCredentialCreation issues a client token labelled label. The returned bundle holds
// the token material and must be shown to the user once; it is not retained anywhere.
func (m *CredentialLifecycleManager) InitiateCredentialCreation(ctx context.Context, user models.User, label string) (*models.CredentialBundle, error) {
	logger := zerolog.Ctx(ctx).With().Str("user_id", user.ID.String()).Logger()

	label = strings.TrimSpace(label)
	if label == "" {
		recordOutcome(opCreateToken, outcomeInvalid)
		return nil, &CredentialError{Kind: ValidationError, Message: MsgLabelRequired}
	}
	if user.OrganizationID == "" {
		recordOutcome(opCreateToken, outcomeInvalid)
		return nil, &CredentialError{Kind: ValidationError, Message: MsgOrganizationRequired}
	}

	token, err := m.Directory.CreateClientToken(ctx, user.OrganizationID, label)
	if err != nil {
		logger.Error().Err(err).Str("org_id", user.OrganizationID).Msg("Failed to create client token")
		recordOutcome(opCreateToken, outcomeFailure)
		return nil, &CredentialError{Kind: RemoteError, Message: MsgTokenCreateFailed, Err: err}
	}

	bundle := &models.CredentialBundle{
		ID:        token.ID,
		Label:     token.Label,
		Material:  token.Token,
		ExpiresAt: token.ExpiresAt,
	}
	if bundle.Label == "" {
		bundle.Label = label
	}

	logger.Info().Str("org_id", user.OrganizationID).Str("token_id", token.ID).Msg("Client token issued")
	recordOutcome(opCreateToken, outcomeSuccess)
	m.publish(ctx, models.ClientTokenIssued, user, token.ID, bundle.Label)

	return bundle, nil
}

// RevokeCredential deletes a client token. It succeeds only when the directory confirms
// the deletion.
func (m *CredentialLifecycleManager) RevokeCredential(ctx context.Context, user models.User, credentialID string) error {
	logger := zerolog.Ctx(ctx).With().
		Str("user_id", user.ID.String()).
		Str("token_id", credentialID).
		Logger()

	if user.OrganizationID == "" {
		recordOutcome(opRevokeToken, outcomeFailure)
		return &CredentialError{Kind: RevocationFailed, Message: MsgTokenDeleteFailed, Err: errors.New("user has no organization")}
	}

	deleted, err := m.Directory.DeleteClientToken(ctx, user.OrganizationID, credentialID)
	if err == nil && !deleted {
		err = errDeletionDenied
	}
	if err != nil {
		logger.Error().Err(err).Str("org_id", user.OrganizationID).Msg("Failed to delete client token")
		recordOutcome(opRevokeToken, outcomeFailure)
		return &CredentialError{Kind: RevocationFailed, Message: MsgTokenDeleteFailed, Err: err}
	}

	logger.Info().Str("org_id", user.OrganizationID).Msg("Client token revoked")
	recordOutcome(opRevokeToken, outcomeSuccess)
	m.publish(ctx, models.ClientTokenRevoked, user, credentialID, "")
	return nil
}

// RegisterPublicKey validates a PEM public key locally and registers it with the directory.
func (m *CredentialLifecycleManager) RegisterPublicKey(ctx context.Context, user models.User, label, publicKey string) (*models.PublicKey, error) {
	logger := zerolog.Ctx(ctx).With().Str("user_id", user.ID.String()).Logger()

	label = strings.TrimSpace(label)
	if label == "" {
		recordOutcome(opCreateKey, outcomeInvalid)
		return nil, &CredentialError{Kind: ValidationError, Message: MsgLabelRequired}
	}

	normalized, err := keys.ValidatePublicKey(publicKey)
	if err != nil {
		recordOutcome(opCreateKey, outcomeInvalid)
		if errors.Is(err, keys.ErrEmptyKey) {
			return nil, &CredentialError{Kind: ValidationError, Message: MsgKeyRequired, Err: err}
		}
		return nil, &CredentialError{Kind: ValidationError, Message: MsgKeyInvalid, Err: err}
	}

	if user.OrganizationID == "" {
		recordOutcome(opCreateKey, outcomeInvalid)
		return nil, &CredentialError{Kind: ValidationError, Message: MsgOrganizationRequired}
	}

	key, err := m.Directory.CreatePublicKey(ctx, user.OrganizationID, label, normalized)
	if err != nil {
		logger.Error().Err(err).Str("org_id", user.OrganizationID).Msg("Failed to register public key")
		recordOutcome(opCreateKey, outcomeFailure)
		return nil, &CredentialError{Kind: RemoteError, Message: MsgKeyCreateFailed, Err: err}
	}

	logger.Info().Str("org_id", user.OrganizationID).Str("key_id", key.ID).Msg("Public key registered")
	recordOutcome(opCreateKey, outcomeSuccess)
	m.publish(ctx, models.PublicKeyRegistered, user, key.ID, label)
	return key, nil
}

// RevokePublicKey deletes a registered public key.
func (m *CredentialLifecycleManager) RevokePublicKey(ctx context.Context, user models.User, keyID string) error {
	logger := zerolog.Ctx(ctx).With().Str("user_id", user.ID.String()).Str("key_id", keyID).Logger()

	if user.OrganizationID == "" {
		recordOutcome(opRevokeKey, outcomeFailure)
		return &CredentialError{Kind: RevocationFailed, Message: MsgKeyDeleteFailed, Err: errors.New("user has no organization")}
	}

	deleted, err := m.Directory.DeletePublicKey(ctx, user.OrganizationID, keyID)
	if err == nil && !deleted {
		err = errDeletionDenied
	}
	if err != nil {
		logger.Error().Err(err).Str("org_id", user.OrganizationID).Msg("Failed to delete public key")
		recordOutcome(opRevokeKey, outcomeFailure)
		return &CredentialError{Kind: RevocationFailed, Message: MsgKeyDeleteFailed, Err: err}
	}

	recordOutcome(opRevokeKey, outcomeSuccess)
	m.publish(ctx, models.PublicKeyRevoked, user, keyID, "")
	return nil
}

// ListCredentials returns the credential metadata of the user's organization. Directory
// failures produce empty lists flagged as unavailable.
func (m *CredentialLifecycleManager) ListCredentials(ctx context.Context, user models.User) models.CredentialList {
	list := models.CredentialList{Tokens: []models.ClientToken{}, PublicKeys: []models.PublicKey{}}
	if user.OrganizationID == "" {
		return list
	}

	logger := zerolog.Ctx(ctx)

	tokens, err := m.Directory.GetClientTokens(ctx, user.OrganizationID)
	if err != nil {
		logger.Warn().Err(err).Str("org_id", user.OrganizationID).Msg("Failed to list client tokens")
		list.Unavailable = true
	} else {
		list.Tokens = tokens
	}

	publicKeys, err := m.Directory.GetPublicKeys(ctx, user.OrganizationID)
	if err != nil {
		logger.Warn().Err(err).Str("org_id", user.OrganizationID).Msg("Failed to list public keys")
		list.Unavailable = true
	} else {
		list.PublicKeys = publicKeys
	}

	return list
}

// PrepareOrganizationView lists the organizations of the user's implementer. It never fails:
// a directory error yields an empty list with Unavailable set.
func (m *CredentialLifecycleManager) PrepareOrganizationView(ctx context.Context, user models.User) models.OrganizationView {
	view := models.OrganizationView{Organizations: []models.ProviderOrg{}}
	if user.ImplementerID == "" {
		return view
	}

	orgs, err := m.Directory.GetProviderOrgs(ctx, user.ImplementerID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("implementer_id", user.ImplementerID).
			Msg("Failed to fetch provider organizations, showing an empty list")
		view.Unavailable = true
		return view
	}

	if orgs != nil {
		view.Organizations = orgs
	}
	return view
}

func (m *CredentialLifecycleManager) publish(ctx context.Context, eventType models.CredentialEventType, user models.User, credentialID, label string) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	event := models.CredentialEvent{
		ID:             uuid.New(),
		Type:           eventType,
		OrganizationID: user.OrganizationID,
		CredentialID:   credentialID,
		Label:          label,
		Actor:          user.ID,
		Timestamp:      now().Unix(),
	}

	if m.Publisher == nil {
		return
	}
	if err := m.Publisher.Publish(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish credential event")
	}
}
