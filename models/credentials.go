package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientToken is an API client token held by the organization directory. Token is only
// populated in the response to a create call.
type ClientToken struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Token     string     `json:"token,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// PublicKey is a registered public key used to sign API client assertions.
type PublicKey struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	PublicKey string     `json:"publicKey"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CredentialBundle is returned once after issuing a credential. It is never stored.
type CredentialBundle struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Material  string     `json:"material"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CredentialList is the metadata of an organization's credentials.
type CredentialList struct {
	Tokens      []ClientToken `json:"tokens"`
	PublicKeys  []PublicKey   `json:"publicKeys"`
	Unavailable bool          `json:"unavailable"`
}

// CredentialRequest is the payload for creating a client token.
type CredentialRequest struct {
	Label string `json:"label"`
}

// PublicKeyRequest is the payload for registering a public key.
type PublicKeyRequest struct {
	Label     string `json:"label"`
	PublicKey string `json:"publicKey"`
}

// CredentialEventType names a credential lifecycle transition.
type CredentialEventType string

const (
	ClientTokenIssued   CredentialEventType = "client_token.issued"
	ClientTokenRevoked  CredentialEventType = "client_token.revoked"
	PublicKeyRegistered CredentialEventType = "public_key.registered"
	PublicKeyRevoked    CredentialEventType = "public_key.revoked"
)

// CredentialEvent is the audit record of a credential transition. It never carries
// credential material.
type CredentialEvent struct {
	ID             uuid.UUID           `json:"id"`
	Type           CredentialEventType `json:"type"`
	OrganizationID string              `json:"organizationId"`
	CredentialID   string              `json:"credentialId"`
	Label          string              `json:"label,omitempty"`
	Actor          uuid.UUID           `json:"actor"`
	Timestamp      int64               `json:"timestamp"`
}
