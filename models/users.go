package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountState tracks where a user is in the identity lifecycle.
type AccountState string

const (
	AccountRegistered AccountState = "registered"
	AccountInvited    AccountState = "invited"
	AccountActivated  AccountState = "activated"
)

// User represents a portal user.
type User struct {
	ID                   uuid.UUID    `json:"id"`
	FirstName            string       `json:"firstName"`
	LastName             string       `json:"lastName"`
	Email                string       `json:"email"`
	PasswordHash         string       `json:"-"`
	State                AccountState `json:"state"`
	ImplementerID        string       `json:"implementerId"`
	OrganizationID       string       `json:"organizationId,omitempty"`
	InvitedBy            *uuid.UUID   `json:"invitedBy,omitempty"`
	InvitationSentAt     *time.Time   `json:"invitationSentAt,omitempty"`
	InvitationAcceptedAt *time.Time   `json:"invitationAcceptedAt,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

// Name returns the display name of the user.
func (u User) Name() string {
	return u.FirstName + " " + u.LastName
}

// InvitationPending is true for invited users who have not set a password yet.
func (u User) InvitationPending() bool {
	return u.State == AccountInvited && u.InvitationAcceptedAt == nil
}

// CanSignIn reports whether the account has completed registration or invitation.
func (u User) CanSignIn() bool {
	return u.State == AccountRegistered || u.State == AccountActivated
}

// RegistrationRequest is the sign up form.
type RegistrationRequest struct {
	FirstName            string `json:"firstName" validate:"required,max=255"`
	LastName             string `json:"lastName" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Organization         string `json:"organization" validate:"required,max=255"`
	Password             string `json:"password" validate:"required,min=12,max=128"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"eqfield=Password"`
	AgreeToTerms         bool   `json:"agreeToTerms" validate:"eq=true"`
}

// InvitationRequest is the invite member form.
type InvitationRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
}

// AcceptInvitationRequest sets the password of an invited user.
type AcceptInvitationRequest struct {
	Token                string `validate:"required"`
	Password             string `validate:"required,min=12,max=128"`
	PasswordConfirmation string `validate:"eqfield=Password"`
	AgreeToTerms         bool   `validate:"eq=true"`
}

// PasswordResetRequest sets a new password using a reset token.
type PasswordResetRequest struct {
	Token                string `validate:"required"`
	Password             string `validate:"required,min=12,max=128"`
	PasswordConfirmation string `validate:"eqfield=Password"`
}
