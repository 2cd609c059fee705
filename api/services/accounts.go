package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/CMSgov/dpc-portal/db"
	"github.com/CMSgov/dpc-portal/internal/authn"
	"github.com/CMSgov/dpc-portal/internal/mailer"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrAccountExists        = &UserError{Message: "User already has an account."}
	ErrRegistrationFields   = &UserError{Message: "All fields are required to sign up."}
	ErrInvitationFields     = &UserError{Message: "All fields are required to invite a new user."}
	ErrInvalidEmail         = &UserError{Message: "Email must be valid."}
	ErrInvalidCredentials   = &UserError{Message: "Invalid email or password."}
	ErrPasswordTooShort     = &UserError{Message: "Password is too short (minimum is 12 characters)."}
	ErrPasswordsDiffer      = &UserError{Message: "Password confirmation doesn't match Password."}
	ErrTermsNotAccepted     = &UserError{Message: "You must agree to the terms of service."}
	ErrInvitationInvalid    = &UserError{Message: "Invitation token is invalid."}
	ErrInvitationExpired    = &UserError{Message: "Invitation has expired. Please ask for a new invitation."}
	ErrResetTokenInvalid    = &UserError{Message: "Reset password token is invalid or has expired."}
	ErrRegistrationFailed   = &UserError{Message: "Account could not be created. Please try again later."}
	ErrInvitationNotSent    = &UserError{Message: "Invitation could not be sent."}
	ErrPasswordResetNotSent = &UserError{Message: "Password reset instructions could not be sent."}
)

// AccountService owns the identity lifecycle: registration, sign in, invitations and
// password resets. Registered and Activated users may sign in; Invited users may not until
// they accept their single-use invitation.
type AccountService struct {
	Users     UserStore
	Directory OrgDirectoryClient
	Mailer    Mailer

	PortalURL        string
	InvitationTTL    time.Duration
	PasswordResetTTL time.Duration
	Now              func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates an implementer for the new organization and its first user.
func (s *AccountService) Register(ctx context.Context, req models.RegistrationRequest) (*models.User, error) {
	logger := zerolog.Ctx(ctx)

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Organization = strings.TrimSpace(req.Organization)

	if err := validate.Struct(req); err != nil {
		return nil, registrationError(err)
	}

	if _, err := s.Users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	impl, err := s.Directory.CreateImplementer(ctx, req.Organization)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create implementer")
		return nil, userError(ErrRegistrationFailed, err)
	}

	hash, err := authn.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.Users.CreateUser(ctx, &models.User{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PasswordHash:  hash,
		State:         models.AccountRegistered,
		ImplementerID: impl.ID,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info().Str("user_id", user.ID.String()).Str("implementer_id", impl.ID).Msg("User registered")
	return user, nil
}

// Authenticate checks an email and password pair.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.CanSignIn() {
		return nil, ErrInvalidCredentials
	}
	if err := authn.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads the user behind a session.
func (s *AccountService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.Users.GetUserByID(ctx, id)
}

// ListMembers returns the users sharing the requesting user's implementer.
func (s *AccountService) ListMembers(ctx context.Context, user models.User) ([]models.User, error) {
	return s.Users.ListImplementerUsers(ctx, user.ImplementerID)
}

// Invite creates an invited user in the inviter's implementer and organization and emails
// them an invitation link. Inviting a pending invitee of the same implementer again sends a
// fresh link, so an invitation whose email failed can simply be resubmitted.
func (s *AccountService) Invite(ctx context.Context, inviter models.User, req models.InvitationRequest) (*models.User, error) {
	logger := zerolog.Ctx(ctx).With().Str("inviter_id", inviter.ID.String()).Logger()

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)

	if err := validate.Struct(req); err != nil {
		return nil, ErrInvitationFields
	}
	if err := validate.Var(req.Email, "email"); err != nil {
		return nil, ErrInvalidEmail
	}

	if existing, err := s.Users.GetUserByEmail(ctx, req.Email); err == nil {
		if !existing.InvitationPending() || existing.ImplementerID != inviter.ImplementerID {
			return nil, ErrAccountExists
		}
		if err := s.sendInvitation(ctx, inviter.Name(), existing); err != nil {
			logger.Error().Err(err).Str("user_id", existing.ID.String()).Msg("Failed to send invitation")
			return nil, userError(ErrInvitationNotSent, err)
		}
		logger.Info().Str("user_id", existing.ID.String()).Msg("Invitation sent again")
		return existing, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	invitedBy := inviter.ID
	user, err := s.Users.CreateUser(ctx, &models.User{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		State:          models.AccountInvited,
		ImplementerID:  inviter.ImplementerID,
		OrganizationID: inviter.OrganizationID,
		InvitedBy:      &invitedBy,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create invited user: %w", err)
	}

	if err := s.sendInvitation(ctx, inviter.Name(), user); err != nil {
		logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to send invitation")
		return nil, userError(ErrInvitationNotSent, err)
	}

	logger.Info().Str("user_id", user.ID.String()).Msg("User invited")
	return user, nil
}

// ResendInvitation issues a fresh invitation to a pending invitee. Unknown or already
// active emails are ignored so the response does not reveal which accounts exist.
func (s *AccountService) ResendInvitation(ctx context.Context, email string) error {
	user, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.InvitationPending() {
		return nil
	}

	inviterName := "Your team"
	if user.InvitedBy != nil {
		if inviter, err := s.Users.GetUserByID(ctx, *user.InvitedBy); err == nil {
			inviterName = inviter.Name()
		}
	}

	if err := s.sendInvitation(ctx, inviterName, user); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to resend invitation")
		return userError(ErrInvitationNotSent, err)
	}
	return nil
}

func (s *AccountService) sendInvitation(ctx context.Context, inviterName string, user *models.User) error {
	raw, digest, err := authn.NewSingleUseToken()
	if err != nil {
		return err
	}

	sentAt := s.now()
	if err := s.Users.SetInvitation(ctx, user.ID, digest, sentAt); err != nil {
		return fmt.Errorf("failed to store invitation: %w", err)
	}

	msg, err := mailer.InvitationMessage(user.Email, mailer.Link{
		Name:    user.Name(),
		Inviter: inviterName,
		Link:    s.link("/users/invitation/accept", "invitation_token", raw),
		Expires: sentAt.Add(s.InvitationTTL).Format("January 2, 2006 15:04 MST"),
	})
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, msg)
}

// AcceptInvitation sets the password of an invited user and activates the account. The
// invitation token cannot be used again afterwards.
func (s *AccountService) AcceptInvitation(ctx context.Context, req models.AcceptInvitationRequest) (*models.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, passwordError(err, ErrInvitationInvalid)
	}

	user, err := s.Users.GetUserByInvitationDigest(ctx, authn.Digest(req.Token))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvitationInvalid
		}
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if !user.InvitationPending() || user.InvitationSentAt == nil {
		return nil, ErrInvitationInvalid
	}

	now := s.now()
	if now.After(user.InvitationSentAt.Add(s.InvitationTTL)) {
		return nil, ErrInvitationExpired
	}

	hash, err := authn.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.Users.AcceptInvitation(ctx, user.ID, hash, now); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvitationInvalid
		}
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	user.State = models.AccountActivated
	user.PasswordHash = hash
	user.InvitationAcceptedAt = &now

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID.String()).Msg("Invitation accepted")
	return user, nil
}

// RequestPasswordReset emails a single-use reset link. Unknown emails are ignored.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.CanSignIn() {
		return nil
	}

	raw, digest, err := authn.NewSingleUseToken()
	if err != nil {
		return err
	}

	expires := s.now().Add(s.PasswordResetTTL)
	if err := s.Users.CreatePasswordReset(ctx, user.ID, digest, expires); err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}

	msg, err := mailer.PasswordResetMessage(user.Email, mailer.Link{
		Name:    user.Name(),
		Link:    s.link("/users/password/edit", "reset_password_token", raw),
		Expires: expires.Format("January 2, 2006 15:04 MST"),
	})
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to send password reset")
		return userError(ErrPasswordResetNotSent, err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AccountService) ResetPassword(ctx context.Context, req models.PasswordResetRequest) error {
	if err := validate.Struct(req); err != nil {
		return passwordError(err, ErrResetTokenInvalid)
	}

	userID, err := s.Users.ConsumePasswordReset(ctx, authn.Digest(req.Token), s.now())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("failed to consume password reset: %w", err)
	}

	hash, err := authn.HashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("user_id", userID.String()).Msg("Password reset")
	return nil
}

func (s *AccountService) link(path, param, token string) string {
	return fmt.Sprintf("%s%s?%s=%s", strings.TrimRight(s.PortalURL, "/"), path, param, url.QueryEscape(token))
}

// registrationError maps the first failed validation rule to a user message.
func registrationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ErrRegistrationFields
	}

	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return ErrRegistrationFields
		}
	}

	switch fieldErrs[0].Field() {
	case "Email":
		return ErrInvalidEmail
	case "FirstName", "LastName", "Organization":
		return ErrRegistrationFields
	default:
		return passwordError(err, ErrRegistrationFields)
	}
}

// passwordError maps password rule failures to user messages, or fallback otherwise.
func passwordError(err error, fallback *UserError) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fallback
	}

	for _, fe := range fieldErrs {
		switch fe.Field() {
		case "Token":
			return fallback
		case "Password":
			return ErrPasswordTooShort
		case "PasswordConfirmation":
			return ErrPasswordsDiffer
		case "AgreeToTerms":
			return ErrTermsNotAccepted
		}
	}
	return fallback
}
