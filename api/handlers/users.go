package handlers

import (
	"errors"
	"net/http"

	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/rs/zerolog"
)

const (
	msgSignedIn         = "Signed in successfully."
	msgSignedOut        = "Signed out successfully."
	msgSignedUp         = "Welcome! You have signed up successfully."
	msgInvitationSent   = "User invited."
	msgInvitationResent = "If your email address is awaiting an invitation, you will receive a new one in a few minutes."
	msgPasswordAccepted = "Your password was set successfully. You are now signed in."
	msgResetSent        = "If your email address exists in our database, you will receive a password recovery link in a few minutes."
	msgPasswordChanged  = "Your password has been changed successfully. Please sign in."
	msgSomethingBroke   = "Something went wrong. Please try again later."
)

// userFormStatus maps identity failures to the status of a re-rendered form.
func userFormStatus(err error) int {
	var userErr *services.UserError
	if errors.As(err, &userErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (p *Portal) NewRegistration(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "sign_up.html", page{Title: "Sign up"})
}

// CreateRegistration signs up a new user and their implementer.
func (p *Portal) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.render(w, r, http.StatusBadRequest, "sign_up.html", page{Title: "Sign up", Error: services.ErrRegistrationFields.Message})
		return
	}

	user, err := p.Service.Accounts.Register(r.Context(), models.RegistrationRequest{
		FirstName:            r.PostForm.Get("first_name"),
		LastName:             r.PostForm.Get("last_name"),
		Email:                r.PostForm.Get("email"),
		Organization:         r.PostForm.Get("organization"),
		Password:             r.PostForm.Get("password"),
		PasswordConfirmation: r.PostForm.Get("password_confirmation"),
		AgreeToTerms:         r.PostForm.Get("agree_to_terms") == "true",
	})
	if err != nil {
		p.render(w, r, userFormStatus(err), "sign_up.html", page{
			Title: "Sign up",
			Error: services.UserMessage(err, msgSomethingBroke),
			Form:  withoutPasswords(r),
		})
		return
	}

	p.signIn(w, r, user, msgSignedUp)
}

func (p *Portal) NewSession(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "sign_in.html", page{Title: "Sign in"})
}

// CreateSession signs a user in with email and password.
func (p *Portal) CreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.render(w, r, http.StatusBadRequest, "sign_in.html", page{Title: "Sign in", Error: services.ErrInvalidCredentials.Message})
		return
	}

	user, err := p.Service.Accounts.Authenticate(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		status := userFormStatus(err)
		if status == http.StatusUnprocessableEntity {
			status = http.StatusUnauthorized
		}
		p.render(w, r, status, "sign_in.html", page{
			Title: "Sign in",
			Error: services.UserMessage(err, msgSomethingBroke),
			Form:  withoutPasswords(r),
		})
		return
	}

	p.signIn(w, r, user, msgSignedIn)
}

// DestroySession signs the user out.
func (p *Portal) DestroySession(w http.ResponseWriter, r *http.Request) {
	p.endSession(w)
	p.redirect(w, r, "/users/sign_in", models.Flash{Notice: msgSignedOut})
}

func (p *Portal) signIn(w http.ResponseWriter, r *http.Request, user *models.User, notice string) {
	if err := p.startSession(w, user); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to start session")
		p.redirect(w, r, "/users/sign_in", models.Flash{Alert: msgSomethingBroke})
		return
	}
	p.redirect(w, r, "/", models.Flash{Notice: notice})
}

// Members lists the users of the implementer with the invitation form.
func (p *Portal) Members(w http.ResponseWriter, r *http.Request) {
	p.renderMembers(w, r, http.StatusOK, page{})
}

func (p *Portal) renderMembers(w http.ResponseWriter, r *http.Request, status int, data page) {
	members, err := p.Service.Accounts.ListMembers(r.Context(), currentUser(r))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to list members")
	}
	data.Title = "Members"
	data.Members = members
	p.render(w, r, status, "members.html", data)
}

// InviteMember invites a new user to the implementer and organization of the inviter.
func (p *Portal) InviteMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.renderMembers(w, r, http.StatusBadRequest, page{Error: services.ErrInvitationFields.Message})
		return
	}

	_, err := p.Service.Accounts.Invite(r.Context(), currentUser(r), models.InvitationRequest{
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
		Email:     r.PostForm.Get("email"),
	})
	if err != nil {
		p.renderMembers(w, r, userFormStatus(err), page{
			Error: services.UserMessage(err, msgSomethingBroke),
			Form:  r.PostForm,
		})
		return
	}

	p.redirect(w, r, "/members", models.Flash{Notice: msgInvitationSent})
}

// EditInvitation shows the password form of an emailed invitation link.
func (p *Portal) EditInvitation(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("invitation_token")
	if token == "" {
		p.redirect(w, r, "/users/sign_in", models.Flash{Alert: services.ErrInvitationInvalid.Message})
		return
	}
	p.render(w, r, http.StatusOK, "invitation_accept.html", page{Title: "Accept invitation", Token: token})
}

// AcceptInvitation activates an invited user and signs them in.
func (p *Portal) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.redirect(w, r, "/users/sign_in", models.Flash{Alert: services.ErrInvitationInvalid.Message})
		return
	}

	token := r.PostForm.Get("invitation_token")
	user, err := p.Service.Accounts.AcceptInvitation(r.Context(), models.AcceptInvitationRequest{
		Token:                token,
		Password:             r.PostForm.Get("password"),
		PasswordConfirmation: r.PostForm.Get("password_confirmation"),
		AgreeToTerms:         r.PostForm.Get("agree_to_terms") == "true",
	})
	switch {
	case errors.Is(err, services.ErrInvitationInvalid), errors.Is(err, services.ErrInvitationExpired):
		p.redirect(w, r, "/users/sign_in", models.Flash{Alert: services.UserMessage(err, "")})
		return
	case err != nil:
		p.render(w, r, userFormStatus(err), "invitation_accept.html", page{
			Title: "Accept invitation",
			Token: token,
			Error: services.UserMessage(err, msgSomethingBroke),
		})
		return
	}

	p.signIn(w, r, user, msgPasswordAccepted)
}

func (p *Portal) NewConfirmation(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "confirmation_new.html", page{Title: "Resend invitation"})
}

// CreateConfirmation resends a pending invitation. The response is the same whether or
// not the email belongs to an invited user.
func (p *Portal) CreateConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		if err := p.Service.Accounts.ResendInvitation(r.Context(), r.PostForm.Get("email")); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to resend invitation")
		}
	}
	p.redirect(w, r, "/users/sign_in", models.Flash{Notice: msgInvitationResent})
}

func (p *Portal) NewPassword(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "password_new.html", page{Title: "Forgot your password?"})
}

// CreatePassword emails password reset instructions.
func (p *Portal) CreatePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		if err := p.Service.Accounts.RequestPasswordReset(r.Context(), r.PostForm.Get("email")); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to send password reset")
		}
	}
	p.redirect(w, r, "/users/sign_in", models.Flash{Notice: msgResetSent})
}

// EditPassword shows the new password form of an emailed reset link.
func (p *Portal) EditPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("reset_password_token")
	if token == "" {
		p.redirect(w, r, "/users/sign_in", models.Flash{Alert: services.ErrResetTokenInvalid.Message})
		return
	}
	p.render(w, r, http.StatusOK, "password_edit.html", page{Title: "Change your password", Token: token})
}

// UpdatePassword consumes a reset token and sets the new password.
func (p *Portal) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.redirect(w, r, "/users/password/new", models.Flash{Alert: services.ErrResetTokenInvalid.Message})
		return
	}

	token := r.PostForm.Get("reset_password_token")
	err := p.Service.Accounts.ResetPassword(r.Context(), models.PasswordResetRequest{
		Token:                token,
		Password:             r.PostForm.Get("password"),
		PasswordConfirmation: r.PostForm.Get("password_confirmation"),
	})
	switch {
	case errors.Is(err, services.ErrResetTokenInvalid):
		p.redirect(w, r, "/users/password/new", models.Flash{Alert: services.ErrResetTokenInvalid.Message})
		return
	case err != nil:
		p.render(w, r, userFormStatus(err), "password_edit.html", page{
			Title: "Change your password",
			Token: token,
			Error: services.UserMessage(err, msgSomethingBroke),
		})
		return
	}

	p.redirect(w, r, "/users/sign_in", models.Flash{Notice: msgPasswordChanged})
}

// withoutPasswords returns the submitted form minus password fields for re-rendering.
func withoutPasswords(r *http.Request) map[string][]string {
	form := make(map[string][]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if k == "password" || k == "password_confirmation" {
			continue
		}
		form[k] = v
	}
	return form
}
