package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"
)

const (
	InvitationSubject    = "Invitation instructions"
	PasswordResetSubject = "Reset password instructions"
)

// Message is a plain text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// EmailAPI is the subset of the SES v2 client we use.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers messages through Amazon SES.
type SESMailer struct {
	Client EmailAPI
	From   string
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	}

	if _, err := m.Client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send %q email: %w", msg.Subject, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is used when no
// sender address is configured, so links can be followed in local development.
type LogMailer struct {
	Logger *zerolog.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg(msg.Body)
	return nil
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`Hello {{.Name}},

{{.Inviter}} has invited you to join the Data at the Point of Care portal.
You can accept this invitation through the link below:

{{.Link}}

This invitation expires on {{.Expires}}. If you don't want to accept it, please ignore this email.
`))

var passwordResetTemplate = template.Must(template.New("reset").Parse(`Hello {{.Name}},

Someone has requested a link to change your password. You can do this through the link below:

{{.Link}}

This link expires on {{.Expires}}. If you didn't request this, please ignore this email.
Your password won't change until you access the link above and create a new one.
`))

// Link is the data rendered into account emails.
type Link struct {
	Name    string
	Inviter string
	Link    string
	Expires string
}

func InvitationMessage(to string, data Link) (Message, error) {
	return render(to, InvitationSubject, invitationTemplate, data)
}

func PasswordResetMessage(to string, data Link) (Message, error) {
	return render(to, PasswordResetSubject, passwordResetTemplate, data)
}

func render(to, subject string, tmpl *template.Template, data Link) (Message, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %q email: %w", subject, err)
	}
	return Message{To: to, Subject: subject, Body: buf.String()}, nil
}
