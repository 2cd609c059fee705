package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAWSEmailClient struct {
	mock.Mock
}

func (m *MockAWSEmailClient) SendEmail(ctx context.Context, input *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

func TestInvitationMessage(t *testing.T) {
	msg, err := InvitationMessage("new@example.org", Link{
		Name:    "Ada Lovelace",
		Inviter: "Mary Jackson",
		Link:    "https://portal.example.org/users/invitation/accept?invitation_token=abc",
		Expires: "March 3, 2025",
	})
	require.NoError(t, err)

	assert.Equal(t, "new@example.org", msg.To)
	assert.Equal(t, "Invitation instructions", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Ada Lovelace")
	assert.Contains(t, msg.Body, "Mary Jackson has invited you")
	assert.Contains(t, msg.Body, "invitation_token=abc")
}

func TestPasswordResetMessage(t *testing.T) {
	msg, err := PasswordResetMessage("mary@example.org", Link{Name: "Mary", Link: "https://x/reset"})
	require.NoError(t, err)

	assert.Equal(t, "Reset password instructions", msg.Subject)
	assert.Contains(t, msg.Body, "https://x/reset")
}

func TestSESMailer_Send(t *testing.T) {
	client := new(MockAWSEmailClient)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(&sesv2.SendEmailOutput{}, nil)

	m := &SESMailer{Client: client, From: "noreply@dpc.cms.gov"}
	err := m.Send(context.Background(), Message{To: "a@example.org", Subject: "Hi", Body: "Body"})
	require.NoError(t, err)

	client.AssertCalled(t, "SendEmail", mock.Anything, mock.MatchedBy(func(input *sesv2.SendEmailInput) bool {
		return aws.ToString(input.FromEmailAddress) == "noreply@dpc.cms.gov" &&
			input.Destination.ToAddresses[0] == "a@example.org" &&
			aws.ToString(input.Content.Simple.Subject.Data) == "Hi" &&
			aws.ToString(input.Content.Simple.Body.Text.Data) == "Body"
	}))
}

func TestSESMailer_SendError(t *testing.T) {
	client := new(MockAWSEmailClient)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("ses down"))

	m := &SESMailer{Client: client, From: "noreply@dpc.cms.gov"}
	err := m.Send(context.Background(), Message{To: "a@example.org", Subject: "Hi"})
	assert.ErrorContains(t, err, "ses down")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	m := &LogMailer{Logger: &logger}

	err := m.Send(context.Background(), Message{To: "new@example.org", Subject: InvitationSubject, Body: "follow the link"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"to":"new@example.org"`)
	assert.Contains(t, buf.String(), `"subject":"Invitation instructions"`)
	assert.Contains(t, buf.String(), "follow the link")
}
