package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*PortalDB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger := zerolog.Nop()
	return &PortalDB{DB: conn, Log: &logger}, mock
}

var userRowColumns = []string{"id", "first_name", "last_name", "email", "password_hash", "state",
	"implementer_id", "organization_id", "invited_by", "invitation_sent_at", "invitation_accepted_at", "created_at"}

func TestCreateUser(t *testing.T) {
	portal, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Mary", "Jackson", "mary@example.org", "hash", models.AccountRegistered,
			"impl-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := portal.CreateUser(context.Background(), &models.User{
		FirstName: "Mary", LastName: "Jackson", Email: "mary@example.org",
		PasswordHash: "hash", State: models.AccountRegistered, ImplementerID: "impl-1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	portal, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	_, err := portal.CreateUser(context.Background(), &models.User{Email: "mary@example.org"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail(t *testing.T) {
	portal, mock := newMock(t)
	id, inviter := uuid.New(), uuid.New()
	sent := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(id.String(), "Ada", "Lovelace", "ada@example.org", "", "invited", "impl-1", "org-1", inviter.String(), sent, nil, sent)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE lower(email) = lower($1)")).
		WithArgs("ADA@example.org").WillReturnRows(rows)

	user, err := portal.GetUserByEmail(context.Background(), "ADA@example.org")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, models.AccountInvited, user.State)
	assert.Equal(t, "org-1", user.OrganizationID)
	require.NotNil(t, user.InvitedBy)
	assert.Equal(t, inviter, *user.InvitedBy)
	require.NotNil(t, user.InvitationSentAt)
	assert.Nil(t, user.InvitationAcceptedAt)
	assert.True(t, user.InvitationPending())
}

func TestGetUserByID_NotFound(t *testing.T) {
	portal, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := portal.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListImplementerUsers(t *testing.T) {
	portal, mock := newMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(uuid.NewString(), "Mary", "Jackson", "mary@example.org", "h", "registered", "impl-1", nil, nil, nil, nil, now).
		AddRow(uuid.NewString(), "Ada", "Lovelace", "ada@example.org", "", "invited", "impl-1", nil, nil, now, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE implementer_id = $1")).
		WithArgs("impl-1").WillReturnRows(rows)

	users, err := portal.ListImplementerUsers(context.Background(), "impl-1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Mary Jackson", users[0].Name())
	assert.Empty(t, users[0].OrganizationID)
	assert.True(t, users[1].InvitationPending())
}

func TestAcceptInvitation(t *testing.T) {
	portal, mock := newMock(t)
	id := uuid.New()
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("state = 'activated'")).
		WithArgs("hash", at, id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, portal.AcceptInvitation(context.Background(), id, "hash", at))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("state = 'activated'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := portal.AcceptInvitation(context.Background(), id, "hash", at)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireInvitations(t *testing.T) {
	portal, mock := newMock(t)
	cutoff := time.Now().Add(-72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET invitation_digest = NULL")).
		WithArgs(cutoff).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := portal.ExpireInvitations(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPasswordResets(t *testing.T) {
	portal, mock := newMock(t)
	userID := uuid.New()
	expires := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_resets")).
		WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_resets")).
		WithArgs("digest", userID, expires).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, portal.CreatePasswordReset(context.Background(), userID, "digest", expires))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE password_resets SET used_at")).
		WithArgs("digest", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userID.String()))

	got, err := portal.ConsumePasswordReset(context.Background(), "digest", now)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE password_resets SET used_at")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err = portal.ConsumePasswordReset(context.Background(), "digest", now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrganization(t *testing.T) {
	portal, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE organizations SET npi = $1, vendor = $2")).
		WithArgs("1234567893", true, sqlmock.AnyArg(), "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "implementer_id", "name", "npi", "vendor", "updated_at"}).
			AddRow("org-1", "impl-1", "Health Clinic", "1234567893", true, now))

	org, err := portal.UpdateOrganization(context.Background(), "org-1", models.OrganizationUpdate{NPI: "1234567893", Vendor: true})
	require.NoError(t, err)
	assert.Equal(t, "Health Clinic", org.Name)
	assert.True(t, org.Vendor)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE organizations")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "implementer_id", "name", "npi", "vendor", "updated_at"}))

	_, err = portal.UpdateOrganization(context.Background(), "missing", models.OrganizationUpdate{NPI: "1234567893"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertOrganization(t *testing.T) {
	portal, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs("org-1", "impl-1", "Health Clinic", "1234567893", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := portal.UpsertOrganization(context.Background(), models.Organization{
		ID: "org-1", ImplementerID: "impl-1", Name: "Health Clinic", NPI: "1234567893",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOrganization_KeepsEditedFields(t *testing.T) {
	portal, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DO UPDATE SET implementer_id = EXCLUDED.implementer_id, name = EXCLUDED.name,\s+updated_at = EXCLUDED.updated_at$`).
		WithArgs("org-1", "impl-1", "Health Clinic", "1234567893", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := portal.UpsertOrganization(context.Background(), models.Organization{
		ID: "org-1", ImplementerID: "impl-1", Name: "Health Clinic", NPI: "1234567893",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordCredentialEvent(t *testing.T) {
	portal, mock := newMock(t)
	event := models.CredentialEvent{
		ID: uuid.New(), Type: models.ClientTokenIssued, OrganizationID: "org-1",
		CredentialID: "tok-1", Label: "Ops Key", Timestamp: 1700000000,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credential_events")).
		WithArgs(event.ID, event.Type, "org-1", "tok-1", "Ops Key", sqlmock.AnyArg(), time.Unix(1700000000, 0).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, portal.RecordCredentialEvent(context.Background(), event))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credential_events")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := portal.RecordCredentialEvent(context.Background(), event)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCredentialEvents(t *testing.T) {
	portal, mock := newMock(t)
	id, actor := uuid.New(), uuid.New()
	at := time.Unix(1700000000, 0)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credential_events WHERE organization_id = $1")).
		WithArgs("org-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "organization_id", "credential_id", "label", "actor", "occurred_at"}).
			AddRow(id.String(), "client_token.revoked", "org-1", "tok-1", "Ops Key", actor.String(), at))

	events, err := portal.ListCredentialEvents(context.Background(), "org-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ClientTokenRevoked, events[0].Type)
	assert.Equal(t, actor, events[0].Actor)
	assert.Equal(t, int64(1700000000), events[0].Timestamp)
}
