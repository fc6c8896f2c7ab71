package auth

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMockCredentialStore(t *testing.T) (*PostgresCredentialStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresCredentialStore(db, time.Hour, false), mock
}

func TestPostgresSignUp_EmailTaken(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)")).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := store.SignUp(context.Background(), "user@example.com", "password1")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSignUp_Success(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)")).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := store.SignUp(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.UserID)
	assert.False(t, result.ConfirmationRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSignIn_UnknownEmail(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	mock.ExpectQuery("SELECT id, password_hash, confirmed FROM accounts").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.SignIn(context.Background(), "nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPostgresSignIn_WrongPassword(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, password_hash, confirmed FROM accounts").
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "confirmed"}).
			AddRow("user-1", string(hash), true))

	_, err = store.SignIn(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPostgresSignIn_IssuesToken(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, password_hash, confirmed FROM accounts").
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "confirmed"}).
			AddRow("user-1", string(hash), true))
	mock.ExpectExec("INSERT INTO access_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := store.SignIn(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
	assert.NoError(t, NewTokenGenerator().ValidateTokenFormat(result.AccessToken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVerifyToken_ReturnsAccount(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	gen := NewTokenGenerator()
	token, tokenHash, err := gen.GenerateToken()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT a.id, a.email, a.confirmed, t.expires_at, t.revoked_at").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "confirmed", "expires_at", "revoked_at"}).
			AddRow("user-1", "user@example.com", true, time.Now().Add(time.Hour), nil))
	mock.ExpectExec("UPDATE access_tokens SET last_used_at").
		WithArgs(tokenHash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	account, err := store.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", account.ID)
	assert.Equal(t, "user@example.com", account.Email)
	assert.True(t, account.Confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVerifyToken_Expired(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	gen := NewTokenGenerator()
	token, tokenHash, err := gen.GenerateToken()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT a.id, a.email, a.confirmed, t.expires_at, t.revoked_at").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "confirmed", "expires_at", "revoked_at"}).
			AddRow("user-1", "user@example.com", true, time.Now().Add(-time.Minute), nil))

	_, err = store.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPostgresVerifyToken_Revoked(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	gen := NewTokenGenerator()
	token, tokenHash, err := gen.GenerateToken()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT a.id, a.email, a.confirmed, t.expires_at, t.revoked_at").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "confirmed", "expires_at", "revoked_at"}).
			AddRow("user-1", "user@example.com", true, time.Now().Add(time.Hour), time.Now()))

	_, err = store.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPostgresVerifyToken_BadFormatSkipsQuery(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	_, err := store.VerifyToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteAccount_NotFound(t *testing.T) {
	store, mock := newMockCredentialStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM accounts WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostgresProfileGet_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresProfileStore(db)

	mock.ExpectQuery("SELECT user_id, name, avatar_url, theme, language, created_at, updated_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProfileMissing)
}

func TestPostgresProfileUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresProfileStore(db)

	now := time.Now()
	dark := "dark"
	mock.ExpectQuery("INSERT INTO profiles").
		WithArgs("user-1", nil, nil, "dark", nil, DefaultTheme, DefaultLanguage).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "avatar_url", "theme", "language", "created_at", "updated_at"}).
			AddRow("user-1", "", "", "dark", "en", now, now))

	profile, err := store.Upsert(context.Background(), "user-1", ProfileUpdate{Theme: &dark})
	require.NoError(t, err)
	assert.Equal(t, "dark", profile.Theme)
	assert.Equal(t, "en", profile.Language)
	assert.NoError(t, mock.ExpectationsWereMet())
}
