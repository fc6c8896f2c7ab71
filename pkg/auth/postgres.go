package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/crypto/bcrypt"
)

// PostgresCredentialStore implements CredentialStore on PostgreSQL with
// bcrypt password hashes and hashed opaque access tokens.
type PostgresCredentialStore struct {
	db                  *sql.DB
	tokens              *TokenGenerator
	tokenTTL            time.Duration
	requireConfirmation bool
}

// NewPostgresCredentialStore creates a credential store over an existing
// database handle.
func NewPostgresCredentialStore(db *sql.DB, tokenTTL time.Duration, requireConfirmation bool) *PostgresCredentialStore {
	return &PostgresCredentialStore{
		db:                  db,
		tokens:              NewTokenGenerator(),
		tokenTTL:            tokenTTL,
		requireConfirmation: requireConfirmation,
	}
}

// SignUp creates an account with a bcrypt-hashed password
func (s *PostgresCredentialStore) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, userID, email, string(hash), !s.requireConfirmation)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &SignUpResult{
		UserID:               userID,
		ConfirmationRequired: s.requireConfirmation,
	}, nil
}

// SignIn verifies the password and issues a fresh access token
func (s *PostgresCredentialStore) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	var (
		userID       string
		passwordHash string
		confirmed    bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash, confirmed FROM accounts WHERE email = $1
	`, email).Scan(&userID, &passwordHash, &confirmed)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !confirmed {
		return nil, ErrEmailNotConfirmed
	}

	token, tokenHash, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (token_hash, account_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`, tokenHash, userID, time.Now().Add(s.tokenTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	return &SignInResult{UserID: userID, AccessToken: token}, nil
}

// VerifyToken resolves a token to its account
func (s *PostgresCredentialStore) VerifyToken(ctx context.Context, token string) (*Account, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := s.tokens.HashToken(token)

	var (
		account   Account
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.email, a.confirmed, t.expires_at, t.revoked_at
		FROM access_tokens t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.token_hash = $1
	`, tokenHash).Scan(&account.ID, &account.Email, &account.Confirmed, &expiresAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if revokedAt.Valid || time.Now().After(expiresAt) {
		return nil, ErrInvalidToken
	}

	// Best effort; a stale last_used_at must not fail the request
	_, _ = s.db.ExecContext(ctx, `
		UPDATE access_tokens SET last_used_at = NOW() WHERE token_hash = $1
	`, tokenHash)

	return &account, nil
}

// SignOut revokes a token; revoking an unknown token is a no-op
func (s *PostgresCredentialStore) SignOut(ctx context.Context, token string) error {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, s.tokens.HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// DeleteAccount removes the account; tokens, profile and tasks cascade
func (s *PostgresCredentialStore) DeleteAccount(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CleanupExpiredTokens revokes tokens past their expiry
func (s *PostgresCredentialStore) CleanupExpiredTokens(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked_at = NOW()
		WHERE expires_at < NOW() AND revoked_at IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned tokens: %w", err)
	}
	return int(n), nil
}

// PostgresProfileStore implements ProfileStore on PostgreSQL
type PostgresProfileStore struct {
	db *sql.DB
}

// NewPostgresProfileStore creates a profile store over an existing database
// handle.
func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

// Get returns the profile for a user id
func (s *PostgresProfileStore) Get(ctx context.Context, userID string) (*Profile, error) {
	p := &Profile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, avatar_url, theme, language, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Name, &p.AvatarURL, &p.Theme, &p.Language, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProfileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// Upsert applies a partial update; nil fields keep their prior values
func (s *PostgresProfileStore) Upsert(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error) {
	p := &Profile{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, name, avatar_url, theme, language, created_at, updated_at)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, $6), COALESCE($5, $7), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			name       = COALESCE($2, profiles.name),
			avatar_url = COALESCE($3, profiles.avatar_url),
			theme      = COALESCE($4, profiles.theme),
			language   = COALESCE($5, profiles.language),
			updated_at = NOW()
		RETURNING user_id, name, avatar_url, theme, language, created_at, updated_at
	`, userID, update.Name, update.AvatarURL, update.Theme, update.Language,
		DefaultTheme, DefaultLanguage,
	).Scan(&p.UserID, &p.Name, &p.AvatarURL, &p.Theme, &p.Language, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return p, nil
}

// Delete removes the profile; deleting an absent profile is a no-op
func (s *PostgresProfileStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
