package auth

import "context"

// CredentialStore is the narrow contract the service consumes for
// authentication: password verification, token issuance and revocation.
type CredentialStore interface {
	// SignUp creates an account. Returns ErrEmailTaken when the email is
	// already registered.
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)

	// SignIn verifies the password and issues an access token. Returns
	// ErrInvalidCredentials for unknown email or wrong password alike, and
	// ErrEmailNotConfirmed for unconfirmed accounts.
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)

	// VerifyToken resolves an access token to its account. Returns
	// ErrInvalidToken for malformed, unknown, expired or revoked tokens.
	VerifyToken(ctx context.Context, token string) (*Account, error)

	// SignOut revokes an access token. Revoking an unknown token is not an
	// error.
	SignOut(ctx context.Context, token string) error

	// DeleteAccount removes the account and its tokens.
	DeleteAccount(ctx context.Context, userID string) error

	// CleanupExpiredTokens revokes tokens past their expiry and reports how
	// many were affected.
	CleanupExpiredTokens(ctx context.Context) (int, error)
}

// ProfileStore holds the mutable user-owned record, keyed by user id.
type ProfileStore interface {
	// Get returns the profile. Returns ErrProfileMissing when absent.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Upsert applies a partial update; nil fields keep their prior values.
	// Creates the row when it does not exist yet.
	Upsert(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error)

	// Delete removes the profile. Deleting an absent profile is not an
	// error.
	Delete(ctx context.Context, userID string) error
}
