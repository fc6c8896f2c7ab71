package auth

import "time"

// Canonical theme and language defaults for new profiles
const (
	DefaultTheme    = "light"
	DefaultLanguage = "en"
)

// Account is the credential-store record for a user. The password hash
// never leaves the credential store.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the mutable user-owned record, distinct from the credential
// record and keyed by the account id.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Theme     string    `json:"theme"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched by Upsert.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
	Theme     *string
	Language  *string
}

// Identity is the authenticated-user snapshot cached into the session so
// that protected requests avoid re-querying the credential store.
type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Theme     string `json:"theme"`
	Language  string `json:"language"`
}

// NewIdentity composes the session snapshot from an account and its profile
func NewIdentity(account *Account, profile *Profile) *Identity {
	return &Identity{
		UserID:    account.ID,
		Email:     account.Email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		Theme:     profile.Theme,
		Language:  profile.Language,
	}
}

// SignUpResult is returned by CredentialStore.SignUp
type SignUpResult struct {
	UserID               string
	ConfirmationRequired bool
}

// SignInResult is returned by CredentialStore.SignIn
type SignInResult struct {
	UserID      string
	AccessToken string
}
