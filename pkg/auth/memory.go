package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryCredentialStore is an in-memory CredentialStore for dev mode and
// tests. It mirrors the postgres implementation's semantics exactly.
type MemoryCredentialStore struct {
	mu                  sync.RWMutex
	accounts            map[string]*memoryAccount // by id
	byEmail             map[string]string         // email -> id
	tokens              map[string]*memoryToken   // by token hash
	gen                 *TokenGenerator
	tokenTTL            time.Duration
	requireConfirmation bool
}

type memoryAccount struct {
	id           string
	email        string
	passwordHash []byte
	confirmed    bool
}

type memoryToken struct {
	accountID string
	expiresAt time.Time
	revoked   bool
}

// NewMemoryCredentialStore creates an empty in-memory credential store
func NewMemoryCredentialStore(tokenTTL time.Duration, requireConfirmation bool) *MemoryCredentialStore {
	return &MemoryCredentialStore{
		accounts:            make(map[string]*memoryAccount),
		byEmail:             make(map[string]string),
		tokens:              make(map[string]*memoryToken),
		gen:                 NewTokenGenerator(),
		tokenTTL:            tokenTTL,
		requireConfirmation: requireConfirmation,
	}
}

// SignUp creates an account
func (s *MemoryCredentialStore) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	acc := &memoryAccount{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		confirmed:    !s.requireConfirmation,
	}
	s.accounts[acc.id] = acc
	s.byEmail[email] = acc.id

	return &SignUpResult{UserID: acc.id, ConfirmationRequired: s.requireConfirmation}, nil
}

// SignIn verifies the password and issues a token
func (s *MemoryCredentialStore) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	acc := s.accounts[id]

	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !acc.confirmed {
		return nil, ErrEmailNotConfirmed
	}

	token, tokenHash, err := s.gen.GenerateToken()
	if err != nil {
		return nil, err
	}
	s.tokens[tokenHash] = &memoryToken{
		accountID: acc.id,
		expiresAt: time.Now().Add(s.tokenTTL),
	}

	return &SignInResult{UserID: acc.id, AccessToken: token}, nil
}

// VerifyToken resolves a token to its account
func (s *MemoryCredentialStore) VerifyToken(ctx context.Context, token string) (*Account, error) {
	if err := s.gen.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[s.gen.HashToken(token)]
	if !ok || t.revoked || time.Now().After(t.expiresAt) {
		return nil, ErrInvalidToken
	}
	acc, ok := s.accounts[t.accountID]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &Account{ID: acc.id, Email: acc.email, Confirmed: acc.confirmed}, nil
}

// SignOut revokes a token
func (s *MemoryCredentialStore) SignOut(ctx context.Context, token string) error {
	if err := s.gen.ValidateTokenFormat(token); err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[s.gen.HashToken(token)]; ok {
		t.revoked = true
	}
	return nil
}

// DeleteAccount removes the account and its tokens
func (s *MemoryCredentialStore) DeleteAccount(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	delete(s.byEmail, acc.email)
	delete(s.accounts, userID)
	for hash, t := range s.tokens {
		if t.accountID == userID {
			delete(s.tokens, hash)
		}
	}
	return nil
}

// CleanupExpiredTokens revokes tokens past their expiry
func (s *MemoryCredentialStore) CleanupExpiredTokens(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now()
	for _, t := range s.tokens {
		if !t.revoked && now.After(t.expiresAt) {
			t.revoked = true
			count++
		}
	}
	return count, nil
}

// Confirm marks an account as confirmed. Dev-mode stand-in for the email
// confirmation flow.
func (s *MemoryCredentialStore) Confirm(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[userID]; ok {
		acc.confirmed = true
	}
}

// MemoryProfileStore is an in-memory ProfileStore for dev mode and tests
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryProfileStore creates an empty in-memory profile store
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]*Profile)}
}

// Get returns the profile for a user id
func (s *MemoryProfileStore) Get(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileMissing
	}
	cp := *p
	return &cp, nil
}

// Upsert applies a partial update; nil fields keep their prior values
func (s *MemoryProfileStore) Upsert(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = &Profile{
			UserID:    userID,
			Theme:     DefaultTheme,
			Language:  DefaultLanguage,
			CreatedAt: time.Now(),
		}
		s.profiles[userID] = p
	}

	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.AvatarURL != nil {
		p.AvatarURL = *update.AvatarURL
	}
	if update.Theme != nil {
		p.Theme = *update.Theme
	}
	if update.Language != nil {
		p.Language = *update.Language
	}
	p.UpdatedAt = time.Now()

	cp := *p
	return &cp, nil
}

// Delete removes the profile
func (s *MemoryProfileStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}
