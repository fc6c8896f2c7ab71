package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// OwnedDataPurger removes everything a user owns outside the auth stores.
// Wired to the task repository so account deletion cascades.
type OwnedDataPurger interface {
	PurgeOwner(ctx context.Context, ownerID string) error
}

// Service orchestrates registration, login, logout, token resolution and
// preference persistence over the credential and profile stores.
type Service struct {
	creds    CredentialStore
	profiles ProfileStore
	purger   OwnedDataPurger
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewService creates an auth service with injected store dependencies
func NewService(creds CredentialStore, profiles ProfileStore, purger OwnedDataPurger, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		creds:    creds,
		profiles: profiles,
		purger:   purger,
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterResult reports the outcome of a registration
type RegisterResult struct {
	UserID               string
	ConfirmationRequired bool
}

// Register validates the input, creates the credential-store account and
// the mirrored profile row. When the provider requires email confirmation
// the caller is informed instead of being logged in.
func (s *Service) Register(ctx context.Context, email, password string, confirmPassword *string) (*RegisterResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" {
		return nil, NewValidationError("email", "is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, NewValidationError("email", "is not a valid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if confirmPassword != nil && *confirmPassword != password {
		return nil, NewValidationError("confirm_password", "does not match password")
	}

	result, err := s.creds.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// Mirror a profile row keyed by the new user id so later logins never
	// hit ErrProfileMissing.
	if _, err := s.profiles.Upsert(ctx, result.UserID, ProfileUpdate{}); err != nil {
		s.logger.WithError(err).WithField("user_id", result.UserID).Error("failed to create profile for new account")
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}

	return &RegisterResult{
		UserID:               result.UserID,
		ConfirmationRequired: result.ConfirmationRequired,
	}, nil
}

// LoginResult carries the session snapshot and the issued access token
type LoginResult struct {
	Identity    *Identity
	AccessToken string
	Remember    bool
}

// Login verifies credentials, loads the profile and builds the session
// snapshot. Missing fields are validation errors; bad credentials are
// ErrInvalidCredentials; a verified account without a profile row is
// ErrProfileMissing.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" {
		return nil, NewValidationError("email", "is required")
	}
	if password == "" {
		return nil, NewValidationError("password", "is required")
	}

	signIn, err := s.creds.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrEmailNotConfirmed) {
			if s.metrics != nil {
				s.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			}
			return nil, err
		}
		return nil, fmt.Errorf("credential store sign-in failed: %w", err)
	}

	profile, err := s.profiles.Get(ctx, signIn.UserID)
	if err != nil {
		if errors.Is(err, ErrProfileMissing) {
			return nil, ErrProfileMissing
		}
		return nil, fmt.Errorf("profile load failed: %w", err)
	}

	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	}

	return &LoginResult{
		Identity:    NewIdentity(&Account{ID: signIn.UserID, Email: email}, profile),
		AccessToken: signIn.AccessToken,
		Remember:    rememberMe,
	}, nil
}

// Logout revokes the access token. It unconditionally succeeds from the
// caller's perspective; revocation failures are logged, not surfaced.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.creds.SignOut(ctx, token); err != nil {
		s.logger.WithError(err).Warn("token revocation failed during logout")
	}
}

// ResolveToken verifies an access token against the credential store,
// fetches the profile and composes the session snapshot. Any failure is
// ErrInvalidToken or ErrProfileMissing; store unreachability is surfaced
// as an authentication failure for this one request.
func (s *Service) ResolveToken(ctx context.Context, token string) (*Identity, error) {
	account, err := s.creds.VerifyToken(ctx, token)
	if err != nil {
		if s.metrics != nil {
			s.metrics.TokenVerifyFailures.Inc()
		}
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		s.logger.WithError(err).Warn("credential store unreachable during token verification")
		return nil, ErrInvalidToken
	}

	profile, err := s.profiles.Get(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrProfileMissing) {
			return nil, ErrProfileMissing
		}
		s.logger.WithError(err).WithField("user_id", account.ID).Warn("profile lookup failed during token resolution")
		return nil, ErrProfileMissing
	}

	return NewIdentity(account, profile), nil
}

// CurrentUser returns the cached snapshot when present, otherwise attempts
// token-based re-resolution, otherwise ErrUnauthenticated.
func (s *Service) CurrentUser(ctx context.Context, snapshot *Identity, token string) (*Identity, error) {
	if snapshot != nil {
		return snapshot, nil
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}
	identity, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}

// SavePreferences merges the provided fields onto the existing preferences;
// unset fields keep their prior values.
func (s *Service) SavePreferences(ctx context.Context, userID string, theme, language *string) (*Profile, error) {
	if theme != nil && strings.TrimSpace(*theme) == "" {
		return nil, NewValidationError("theme", "must not be empty")
	}
	if language != nil && strings.TrimSpace(*language) == "" {
		return nil, NewValidationError("language", "must not be empty")
	}

	profile, err := s.profiles.Upsert(ctx, userID, ProfileUpdate{Theme: theme, Language: language})
	if err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return profile, nil
}

// SetAvatar records the uploaded avatar URL on the profile
func (s *Service) SetAvatar(ctx context.Context, userID, avatarURL string) (*Profile, error) {
	profile, err := s.profiles.Upsert(ctx, userID, ProfileUpdate{AvatarURL: &avatarURL})
	if err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	return profile, nil
}

// DeleteAccount removes the account, its profile and everything the user
// owns.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if s.purger != nil {
		if err := s.purger.PurgeOwner(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete owned data: %w", err)
		}
	}
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := s.creds.DeleteAccount(ctx, userID); err != nil {
		return err
	}
	return nil
}
