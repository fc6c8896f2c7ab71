// Package middleware contains the request-scoped concerns that run before
// the handlers: session acquisition and release, identity resolution, and
// login rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/contextkeys"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/session"
)

// Cookie names used across the auth surface
const (
	SessionCookieName = "taskhub_session"
	TokenCookieName   = "taskhub_token"
	PrefsCookieName   = "taskhub_prefs"
)

// SessionManager provides scoped session acquisition and release: the
// session is loaded (or created) before the handler runs and persisted
// afterwards when dirty. Handlers never talk to the session store
// directly.
type SessionManager struct {
	store  session.Store
	cfg    config.AuthConfig
	logger *observability.Logger
}

// NewSessionManager creates a session manager
func NewSessionManager(store session.Store, cfg config.AuthConfig, logger *observability.Logger) *SessionManager {
	return &SessionManager{store: store, cfg: cfg, logger: logger}
}

// Handler wraps an HTTP handler with session acquisition/release
func (m *SessionManager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.load(r)
		if sess == nil {
			var err error
			sess, err = session.New()
			if err != nil {
				m.logger.WithError(err).Error("failed to create session")
				next.ServeHTTP(w, r)
				return
			}
			// The id is fixed at creation, so the cookie can go out
			// before the handler writes the response body.
			m.SetSessionCookie(w, sess.ID, false)
		}

		ctx := contextkeys.WithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))

		if sess.Dirty() {
			if err := m.store.Save(r.Context(), sess, m.TTL(sess)); err != nil {
				m.logger.WithError(err).Warn("failed to persist session")
			}
		}
	})
}

func (m *SessionManager) load(r *http.Request) *session.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	sess, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			m.logger.WithError(err).Warn("session store lookup failed")
		}
		return nil
	}
	return sess
}

// TTL returns the server-side lifetime for a session: the long remember-me
// TTL when set, the default otherwise. The cookie lifetime is handled
// separately; without remember-me it stays a browser-session cookie.
func (m *SessionManager) TTL(sess *session.Session) time.Duration {
	if sess.Remember {
		return m.cfg.RememberTTL
	}
	return m.cfg.SessionTTL
}

// SetSessionCookie writes the session id cookie. With remember set the
// cookie carries the 30-day max age; otherwise it expires with the browser
// session.
func (m *SessionManager) SetSessionCookie(w http.ResponseWriter, id string, remember bool) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(m.cfg.RememberTTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

// Destroy removes the session server-side and expires its cookie
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, sess *session.Session) {
	if err := m.store.Destroy(ctx, sess.ID); err != nil {
		// Logout must succeed from the caller's perspective
		m.logger.WithError(err).Warn("failed to destroy session")
	}
	sess.ClearUser()
	// A destroyed session must not be re-persisted by the release hook
	sess.MarkClean()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromContext returns the request session, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(contextkeys.SessionKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// IdentityFromContext returns the resolved identity, or nil on
// unauthenticated requests.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}
