package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/contextkeys"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// AuthMiddleware gates protected requests. Identity resolution order,
// first match wins:
//
//  1. cached user snapshot in the session
//  2. bearer token from the Authorization header
//  3. access_token query parameter
//  4. auth cookie
//
// A token-resolved identity is written back into the session so the next
// request short-circuits at step 1.
type AuthMiddleware struct {
	svc     *auth.Service
	cfg     config.AuthConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthMiddleware creates an authorization middleware
func NewAuthMiddleware(svc *auth.Service, cfg config.AuthConfig, logger *observability.Logger, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{svc: svc, cfg: cfg, logger: logger, metrics: metrics}
}

// Handler wraps an HTTP handler with identity resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		// Step 1: cached snapshot, no external call
		if sess != nil && sess.User != nil {
			ctx := contextkeys.WithIdentity(r.Context(), sess.User)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Steps 2-3: token extraction and verification
		token, fromCookie := ExtractToken(r)
		if token == "" {
			m.reject(w, r)
			return
		}

		identity, err := m.svc.ResolveToken(r.Context(), token)
		if err != nil {
			// An invalid auth cookie would fail every request; drop it
			if fromCookie {
				clearCookie(w, TokenCookieName, m.cfg.SecureCookies)
			}
			m.reject(w, r)
			return
		}

		// Write-back: cache the snapshot so step 1 short-circuits next time
		if sess != nil {
			sess.SetUser(identity)
			if m.metrics != nil {
				m.metrics.SessionWritebacks.Inc()
			}
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reject handles the unauthenticated case: HTML clients get a flash and a
// redirect to the login page, API clients a 401 with a structured body.
func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request) {
	if httputil.AcceptsHTML(r) {
		if sess := SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash("Please log in to continue")
		}
		http.Redirect(w, r, m.cfg.LoginPath, http.StatusSeeOther)
		return
	}
	httputil.WriteUnauthorized(w, "authentication required")
}

// ExtractToken pulls the access token from the request, checking the
// Authorization header, then the access_token query parameter, then the
// auth cookie. The second return reports whether the cookie was the
// source.
func ExtractToken(r *http.Request) (token string, fromCookie bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], false
		}
	}

	if t := r.URL.Query().Get("access_token"); t != "" {
		return t, false
	}

	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}

func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies expires every authentication-related cookie; used by
// logout.
func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	clearCookie(w, TokenCookieName, secure)
	clearCookie(w, PrefsCookieName, secure)
}
