package api

import (
	"errors"
	"fmt"
	"html"
	"mime"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// AuthHandlers handles registration, login, logout and account state
type AuthHandlers struct {
	svc      *auth.Service
	sessions *middleware.SessionManager
	cfg      config.AuthConfig
	logger   *observability.Logger
}

// NewAuthHandlers creates the auth handler set
func NewAuthHandlers(svc *auth.Service, sessions *middleware.SessionManager, cfg config.AuthConfig, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{svc: svc, sessions: sessions, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the public auth routes. Login and registration
// go through the shared per-IP rate limit when one is configured.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, limiter *middleware.DistributedRateLimiter) {
	limited := func(fn http.HandlerFunc) http.Handler {
		if limiter == nil {
			return fn
		}
		return limiter.Handler(fn)
	}

	router.Handle("/auth/register", limited(h.register)).Methods("POST")
	router.Handle("/auth/login", limited(h.login)).Methods("POST")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/auth/current-user", h.currentUser).Methods("GET")
	router.HandleFunc("/auth/preferences", h.savePreferences).Methods("PUT")
	router.HandleFunc(h.cfg.LoginPath, h.loginPage).Methods("GET")
}

// register handles POST /auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string  `json:"email"`
		Password        string  `json:"password"`
		ConfirmPassword *string `json:"confirm_password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.svc.Register(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"user_id":               result.UserID,
		"confirmation_required": result.ConfirmationRequired,
	})
}

// login handles POST /auth/login. Both JSON bodies and the login page's
// form encoding are accepted.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			httputil.WriteValidationError(w, "invalid form body")
			return
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
		req.RememberMe = r.PostForm.Get("remember_me") != ""
	} else if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	// Cache the identity into the session and stretch both the cookie and
	// the server-side TTL when remember-me is set.
	sess := middleware.SessionFromContext(r.Context())
	if sess != nil {
		sess.SetUser(result.Identity)
		sess.SetRemember(result.Remember)
		h.sessions.SetSessionCookie(w, sess.ID, result.Remember)
	}

	h.setTokenCookie(w, result.AccessToken)
	h.setPrefsCookie(w, result.Identity.Theme, result.Identity.Language)

	httputil.WriteSuccess(w, map[string]interface{}{
		"token": result.AccessToken,
		"user":  result.Identity,
	})
}

// logout handles POST /auth/logout. It succeeds regardless of whether a
// valid session or token was presented.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := middleware.ExtractToken(r); token != "" {
		h.svc.Logout(r.Context(), token)
	}

	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		h.sessions.Destroy(r.Context(), w, sess)
	}
	middleware.ClearAuthCookies(w, h.cfg.SecureCookies)

	httputil.WriteNoContent(w)
}

// currentUser handles GET /auth/current-user
func (h *AuthHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	var snapshot *auth.Identity
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		snapshot = sess.User
	}
	token, _ := middleware.ExtractToken(r)

	identity, err := h.svc.CurrentUser(r.Context(), snapshot, token)
	if err != nil {
		httputil.WriteUnauthorized(w, "not logged in")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"user": identity})
}

// savePreferences handles PUT /auth/preferences
func (h *AuthHandlers) savePreferences(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil || sess.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req struct {
		Theme    *string `json:"theme"`
		Language *string `json:"language"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	profile, err := h.svc.SavePreferences(r.Context(), sess.User.UserID, req.Theme, req.Language)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	// Refresh the cached snapshot and the mirrored cookie
	updated := *sess.User
	updated.Theme = profile.Theme
	updated.Language = profile.Language
	sess.SetUser(&updated)
	h.setPrefsCookie(w, profile.Theme, profile.Language)

	httputil.WriteSuccess(w, map[string]interface{}{
		"theme":    profile.Theme,
		"language": profile.Language,
	})
}

// loginPage handles GET on the login path for browser clients. Flash
// messages queued by the auth middleware are drained here.
func (h *AuthHandlers) loginPage(w http.ResponseWriter, r *http.Request) {
	var flashes []string
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		flashes = sess.PopFlash()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!DOCTYPE html><html><head><title>Sign in</title></head><body>")
	for _, msg := range flashes {
		fmt.Fprintf(w, "<p class=\"flash\">%s</p>", html.EscapeString(msg))
	}
	fmt.Fprint(w, `<form method="post" action="/auth/login">`+
		`<input type="email" name="email" placeholder="Email" required>`+
		`<input type="password" name="password" placeholder="Password" required>`+
		`<label><input type="checkbox" name="remember_me"> Remember me</label>`+
		`<button type="submit">Sign in</button>`+
		`</form></body></html>`)
}

func (h *AuthHandlers) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.AccessTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// setPrefsCookie mirrors display preferences into a client-readable cookie
// so the UI can render the right theme before any API call.
func (h *AuthHandlers) setPrefsCookie(w http.ResponseWriter, theme, language string) {
	values := url.Values{}
	values.Set("theme", theme)
	values.Set("language", language)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.PrefsCookieName,
		Value:    values.Encode(),
		Path:     "/",
		MaxAge:   int(h.cfg.PreferenceCookieTTL.Seconds()),
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError maps auth service errors onto HTTP statuses
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidationError(w, verr.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		httputil.WriteConflict(w, "an account with this email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		// Wrong email and wrong password are indistinguishable on purpose
		httputil.WriteUnauthorized(w, "invalid email or password")
	case errors.Is(err, auth.ErrEmailNotConfirmed):
		httputil.WriteUnauthorized(w, "email address is not confirmed")
	case errors.Is(err, auth.ErrUnauthenticated):
		httputil.WriteUnauthorized(w, "authentication required")
	default:
		h.logger.WithError(err).Error("auth operation failed")
		httputil.WriteInternalError(w)
	}
}
