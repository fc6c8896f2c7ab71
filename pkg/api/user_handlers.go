package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// maxAvatarBytes bounds avatar uploads (2 MiB)
const maxAvatarBytes = 2 << 20

// UserHandlers handles account-level operations on the authenticated user
type UserHandlers struct {
	svc      *auth.Service
	avatars  storage.AvatarStore
	cfg      config.AuthConfig
	sessions *middleware.SessionManager
	logger   *observability.Logger
}

// NewUserHandlers creates the user handler set
func NewUserHandlers(svc *auth.Service, avatars storage.AvatarStore, cfg config.AuthConfig, sessions *middleware.SessionManager, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{svc: svc, avatars: avatars, cfg: cfg, sessions: sessions, logger: logger}
}

// RegisterRoutes registers user routes; the router must already run the
// auth middleware.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me/avatar", h.uploadAvatar).Methods("POST")
	router.HandleFunc("/users/me", h.deleteAccount).Methods("DELETE")
}

// uploadAvatar handles POST /users/me/avatar with a multipart "avatar" file
func (h *UserHandlers) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		httputil.WriteValidationError(w, "request is not a valid multipart form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteValidationError(w, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		httputil.WriteValidationError(w, "avatar exceeds the 2 MiB limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	switch contentType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		httputil.WriteValidationError(w, "avatar must be a PNG, JPEG, GIF or WebP image")
		return
	}

	avatarURL, err := h.avatars.Put(r.Context(), identity.UserID, file, contentType)
	if err != nil {
		h.logger.WithError(err).Error("avatar upload failed")
		httputil.WriteInternalError(w)
		return
	}

	profile, err := h.svc.SetAvatar(r.Context(), identity.UserID, avatarURL)
	if err != nil {
		h.logger.WithError(err).Error("avatar profile update failed")
		httputil.WriteInternalError(w)
		return
	}

	// Keep the session snapshot in step with the new avatar
	if sess := middleware.SessionFromContext(r.Context()); sess != nil && sess.User != nil {
		updated := *sess.User
		updated.AvatarURL = profile.AvatarURL
		sess.SetUser(&updated)
	}

	httputil.WriteSuccess(w, map[string]interface{}{"avatar_url": profile.AvatarURL})
}

// deleteAccount handles DELETE /users/me. The account, its profile, its
// tasks and the current session all go.
func (h *UserHandlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	if err := h.svc.DeleteAccount(r.Context(), identity.UserID); err != nil {
		h.logger.WithError(err).WithField("user_id", identity.UserID).Error("account deletion failed")
		httputil.WriteInternalError(w)
		return
	}

	if err := h.avatars.Delete(r.Context(), identity.UserID); err != nil {
		// The account is already gone; an orphaned object is not worth a 500
		h.logger.WithError(err).Warn("avatar cleanup failed during account deletion")
	}

	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		h.sessions.Destroy(r.Context(), w, sess)
	}
	middleware.ClearAuthCookies(w, h.cfg.SecureCookies)

	httputil.WriteNoContent(w)
}
