package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/session"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	return NewSessionManager(store, testAuthConfig(), testLogger()), store
}

func TestSessionManager_CreatesSessionAndCookie(t *testing.T) {
	mgr, _ := newTestSessionManager(t)

	var seen *session.Session
	handler := mgr.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotEmpty(t, seen.ID)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, seen.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Zero(t, cookie.MaxAge, "without remember-me the cookie is session-scoped")
}

func TestSessionManager_PersistsDirtySession(t *testing.T) {
	mgr, store := newTestSessionManager(t)

	handler := mgr.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		sess.SetUser(&auth.Identity{UserID: "user-1"})
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookie := rec.Result().Cookies()[0]
	loaded, err := store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, loaded.User)
	assert.Equal(t, "user-1", loaded.User.UserID)
}

func TestSessionManager_LoadsExistingSession(t *testing.T) {
	mgr, store := newTestSessionManager(t)

	existing, err := session.New()
	require.NoError(t, err)
	existing.SetUser(&auth.Identity{UserID: "user-1"})
	require.NoError(t, store.Save(context.Background(), existing, time.Hour))

	var seen *session.Session
	handler := mgr.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: existing.ID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, existing.ID, seen.ID)
	require.NotNil(t, seen.User)
	assert.Equal(t, "user-1", seen.User.UserID)

	// A clean loaded session gets no replacement cookie
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionManager_UnknownCookieGetsFreshSession(t *testing.T) {
	mgr, _ := newTestSessionManager(t)

	var seen *session.Session
	handler := mgr.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired-or-bogus"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotEqual(t, "expired-or-bogus", seen.ID)
}

func TestSessionManager_TTL(t *testing.T) {
	mgr, _ := newTestSessionManager(t)

	sess, err := session.New()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mgr.TTL(sess))

	sess.SetRemember(true)
	assert.Equal(t, 30*24*time.Hour, mgr.TTL(sess))
}

func TestSessionManager_RememberCookieMaxAge(t *testing.T) {
	mgr, _ := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	mgr.SetSessionCookie(rec, "some-id", true)

	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestSessionManager_Destroy(t *testing.T) {
	mgr, store := newTestSessionManager(t)

	sess, err := session.New()
	require.NoError(t, err)
	sess.SetUser(&auth.Identity{UserID: "user-1"})
	require.NoError(t, store.Save(context.Background(), sess, time.Hour))

	rec := httptest.NewRecorder()
	mgr.Destroy(context.Background(), rec, sess)

	assert.Nil(t, sess.User)
	_, err = store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, SessionCookieName, cookie.Name)
	assert.Less(t, cookie.MaxAge, 0)
}
