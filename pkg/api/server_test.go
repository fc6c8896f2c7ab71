package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/session"
	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

type testServer struct {
	handler http.Handler
	avatars *storage.MemoryAvatarStore
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			MaxBodyBytes:   4 << 20,
			AllowedOrigins: []string{"*"},
		},
		Auth: config.AuthConfig{
			SessionTTL:          time.Hour,
			RememberTTL:         30 * 24 * time.Hour,
			AccessTokenTTL:      time.Hour,
			PreferenceCookieTTL: 30 * 24 * time.Hour,
			LoginPath:           "/login",
			LoginRateLimit:      100,
			LoginRateWindow:     time.Minute,
		},
		Log: config.LogConfig{Level: "error"},
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(nil)

	taskService := tasks.NewService(tasks.NewMemoryRepository(), metrics)
	authService := auth.NewService(
		auth.NewMemoryCredentialStore(cfg.Auth.AccessTokenTTL, false),
		auth.NewMemoryProfileStore(),
		taskService,
		logger,
		metrics,
	)

	sessions := middleware.NewSessionManager(session.NewMemoryStore(), cfg.Auth, logger)
	avatars := storage.NewMemoryAvatarStore()

	srv := NewServer(Deps{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Health:      observability.NewHealthChecker(nil, nil),
		Sessions:    sessions,
		AuthMW:      middleware.NewAuthMiddleware(authService, cfg.Auth, logger, metrics),
		AuthService: authService,
		TaskService: taskService,
		Avatars:     avatars,
	})

	return &testServer{handler: srv.Handler(), avatars: avatars}
}

// do sends a request, forwarding and capturing cookies like a browser would
func (ts *testServer) do(t *testing.T, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	ts.storeCookies(rec.Result().Cookies())
	return rec
}

func (ts *testServer) storeCookies(cookies []*http.Cookie) {
	for _, c := range cookies {
		replaced := false
		for i, existing := range ts.cookies {
			if existing.Name == c.Name {
				ts.cookies[i] = c
				replaced = true
			}
		}
		if !replaced {
			ts.cookies = append(ts.cookies, c)
		}
	}
	// Drop expired cookies like a browser
	kept := ts.cookies[:0]
	for _, c := range ts.cookies {
		if c.MaxAge >= 0 && c.Value != "" {
			kept = append(kept, c)
		}
	}
	ts.cookies = kept
}

func (ts *testServer) cookie(name string) *http.Cookie {
	for _, c := range ts.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// registerAndLogin creates an account and returns the bearer token
func (ts *testServer) registerAndLogin(t *testing.T, email string) string {
	t.Helper()

	rec := ts.do(t, "POST", "/auth/register", map[string]interface{}{
		"email":    email,
		"password": "password1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, "POST", "/auth/login", map[string]interface{}{
		"email":    email,
		"password": "password1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, ok := decodeBody(t, rec)["token"].(string)
	require.True(t, ok)
	return token
}

func newRawRequest(t *testing.T, method, path, body string, header http.Header) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, httptest.NewRecorder()
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
