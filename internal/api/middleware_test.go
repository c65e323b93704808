package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courtcut/courtcut-agent/internal/logging"
)

type staticConfig map[string]string

func (c staticConfig) GetConfig(ctx context.Context, key string) (string, error) {
	return c[key], nil
}

type brokenConfig struct{}

func (brokenConfig) GetConfig(ctx context.Context, key string) (string, error) {
	return "", errors.New("database is locked")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(staticConfig{AuthTokenKey: "secret"}, logging.Discard())(okHandler())

	tests := []struct {
		name   string
		header string
		target string
		ws     bool
		want   int
	}{
		{"valid bearer", "Bearer secret", "/status", false, http.StatusOK},
		{"missing header", "", "/status", false, http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", "/status", false, http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "/status", false, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", "/status", false, http.StatusUnauthorized},
		{"query token on websocket", "", "/events?token=secret", true, http.StatusOK},
		{"query token without upgrade", "", "/status?token=secret", false, http.StatusUnauthorized},
		{"bad query token", "", "/events?token=nope", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.ws {
				req.Header.Set("Upgrade", "websocket")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestAuthMiddleware_ConfigError(t *testing.T) {
	handler := AuthMiddleware(brokenConfig{}, logging.Discard())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{
		"http://localhost:3000",
		"http://localhost",
		"http://127.0.0.1:8797",
		"https://127.0.0.1",
		"http://[::1]:5173",
	}
	for _, origin := range allowed {
		require.True(t, isAllowedOrigin(origin), origin)
	}

	denied := []string{
		"https://evil.com",
		"http://192.168.1.1:3000",
		"",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:3000/path",
		"http://localhost.evil.com",
		"http://user@localhost",
	}
	for _, origin := range denied {
		require.False(t, isAllowedOrigin(origin), origin)
	}
}

func TestCORSAllowlist_AllowedOrigin(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	rr.Header().Set("Vary", "Accept-Encoding")

	handler.ServeHTTP(rr, req)

	require.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	vary := strings.Join(rr.Header().Values("Vary"), ",")
	require.Contains(t, vary, "Accept-Encoding")
	require.Contains(t, vary, "Origin")
	require.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestCORSAllowlist_DeniedOrigin(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, "request still served, just no ACAO")
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowlist_Preflight(t *testing.T) {
	handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Fail(t, "handler should not be called for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/clips/1/file", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	allowHeaders := rr.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{"Range", "Authorization", CallerIDHeader} {
		require.Contains(t, allowHeaders, h)
	}

	req = httptest.NewRequest(http.MethodOptions, "/clips/1/file", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code, "denied preflight")
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:12345", true},
		{"[::1]:12345", true},
		{"::1", true},
		{"[::1]", true},
		{"127.0.0.1", true},
		{"8.8.8.8:12345", false},
		{"192.168.1.1:8080", false},
		{"not-an-ip:1234", false},
		{"", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, isLoopbackRemoteAddr(tc.addr), tc.addr)
	}
}

func TestLoopbackGuard(t *testing.T) {
	handler := LoopbackGuard()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "8.8.8.8:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "FORBIDDEN", body.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "[::1]:12345"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, "loopback")
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "boom", "panic value leaked into response")
}

func TestCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/projects/1/clips", nil)
	require.Equal(t, DefaultCaller, callerID(req))
	req.Header.Set(CallerIDHeader, "tray")
	require.Equal(t, "tray", callerID(req))
}
