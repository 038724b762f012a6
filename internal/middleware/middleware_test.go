package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/responses-go/internal/config"
)

func newTestSet(t *testing.T, relayKey string) (MiddlewareSet, *bytes.Buffer) {
	t.Helper()

	mgr := config.NewManager(t.TempDir())
	require.NoError(t, mgr.Save(&config.Config{Relay: config.RelayConfig{APIKey: relayKey}}))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return NewMiddlewareSet(mgr, logger), &logs
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "ok")
})

func TestAuthMiddleware(t *testing.T) {
	set, logs := newTestSet(t, "secret-key")
	h := set.DefaultChain().Handler(okHandler)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		status int
	}{
		{"bearer", "/v1/responses", map[string]string{"Authorization": "Bearer secret-key"}, http.StatusOK},
		{"x-api-key", "/v1/responses", map[string]string{"X-API-Key": "secret-key"}, http.StatusOK},
		{"missing", "/v1/responses", nil, http.StatusUnauthorized},
		{"wrong", "/v1/responses", map[string]string{"Authorization": "Bearer secret-kez"}, http.StatusUnauthorized},
		{"not bearer", "/v1/responses", map[string]string{"Authorization": "secret-key"}, http.StatusUnauthorized},
		{"health", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), "Relay API key not authorized")
			}
		})
	}

	assert.Contains(t, logs.String(), "Authentication failed")
	assert.NotContains(t, logs.String(), "secret-kez", "tokens are never logged")
}

func TestAuthMiddleware_NoKeyConfigured(t *testing.T) {
	set, _ := newTestSet(t, "")
	h := set.DefaultChain().Handler(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/responses", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSMiddleware(t *testing.T) {
	set, _ := newTestSet(t, "secret-key")
	h := set.DefaultChain().Handler(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/v1/responses", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	// a plain OPTIONS request is not a preflight and still needs a key
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/responses", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware(t *testing.T) {
	set, logs := newTestSet(t, "")

	h := set.HealthChain().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")

		// streaming handlers need the wrapper to stay flushable
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		flusher.Flush()
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.True(t, rr.Flushed)
	assert.Contains(t, logs.String(), "HTTP Request")
	assert.Contains(t, logs.String(), "status=418")
	assert.Contains(t, logs.String(), "length=15")
}
