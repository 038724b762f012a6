package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Davincible/responses-go/internal/client"
	"github.com/Davincible/responses-go/internal/config"
	"github.com/Davincible/responses-go/internal/providers"
)

const completedBody = `{"id":"resp_9","model":"grok-4","status":"completed",` +
	`"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"pong"}]}],` +
	`"usage":{"input_tokens":10,"output_tokens":2}}`

func newTestServer(t *testing.T, relayKey string, upstream http.HandlerFunc) (*Server, *config.Manager) {
	t.Helper()

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	mgr := config.NewManager(t.TempDir())
	require.NoError(t, mgr.Save(&config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test", BaseURL: up.URL + "/v1"},
			"xai":    {APIKey: "xai-test", BaseURL: up.URL + "/xai"},
		},
		Relay: config.RelayConfig{Host: "127.0.0.1", Port: 0, APIKey: relayKey},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := mgr.Get()
	registry := providers.NewRegistry(cfg, logger)
	registry.Initialize()

	c := client.New(registry, logger, client.WithRetries(0, time.Millisecond))
	return New(mgr, c, logger), mgr
}

func TestRelayIntegration(t *testing.T) {
	var upstreamPath, upstreamAuth string

	s, _ := newTestServer(t, "relay-key", func(w http.ResponseWriter, r *http.Request) {
		upstreamPath = r.URL.Path
		upstreamAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completedBody)
	})

	relay := httptest.NewServer(s.Handler())
	defer relay.Close()

	req, err := http.NewRequest(http.MethodPost, relay.URL+"/v1/responses",
		strings.NewReader(`{"model":"xai:grok-4","input":"ping"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer relay-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.Equal(t, "/xai/responses", upstreamPath)
	assert.Equal(t, "Bearer xai-test", upstreamAuth, "the relay key is never forwarded")
	assert.Equal(t, "pong", gjson.GetBytes(body, "text").String())
	assert.Equal(t, "resp_9", gjson.GetBytes(body, "body.id").String())
}

func TestRelayRoutesAndAuth(t *testing.T) {
	s, _ := newTestServer(t, "relay-key", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call to %s", r.URL.Path)
	})

	h := s.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
	}{
		{"health without key", http.MethodGet, "/health", nil, http.StatusOK},
		{"models without key", http.MethodGet, "/v1/models", nil, http.StatusUnauthorized},
		{"models with bearer", http.MethodGet, "/v1/models", map[string]string{"Authorization": "Bearer relay-key"}, http.StatusOK},
		{"models with x-api-key", http.MethodGet, "/v1/models", map[string]string{"X-API-Key": "relay-key"}, http.StatusOK},
		{"responses with wrong key", http.MethodPost, "/v1/responses", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"preflight skips auth", http.MethodOptions, "/v1/responses", map[string]string{"Access-Control-Request-Method": "POST"}, http.StatusNoContent},
		{"unknown route", http.MethodGet, "/v1/chat/completions", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestRelayStreamsThroughMiddleware(t *testing.T) {
	release := make(chan struct{})

	s, _ := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"po\"}\n\n")
		w.(http.Flusher).Flush()

		<-release
		io.WriteString(w, "event: response.completed\ndata: {\"type\":\"response.completed\",\"response\":"+completedBody+"}\n\n")
	})

	relay := httptest.NewServer(s.Handler())
	defer relay.Close()
	defer close(release)

	resp, err := http.Post(relay.URL+"/v1/responses", "application/json",
		strings.NewReader(`{"model":"grok-4","input":"ping","stream":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the first event arrives before the upstream finishes
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: response.output_text.delta\n", line)
}

func TestServerRun(t *testing.T) {
	s, mgr := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {})

	// pick a free port for the relay
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := mgr.Get()
	cfg.Relay.Port = port
	require.NoError(t, mgr.Save(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
