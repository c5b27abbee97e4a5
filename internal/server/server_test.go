package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgate/llm-gateway/internal/config"
	"github.com/nexusgate/llm-gateway/internal/gateway"
	"github.com/nexusgate/llm-gateway/internal/httpclient"
	"github.com/nexusgate/llm-gateway/internal/ir"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
	"github.com/nexusgate/llm-gateway/internal/logging"
	"github.com/nexusgate/llm-gateway/internal/pipeline"
	"github.com/nexusgate/llm-gateway/internal/router"
	"github.com/nexusgate/llm-gateway/internal/telemetry"
)

// TestChatCompletionsEndToEnd drives a real HTTP request through the gin
// router into the engine and out to a fake OpenAI-compatible upstream,
// exercising the full ingress-decode -> route -> dispatch -> ingress-encode
// path for POST {base_path}/v1/chat/completions.
func TestChatCompletionsEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"choices": [{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],
			"usage": {"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}
		}`))
	}))
	defer upstream.Close()

	cli, err := httpclient.New(httpclient.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	upstreams := []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"gpt-4o"}, FCMode: config.FCModeNative}}
	table := router.BuildTable(upstreams, nil)
	state := &gateway.AppState{
		Config:        &config.Config{ClientAuthentication: config.ClientAuthentication{AllowedKeys: []string{"secret"}}},
		Upstreams:     upstreams,
		Router:        router.New(table, router.NewBreaker(5, 30*time.Second)),
		Clients:       []*httpclient.Client{cli},
		StreamClients: []*httpclient.Client{cli},
		Allowed:       jsonutil.NewAllowedKeySet([]string{"secret"}),
		Telemetry:     telemetry.DefaultSettings(),
		Log:           logging.New("test", logging.LevelError),
	}

	eng := pipeline.New(state)
	r := New(eng, "", logging.New("test", logging.LevelError))

	body, _ := json.Marshal(map[string]any{
		"model":    "gpt-4o",
		"messages": []map[string]any{{"role": "user", "content": "hello"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi there")
}

func TestChatCompletionsRejectsUnauthenticated(t *testing.T) {
	upstreams := []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"gpt-4o"}}}
	table := router.BuildTable(upstreams, nil)
	state := &gateway.AppState{
		Config:    &config.Config{ClientAuthentication: config.ClientAuthentication{AllowedKeys: []string{"secret"}}},
		Upstreams: upstreams,
		Router:    router.New(table, router.NewBreaker(5, 30*time.Second)),
		Allowed:   jsonutil.NewAllowedKeySet([]string{"secret"}),
		Telemetry: telemetry.DefaultSettings(),
		Log:       logging.New("test", logging.LevelError),
	}

	eng := pipeline.New(state)
	r := New(eng, "", logging.New("test", logging.LevelError))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte(`{"model":"gpt-4o","messages":[]}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminHealthz(t *testing.T) {
	state := &gateway.AppState{
		Upstreams: []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"gpt-4o"}}},
	}
	mux := NewAdminMux(state)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
