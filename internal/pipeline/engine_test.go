package pipeline

import (
	"context"
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
	"github.com/nexusgate/llm-gateway/internal/router"
	"github.com/nexusgate/llm-gateway/internal/telemetry"
)

// testSink is a recording pipeline.StreamSink for assertions.
type testSink struct {
	status int
	events []struct{ event, data string }
}

func (s *testSink) Start(status int) { s.status = status }
func (s *testSink) WriteEvent(eventType string, data []byte) {
	s.events = append(s.events, struct{ event, data string }{eventType, string(data)})
}
func (s *testSink) Flush() {}

// newTestState builds an AppState with one or two upstreams pointed at
// httptest servers, bypassing config.Load/NewAppState's own client
// construction so tests can swap in httptest base URLs directly.
func newTestState(t *testing.T, upstreams []router.Upstream, servers []*httptest.Server, allowed []string) *gateway.AppState {
	t.Helper()
	clients := make([]*httpclient.Client, len(upstreams))
	for i, u := range upstreams {
		u.BaseURL = servers[i].URL
		upstreams[i] = u
		c, err := httpclient.New(httpclient.Config{BaseURL: servers[i].URL, Timeout: 5 * time.Second})
		require.NoError(t, err)
		clients[i] = c
	}
	table := router.BuildTable(upstreams, nil)
	breaker := router.NewBreaker(2, 20*time.Millisecond)
	return &gateway.AppState{
		Config: &config.Config{
			ClientAuthentication: config.ClientAuthentication{AllowedKeys: allowed},
			Features:             config.Features{EnableFCErrorRetry: true},
		},
		Upstreams:     upstreams,
		Router:        router.New(table, breaker),
		Clients:       clients,
		StreamClients: clients,
		Allowed:       jsonutil.NewAllowedKeySet(allowed),
		Telemetry:     telemetry.DefaultSettings(),
		Log:           logging.New("test", logging.LevelError),
	}
}

func chatRequestBody(model string) []byte {
	b, _ := json.Marshal(map[string]any{
		"model":    model,
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	})
	return b
}

func chatCompletionReply(text string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"model":   "gpt-4o",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": text}, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
	return b
}

func TestEngineServeNonStreamSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionReply("hello back"))
	}))
	defer srv.Close()

	state := newTestState(t, []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"gpt-4o"}, FCMode: config.FCModeNative}}, []*httptest.Server{srv}, []string{"secret"})
	eng := New(state)

	header := http.Header{"Authorization": []string{"Bearer secret"}}
	result := eng.Serve(context.Background(), Request{
		Ingress: ir.IngressOpenAIChat,
		Header:  header,
		Body:    chatRequestBody("gpt-4o"),
	}, nil)

	require.False(t, result.Streamed)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Contains(t, string(result.Body), "hello back")
}

func TestEngineServeAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called when auth fails")
	}))
	defer srv.Close()

	state := newTestState(t, []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"gpt-4o"}}}, []*httptest.Server{srv}, []string{"secret"})
	eng := New(state)

	result := eng.Serve(context.Background(), Request{
		Ingress: ir.IngressOpenAIChat,
		Header:  http.Header{"Authorization": []string{"Bearer wrong"}},
		Body:    chatRequestBody("gpt-4o"),
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, result.Status)
}

func TestEngineServeUnknownModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called for an unroutable model")
	}))
	defer srv.Close()

	state := newTestState(t, []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"gpt-4o"}}}, []*httptest.Server{srv}, []string{"secret"})
	eng := New(state)

	result := eng.Serve(context.Background(), Request{
		Ingress: ir.IngressOpenAIChat,
		Header:  http.Header{"Authorization": []string{"Bearer secret"}},
		Body:    chatRequestBody("does-not-exist"),
	}, nil)

	assert.Equal(t, http.StatusBadRequest, result.Status)
}

// TestEngineServeFailsOverOn5xx exercises failover: the first
// candidate (index 0) always 503s, the second (index 1) succeeds, and a
// Portable-class request should land on the healthy second candidate
// without the caller ever seeing the first upstream's failure.
func TestEngineServeFailsOverOn5xx(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionReply("from the healthy upstream"))
	}))
	defer healthy.Close()

	upstreams := []router.Upstream{
		{Index: 0, Name: "bad", Provider: ir.ProviderOpenAI, Models: []string{"m"}, FCMode: config.FCModeNative},
		{Index: 1, Name: "good", Provider: ir.ProviderOpenAI, Models: []string{"m"}, FCMode: config.FCModeNative},
	}
	state := newTestState(t, upstreams, []*httptest.Server{failing, healthy}, []string{"secret"})
	eng := New(state)

	// Whichever candidate order the sticky hash picks, a single Serve call
	// must advance past the 503 candidate within the same request and
	// return the healthy upstream's reply rather than surfacing the 503.
	result := eng.Serve(context.Background(), Request{
		Ingress:      ir.IngressOpenAIChat,
		Header:       http.Header{"Authorization": []string{"Bearer secret"}},
		Body:         chatRequestBody("m"),
		SessionClass: router.Portable,
	}, nil)

	require.False(t, result.Streamed)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Contains(t, string(result.Body), "from the healthy upstream")
}

func TestEngineServeNon2xxIsNonRetryableOn400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	// enable_fc_error_retry is on but this upstream has no tools request, so
	// the auto-inject retry path never triggers and the 400 must surface
	// directly without trying a second candidate (there's only one anyway).
	state := newTestState(t, []router.Upstream{{Index: 0, Name: "a", Provider: ir.ProviderOpenAI, Models: []string{"m"}, FCMode: config.FCModeNative}}, []*httptest.Server{srv}, []string{"secret"})
	eng := New(state)

	result := eng.Serve(context.Background(), Request{
		Ingress: ir.IngressOpenAIChat,
		Header:  http.Header{"Authorization": []string{"Bearer secret"}},
		Body:    chatRequestBody("m"),
	}, nil)

	assert.Equal(t, http.StatusBadRequest, result.Status, "a non-retryable 4xx upstream error surfaces with its own status, not mapped to a generic 502")
}
