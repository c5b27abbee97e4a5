// Package gateway builds AppState, the process-wide, mostly immutable state
// (config, upstream table, router, HTTP clients, allowed keys) built once at
// startup; internal/pipeline's Engine drives one request's candidate loop
// against it.
package gateway

import (
	"fmt"
	"time"

	"github.com/nexusgate/llm-gateway/internal/config"
	"github.com/nexusgate/llm-gateway/internal/httpclient"
	"github.com/nexusgate/llm-gateway/internal/jsonutil"
	"github.com/nexusgate/llm-gateway/internal/logging"
	"github.com/nexusgate/llm-gateway/internal/router"
	"github.com/nexusgate/llm-gateway/internal/telemetry"
)

// AppState is the process-wide state shared by every request task.
// Everything except the router's embedded
// Breaker and the httpclient rate limiters is immutable after NewAppState
// returns.
type AppState struct {
	Config    *config.Config
	Upstreams []router.Upstream
	Router    *router.Router
	Clients       []*httpclient.Client
	StreamClients []*httpclient.Client
	Allowed       jsonutil.AllowedKeySet
	Telemetry     telemetry.Settings
	Log           *logging.Logger
}

// NewAppState builds the immutable process-wide state from a loaded config:
// the static upstream table, the circuit breaker, a pooled+rate-limited
// HTTP client per upstream, and the allowed client-key set.
func NewAppState(cfg *config.Config, tele telemetry.Settings) (*AppState, error) {
	upstreams := router.BuildUpstreams(cfg.UpstreamServices)
	table := router.BuildTable(upstreams, cfg.Features.ModelAliases)
	breaker := router.NewBreaker(cfg.Features.BreakerFailureThreshold, cfg.Features.BreakerCoolDown)

	clients := make([]*httpclient.Client, len(upstreams))
	streamClients := make([]*httpclient.Client, len(upstreams))
	for i, u := range upstreams {
		timeout := time.Duration(u.TimeoutSeconds) * time.Second
		nonStreamProxy := u.ProxyNonStream
		if nonStreamProxy == nil {
			nonStreamProxy = u.Proxy
		}
		c, err := httpclient.New(httpclient.Config{
			BaseURL:        u.BaseURL,
			Timeout:        timeout,
			RateLimitRPS:   cfg.Features.UpstreamRateLimitRPS,
			RateLimitBurst: cfg.Features.UpstreamRateLimitBurst,
			Proxy:          nonStreamProxy,
		})
		if err != nil {
			return nil, fmt.Errorf("gateway: build client for upstream %q: %w", u.Name, err)
		}
		clients[i] = c

		// A distinct proxy_stream gets its own pooled client;
		// otherwise streaming dispatch reuses the same pooled client.
		streamProxy := u.ProxyStream
		if streamProxy == nil {
			streamProxy = u.Proxy
		}
		if streamProxy == nil || (nonStreamProxy != nil && *streamProxy == *nonStreamProxy) {
			streamClients[i] = c
			continue
		}
		sc, err := httpclient.New(httpclient.Config{
			BaseURL:        u.BaseURL,
			Timeout:        timeout,
			RateLimitRPS:   cfg.Features.UpstreamRateLimitRPS,
			RateLimitBurst: cfg.Features.UpstreamRateLimitBurst,
			Proxy:          streamProxy,
		})
		if err != nil {
			return nil, fmt.Errorf("gateway: build stream client for upstream %q: %w", u.Name, err)
		}
		streamClients[i] = sc
	}

	return &AppState{
		Config:        cfg,
		Upstreams:     upstreams,
		Router:        router.New(table, breaker),
		Clients:       clients,
		StreamClients: streamClients,
		Allowed:       jsonutil.NewAllowedKeySet(cfg.ClientAuthentication.AllowedKeys),
		Telemetry:     tele,
		Log:           logging.New("gateway", logging.ParseLevel(cfg.Features.LogLevel)),
	}, nil
}
