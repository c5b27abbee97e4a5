// Package httpclient is the shared, pooled HTTP client used for every
// upstream dispatch. It wraps a buffered and a streaming *http.Client per upstream with a
// per-upstream rate limiter, shared read-only by reference across request tasks.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a single upstream's Client.
type Config struct {
	BaseURL string
	Headers map[string]string
	Timeout time.Duration

	// RateLimitRPS and RateLimitBurst configure the outbound token bucket.
	// Zero RateLimitRPS disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Proxy, when non-nil, routes this client's requests through the given
	// proxy URL.
	Proxy *string

	HTTPClient *http.Client
}

var defaultTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 16,
	IdleConnTimeout:     90 * time.Second,
}

// Client is a pooled, rate-limited HTTP client bound to one upstream. It
// holds two *http.Clients: one with an overall deadline for buffered calls,
// and one with only a response-header deadline for SSE, since an overall
// Timeout would sever any stream that outlives it. The streaming client runs
// on a clone of the buffered client's transport, so the two do not share a
// connection pool.
type Client struct {
	client  *http.Client
	stream  *http.Client
	baseURL string
	headers map[string]string
	limiter *rate.Limiter
}

// New builds a Client from Config. The underlying *http.Client is created
// once and reused for the lifetime of the process; AppState holds one Client
// per prepared upstream.
func New(cfg Config) (*Client, error) {
	client := cfg.HTTPClient
	stream := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		transport := defaultTransport
		if cfg.Proxy != nil && *cfg.Proxy != "" {
			t, err := proxyTransport(*cfg.Proxy)
			if err != nil {
				return nil, fmt.Errorf("httpclient: %w", err)
			}
			transport = t
		}
		client = &http.Client{Timeout: timeout, Transport: transport}

		streamTransport := transport.Clone()
		streamTransport.ResponseHeaderTimeout = timeout
		stream = &http.Client{Transport: streamTransport}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		client:  client,
		stream:  stream,
		baseURL: cfg.BaseURL,
		headers: cfg.Headers,
		limiter: limiter,
	}, nil
}

// Request is a single outbound HTTP call.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Response is the outcome of a non-streaming Do.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}

// Do performs a non-streaming request and buffers the full response body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// DoStream performs a request and returns the live *http.Response for the
// caller to stream from. The caller owns closing the body.
func (c *Client) DoStream(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	return c.stream.Do(httpReq)
}
