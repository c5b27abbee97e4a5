package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// proxyTransport builds an http.Transport that routes all requests through
// the given proxy URL.
func proxyTransport(proxyURL string) (*http.Transport, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
	}

	return &http.Transport{
		Proxy:               http.ProxyURL(u),
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}, nil
}
