// Package router builds the candidate table from configured upstreams,
// tracks a per-(upstream,model) circuit breaker, and resolves an ordered
// candidate list for a given request.
package router

import (
	"github.com/nexusgate/llm-gateway/internal/config"
	"github.com/nexusgate/llm-gateway/internal/ir"
)

// Upstream is the static, process-lifetime view of one configured upstream.
// It never changes after AppState is built.
type Upstream struct {
	Index     int
	Name      string
	Provider  ir.ProviderKind
	BaseURL   string
	APIKey    string
	APIVersion string
	Models    []string
	IsDefault bool
	FCMode    config.FCMode
	Proxy, ProxyStream, ProxyNonStream *string
	TimeoutSeconds int
}

// RouteTarget is a candidate returned by the router: a reference to a
// configured upstream plus the model name to actually send. It borrows
// strings from the static Upstream table and from config-level aliasing;
// Go's garbage collector makes arena-style ownership concerns moot here, but the shape still only ever holds an index plus small
// strings rather than copying the whole Upstream.
type RouteTarget struct {
	UpstreamIndex int
	ActualModel   string
	KnownModelID  string
}

func providerKindOf(s string) ir.ProviderKind {
	switch s {
	case "openai":
		return ir.ProviderOpenAI
	case "anthropic":
		return ir.ProviderAnthropic
	case "gemini":
		return ir.ProviderGemini
	case "gemini_openai":
		return ir.ProviderGeminiOpenAI
	case "openai_responses":
		return ir.ProviderOpenAIResponses
	default:
		return ir.ProviderOpenAI
	}
}

// BuildUpstreams converts config.UpstreamService entries into the static
// Upstream table, assigning each its process-lifetime index.
func BuildUpstreams(services []config.UpstreamService) []Upstream {
	out := make([]Upstream, len(services))
	for i, s := range services {
		out[i] = Upstream{
			Index:          i,
			Name:           s.Name,
			Provider:       providerKindOf(s.Provider),
			BaseURL:        s.BaseURL,
			APIKey:         s.APIKey,
			APIVersion:     s.APIVersion,
			Models:         s.Models,
			IsDefault:      s.IsDefault,
			FCMode:         s.FCMode,
			Proxy:          s.Proxy,
			ProxyStream:    s.ProxyStream,
			ProxyNonStream: s.ProxyNonStream,
			TimeoutSeconds: s.TimeoutSeconds,
		}
	}
	return out
}
