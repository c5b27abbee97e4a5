// Package config loads and validates the gateway's YAML configuration.
// Loading itself is a thin collaborator; the interesting behavior lives in
// the types this package produces, which the router and pipeline consume.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document.
type Config struct {
	Server               ServerConfig         `yaml:"server"`
	UpstreamServices     []UpstreamService     `yaml:"upstream_services"`
	ClientAuthentication ClientAuthentication  `yaml:"client_authentication"`
	Features             Features              `yaml:"features"`
}

// ServerConfig configures the HTTP listener (a thin collaborator;
// the fields exist so cmd/gateway has something concrete to bind to).
type ServerConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	BasePath                  string `yaml:"base_path"`
	RuntimeWorkerThreads      int    `yaml:"runtime_worker_threads"`
	RuntimeMaxBlockingThreads int    `yaml:"runtime_max_blocking_threads"`
	TCPReusePortListenerCount int    `yaml:"tcp_reuse_port_listener_count"`
}

// FCMode names whether an upstream supports native tool calling or needs the
// synthetic prompt-injection layer.
type FCMode string

const (
	FCModeNative FCMode = "native"
	FCModePrompt FCMode = "prompt"
)

// UpstreamService is one configured upstream.
type UpstreamService struct {
	Name      string   `yaml:"name"`
	Provider  string   `yaml:"provider"` // openai | anthropic | gemini | gemini_openai | openai_responses
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	Models    []string `yaml:"models"`
	IsDefault bool     `yaml:"is_default"`
	FCMode    FCMode   `yaml:"fc_mode"`

	APIVersion   string  `yaml:"api_version"`
	Proxy        *string `yaml:"proxy"`
	ProxyStream  *string `yaml:"proxy_stream"`
	ProxyNonStream *string `yaml:"proxy_non_stream"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ClientAuthentication is the allowed client key set.
type ClientAuthentication struct {
	AllowedKeys []string `yaml:"allowed_keys"`
}

// Features holds cross-cutting toggles, including the ambient-stack knobs
// beyond log_level/enable_fc_error_retry.
type Features struct {
	LogLevel             string  `yaml:"log_level"`
	EnableFCErrorRetry   bool    `yaml:"enable_fc_error_retry"`
	OTLPEndpoint         string  `yaml:"otlp_endpoint"`
	UpstreamRateLimitRPS float64 `yaml:"upstream_rate_limit_rps"`
	UpstreamRateLimitBurst int   `yaml:"upstream_rate_limit_burst"`

	BreakerFailureThreshold int           `yaml:"breaker_failure_threshold"`
	BreakerCoolDownRaw      string        `yaml:"breaker_cool_down"`
	BreakerCoolDown         time.Duration `yaml:"-"`

	// ModelAliases maps a client-requested model name to a per-upstream
	// actual model name, e.g. {"smart": {"openai-primary": "gpt-4o",
	// "anthropic-primary": "claude-3-5-sonnet"}}.
	ModelAliases map[string]map[string]string `yaml:"model_aliases"`
}

// Load reads and parses the YAML file at path, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Features.BreakerFailureThreshold == 0 {
		c.Features.BreakerFailureThreshold = 5
	}
	if c.Features.BreakerCoolDownRaw == "" {
		c.Features.BreakerCoolDown = 30 * time.Second
	} else {
		d, err := time.ParseDuration(c.Features.BreakerCoolDownRaw)
		if err != nil {
			return fmt.Errorf("features.breaker_cool_down: %w", err)
		}
		c.Features.BreakerCoolDown = d
	}
	for i := range c.UpstreamServices {
		if c.UpstreamServices[i].FCMode == "" {
			c.UpstreamServices[i].FCMode = FCModeNative
		}
	}
	return nil
}

// Validate enforces the structural invariants the router and pipeline
// depend on. It never fails on a merely-suspicious value (e.g. an empty
// allowed-key list just means every request will 401); it fails only when
// the config cannot produce a working AppState at all.
func (c *Config) Validate() error {
	if len(c.UpstreamServices) == 0 {
		return fmt.Errorf("at least one upstream_services entry is required")
	}
	for i, u := range c.UpstreamServices {
		if u.Name == "" {
			return fmt.Errorf("upstream_services[%d]: name is required", i)
		}
		if len(u.Models) == 0 {
			return fmt.Errorf("upstream_services[%d] (%s): at least one model is required", i, u.Name)
		}
		switch u.Provider {
		case "openai", "anthropic", "gemini", "gemini_openai", "openai_responses":
		default:
			return fmt.Errorf("upstream_services[%d] (%s): unknown provider %q", i, u.Name, u.Provider)
		}
	}
	// No upstream marked is_default is fine: the router does not read
	// is_default, and a model that no upstream lists gets no candidates.
	return nil
}
