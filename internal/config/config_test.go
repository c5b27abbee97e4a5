package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))
	return path
}

func TestLoadParsesBreakerCoolDownAsDuration(t *testing.T) {
	path := writeTempConfig(t, `
upstream_services:
  - name: primary
    provider: openai
    base_url: https://api.openai.com/v1
    api_key: k
    models: [gpt-4o]
features:
  breaker_cool_down: 45s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Features.BreakerCoolDown)
}

func TestLoadDefaultsBreakerCoolDownWhenUnset(t *testing.T) {
	path := writeTempConfig(t, `
upstream_services:
  - name: primary
    provider: openai
    base_url: https://api.openai.com/v1
    api_key: k
    models: [gpt-4o]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Features.BreakerCoolDown)
	assert.Equal(t, 5, cfg.Features.BreakerFailureThreshold)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, FCModeNative, cfg.UpstreamServices[0].FCMode)
}

func TestLoadRejectsUnparsableBreakerCoolDown(t *testing.T) {
	path := writeTempConfig(t, `
upstream_services:
  - name: primary
    provider: openai
    base_url: https://api.openai.com/v1
    api_key: k
    models: [gpt-4o]
features:
  breaker_cool_down: not-a-duration
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "breaker_cool_down")
}

func TestLoadRejectsNoUpstreams(t *testing.T) {
	path := writeTempConfig(t, "server:\n  port: 8080\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "upstream_services")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeTempConfig(t, `
upstream_services:
  - name: primary
    provider: not-a-real-provider
    base_url: https://example.com
    api_key: k
    models: [m]
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown provider")
}
