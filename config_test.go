package hyperbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://infrahub-api.nexgencloud.com/v1"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, 50, cfg.MaxKeepaliveConnections)
	assert.Equal(t, 5*time.Second, cfg.KeepaliveExpiry)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2.0, cfg.RetryBackoffFactor)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 100, cfg.RateLimitRequestsPerMinute)
}

func TestConfigValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfigValidate_RequiresBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_KeepaliveBoundedByMax(t *testing.T) {
	cfg := validConfig()
	cfg.MaxConnections = 10
	cfg.MaxKeepaliveConnections = 20
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_BackoffFactorAtLeastOne(t *testing.T) {
	cfg := validConfig()
	cfg.RetryBackoffFactor = 0.5
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_RateLimitFieldsOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimitEnabled = false
	cfg.RateLimitRequestsPerMinute = 0
	cfg.RateLimitBurst = 0
	assert.NoError(t, cfg.Validate())

	cfg.RateLimitEnabled = true
	assert.Error(t, cfg.Validate())
}
