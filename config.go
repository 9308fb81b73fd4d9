// config.go
// ----------
// This file defines the Config structure consumed at client construction.
// Configuration is injected, never loaded here: the surrounding application owns
// environment parsing and hands the SDK a populated Config.
//
// Defaults mirror the upstream service's recommended client settings: a pool of
// 100 connections (50 kept alive for 5s), 30s request timeout, 3 retries with
// exponential backoff, and a 100-requests-per-minute token bucket.
package hyperbridge

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config carries every tunable the client needs. Use DefaultConfig and adjust
// fields rather than building one from scratch.
type Config struct {
	// BaseURL is the single upstream host all requests go to, e.g.
	// "https://infrahub-api.nexgencloud.com/v1".
	BaseURL string

	// Connection pool limits.
	MaxConnections          int           // hard cap on live connections
	MaxKeepaliveConnections int           // idle connections kept for reuse
	KeepaliveExpiry         time.Duration // idle age after which a connection is discarded

	// Request execution.
	RequestTimeout time.Duration // per-attempt timeout unless overridden per request

	// Retry policy.
	MaxRetries         int           // retries after the first attempt
	RetryBaseBackoff   time.Duration // first backoff delay
	RetryBackoffFactor float64       // exponential growth factor
	RetryMaxBackoff    time.Duration // cap on a single backoff delay

	// Rate limiting.
	RateLimitEnabled           bool
	RateLimitRequestsPerMinute int
	RateLimitBurst             int
	// RateLimitNoWait rejects immediately with a rate_limited error instead of
	// waiting for a token.
	RateLimitNoWait bool
}

// DefaultConfig returns a Config with production defaults. BaseURL must still
// be set by the caller.
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:             100,
		MaxKeepaliveConnections:    50,
		KeepaliveExpiry:            5 * time.Second,
		RequestTimeout:             30 * time.Second,
		MaxRetries:                 3,
		RetryBaseBackoff:           500 * time.Millisecond,
		RetryBackoffFactor:         2.0,
		RetryMaxBackoff:            30 * time.Second,
		RateLimitEnabled:           true,
		RateLimitRequestsPerMinute: 100,
		RateLimitBurst:             10,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.MaxConnections, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxKeepaliveConnections,
			validation.Min(0),
			validation.Max(c.MaxConnections).Error("must not exceed MaxConnections")),
		validation.Field(&c.KeepaliveExpiry, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.RetryBaseBackoff, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryBackoffFactor, validation.Min(1.0)),
		validation.Field(&c.RateLimitRequestsPerMinute,
			validation.When(c.RateLimitEnabled, validation.Required, validation.Min(1))),
		validation.Field(&c.RateLimitBurst,
			validation.When(c.RateLimitEnabled, validation.Required, validation.Min(1))),
	)
}
