// sdk.go
// ------
// The sdk.go file contains the core HyperBridge struct and its methods. This is
// the main entry point of the SDK for callers.
//
// Key functionalities include:
// - Constructing a client with New()
// - Issuing requests via Request() and RequestJSON()
// - Tearing the client down with Close()
//
// The HyperBridge composes a RateLimiter, a RequestExecutor, and a ConnPool:
// every call is admitted by the rate limiter, then run through the retry
// controller, which acquires a pooled connection per attempt. Every failure
// that reaches a caller is a *NormalizedError (caller cancellation excepted).
package hyperbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const defaultUserAgent = "hyper-bridge/1.0"

type HyperBridge struct {
	cfg         *Config
	logger      hclog.Logger
	pool        *ConnPool
	rateLimiter *RateLimiter
	executor    *RequestExecutor

	mu     sync.Mutex
	closed bool
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	logger    hclog.Logger
	cred      Credential
	dial      DialFunc
	userAgent string
}

// WithLogger injects an hclog logger; sub-components log under named children.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCredential sets the credential applied to every outgoing request.
func WithCredential(cred Credential) Option {
	return func(o *options) { o.cred = cred }
}

// WithDialFunc overrides how transport connections are established. Intended
// for tests and proxy setups.
func WithDialFunc(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// New constructs a client for the single upstream host named by cfg.BaseURL.
// The pool and rate budget it owns live until Close().
func New(cfg *Config, opts ...Option) (*HyperBridge, error) {
	if cfg == nil {
		return nil, fmt.Errorf("hyperbridge: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hyperbridge: invalid config: %w", err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("hyperbridge: parse base URL: %w", err)
	}

	o := &options{
		logger:    hclog.New(&hclog.LoggerOptions{Name: "hyperbridge", Level: hclog.Info}),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dial == nil {
		o.dial = defaultDialFunc(base)
	}

	hb := &HyperBridge{
		cfg:         cfg,
		logger:      o.logger,
		pool:        NewConnPool(o.dial, cfg.MaxConnections, cfg.MaxKeepaliveConnections, cfg.KeepaliveExpiry, o.logger),
		rateLimiter: NewRateLimiter(cfg, o.logger),
	}
	transport := newConnTransport(base, o.userAgent, o.logger)
	hb.executor = NewRequestExecutor(hb.pool, transport, o.cred, cfg, o.logger)

	o.logger.Debug("client initialized", "base_url", cfg.BaseURL,
		"max_connections", cfg.MaxConnections, "rate_limit_enabled", cfg.RateLimitEnabled)
	return hb, nil
}

// Request sends req through the full admission → retry → transport stack and
// returns the upstream response. Non-2xx responses come back as a
// *NormalizedError carrying the upstream status and body snippet.
func (hb *HyperBridge) Request(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	hb.mu.Lock()
	if hb.closed {
		hb.mu.Unlock()
		return nil, ErrClientClosed
	}
	hb.mu.Unlock()

	if req == nil || req.Method == "" || req.Path == "" {
		return nil, fmt.Errorf("hyperbridge: request needs a method and path")
	}

	logger := hb.logger.With("request_id", uuid.NewString(), "method", req.Method, "path", req.Path)
	logger.Debug("request admitted to pipeline")

	if err := hb.rateLimiter.Admit(ctx); err != nil {
		logger.Debug("admission failed", "error", err)
		return nil, err
	}

	start := time.Now()
	resp, err := hb.executor.ExecuteWithRetry(ctx, req)
	if err != nil {
		logger.Debug("request failed", "elapsed", time.Since(start), "error", err)
		return nil, err
	}
	logger.Debug("request completed", "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// RequestJSON issues req and decodes a successful JSON body into out. A
// malformed body yields a serialization error; empty bodies (204 No Content)
// decode to nothing.
func (hb *HyperBridge) RequestJSON(ctx context.Context, req *NormalizedRequest, out interface{}) error {
	resp, err := hb.Request(ctx, req)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// Close tears down the connection pool. The client is unusable afterwards.
func (hb *HyperBridge) Close() error {
	hb.mu.Lock()
	if hb.closed {
		hb.mu.Unlock()
		return nil
	}
	hb.closed = true
	hb.mu.Unlock()

	hb.logger.Debug("closing client")
	return hb.pool.Close()
}

// defaultDialFunc derives the transport dialer from the base URL scheme.
func defaultDialFunc(base *url.URL) DialFunc {
	host := base.Hostname()
	port := base.Port()
	if port == "" {
		if base.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	addr := net.JoinHostPort(host, port)

	if base.Scheme == "https" {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    &tls.Config{ServerName: host},
		}
		return func(ctx context.Context) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}
	}

	dialer := &net.Dialer{}
	return func(ctx context.Context) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}
}
