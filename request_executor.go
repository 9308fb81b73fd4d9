// request_executor.go
// --------------------
// This file defines the RequestExecutor, the retry/backoff controller sitting
// between the façade and the transport. Each logical request runs as a bounded
// sequence of attempts; every attempt's outcome is classified as success,
// retryable, or terminal, and only retryable outcomes on retry-safe requests
// re-enter the loop.
//
// Backoff between attempts is RetryBaseBackoff * RetryBackoffFactor^n, capped
// at RetryMaxBackoff, with uniform jitter in [0, delay) added. An upstream
// Retry-After that exceeds the computed delay wins. The caller's context
// deadline bounds the whole sequence: per-attempt timeouts are clamped to the
// remaining budget and a backoff that would outlive the budget fails fast.
package hyperbridge

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/nexgencloud/hyper-bridge/internal"
)

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeRetryable
	outcomeTerminal
)

type RequestExecutor struct {
	pool      *ConnPool
	transport *connTransport
	cred      Credential
	cfg       *Config
	logger    hclog.Logger
}

func NewRequestExecutor(pool *ConnPool, transport *connTransport, cred Credential, cfg *Config, logger hclog.Logger) *RequestExecutor {
	return &RequestExecutor{
		pool:      pool,
		transport: transport,
		cred:      cred,
		cfg:       cfg,
		logger:    logger.Named("executor"),
	}
}

// ExecuteWithRetry runs req until it succeeds, fails terminally, or exhausts
// the retry budget. Non-retry-safe requests get exactly one attempt.
func (e *RequestExecutor) ExecuteWithRetry(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	maxRetries := e.cfg.MaxRetries
	if !req.retrySafe() {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, err := e.attempt(ctx, req)
		outcome, failure, retryAfter := e.classifyOutcome(resp, err)

		switch outcome {
		case outcomeSuccess:
			if attempt > 0 {
				e.logger.Debug("request succeeded after retries", "method", req.Method, "path", req.Path, "attempts", attempt+1)
			}
			return resp, nil
		case outcomeTerminal:
			e.stampAttempts(failure, attempt+1)
			return nil, failure
		}

		if attempt >= maxRetries {
			e.logger.Debug("retry budget exhausted", "method", req.Method, "path", req.Path, "attempts", attempt+1, "error", failure)
			e.stampAttempts(failure, attempt+1)
			return nil, failure
		}

		delay := e.backoff(attempt)
		if retryAfter > delay {
			delay = retryAfter
		}
		if d, ok := ctx.Deadline(); ok && time.Until(d) <= delay {
			// Waiting out the backoff would blow the overall budget; fail
			// fast with the last classified error instead.
			e.logger.Debug("backoff exceeds remaining budget, giving up", "method", req.Method, "path", req.Path, "delay", delay)
			e.stampAttempts(failure, attempt+1)
			return nil, failure
		}

		e.logger.Debug("retrying after backoff", "method", req.Method, "path", req.Path, "attempt", attempt+1, "delay", delay, "error", failure)
		select {
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return nil, ctx.Err()
			}
			e.stampAttempts(failure, attempt+1)
			return nil, failure
		case <-time.After(delay):
		}
	}
}

// attempt acquires a connection, performs one round trip, and returns the
// connection to the pool (or discards it when its state is unknown).
func (e *RequestExecutor) attempt(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.RequestTimeout
	}
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, newTimeoutError("overall request budget exhausted", context.DeadlineExceeded)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pc, err := e.pool.Acquire(attemptCtx)
	if err != nil {
		switch err {
		case context.DeadlineExceeded:
			return nil, newTimeoutError("timed out waiting for a connection", err)
		case context.Canceled:
			return nil, err
		case ErrPoolClosed:
			return nil, ErrClientClosed
		}
		return nil, err // dial failures arrive already normalized
	}

	resp, reusable, err := e.transport.roundTrip(attemptCtx, pc, req, timeout, e.cred)
	if err != nil {
		e.pool.Discard(pc)
		return nil, err
	}
	if reusable {
		e.pool.Release(pc)
	} else {
		e.pool.Discard(pc)
	}
	return resp, nil
}

// classifyOutcome maps an attempt result onto the retry state machine. For
// throttled and unavailable responses it also extracts the upstream's
// requested wait.
func (e *RequestExecutor) classifyOutcome(resp *NormalizedResponse, err error) (attemptOutcome, error, time.Duration) {
	if err != nil {
		if ne, ok := AsNormalizedError(err); ok && ne.Retryable() {
			return outcomeRetryable, err, 0
		}
		return outcomeTerminal, err, 0
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return outcomeSuccess, nil, 0
	}

	failure := newUpstreamError(resp.StatusCode, resp.Data)
	if !failure.Retryable() {
		return outcomeTerminal, failure, 0
	}

	var retryAfter time.Duration
	if resp.StatusCode == 429 || resp.StatusCode == 503 {
		retryAfter = internal.ParseRetryAfter(resp.Headers["retry-after"], time.Now())
	}
	return outcomeRetryable, failure, retryAfter
}

// backoff computes the delay before retry attempt n+1.
func (e *RequestExecutor) backoff(attempt int) time.Duration {
	base := e.cfg.RetryBaseBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	factor := e.cfg.RetryBackoffFactor
	if factor < 1 {
		factor = 2.0
	}

	delay := time.Duration(float64(base) * math.Pow(factor, float64(attempt)))
	if max := e.cfg.RetryMaxBackoff; max > 0 && delay > max {
		delay = max
	}
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)))
	}
	return delay
}

func (e *RequestExecutor) stampAttempts(err error, attempts int) {
	if ne, ok := AsNormalizedError(err); ok {
		ne.Attempts = attempts
	}
}
