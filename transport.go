// transport.go
// -------------
// This file implements a single request attempt over a pooled connection: the
// request is serialized onto the wire, the response read back in full, and any
// transport failure classified into the timeout/connection taxonomy. Retries
// never happen at this layer.
package hyperbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 32 << 20

type connTransport struct {
	scheme    string
	host      string
	basePath  string
	userAgent string
	logger    hclog.Logger
}

func newConnTransport(base *url.URL, userAgent string, logger hclog.Logger) *connTransport {
	return &connTransport{
		scheme:    base.Scheme,
		host:      base.Host,
		basePath:  strings.TrimSuffix(base.Path, "/"),
		userAgent: userAgent,
		logger:    logger.Named("transport"),
	}
}

// roundTrip performs exactly one attempt over pc. The per-attempt timeout (or
// the context deadline, whichever is sooner) covers the full round trip. The
// bool result reports whether the connection is safe to reuse.
func (t *connTransport) roundTrip(ctx context.Context, pc *PoolConn, req *NormalizedRequest, timeout time.Duration, cred Credential) (*NormalizedResponse, bool, error) {
	httpReq, err := t.buildHTTPRequest(req, cred)
	if err != nil {
		return nil, false, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = pc.SetDeadline(deadline)

	// A cancelled context must promptly abandon in-flight I/O; forcing the
	// deadline into the past fails the pending read or write.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = pc.SetDeadline(time.Unix(1, 0))
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	if err := httpReq.Write(pc); err != nil {
		return nil, false, t.classify(ctx, "write request", err)
	}

	res, err := http.ReadResponse(pc.reader(), httpReq)
	if err != nil {
		return nil, false, t.classify(ctx, "read response", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return nil, false, t.classify(ctx, "read response body", err)
	}
	if len(data) > maxResponseBytes {
		// Truncated data must never reach a caller as a success. The
		// connection still has unread body bytes, so it is not reusable.
		return nil, false, &NormalizedError{
			Kind:       KindSerialization,
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("response body exceeds %d bytes", maxResponseBytes),
		}
	}

	_ = pc.SetDeadline(time.Time{})

	headers := make(map[string]string, len(res.Header))
	for k, vals := range res.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}

	return &NormalizedResponse{
		StatusCode: res.StatusCode,
		Headers:    headers,
		Data:       data,
	}, !res.Close, nil
}

func (t *connTransport) buildHTTPRequest(req *NormalizedRequest, cred Credential) (*http.Request, error) {
	fullURL := t.scheme + "://" + t.host + t.basePath + req.Path
	httpReq, err := http.NewRequest(req.Method, fullURL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, newConnectionError(fmt.Sprintf("build request for %s %s", req.Method, req.Path), err)
	}

	headers := map[string]string{
		"Accept": "application/json",
	}
	if len(req.Body) > 0 {
		headers["Content-Type"] = "application/json"
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if cred != nil {
		if err := cred.Apply(headers); err != nil {
			return nil, newConnectionError("apply credentials", err)
		}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	return httpReq, nil
}

// classify maps a transport failure onto the error taxonomy. Caller-initiated
// cancellation passes through untouched so it is not mistaken for an upstream
// fault.
func (t *connTransport) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}

	var netErr net.Error
	timedOut := errors.Is(err, os.ErrDeadlineExceeded) ||
		ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut {
		return newTimeoutError(op+" timed out", err)
	}
	return newConnectionError(op+" failed", err)
}
