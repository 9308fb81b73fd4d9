// Package mock provides a scripted upstream HTTP server for exercising the
// client without a real API behind it. Responses are served in FIFO order from
// an enqueued script, falling back to a canned success once the script runs
// out.
package mock

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ScriptedResponse is one canned upstream reply.
type ScriptedResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	// Delay holds the response back to simulate a slow upstream.
	Delay time.Duration
}

// ReceivedRequest records what the upstream saw.
type ReceivedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Upstream is a single-host mock API server.
type Upstream struct {
	server *httptest.Server

	mu       sync.Mutex
	script   []ScriptedResponse
	fallback ScriptedResponse
	received []ReceivedRequest
}

// NewUpstream starts a mock server on a local listener. Callers own Close().
func NewUpstream() *Upstream {
	u := &Upstream{
		fallback: ScriptedResponse{
			StatusCode: 200,
			Body:       `{"success":true}`,
		},
	}
	u.server = httptest.NewServer(http.HandlerFunc(u.handle))
	return u
}

// URL returns the server's base URL, e.g. "http://127.0.0.1:PORT".
func (u *Upstream) URL() string { return u.server.URL }

// Enqueue appends a scripted response.
func (u *Upstream) Enqueue(r ScriptedResponse) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.script = append(u.script, r)
}

// EnqueueStatus appends a minimal scripted response.
func (u *Upstream) EnqueueStatus(statusCode int, body string) {
	u.Enqueue(ScriptedResponse{StatusCode: statusCode, Body: body})
}

// SetFallback replaces the response served once the script is exhausted.
func (u *Upstream) SetFallback(r ScriptedResponse) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fallback = r
}

// RequestCount reports how many requests have been served.
func (u *Upstream) RequestCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.received)
}

// Received returns a copy of every recorded request.
func (u *Upstream) Received() []ReceivedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]ReceivedRequest, len(u.received))
	copy(out, u.received)
	return out
}

// Close shuts the server down.
func (u *Upstream) Close() { u.server.Close() }

func (u *Upstream) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	u.mu.Lock()
	u.received = append(u.received, ReceivedRequest{
		Method: r.Method,
		Path:   r.URL.RequestURI(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	next := u.fallback
	if len(u.script) > 0 {
		next = u.script[0]
		u.script = u.script[1:]
	}
	u.mu.Unlock()

	if next.Delay > 0 {
		time.Sleep(next.Delay)
	}
	for k, v := range next.Headers {
		w.Header().Set(k, v)
	}
	if next.Body != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(next.StatusCode)
	if next.Body != "" {
		_, _ = w.Write([]byte(next.Body))
	}
}
