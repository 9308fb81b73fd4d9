package hyperbridge

import (
	"encoding/json"
	"net/http"
	"time"
)

// NormalizedRequest describes one logical request against the upstream API.
// It is immutable once handed to the SDK; the same value may be written to the
// wire several times when retries kick in.
type NormalizedRequest struct {
	Method  string
	Path    string // may carry a query string, e.g. "/core/virtual-machines?page=2"
	Headers map[string]string
	Body    []byte

	// Timeout overrides the client-wide per-attempt timeout when > 0.
	Timeout time.Duration

	// Idempotent marks the request as safe to retry. GET requests are always
	// treated as idempotent; mutations are retried only when this is set.
	Idempotent bool
}

// retrySafe reports whether the retry controller may re-send this request.
func (r *NormalizedRequest) retrySafe() bool {
	return r.Idempotent || r.Method == http.MethodGet
}

// NormalizedResponse is a fully-buffered upstream response. Header keys are
// lower-cased.
type NormalizedResponse struct {
	StatusCode int
	Headers    map[string]string
	Data       []byte
}

// DecodeJSON unmarshals the response body into out. An empty body (204 and
// friends) decodes to nothing. A malformed body yields a serialization error.
func (r *NormalizedResponse) DecodeJSON(out interface{}) error {
	if len(r.Data) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return newSerializationError(r.StatusCode, r.Data, err)
	}
	return nil
}
