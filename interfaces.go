package hyperbridge

import (
	"context"
	"net"
)

// DialFunc establishes a new transport connection to the upstream host. The
// default implementation is derived from the configured base URL (TLS for
// https); tests inject their own to point the client at a local listener.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Credential attaches authentication material to an outgoing request's
// headers. Implementations must be safe for concurrent use.
type Credential interface {
	// Apply mutates headers in place before the request is written. It is
	// called once per attempt, so expiring credentials stay fresh across
	// retries.
	Apply(headers map[string]string) error
}
