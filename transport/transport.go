// Package transport defines the HTTP layer abstraction the driver talks
// through. The driver core never opens sockets itself; it hands fully
// formed requests to an injected HTTPClient (one round trip per call) or
// HTTPStreamClient (one long-lived event connection per call).
package transport

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Request is a single wire request. Data is JSON-marshaled by the
// transport; the driver always sends POST with a JSON body.
type Request struct {
	// Method is the HTTP method. The driver always sends "POST".
	Method string

	// Path is the endpoint-relative request path, such as "/query/1".
	Path string

	// Data is the request body, marshaled to JSON by the transport.
	Data interface{}

	// Headers are sent verbatim.
	Headers map[string]string

	// ClientTimeout bounds the whole round trip on the client side.
	// Zero means no client-side deadline beyond the caller's context.
	ClientTimeout time.Duration
}

// Response is a completed round trip. Body is the raw payload; the
// driver does its own JSON parsing, tag-aware or plain.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// StreamResponse is an established event connection. Body delivers
// newline-delimited JSON events until closed by either side.
type StreamResponse struct {
	StatusCode int
	Body       io.ReadCloser
	Headers    http.Header
}

// HTTPClient performs single request/response round trips. A client may
// be shared across driver instances; Close must be safe to call more
// than once, and use after Close must fail fast rather than hang.
type HTTPClient interface {
	Request(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// HTTPStreamClient opens long-lived event connections.
type HTTPStreamClient interface {
	Stream(ctx context.Context, req Request) (*StreamResponse, error)
	Close() error
}
