package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// ErrClientClosed is returned by a closed client. Post-close calls fail
// fast instead of hanging on a dead connection pool.
var ErrClientClosed = fmt.Errorf("transport: client is closed")

// DefaultHTTPClient is the stock net/http-backed transport. It satisfies
// both HTTPClient and HTTPStreamClient and can be shared across any
// number of driver instances; net/http does the connection pooling.
type DefaultHTTPClient struct {
	endpoint *url.URL
	inner    *http.Client

	mu     sync.Mutex
	closed bool
}

// NewDefaultHTTPClient builds a transport for the given endpoint, such
// as "https://db.fauna.com". A nil inner client falls back to a pooled
// http.Client with no global timeout; per-request deadlines come from
// Request.ClientTimeout.
func NewDefaultHTTPClient(endpoint string, inner *http.Client) (*DefaultHTTPClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid endpoint %q: %w", endpoint, err)
	}
	if inner == nil {
		inner = &http.Client{}
	}
	return &DefaultHTTPClient{endpoint: u, inner: inner}, nil
}

// Request implements HTTPClient.
func (c *DefaultHTTPClient) Request(ctx context.Context, req Request) (*Response, error) {
	resp, cancel, err := c.do(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

// Stream implements HTTPStreamClient. The response body stays open for
// line-by-line consumption; closing it releases the connection.
func (c *DefaultHTTPClient) Stream(ctx context.Context, req Request) (*StreamResponse, error) {
	resp, cancel, err := c.do(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	body := &cancelingBody{ReadCloser: resp.Body, cancel: cancel}
	return &StreamResponse{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

func (c *DefaultHTTPClient) do(ctx context.Context, req Request) (*http.Response, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, cancel, ErrClientClosed
	}

	if req.ClientTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.ClientTimeout)
	}

	body, err := json.Marshal(req.Data)
	if err != nil {
		return nil, cancel, err
	}

	u := *c.endpoint
	u.Path = req.Path
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, cancel, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.inner.Do(httpReq)
	return resp, cancel, err
}

// Close implements HTTPClient and HTTPStreamClient. Idempotent.
func (c *DefaultHTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.inner.CloseIdleConnections()
	return nil
}

// cancelingBody releases the request's timeout context when the stream
// body is closed.
type cancelingBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelingBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// interface guards
var (
	_ HTTPClient       = (*DefaultHTTPClient)(nil)
	_ HTTPStreamClient = (*DefaultHTTPClient)(nil)
)
