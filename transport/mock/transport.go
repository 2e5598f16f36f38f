// Package mock provides a scripted transport for tests. Responses are
// queued ahead of time; every request is captured for inspection.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fauna/fauna-go/transport"
)

// step is one scripted round-trip outcome.
type step struct {
	resp  *transport.Response
	err   error
	delay time.Duration
	hang  bool
}

// streamStep is one scripted stream connection.
type streamStep struct {
	status    int
	lines     []string
	terminate bool
	err       error
}

// MockClient implements transport.HTTPClient and
// transport.HTTPStreamClient against a scripted queue of outcomes.
type MockClient struct {
	mu          sync.Mutex
	steps       []step
	streamSteps []streamStep
	requests    []transport.Request
	closed      bool

	requestCalls atomic.Int32
	streamCalls  atomic.Int32
	closeCalls   atomic.Int32
}

// NewMockClient creates an empty mock. Queue outcomes before use; an
// unscripted request fails loudly.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueResponse scripts a round trip returning the given status and body.
func (m *MockClient) QueueResponse(status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{resp: &transport.Response{
		StatusCode: status,
		Body:       []byte(body),
		Headers:    http.Header{},
	}})
	return m
}

// QueueError scripts a round trip failing with a transport-level error.
func (m *MockClient) QueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{err: err})
	return m
}

// QueueDelayedResponse scripts a round trip that sleeps before
// responding, still honoring the caller's context deadline.
func (m *MockClient) QueueDelayedResponse(delay time.Duration, status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{
		resp: &transport.Response{
			StatusCode: status,
			Body:       []byte(body),
			Headers:    http.Header{},
		},
		delay: delay,
	})
	return m
}

// QueueHang scripts a round trip that never responds. The request
// returns only when the caller's context expires, with its error.
func (m *MockClient) QueueHang() *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{hang: true})
	return m
}

// QueueStream scripts a stream connection delivering the given lines and
// then blocking, like a live connection with no further events.
func (m *MockClient) QueueStream(status int, lines ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamSteps = append(m.streamSteps, streamStep{status: status, lines: lines})
	return m
}

// QueueTerminatedStream scripts a stream connection that delivers the
// given lines and then ends, like a server-side close.
func (m *MockClient) QueueTerminatedStream(status int, lines ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamSteps = append(m.streamSteps, streamStep{status: status, lines: lines, terminate: true})
	return m
}

// QueueStreamError scripts a stream connection that fails to open.
func (m *MockClient) QueueStreamError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamSteps = append(m.streamSteps, streamStep{err: err})
	return m
}

// Request implements transport.HTTPClient.
func (m *MockClient) Request(ctx context.Context, req transport.Request) (*transport.Response, error) {
	m.requestCalls.Add(1)

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if req.ClientTimeout > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, req.ClientTimeout)
		defer cancel()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, transport.ErrClientClosed
	}
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock: no scripted response for %s %s", req.Method, req.Path)
	}
	next := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if next.hang {
		<-deadlineCtx.Done()
		return nil, deadlineCtx.Err()
	}
	if next.delay > 0 {
		select {
		case <-time.After(next.delay):
		case <-deadlineCtx.Done():
			return nil, deadlineCtx.Err()
		}
	}
	if next.err != nil {
		return nil, next.err
	}
	return next.resp, nil
}

// Stream implements transport.HTTPStreamClient.
func (m *MockClient) Stream(ctx context.Context, req transport.Request) (*transport.StreamResponse, error) {
	m.streamCalls.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, transport.ErrClientClosed
	}
	m.requests = append(m.requests, req)
	if len(m.streamSteps) == 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock: no scripted stream for %s %s", req.Method, req.Path)
	}
	next := m.streamSteps[0]
	m.streamSteps = m.streamSteps[1:]
	m.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return &transport.StreamResponse{
		StatusCode: next.status,
		Body:       newStreamBody(next.lines, next.terminate),
		Headers:    http.Header{},
	}, nil
}

// Close implements both transport interfaces. Idempotent.
func (m *MockClient) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Requests returns a copy of every captured request, in order.
func (m *MockClient) Requests() []transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent captured request.
func (m *MockClient) LastRequest() (transport.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return transport.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// RequestCount reports how many round trips were attempted.
func (m *MockClient) RequestCount() int {
	return int(m.requestCalls.Load())
}

// StreamCount reports how many stream connections were attempted.
func (m *MockClient) StreamCount() int {
	return int(m.streamCalls.Load())
}

// CloseCount reports how many times Close was called.
func (m *MockClient) CloseCount() int {
	return int(m.closeCalls.Load())
}

// streamBody serves scripted lines. When terminate is false it blocks
// after the last line until closed, mimicking an idle live connection.
type streamBody struct {
	buf       *bytes.Reader
	terminate bool
	done      chan struct{}
	once      sync.Once
}

func newStreamBody(lines []string, terminate bool) *streamBody {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return &streamBody{
		buf:       bytes.NewReader(buf.Bytes()),
		terminate: terminate,
		done:      make(chan struct{}),
	}
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.buf.Read(p)
	if err == io.EOF && n == 0 && !b.terminate {
		// Lines exhausted on a live connection: block until Close.
		<-b.done
		return 0, io.EOF
	}
	return n, err
}

func (b *streamBody) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

// interface guards
var (
	_ transport.HTTPClient       = (*MockClient)(nil)
	_ transport.HTTPStreamClient = (*MockClient)(nil)
)
