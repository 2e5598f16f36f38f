package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/fauna/fauna-go/transport"
)

// ErrStreamClosed is returned by Next after Close, or once a terminal
// failure has already been delivered.
var ErrStreamClosed = errors.New("stream is closed")

// TokenSource yields the stream token. A token is itself the product of
// a query, so it may not exist yet when the stream client is built; the
// supplier form defers resolution to the first connection attempt.
// Resolution happens at most once; a resolved token is cached, a failed
// resolution is retried on the next call.
type TokenSource struct {
	token    string
	supplier func(context.Context) (string, error)
	resolved bool
}

// Token wraps an already-known stream token.
func Token(token string) TokenSource {
	return TokenSource{token: token, resolved: true}
}

// TokenFrom defers token resolution to fn, typically a query that
// returns an event source.
func TokenFrom(fn func(context.Context) (string, error)) TokenSource {
	return TokenSource{supplier: fn}
}

func (s *TokenSource) resolve(ctx context.Context) (string, error) {
	if s.resolved {
		return s.token, nil
	}
	if s.supplier == nil {
		return "", &ConfigError{Field: "Token", Message: "no token and no supplier"}
	}
	token, err := s.supplier(ctx)
	if err != nil {
		return "", wrapAsClientError("token resolution failed", err)
	}
	s.token = token
	s.resolved = true
	return token, nil
}

// StreamOptions configures a StreamClient.
type StreamOptions struct {
	// Cursor resumes the stream after a previously observed event.
	// Mutually exclusive with StartTS.
	Cursor string

	// StartTS replays events committed after this transaction time, in
	// microseconds since the Unix epoch.
	StartTS int64

	// IncludeStatusEvents delivers keepalive status events to the
	// consumer instead of absorbing them.
	IncludeStatusEvents bool
}

// StreamClient consumes an event stream over a single long-lived
// connection. Next is the pull interface; Start adapts it to callbacks.
// A StreamClient is not safe for concurrent Next calls; Close may be
// called from any goroutine.
type StreamClient struct {
	client *Client
	source TokenSource
	opts   StreamOptions
	logger Logger

	mu         sync.Mutex
	body       io.ReadCloser
	reader     *bufio.Reader
	started    bool
	closed     bool
	terminal   error
	lastCursor string
}

// NewStreamClient builds a stream client over an existing Client's
// transport. The connection is opened lazily on the first Next.
func NewStreamClient(c *Client, source TokenSource, opts *StreamOptions) (*StreamClient, error) {
	if c == nil {
		return nil, &ConfigError{Field: "Client", Message: "required"}
	}
	if c.streamer == nil {
		return nil, &ConfigError{Field: "HTTPClient", Message: "transport does not support streaming"}
	}
	var o StreamOptions
	if opts != nil {
		o = *opts
	}
	if o.Cursor != "" && o.StartTS != 0 {
		return nil, &ConfigError{Field: "Cursor", Message: "cursor and start timestamp are mutually exclusive"}
	}
	if o.StartTS < 0 {
		return nil, &RangeError{Field: "StartTS", Message: "must not be negative"}
	}
	return &StreamClient{
		client: c,
		source: source,
		opts:   o,
		logger: c.logger,
	}, nil
}

// LastCursor returns the cursor of the most recent event, status events
// included. Use it to resume after a disconnect.
func (s *StreamClient) LastCursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCursor
}

// Next blocks until the next event arrives. Status events are absorbed
// unless IncludeStatusEvents is set, though their cursors still advance
// LastCursor. An in-band error event is terminal: it is returned
// classified, the connection is torn down, and later calls return the
// same error. A server-side end of stream returns io.EOF.
func (s *StreamClient) Next(ctx context.Context) (*Event, error) {
	s.mu.Lock()
	if s.terminal != nil {
		s.mu.Unlock()
		return nil, s.terminal
	}
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	if !s.started {
		if err := s.openLocked(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	reader := s.reader
	s.mu.Unlock()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if line != "" && err == io.EOF {
				// Final event without a trailing newline.
			} else {
				return nil, s.readFailure(err)
			}
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var w wireEvent
		if uerr := json.Unmarshal([]byte(line), &w); uerr != nil {
			return nil, s.fail(newProtocolError(0, "unparsable stream event", uerr))
		}
		ev, derr := decodeEvent(&w)
		if derr != nil {
			return nil, s.fail(derr)
		}

		s.mu.Lock()
		if ev.Cursor != "" {
			s.lastCursor = ev.Cursor
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrStreamClosed
		}
		if ev.TxnTime > 0 {
			s.client.advanceTxnTime(ev.TxnTime)
		}
		if ev.Type == EventStatus && !s.opts.IncludeStatusEvents {
			continue
		}
		return ev, nil
	}
}

// Start consumes the stream on a new goroutine, delivering events to
// onEvent and at most one terminal failure to onError. A clean end of
// stream or a local Close ends the loop without a callback. Start
// returns immediately; it may be called once.
func (s *StreamClient) Start(ctx context.Context, onEvent func(*Event), onError func(error)) error {
	if onEvent == nil {
		return &ConfigError{Field: "onEvent", Message: "required"}
	}
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return newClientError("stream already consumed", nil)
	}
	if err := s.openLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	go func() {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, ErrStreamClosed) {
					return
				}
				if onError != nil {
					onError(err)
				}
				return
			}
			onEvent(ev)
		}
	}()
	return nil
}

// Close tears down the connection. It is idempotent; a Next blocked on
// the wire unblocks with ErrStreamClosed.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// openLocked establishes the connection. Callers hold s.mu.
func (s *StreamClient) openLocked(ctx context.Context) error {
	token, err := s.source.resolve(ctx)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"token": token}
	switch {
	case s.lastCursor != "":
		body["cursor"] = s.lastCursor
	case s.opts.Cursor != "":
		body["cursor"] = s.opts.Cursor
	case s.opts.StartTS > 0:
		body["start_ts"] = s.opts.StartTS
	}

	resp, err := s.client.streamer.Stream(ctx, s.streamRequest(body))
	if err != nil {
		if e, ok := AsError(err); ok {
			return e
		}
		return newNetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = resp.Body.Close()
		var wire queryResponse
		if jerr := json.Unmarshal(raw, &wire); jerr != nil || wire.Error == nil {
			return newProtocolError(resp.StatusCode, "stream open rejected without an error body", jerr)
		}
		return newServiceError(resp.StatusCode, wire.Error)
	}

	s.body = resp.Body
	s.reader = bufio.NewReader(resp.Body)
	s.started = true
	s.logger.Debug("stream opened")
	return nil
}

func (s *StreamClient) streamRequest(body map[string]interface{}) transport.Request {
	return transport.Request{
		Method: "POST",
		Path:   streamPath,
		Data:   body,
		Headers: map[string]string{
			headerAuthorization: "Bearer " + s.client.opts.Secret,
			headerContentType:   "application/json; charset=utf-8",
			headerFormat:        s.client.opts.Format,
			headerDriver:        "go",
		},
	}
}

// readFailure classifies a broken read: a deliberate Close wins over the
// transport's complaint, a clean EOF stays io.EOF.
func (s *StreamClient) readFailure(err error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}
	if err == io.EOF {
		return io.EOF
	}
	return s.fail(newNetworkError(err))
}

// fail records a terminal error and tears the connection down.
func (s *StreamClient) fail(err error) error {
	s.mu.Lock()
	s.terminal = err
	s.closed = true
	body := s.body
	s.body = nil
	s.mu.Unlock()
	if body != nil {
		_ = body.Close()
	}
	return err
}
