package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/fauna/fauna-go/transport"
)

// ErrFeedExhausted is returned by NextPage once the final page has been
// consumed.
var ErrFeedExhausted = errors.New("feed is exhausted")

// feedState is the consumption state of a FeedClient. Transitions only
// move forward; a failed feed is never reused.
type feedState int

const (
	feedInitial feedState = iota
	feedActive
	feedExhausted
	feedFailed
)

// FeedOptions configures a FeedClient. The feed endpoint is independent
// of Client so a consumer process needs no query configuration.
type FeedOptions struct {
	// Secret is the database secret. Falls back to FAUNA_SECRET.
	Secret string

	// Endpoint is the service base URL. Falls back to FAUNA_ENDPOINT,
	// then DefaultEndpoint. Ignored when HTTPClient is set.
	Endpoint string

	// HTTPClient is the injected transport. Nil builds the default
	// transport for Endpoint, owned and closed by the feed client.
	HTTPClient transport.HTTPClient

	// Cursor resumes after a previously observed event. Mutually
	// exclusive with StartTS.
	Cursor string

	// StartTS replays events committed after this transaction time, in
	// microseconds since the Unix epoch. Applies to the first page only.
	StartTS int64

	// PageSize bounds events per page. Zero lets the server decide.
	PageSize int

	// QueryTimeout is the server-side timeout per page request.
	// Default: 5s.
	QueryTimeout time.Duration

	// ClientTimeoutBuffer is added to QueryTimeout to get the
	// client-side deadline per page request. Required by NewFeedClient;
	// ignored by NewChangeFeedClient, whose client-side deadline equals
	// QueryTimeout.
	ClientTimeoutBuffer time.Duration

	// MaxAttempts bounds throttling retries per page. Default: 3.
	MaxAttempts int

	// MaxBackoff caps the sleep between retries. Default: 20s.
	MaxBackoff time.Duration

	// Logger is the logger implementation. Nil discards output.
	Logger Logger
}

// FeedClient pages through an event feed. Pages are fetched on demand;
// the client tracks the cursor between pages. Not safe for concurrent
// use.
type FeedClient struct {
	token    string
	opts     FeedOptions
	http     transport.HTTPClient
	logger   Logger
	ownsHTTP bool

	state    feedState
	cursor   string
	startTS  int64
	terminal error

	// buffered means the deadline includes ClientTimeoutBuffer.
	buffered bool
}

// NewFeedClient creates a feed client for non-realtime consumption. The
// client-side deadline per page is QueryTimeout plus the required
// ClientTimeoutBuffer.
func NewFeedClient(token string, opts FeedOptions) (*FeedClient, error) {
	if opts.ClientTimeoutBuffer == 0 {
		return nil, &ConfigError{Field: "ClientTimeoutBuffer", Message: "required"}
	}
	return newFeedClient(token, opts, true)
}

// NewChangeFeedClient creates a feed client whose client-side deadline
// per page equals QueryTimeout, with no buffer. Suited to change
// capture loops that would rather fail fast than wait out a slow
// transfer.
func NewChangeFeedClient(token string, opts FeedOptions) (*FeedClient, error) {
	return newFeedClient(token, opts, false)
}

func newFeedClient(token string, opts FeedOptions, buffered bool) (*FeedClient, error) {
	if token == "" {
		return nil, &ConfigError{Field: "Token", Message: "required"}
	}
	if opts.Secret == "" {
		opts.Secret = os.Getenv(EnvFaunaSecret)
	}
	if opts.Secret == "" {
		return nil, &ConfigError{Field: "Secret", Message: "no secret provided and " + EnvFaunaSecret + " is unset"}
	}
	if opts.Cursor != "" && opts.StartTS != 0 {
		return nil, &ConfigError{Field: "Cursor", Message: "cursor and start timestamp are mutually exclusive"}
	}
	if opts.StartTS < 0 {
		return nil, &RangeError{Field: "StartTS", Message: "must not be negative"}
	}
	if opts.PageSize < 0 {
		return nil, &RangeError{Field: "PageSize", Message: "must not be negative"}
	}
	if opts.QueryTimeout < 0 {
		return nil, &RangeError{Field: "QueryTimeout", Message: "must not be negative"}
	}
	if opts.ClientTimeoutBuffer < 0 {
		return nil, &RangeError{Field: "ClientTimeoutBuffer", Message: "must not be negative"}
	}
	if opts.MaxAttempts < 0 {
		return nil, &RangeError{Field: "MaxAttempts", Message: "must not be negative"}
	}
	if opts.MaxBackoff < 0 {
		return nil, &RangeError{Field: "MaxBackoff", Message: "must not be negative"}
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 20 * time.Second
	}

	f := &FeedClient{
		token:    token,
		opts:     opts,
		cursor:   opts.Cursor,
		startTS:  opts.StartTS,
		buffered: buffered,
	}
	f.logger = opts.Logger
	if f.logger == nil {
		f.logger = NewNoopLogger()
	}
	if opts.HTTPClient != nil {
		f.http = opts.HTTPClient
	} else {
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = os.Getenv(EnvFaunaEndpoint)
		}
		if endpoint == "" {
			endpoint = DefaultEndpoint
		}
		if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &ConfigError{Field: "Endpoint", Message: fmt.Sprintf("not an absolute URL: %q", endpoint)}
		}
		httpClient, err := transport.NewDefaultHTTPClient(endpoint, nil)
		if err != nil {
			return nil, &ConfigError{Field: "Endpoint", Message: err.Error()}
		}
		f.http = httpClient
		f.ownsHTTP = true
	}
	return f, nil
}

// Close releases the transport if the feed client created it.
func (f *FeedClient) Close() error {
	if f.ownsHTTP {
		return f.http.Close()
	}
	return nil
}

// feedPageWire is the feed endpoint's page envelope.
type feedPageWire struct {
	Events  []json.RawMessage `json:"events"`
	Cursor  string            `json:"cursor"`
	HasNext bool              `json:"has_next"`
	Stats   *Stats            `json:"stats"`
}

// FeedPage is one page of feed events. Events decode lazily, one pass.
type FeedPage struct {
	// Cursor resumes consumption after this page.
	Cursor string
	// HasNext reports whether another page can be fetched.
	HasNext bool
	// Stats reports the cost of producing the page.
	Stats Stats

	events []json.RawMessage
	idx    int
}

// Len returns the number of events on the page.
func (p *FeedPage) Len() int {
	return len(p.events)
}

// NextEvent decodes and returns the next event on the page, io.EOF once
// the page is drained. In-band error events come back as classified
// errors.
func (p *FeedPage) NextEvent() (*Event, error) {
	if p.idx >= len(p.events) {
		return nil, io.EOF
	}
	raw := p.events[p.idx]
	p.idx++

	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, newProtocolError(0, "unparsable feed event", err)
	}
	return decodeEvent(&w)
}

// NextPage fetches the next feed page, retrying throttled requests with
// jittered backoff. After the final page it returns ErrFeedExhausted;
// after any failure it keeps returning that failure.
func (f *FeedClient) NextPage(ctx context.Context) (*FeedPage, error) {
	switch f.state {
	case feedExhausted:
		return nil, ErrFeedExhausted
	case feedFailed:
		return nil, f.terminal
	}

	page, attempts, err := withRetries(ctx, f.fetchPage, retryOptions{
		maxAttempts: f.opts.MaxAttempts,
		maxBackoff:  f.opts.MaxBackoff,
		shouldRetry: IsThrottling,
	})
	if err != nil {
		f.state = feedFailed
		f.terminal = err
		f.logger.Debug("feed page failed", Int("attempts", attempts), Err("error", err))
		return nil, err
	}
	page.Stats.Attempts = attempts

	f.cursor = page.Cursor
	f.startTS = 0
	if page.HasNext {
		f.state = feedActive
	} else {
		f.state = feedExhausted
	}
	f.logger.Debug("feed page fetched",
		Int("events", page.Len()),
		Bool("has_next", page.HasNext),
		Int("attempts", attempts))
	return page, nil
}

// fetchPage performs one page request cycle.
func (f *FeedClient) fetchPage(ctx context.Context) (*FeedPage, error) {
	body := map[string]interface{}{"token": f.token}
	if f.cursor != "" {
		body["cursor"] = f.cursor
	} else if f.startTS > 0 {
		body["start_ts"] = f.startTS
	}
	if f.opts.PageSize > 0 {
		body["page_size"] = f.opts.PageSize
	}

	clientTimeout := f.opts.QueryTimeout
	if f.buffered {
		clientTimeout += f.opts.ClientTimeoutBuffer
	}

	resp, err := f.http.Request(ctx, transport.Request{
		Method: "POST",
		Path:   feedPath,
		Data:   body,
		Headers: map[string]string{
			headerAuthorization:  "Bearer " + f.opts.Secret,
			headerContentType:    "application/json; charset=utf-8",
			headerFormat:         FormatTagged,
			headerDriver:         "go",
			headerQueryTimeoutMs: fmt.Sprintf("%d", f.opts.QueryTimeout.Milliseconds()),
		},
		ClientTimeout: clientTimeout,
	})
	if err != nil {
		if e, ok := AsError(err); ok {
			return nil, e
		}
		return nil, newNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var wire queryResponse
		if jerr := json.Unmarshal(resp.Body, &wire); jerr != nil || wire.Error == nil {
			return nil, newProtocolError(resp.StatusCode, "feed page rejected without an error body", jerr)
		}
		return nil, newServiceError(resp.StatusCode, wire.Error)
	}

	var wire feedPageWire
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, newProtocolError(resp.StatusCode, "unparsable feed page", err)
	}
	page := &FeedPage{
		Cursor:  wire.Cursor,
		HasNext: wire.HasNext,
		events:  wire.Events,
	}
	if wire.Stats != nil {
		page.Stats = *wire.Stats
	}
	return page, nil
}

// FeedIterator yields individual events across page boundaries.
type FeedIterator struct {
	feed *FeedClient
	page *FeedPage
	done bool
	err  error
}

// Flatten returns an iterator over individual events, fetching pages as
// needed. An in-band error event is re-raised as a classified error and
// ends the sequence.
func (f *FeedClient) Flatten() *FeedIterator {
	return &FeedIterator{feed: f}
}

// Next returns the next event, io.EOF after the last event of the last
// page. Once it has returned an error it keeps returning that error.
func (it *FeedIterator) Next(ctx context.Context) (*Event, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, io.EOF
	}
	for {
		if it.page != nil {
			ev, err := it.page.NextEvent()
			if err == nil {
				return ev, nil
			}
			if err != io.EOF {
				it.err = err
				return nil, err
			}
			if !it.page.HasNext {
				it.done = true
				return nil, io.EOF
			}
			it.page = nil
		}
		page, err := it.feed.NextPage(ctx)
		if err != nil {
			if errors.Is(err, ErrFeedExhausted) {
				it.done = true
				return nil, io.EOF
			}
			it.err = err
			return nil, err
		}
		it.page = page
	}
}
