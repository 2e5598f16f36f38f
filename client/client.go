// Package client implements the driver core: query construction,
// dispatch with throttling retries, error classification, event
// streaming, change feeds, and pagination.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"

	"github.com/fauna/fauna-go/protocol"
	"github.com/fauna/fauna-go/transport"
)

// Request headers understood by the query endpoint.
const (
	headerAuthorization        = "Authorization"
	headerContentType          = "Content-Type"
	headerFormat               = "X-Format"
	headerQueryTimeoutMs       = "X-Query-Timeout-Ms"
	headerLinearized           = "X-Linearized"
	headerTypeCheck            = "X-Typecheck"
	headerMaxContentionRetries = "X-Max-Contention-Retries"
	headerQueryTags            = "X-Query-Tags"
	headerTraceparent          = "Traceparent"
	headerLastTxnTs            = "X-Last-Txn-Ts"
	headerDriver               = "X-Driver"
)

const (
	queryPath  = "/query/1"
	streamPath = "/stream/1"
	feedPath   = "/feed/1"

	// clientTimeoutBuffer is added to the server-side query timeout to
	// get the client-side round trip deadline, leaving room for
	// transfer and queueing on top of execution.
	clientTimeoutBuffer = 5 * time.Second
)

// Client executes queries against a single database. It is safe for
// concurrent use; the only mutable state is the transaction time
// watermark, which only ever moves forward.
type Client struct {
	opts     ClientOptions
	http     transport.HTTPClient
	streamer transport.HTTPStreamClient
	logger   Logger

	lastTxnTime atomic.Int64
	ownsHTTP    bool
	closed      atomic.Bool
}

// NewClient creates a Client. Configuration is validated eagerly; a
// missing secret or an unparsable endpoint fails here, not on the first
// query.
func NewClient(opts ClientOptions) (*Client, error) {
	defaults := DefaultClientOptions()
	if opts.Secret == "" {
		opts.Secret = os.Getenv(EnvFaunaSecret)
	}
	if opts.Secret == "" {
		return nil, &ConfigError{Field: "Secret", Message: "no secret provided and " + EnvFaunaSecret + " is unset"}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = os.Getenv(EnvFaunaEndpoint)
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if u, err := url.Parse(opts.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigError{Field: "Endpoint", Message: fmt.Sprintf("not an absolute URL: %q", opts.Endpoint)}
	}
	if opts.Format == "" {
		opts.Format = defaults.Format
	}
	if opts.Format != FormatTagged && opts.Format != FormatSimple {
		return nil, &ConfigError{Field: "Format", Message: fmt.Sprintf("unknown wire format %q", opts.Format)}
	}
	if opts.QueryTimeout < 0 {
		return nil, &RangeError{Field: "QueryTimeout", Message: "must not be negative"}
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = defaults.QueryTimeout
	}
	if opts.MaxAttempts < 0 {
		return nil, &RangeError{Field: "MaxAttempts", Message: "must not be negative"}
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.MaxBackoff < 0 {
		return nil, &RangeError{Field: "MaxBackoff", Message: "must not be negative"}
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.MaxContentionRetries < 0 {
		return nil, &RangeError{Field: "MaxContentionRetries", Message: "must not be negative"}
	}
	if opts.LogLevel == "" {
		opts.LogLevel = defaults.LogLevel
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, os.Stderr)
	}

	c := &Client{opts: opts, logger: logger}
	if opts.HTTPClient != nil {
		c.http = opts.HTTPClient
	} else {
		httpClient, err := transport.NewDefaultHTTPClient(opts.Endpoint, nil)
		if err != nil {
			return nil, &ConfigError{Field: "Endpoint", Message: err.Error()}
		}
		c.http = httpClient
		c.ownsHTTP = true
	}
	if s, ok := c.http.(transport.HTTPStreamClient); ok {
		c.streamer = s
	}
	return c, nil
}

// NewDefaultClient creates a Client configured entirely from the
// environment.
func NewDefaultClient() (*Client, error) {
	return NewClient(DefaultClientOptions())
}

// Close releases the transport if the client created it. Injected
// transports belong to the caller and are left open. Close is
// idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.ownsHTTP {
		return c.http.Close()
	}
	return nil
}

// LastTxnTime returns the highest transaction time observed so far, in
// microseconds since the Unix epoch. Zero means no transaction has been
// observed.
func (c *Client) LastTxnTime() int64 {
	return c.lastTxnTime.Load()
}

// SetLastTxnTime raises the transaction time watermark, typically to
// hand causality over from another client. Values at or below the
// current watermark are ignored; the watermark never moves backwards.
func (c *Client) SetLastTxnTime(t int64) {
	c.advanceTxnTime(t)
}

func (c *Client) advanceTxnTime(t int64) {
	for {
		cur := c.lastTxnTime.Load()
		if t <= cur || c.lastTxnTime.CompareAndSwap(cur, t) {
			return
		}
	}
}

// Query executes a single query and decodes its result. Throttling
// failures are retried with jittered exponential backoff up to the
// configured attempt budget; all other failures return immediately with
// a classified *Error.
func (c *Client) Query(ctx context.Context, q *Query, opts *QueryOptions) (*QuerySuccess, error) {
	if q == nil {
		return nil, newClientError("nil query", nil)
	}
	body, err := q.wireQuery()
	if err != nil {
		return nil, wrapAsClientError("query did not render", err)
	}
	return c.execute(ctx, body, strings.Join(q.fragments, "${}"), opts)
}

// QueryString executes a raw FQL string with named arguments, the flat
// form of the wire envelope. Composed *Query values are usually the
// better fit; this form suits query text authored elsewhere.
func (c *Client) QueryString(ctx context.Context, query string, arguments map[string]interface{}, opts *QueryOptions) (*QuerySuccess, error) {
	if strings.TrimSpace(query) == "" {
		return nil, newClientError("empty query", nil)
	}
	body := map[string]interface{}{"query": query}
	if len(arguments) > 0 {
		encoded := make(map[string]interface{}, len(arguments))
		for k, v := range arguments {
			e, err := protocol.Encode(v)
			if err != nil {
				return nil, wrapAsClientError(fmt.Sprintf("argument %q did not encode", k), err)
			}
			encoded[k] = e
		}
		body["arguments"] = encoded
	}
	return c.execute(ctx, body, query, opts)
}

func (c *Client) execute(ctx context.Context, body map[string]interface{}, querySource string, opts *QueryOptions) (*QuerySuccess, error) {
	fingerprint := strconv.FormatUint(xxhash.Sum64String(querySource), 16)
	traceID := uuid.NewString()
	log := c.logger.WithFields(String("trace_id", traceID), String("query", fingerprint))

	res, attempts, err := withRetries(ctx, func(ctx context.Context) (*QuerySuccess, error) {
		return c.dispatch(ctx, log, body, opts)
	}, retryOptions{
		maxAttempts: c.opts.MaxAttempts,
		maxBackoff:  c.opts.MaxBackoff,
		shouldRetry: IsThrottling,
	})
	if err != nil {
		if e, ok := AsError(err); ok && e.Stats != nil {
			e.Stats.Attempts = attempts
		}
		log.Debug("query failed", Int("attempts", attempts), Err("error", err))
		return nil, err
	}
	res.Stats.Attempts = attempts
	log.Debug("query succeeded",
		Int("attempts", attempts),
		Int("query_time_ms", res.Stats.QueryTimeMs),
		Int64("txn_ts", res.TxnTime))
	return res, nil
}

// dispatch performs one request/response cycle: headers, round trip,
// parse, classify.
func (c *Client) dispatch(ctx context.Context, log Logger, body map[string]interface{}, opts *QueryOptions) (*QuerySuccess, error) {
	timeout := c.opts.QueryTimeout
	if opts != nil && opts.QueryTimeout > 0 {
		timeout = opts.QueryTimeout
	}
	format := c.opts.Format
	if opts != nil && opts.Format != "" {
		format = opts.Format
	}
	resp, err := c.http.Request(ctx, transport.Request{
		Method:        "POST",
		Path:          queryPath,
		Data:          body,
		Headers:       c.queryHeaders(timeout, format, opts),
		ClientTimeout: timeout + clientTimeoutBuffer,
	})
	if err != nil {
		if e, ok := AsError(err); ok {
			return nil, e
		}
		return nil, newNetworkError(err)
	}

	var wire queryResponse
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, newProtocolError(resp.StatusCode, "unparsable response body", err)
	}
	if wire.TxnTime > 0 {
		c.advanceTxnTime(wire.TxnTime)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var data interface{}
		if len(wire.Data) > 0 {
			data, err = decodePayload(wire.Data, format)
			if err != nil {
				return nil, newProtocolError(resp.StatusCode, "undecodable response data", err)
			}
		}
		res := &QuerySuccess{
			Data:          data,
			TxnTime:       wire.TxnTime,
			Summary:       wire.Summary,
			StaticType:    wire.StaticType,
			SchemaVersion: wire.SchemaVersion,
			QueryTags:     parseQueryTags(wire.QueryTags),
		}
		if wire.Stats != nil {
			res.Stats = *wire.Stats
		}
		return res, nil
	}

	if wire.Error == nil {
		return nil, newProtocolError(resp.StatusCode,
			fmt.Sprintf("failure status %d without an error body", resp.StatusCode), nil)
	}
	e := newServiceError(resp.StatusCode, wire.Error)
	e.Summary = wire.Summary
	e.TxnTime = wire.TxnTime
	e.Stats = wire.Stats
	if e.Kind == KindAbort && len(wire.Error.Abort) > 0 {
		abort, derr := decodePayload(wire.Error.Abort, format)
		if derr != nil {
			return nil, newProtocolError(resp.StatusCode, "undecodable abort payload", derr)
		}
		e.Abort = abort
	}
	log.Debug("query rejected",
		Int("status", resp.StatusCode),
		String("code", e.Code),
		String("kind", e.Kind.String()))
	return nil, e
}

// decodePayload interprets a response value per the negotiated wire
// format: tag-aware for tagged, plain JSON for simple.
func decodePayload(raw json.RawMessage, format string) (interface{}, error) {
	if format == FormatSimple {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return protocol.Decode(raw)
}

// queryHeaders assembles per-request headers from the client
// configuration and the per-query overlay, overlay winning. The format
// is resolved by the caller, which also needs it for decoding.
func (c *Client) queryHeaders(timeout time.Duration, format string, opts *QueryOptions) map[string]string {
	secret := c.opts.Secret
	linearized := c.opts.Linearized
	typeCheck := c.opts.TypeCheck
	contention := c.opts.MaxContentionRetries
	lastTxn := c.lastTxnTime.Load()

	tags := map[string]string{}
	for k, v := range c.opts.QueryTags {
		tags[k] = v
	}

	h := map[string]string{
		headerContentType:    "application/json; charset=utf-8",
		headerDriver:         "go",
		headerQueryTimeoutMs: strconv.FormatInt(timeout.Milliseconds(), 10),
	}

	if opts != nil {
		if opts.Secret != "" {
			secret = opts.Secret
		}
		if opts.Linearized != nil {
			linearized = opts.Linearized
		}
		if opts.TypeCheck != nil {
			typeCheck = opts.TypeCheck
		}
		if opts.MaxContentionRetries > 0 {
			contention = opts.MaxContentionRetries
		}
		if opts.LastTxnTime > 0 {
			lastTxn = opts.LastTxnTime
		}
		for k, v := range opts.QueryTags {
			tags[k] = v
		}
		if opts.Traceparent != "" {
			h[headerTraceparent] = opts.Traceparent
		}
	}

	h[headerAuthorization] = "Bearer " + secret
	h[headerFormat] = format
	if linearized != nil {
		h[headerLinearized] = strconv.FormatBool(*linearized)
	}
	if typeCheck != nil {
		h[headerTypeCheck] = strconv.FormatBool(*typeCheck)
	}
	if contention > 0 {
		h[headerMaxContentionRetries] = strconv.Itoa(contention)
	}
	if lastTxn > 0 {
		h[headerLastTxnTs] = strconv.FormatInt(lastTxn, 10)
	}
	if s := formatQueryTags(tags); s != "" {
		h[headerQueryTags] = s
	}

	if opts != nil {
		for k, v := range opts.AdditionalHeaders {
			h[k] = v
		}
	}
	return h
}
