package client

import (
	"time"

	"github.com/fauna/fauna-go/transport"
)

// Environment variables consulted when configuration omits a value.
const (
	// EnvFaunaSecret supplies the database secret.
	EnvFaunaSecret = "FAUNA_SECRET"
	// EnvFaunaEndpoint overrides the service endpoint.
	EnvFaunaEndpoint = "FAUNA_ENDPOINT"
)

// DefaultEndpoint is the production service endpoint.
const DefaultEndpoint = "https://db.fauna.com"

// Wire formats. Tagged preserves exact types; Simple trades fidelity for
// plain JSON.
const (
	FormatTagged = "tagged"
	FormatSimple = "simple"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Secret is the database secret. Falls back to FAUNA_SECRET; a
	// missing secret is a construction-time error, never an empty
	// Authorization header.
	Secret string

	// Endpoint is the service base URL. Falls back to FAUNA_ENDPOINT,
	// then DefaultEndpoint.
	Endpoint string

	// HTTPClient is the injected transport. Nil builds the default
	// net/http transport for Endpoint; in that case Client.Close also
	// closes it.
	HTTPClient transport.HTTPClient

	// Format is the wire value encoding, FormatTagged by default.
	Format string

	// QueryTimeout is the server-side timeout requested per query.
	// Default: 5s.
	QueryTimeout time.Duration

	// MaxAttempts bounds throttling retries per query. Default: 3.
	MaxAttempts int

	// MaxBackoff caps the sleep between retries. Default: 20s.
	MaxBackoff time.Duration

	// Linearized forces strict serialization of read-only transactions
	// when set.
	Linearized *bool

	// TypeCheck toggles server-side typechecking when set.
	TypeCheck *bool

	// MaxContentionRetries is forwarded to the server when positive.
	MaxContentionRetries int

	// QueryTags is attached to every query for telemetry correlation.
	// Per-request tags are merged on top.
	QueryTags map[string]string

	// Logger is the logger implementation to use. Nil uses the stock
	// JSON logger at LogLevel.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string
}

// DefaultClientOptions returns ClientOptions with default values. Secret
// still has to come from the caller or the environment.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Format:       FormatTagged,
		QueryTimeout: 5 * time.Second,
		MaxAttempts:  3,
		MaxBackoff:   20 * time.Second,
		LogLevel:     "INFO",
	}
}

// QueryOptions overlays per-request settings on top of the client's
// configuration. Zero values leave the client default in place.
type QueryOptions struct {
	// QueryTimeout overrides the server-side timeout for this query.
	QueryTimeout time.Duration

	// Linearized overrides the client's linearization setting.
	Linearized *bool

	// TypeCheck overrides the client's typecheck setting.
	TypeCheck *bool

	// MaxContentionRetries overrides the client setting when positive.
	MaxContentionRetries int

	// QueryTags is merged over the client's tags, per key.
	QueryTags map[string]string

	// Traceparent is passed through verbatim under its own header.
	Traceparent string

	// Secret overrides the client's secret for this query.
	Secret string

	// LastTxnTime overrides the tracked last transaction time for this
	// request when positive.
	LastTxnTime int64

	// Format overrides the wire format for this query.
	Format string

	// AdditionalHeaders are merged last, overlay winning.
	AdditionalHeaders map[string]string
}
