// Package fauna is the top-level entry point for the driver. It
// re-exports the client package's API so applications can depend on a
// single import path.
//
//	c, err := fauna.NewDefaultClient()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	q, _ := fauna.FQL("Users.all().first()", nil)
//	res, err := c.Query(ctx, q, nil)
package fauna

import (
	"github.com/fauna/fauna-go/client"
)

// Core client types.
type (
	Client        = client.Client
	ClientOptions = client.ClientOptions
	QueryOptions  = client.QueryOptions
	QuerySuccess  = client.QuerySuccess
	Stats         = client.Stats
	Query         = client.Query
)

// Error types.
type (
	Error             = client.Error
	ErrorKind         = client.ErrorKind
	ConstraintFailure = client.ConstraintFailure
	ConfigError       = client.ConfigError
	RangeError        = client.RangeError
	TemplateError     = client.TemplateError
)

// Event consumption.
type (
	Event         = client.Event
	StreamClient  = client.StreamClient
	StreamOptions = client.StreamOptions
	TokenSource   = client.TokenSource
	FeedClient    = client.FeedClient
	FeedOptions   = client.FeedOptions
	FeedPage      = client.FeedPage
	FeedIterator  = client.FeedIterator
	Paginator     = client.Paginator
)

// Constructors and helpers.
var (
	NewClient            = client.NewClient
	NewDefaultClient     = client.NewDefaultClient
	DefaultClientOptions = client.DefaultClientOptions
	FQL                  = client.FQL
	NewQuery             = client.NewQuery
	Token                = client.Token
	TokenFrom            = client.TokenFrom
	NewStreamClient      = client.NewStreamClient
	NewFeedClient        = client.NewFeedClient
	NewChangeFeedClient  = client.NewChangeFeedClient
	NewPaginator         = client.NewPaginator
	AsError              = client.AsError
	IsThrottling         = client.IsThrottling
	IsQueryTimeout       = client.IsQueryTimeout
)

// Sentinel errors.
var (
	ErrStreamClosed  = client.ErrStreamClosed
	ErrFeedExhausted = client.ErrFeedExhausted
	ErrNoMorePages   = client.ErrNoMorePages
)

// Configuration constants.
const (
	EnvFaunaSecret   = client.EnvFaunaSecret
	EnvFaunaEndpoint = client.EnvFaunaEndpoint
	DefaultEndpoint  = client.DefaultEndpoint
	FormatTagged     = client.FormatTagged
	FormatSimple     = client.FormatSimple
)
