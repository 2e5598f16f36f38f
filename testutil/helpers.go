// Package testutil provides helpers for integration tests and wire
// fixture builders for unit tests against the mock transport.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fauna/fauna-go/client"
)

// NewIntegrationClient creates a client against a real database,
// skipping the test when FAUNA_SECRET is unset.
//
// Example:
//
//	export FAUNA_SECRET="secret"
//	export FAUNA_ENDPOINT="http://localhost:8443"
//	c, cleanup := testutil.NewIntegrationClient(t)
//	defer cleanup()
func NewIntegrationClient(t *testing.T) (*client.Client, func()) {
	t.Helper()

	if os.Getenv(client.EnvFaunaSecret) == "" {
		t.Skipf("%s not set, skipping integration test", client.EnvFaunaSecret)
		return nil, func() {}
	}

	opts := client.DefaultClientOptions()
	if testing.Verbose() {
		opts.LogLevel = "DEBUG"
	}
	c, err := client.NewClient(opts)
	if err != nil {
		t.Fatalf("failed to build integration client: %v", err)
	}

	cleanup := func() {
		if cerr := c.Close(); cerr != nil {
			t.Logf("warning: failed to close client: %v", cerr)
		}
	}
	return c, cleanup
}

// Context returns a test context canceled at the given timeout or at
// test cleanup, whichever comes first.
func Context(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
