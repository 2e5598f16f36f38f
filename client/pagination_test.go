package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fauna/fauna-go/protocol"
	"github.com/fauna/fauna-go/transport/mock"
)

const nextPageBody = `{
	"data": {"@set": {"data": [{"@int": "3"}, {"@int": "4"}], "after": ""}},
	"txn_ts": 1,
	"stats": {}
}`

func seedPage() *protocol.Page {
	return &protocol.Page{Data: []interface{}{1, 2}, After: "after-1"}
}

func TestNewPaginatorValidation(t *testing.T) {
	c := newTestClient(t, mock.NewMockClient())

	t.Run("nil client", func(t *testing.T) {
		_, err := NewPaginator(nil, seedPage())
		var cfg *ConfigError
		require.ErrorAs(t, err, &cfg)
	})

	t.Run("nil page", func(t *testing.T) {
		_, err := NewPaginator(c, nil)
		var cfg *ConfigError
		require.ErrorAs(t, err, &cfg)
	})

	t.Run("empty page without cursor", func(t *testing.T) {
		_, err := NewPaginator(c, &protocol.Page{})
		var cfg *ConfigError
		require.ErrorAs(t, err, &cfg)
	})

	t.Run("cursor-only page is fine", func(t *testing.T) {
		p, err := NewPaginator(c, &protocol.Page{After: "tok"})
		require.NoError(t, err)
		assert.True(t, p.HasNext())
	})
}

func TestPaginatorWalk(t *testing.T) {
	m := mock.NewMockClient().QueueResponse(200, nextPageBody)
	c := newTestClient(t, m)

	p, err := NewPaginator(c, seedPage())
	require.NoError(t, err)

	// The seed page comes first, without a fetch.
	first, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2}, first.Data)
	assert.Zero(t, m.RequestCount())
	assert.True(t, p.HasNext())

	second, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{3, 4}, second.Data)
	assert.Equal(t, 1, m.RequestCount())
	assert.False(t, p.HasNext())

	_, err = p.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoMorePages)

	// The continuation query interpolates the cursor as a value.
	req, _ := m.LastRequest()
	body := req.Data.(map[string]interface{})
	fql := body["query"].(map[string]interface{})["fql"].([]interface{})
	require.Len(t, fql, 3)
	assert.Equal(t, "Set.paginate(", fql[0])
	assert.Equal(t, map[string]interface{}{"value": "after-1"}, fql[1])
	assert.Equal(t, ")", fql[2])
}

func TestPaginatorPrevious(t *testing.T) {
	m := mock.NewMockClient().QueueResponse(200, nextPageBody)
	c := newTestClient(t, m)

	p, err := NewPaginator(c, seedPage())
	require.NoError(t, err)

	_, err = p.Previous()
	assert.ErrorIs(t, err, ErrNoMorePages)

	first, err := p.Next(context.Background())
	require.NoError(t, err)
	_, err = p.Next(context.Background())
	require.NoError(t, err)

	back, err := p.Previous()
	require.NoError(t, err)
	assert.Same(t, first, back)

	_, err = p.Previous()
	assert.ErrorIs(t, err, ErrNoMorePages)

	// Walking forward again reuses the materialized page.
	_, err = p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.RequestCount())
}

func TestPaginatorNonPageResult(t *testing.T) {
	m := mock.NewMockClient().
		QueueResponse(200, `{"data": {"@int": "7"}, "txn_ts": 1, "stats": {}}`)
	c := newTestClient(t, m)

	p, err := NewPaginator(c, &protocol.Page{After: "tok"})
	require.NoError(t, err)

	_, err = p.Next(context.Background())
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProtocol, e.Kind)
}
