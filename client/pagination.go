package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/fauna/fauna-go/protocol"
)

// ErrNoMorePages is returned by Next at the forward edge of an
// unfinished set and by Previous at the first page.
var ErrNoMorePages = errors.New("no more pages")

// Paginator walks a paginated set. Consumed pages are kept, so Previous
// revisits them without refetching; Next at the forward edge fetches the
// following page through the client. Not safe for concurrent use.
type Paginator struct {
	client *Client
	pages  []*protocol.Page
	idx    int
}

// NewPaginator starts from a page a query returned. An empty page with
// no continuation cursor has nothing to paginate and is rejected.
func NewPaginator(c *Client, page *protocol.Page) (*Paginator, error) {
	if c == nil {
		return nil, &ConfigError{Field: "Client", Message: "required"}
	}
	if page == nil || (len(page.Data) == 0 && page.After == "") {
		return nil, &ConfigError{Field: "Page", Message: "page has no data and no cursor"}
	}
	return &Paginator{
		client: c,
		pages:  []*protocol.Page{page},
		idx:    -1,
	}, nil
}

// HasNext reports whether Next can produce a page without failing,
// assuming the service cooperates.
func (p *Paginator) HasNext() bool {
	if p.idx+1 < len(p.pages) {
		return true
	}
	return p.pages[len(p.pages)-1].After != ""
}

// Next returns the next page, fetching it when the walk has moved past
// the materialized ones. ErrNoMorePages marks the end of the set.
func (p *Paginator) Next(ctx context.Context) (*protocol.Page, error) {
	if p.idx+1 < len(p.pages) {
		p.idx++
		return p.pages[p.idx], nil
	}

	last := p.pages[len(p.pages)-1]
	if last.After == "" {
		return nil, ErrNoMorePages
	}
	page, err := p.fetch(ctx, last.After)
	if err != nil {
		return nil, err
	}
	p.pages = append(p.pages, page)
	p.idx++
	return page, nil
}

// Previous steps back over already-consumed pages. It never fetches.
func (p *Paginator) Previous() (*protocol.Page, error) {
	if p.idx <= 0 {
		return nil, ErrNoMorePages
	}
	p.idx--
	return p.pages[p.idx], nil
}

func (p *Paginator) fetch(ctx context.Context, after string) (*protocol.Page, error) {
	q, err := FQL("Set.paginate(${after})", map[string]interface{}{"after": after})
	if err != nil {
		return nil, wrapAsClientError("pagination query did not build", err)
	}
	res, err := p.client.Query(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	page, ok := res.Data.(*protocol.Page)
	if !ok {
		return nil, newProtocolError(0,
			fmt.Sprintf("pagination returned %T, not a page", res.Data), nil)
	}
	return page, nil
}
