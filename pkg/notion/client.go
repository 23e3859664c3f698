// Package notion publishes generated documents and lead lists to Notion
// databases.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client is the slice of the Notion API the publisher needs.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
	AppendBlocks(ctx context.Context, blockID string, req *notionapi.AppendBlockChildrenRequest) error
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit replaces the default 3 req/s throttle. rps <= 0 disables it.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		c.limiter = nil
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type notionClient struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

// NewClient creates a throttled client for an integration token.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return eris.Wrap(c.limiter.Wait(ctx), "notion: rate limit")
}

// throttled waits for a token, then runs call and tags its error with op.
func throttled[T any](ctx context.Context, c *notionClient, op string, call func() (T, error)) (T, error) {
	var zero T
	if err := c.wait(ctx); err != nil {
		return zero, err
	}
	v, err := call()
	if err != nil {
		return zero, eris.Wrap(err, "notion: "+op)
	}
	return v, nil
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return throttled(ctx, c, "query database "+dbID, func() (*notionapi.DatabaseQueryResponse, error) {
		return c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return throttled(ctx, c, "create page", func() (*notionapi.Page, error) {
		return c.api.Page.Create(ctx, req)
	})
}

func (c *notionClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return throttled(ctx, c, "update page "+pageID, func() (*notionapi.Page, error) {
		return c.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
}

func (c *notionClient) AppendBlocks(ctx context.Context, blockID string, req *notionapi.AppendBlockChildrenRequest) error {
	_, err := throttled(ctx, c, "append blocks to "+blockID, func() (*notionapi.AppendBlockChildrenResponse, error) {
		return c.api.Block.AppendChildren(ctx, notionapi.BlockID(blockID), req)
	})
	return err
}
