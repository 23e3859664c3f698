package notion

import (
	"context"
	"iter"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Pages walks every result of a database query, following cursors. Filter,
// sorts and page size are taken from q, which may be nil. Iteration stops
// at the first error.
func Pages(ctx context.Context, c Client, dbID string, q *notionapi.DatabaseQueryRequest) iter.Seq2[notionapi.Page, error] {
	return func(yield func(notionapi.Page, error) bool) {
		var cursor notionapi.Cursor
		for {
			req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
			if q != nil {
				req.Filter, req.Sorts, req.PageSize = q.Filter, q.Sorts, q.PageSize
			}
			resp, err := c.QueryDatabase(ctx, dbID, req)
			if err != nil {
				yield(notionapi.Page{}, eris.Wrapf(err, "notion: query %s at cursor %q", dbID, cursor))
				return
			}
			for _, p := range resp.Results {
				if !yield(p, nil) {
					return
				}
			}
			if !resp.HasMore || resp.NextCursor == "" {
				return
			}
			cursor = resp.NextCursor
		}
	}
}

// QueryAll collects every page of a database query.
func QueryAll(ctx context.Context, c Client, dbID string, q *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	for p, err := range Pages(ctx, c, dbID, q) {
		if err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	return all, nil
}

// FindDocument returns the page whose document-number property equals
// docID, or nil when the database has none.
func FindDocument(ctx context.Context, c Client, dbID, docID string) (*notionapi.Page, error) {
	q := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropDocumentID,
			RichText: &notionapi.TextFilterCondition{Equals: docID},
		},
		PageSize: 1,
	}
	for p, err := range Pages(ctx, c, dbID, q) {
		if err != nil {
			return nil, eris.Wrap(err, "notion: find document "+docID)
		}
		return &p, nil
	}
	return nil, nil
}
