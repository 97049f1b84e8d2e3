package synapse

import (
	"context"
	"fmt"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

// TableIterator walks the rows of a table query page by page, one row ahead. It is not safe for concurrent use.
type TableIterator struct {
	client  *Client
	tableID string

	token     string
	firstPage bool
	nextPage  *model.QueryNextPageToken
	rows      []model.Row
	pos       int
	lookahead *model.Row
	etag      string
}

// NewTableIterator starts sql against tableID. An empty sql selects all the rows of the table.
func NewTableIterator(ctx context.Context, client *Client, sql, tableID string) (*TableIterator, error) {
	if sql == "" {
		sql = "SELECT * FROM " + tableID
	}
	req := &model.QueryBundleRequest{
		ConcreteType: model.ConcreteTypeQueryBundleRequest,
		EntityID:     tableID,
		Query:        model.Query{SQL: sql},
		PartMask:     model.QueryPartMask,
	}
	token, err := call(ctx, client, client.limiter, client.policies.def, func(ctx context.Context) (string, error) {
		return client.api.StartQuery(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("starting query on table %s: %w", tableID, err)
	}
	return &TableIterator{
		client:    client,
		tableID:   tableID,
		token:     token,
		firstPage: true,
	}, nil
}

// HasNext reports whether there is another row, fetching the next page if needed.
func (it *TableIterator) HasNext(ctx context.Context) (bool, error) {
	for it.lookahead == nil {
		if it.pos < len(it.rows) {
			it.lookahead = &it.rows[it.pos]
			it.pos++
			break
		}
		if it.token == "" {
			if it.nextPage == nil {
				return false, nil
			}
			token, err := call(ctx, it.client, it.client.limiter, it.client.policies.def, func(ctx context.Context) (string, error) {
				return it.client.api.StartQueryNextPage(ctx, it.nextPage, it.tableID)
			})
			if err != nil {
				return false, fmt.Errorf("starting next page query on table %s: %w", it.tableID, err)
			}
			it.token, it.nextPage = token, nil
		}
		if err := it.fetch(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Next returns the next row, or ErrNoMoreRows.
func (it *TableIterator) Next(ctx context.Context) (model.Row, error) {
	ok, err := it.HasNext(ctx)
	if err != nil {
		return model.Row{}, err
	}
	if !ok {
		return model.Row{}, ErrNoMoreRows
	}
	row := *it.lookahead
	it.lookahead = nil
	return row, nil
}

// Etag returns the etag of the first page of results.
func (it *TableIterator) Etag(ctx context.Context) (string, error) {
	if it.firstPage {
		if _, err := it.HasNext(ctx); err != nil {
			return "", err
		}
	}
	return it.etag, nil
}

func (it *TableIterator) fetch(ctx context.Context) error {
	var result *model.QueryResult
	if it.firstPage {
		bundle, err := PollAsyncJob(ctx, it.token, func(ctx context.Context, token string) (*model.QueryResultBundle, error) {
			return call(ctx, it.client, it.client.limiter, it.client.policies.def, func(ctx context.Context) (*model.QueryResultBundle, error) {
				return it.client.api.GetQueryResult(ctx, token, it.tableID)
			})
		}, it.client.config.query.interval, it.client.config.query.timeoutLoops)
		if err != nil {
			return fmt.Errorf("querying table %s: %w", it.tableID, err)
		}
		result = &bundle.QueryResult
		it.etag = result.QueryResults.Etag
		it.firstPage = false
	} else {
		page, err := PollAsyncJob(ctx, it.token, func(ctx context.Context, token string) (*model.QueryResult, error) {
			return call(ctx, it.client, it.client.limiter, it.client.policies.def, func(ctx context.Context) (*model.QueryResult, error) {
				return it.client.api.GetQueryNextPageResult(ctx, token, it.tableID)
			})
		}, it.client.config.query.interval, it.client.config.query.timeoutLoops)
		if err != nil {
			return fmt.Errorf("querying next page of table %s: %w", it.tableID, err)
		}
		result = page
	}

	it.token = ""
	it.rows, it.pos = result.QueryResults.Rows, 0
	it.nextPage = result.NextPageToken
	if len(it.rows) == 0 {
		it.nextPage = nil
	}
	return nil
}
