package synapse

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

// CreateColumnModels creates the given column models. The store dedupes identical column models, so this is
// idempotent. The returned columns carry their ids, in the order given.
func (c *Client) CreateColumnModels(ctx context.Context, columns []model.ColumnModel) ([]model.ColumnModel, error) {
	created, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) ([]model.ColumnModel, error) {
		return c.api.CreateColumnModels(ctx, columns)
	})
	if err != nil {
		return nil, fmt.Errorf("creating column models: %w", err)
	}
	if len(created) != len(columns) {
		return nil, fmt.Errorf("creating column models: expected %d columns, got %d", len(columns), len(created))
	}
	return created, nil
}

// GetColumnModelsForTable lists the columns of tableID. This endpoint has its own, stricter, rate limit.
func (c *Client) GetColumnModelsForTable(ctx context.Context, tableID string) ([]model.ColumnModel, error) {
	columns, err := call(ctx, c, c.columnLimiter, c.policies.def, func(ctx context.Context) ([]model.ColumnModel, error) {
		return c.api.GetColumnModelsForTable(ctx, tableID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting column models for table %s: %w", tableID, err)
	}
	return columns, nil
}

func (c *Client) CreateTable(ctx context.Context, table *model.TableEntity) (*model.TableEntity, error) {
	created, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.TableEntity, error) {
		return c.api.CreateTable(ctx, table)
	})
	if err != nil {
		return nil, fmt.Errorf("creating table %s: %w", table.Name, err)
	}
	return created, nil
}

func (c *Client) CreateACL(ctx context.Context, acl *model.AccessControlList) error {
	_, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.AccessControlList, error) {
		return c.api.CreateACL(ctx, acl)
	})
	if err != nil {
		return fmt.Errorf("creating acl for %s: %w", acl.ID, err)
	}
	return nil
}

// UpdateTableColumns applies req to tableID as a single table transaction and waits for it to complete. The
// new schema of the table is returned.
func (c *Client) UpdateTableColumns(ctx context.Context, req *model.TableSchemaChangeRequest, tableID string) ([]model.ColumnModel, error) {
	txn := &model.TableUpdateTransactionRequest{
		ConcreteType: model.ConcreteTypeTableUpdateTransaction,
		EntityID:     tableID,
		Changes:      []model.TableSchemaChangeRequest{*req},
	}

	res, err := RunAsyncJob(ctx,
		func(ctx context.Context) (string, error) {
			return call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (string, error) {
				return c.api.StartTableTransaction(ctx, txn)
			})
		},
		func(ctx context.Context, token string) (*model.TableUpdateTransactionResponse, error) {
			return call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.TableUpdateTransactionResponse, error) {
				return c.api.GetTableTransactionResult(ctx, token, tableID)
			})
		},
		c.config.async.interval,
		c.config.async.timeoutLoops,
	)
	if err != nil {
		return nil, fmt.Errorf("updating columns of table %s: %w", tableID, err)
	}
	if len(res.Results) != 1 {
		return nil, fmt.Errorf("updating columns of table %s: expected 1 response, got %d", tableID, len(res.Results))
	}
	if res.Results[0].ConcreteType != model.ConcreteTypeTableSchemaChangeResp {
		return nil, fmt.Errorf("updating columns of table %s: unexpected response type %s", tableID, res.Results[0].ConcreteType)
	}
	return res.Results[0].Schema, nil
}

// MigrateTable brings the columns of tableID in line with desired. Existing columns are never dropped. It
// reports whether the table was changed.
func (c *Client) MigrateTable(ctx context.Context, tableID string, desired []model.ColumnModel) (bool, error) {
	existing, err := c.GetColumnModelsForTable(ctx, tableID)
	if err != nil {
		return false, err
	}

	plan, err := PlanSchemaChange(existing, desired)
	if err != nil {
		return false, fmt.Errorf("planning schema change for table %s: %w", tableID, err)
	}
	if plan.Empty() {
		return false, nil
	}

	created, err := c.CreateColumnModels(ctx, plan.Create)
	if err != nil {
		return false, err
	}
	req, err := plan.Request(tableID, created)
	if err != nil {
		return false, fmt.Errorf("building schema change for table %s: %w", tableID, err)
	}
	if _, err := c.UpdateTableColumns(ctx, req, tableID); err != nil {
		return false, err
	}

	c.logger.Infon("Migrated table columns",
		logger.NewStringField("tableId", tableID),
		logger.NewStringField("columns", fmt.Sprint(lo.Map(plan.Create, func(col model.ColumnModel, _ int) string { return col.Name }))),
	)
	return true, nil
}
