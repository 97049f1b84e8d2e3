package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

func (a *API) CreateColumnModels(ctx context.Context, columns []model.ColumnModel) ([]model.ColumnModel, error) {
	req := model.ColumnModelList{ConcreteType: model.ConcreteTypeListWrapper, List: columns}

	var res model.ColumnModelList
	if err := a.doJSON(ctx, "create column models", http.MethodPost, "/repo/v1/column/batch", &req, &res); err != nil {
		return nil, err
	}
	return res.List, nil
}

func (a *API) GetColumnModelsForTable(ctx context.Context, tableID string) ([]model.ColumnModel, error) {
	var res model.PaginatedColumnModels
	if err := a.doJSON(ctx, "get column models", http.MethodGet, "/repo/v1/entity/"+tableID+"/column", nil, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (a *API) CreateTable(ctx context.Context, table *model.TableEntity) (*model.TableEntity, error) {
	req := *table
	req.ConcreteType = model.ConcreteTypeTableEntity

	var res model.TableEntity
	if err := a.doJSON(ctx, "create table", http.MethodPost, "/repo/v1/entity", &req, &res); err != nil {
		return nil, err
	}
	if res.ID == "" {
		return nil, fmt.Errorf("create table: empty table id")
	}
	return &res, nil
}

func (a *API) CreateACL(ctx context.Context, acl *model.AccessControlList) (*model.AccessControlList, error) {
	var res model.AccessControlList
	if err := a.doJSON(ctx, "create acl", http.MethodPost, "/repo/v1/entity/"+acl.ID+"/acl", acl, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) StartTableTransaction(ctx context.Context, req *model.TableUpdateTransactionRequest) (string, error) {
	return a.asyncStart(ctx, "start table transaction", "/repo/v1/entity/"+req.EntityID+"/table/transaction/async/start", req)
}

func (a *API) GetTableTransactionResult(ctx context.Context, token, tableID string) (*model.TableUpdateTransactionResponse, error) {
	var res model.TableUpdateTransactionResponse
	if err := a.asyncGet(ctx, "get table transaction result", "/repo/v1/entity/"+tableID+"/table/transaction/async/get/"+token, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) StartUploadCsvToTable(ctx context.Context, req *model.UploadToTableRequest) (string, error) {
	return a.asyncStart(ctx, "start csv upload", "/repo/v1/entity/"+req.TableID+"/table/upload/csv/async/start", req)
}

func (a *API) GetUploadCsvToTableResult(ctx context.Context, token, tableID string) (*model.UploadToTableResult, error) {
	var res model.UploadToTableResult
	if err := a.asyncGet(ctx, "get csv upload result", "/repo/v1/entity/"+tableID+"/table/upload/csv/async/get/"+token, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) StartQuery(ctx context.Context, req *model.QueryBundleRequest) (string, error) {
	return a.asyncStart(ctx, "start query", "/repo/v1/entity/"+req.EntityID+"/table/query/async/start", req)
}

func (a *API) GetQueryResult(ctx context.Context, token, tableID string) (*model.QueryResultBundle, error) {
	var res model.QueryResultBundle
	if err := a.asyncGet(ctx, "get query result", "/repo/v1/entity/"+tableID+"/table/query/async/get/"+token, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) StartQueryNextPage(ctx context.Context, nextPage *model.QueryNextPageToken, tableID string) (string, error) {
	return a.asyncStart(ctx, "start query next page", "/repo/v1/entity/"+tableID+"/table/query/nextPage/async/start", nextPage)
}

func (a *API) GetQueryNextPageResult(ctx context.Context, token, tableID string) (*model.QueryResult, error) {
	var res model.QueryResult
	if err := a.asyncGet(ctx, "get query next page result", "/repo/v1/entity/"+tableID+"/table/query/nextPage/async/get/"+token, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
