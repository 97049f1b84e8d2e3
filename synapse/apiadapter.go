package synapse

import (
	"context"

	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

type apiAdapter struct {
	statsFactory stats.Stats

	api
}

func newApiAdapter(statsFactory stats.Stats, api api) *apiAdapter {
	return &apiAdapter{
		statsFactory: statsFactory,
		api:          api,
	}
}

// measure counts a call to endpoint and returns the function recording its response time.
func (a *apiAdapter) measure(endpoint string) func() {
	tags := stats.Tags{"endpoint": endpoint}
	a.statsFactory.NewTaggedStat("bridge_ex_synapse_api_count", stats.CountType, tags).Increment()
	return a.statsFactory.NewTaggedStat("bridge_ex_synapse_api_response_time", stats.TimerType, tags).RecordDuration()
}

func (a *apiAdapter) CreateColumnModels(ctx context.Context, columns []model.ColumnModel) ([]model.ColumnModel, error) {
	defer a.measure("create_column_models")()
	return a.api.CreateColumnModels(ctx, columns)
}

func (a *apiAdapter) GetColumnModelsForTable(ctx context.Context, tableID string) ([]model.ColumnModel, error) {
	defer a.measure("get_column_models")()
	return a.api.GetColumnModelsForTable(ctx, tableID)
}

func (a *apiAdapter) CreateTable(ctx context.Context, table *model.TableEntity) (*model.TableEntity, error) {
	defer a.measure("create_table")()
	return a.api.CreateTable(ctx, table)
}

func (a *apiAdapter) CreateACL(ctx context.Context, acl *model.AccessControlList) (*model.AccessControlList, error) {
	defer a.measure("create_acl")()
	return a.api.CreateACL(ctx, acl)
}

func (a *apiAdapter) StartTableTransaction(ctx context.Context, req *model.TableUpdateTransactionRequest) (string, error) {
	defer a.measure("start_table_transaction")()
	return a.api.StartTableTransaction(ctx, req)
}

func (a *apiAdapter) StartUploadCsvToTable(ctx context.Context, req *model.UploadToTableRequest) (string, error) {
	defer a.measure("start_upload_csv")()
	return a.api.StartUploadCsvToTable(ctx, req)
}

func (a *apiAdapter) StartQuery(ctx context.Context, req *model.QueryBundleRequest) (string, error) {
	defer a.measure("start_query")()
	return a.api.StartQuery(ctx, req)
}

func (a *apiAdapter) CreateFileHandle(ctx context.Context, path, contentType, parentID string) (*model.FileHandle, error) {
	defer a.measure("create_file_handle")()
	return a.api.CreateFileHandle(ctx, path, contentType, parentID)
}

func (a *apiAdapter) CreateExternalS3FileHandle(ctx context.Context, handle *model.S3FileHandle) (*model.S3FileHandle, error) {
	defer a.measure("create_external_s3_file_handle")()
	return a.api.CreateExternalS3FileHandle(ctx, handle)
}

func (a *apiAdapter) GetStackStatus(ctx context.Context) (*model.StackStatus, error) {
	defer a.measure("get_stack_status")()
	return a.api.GetStackStatus(ctx)
}
