package synapse

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rudderlabs/rudder-go-kit/cachettl"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
	"github.com/rudderlabs/bridge-exporter/utils/misc"
)

type (
	// Client talks to the store. Every call waits for a permit from its endpoint's rate limiter before each
	// attempt and is retried according to a fixed policy. A Client is safe for concurrent use.
	Client struct {
		logger       logger.Logger
		statsFactory stats.Stats
		requestDoer  requestDoer
		api          api

		limiter       *rate.Limiter
		columnLimiter *rate.Limiter

		storageLocations  *cachettl.Cache[string, int64]
		storageLocationMu sync.Mutex

		config struct {
			client struct {
				url                    string
				authToken              string
				maxHTTPConnections     int
				maxHTTPIdleConnections int
				maxIdleConnDuration    time.Duration
				timeoutDuration        time.Duration
				retryWaitMin           time.Duration
				retryWaitMax           time.Duration
				retryMax               int
			}
			async struct {
				interval     time.Duration
				timeoutLoops int
			}
			query struct {
				interval     time.Duration
				timeoutLoops int
			}
			storageLocationCacheTTL time.Duration
		}

		policies struct {
			def        misc.RetryPolicy
			fileUpload misc.RetryPolicy
			writable   misc.RetryPolicy
		}

		stats struct {
			rateLimitWait stats.Timer
		}
	}

	requestDoer interface {
		Do(*http.Request) (*http.Response, error)
	}

	api interface {
		CreateColumnModels(ctx context.Context, columns []model.ColumnModel) ([]model.ColumnModel, error)
		GetColumnModelsForTable(ctx context.Context, tableID string) ([]model.ColumnModel, error)
		CreateTable(ctx context.Context, table *model.TableEntity) (*model.TableEntity, error)
		CreateACL(ctx context.Context, acl *model.AccessControlList) (*model.AccessControlList, error)
		StartTableTransaction(ctx context.Context, req *model.TableUpdateTransactionRequest) (string, error)
		GetTableTransactionResult(ctx context.Context, token, tableID string) (*model.TableUpdateTransactionResponse, error)
		StartUploadCsvToTable(ctx context.Context, req *model.UploadToTableRequest) (string, error)
		GetUploadCsvToTableResult(ctx context.Context, token, tableID string) (*model.UploadToTableResult, error)
		StartQuery(ctx context.Context, req *model.QueryBundleRequest) (string, error)
		GetQueryResult(ctx context.Context, token, tableID string) (*model.QueryResultBundle, error)
		StartQueryNextPage(ctx context.Context, nextPage *model.QueryNextPageToken, tableID string) (string, error)
		GetQueryNextPageResult(ctx context.Context, token, tableID string) (*model.QueryResult, error)
		CreateFileHandle(ctx context.Context, path, contentType, parentID string) (*model.FileHandle, error)
		CreateExternalS3FileHandle(ctx context.Context, handle *model.S3FileHandle) (*model.S3FileHandle, error)
		GetStackStatus(ctx context.Context) (*model.StackStatus, error)
		GetUploadDestinationLocations(ctx context.Context, parentID string) ([]model.UploadDestinationLocation, error)
		CreateStorageLocationSetting(ctx context.Context, setting *model.StorageLocationSetting) (*model.StorageLocationSetting, error)
		GetUploadProjectSetting(ctx context.Context, projectID string) (*model.ProjectSetting, error)
		CreateProjectSetting(ctx context.Context, setting *model.ProjectSetting) (*model.ProjectSetting, error)
		UpdateProjectSetting(ctx context.Context, setting *model.ProjectSetting) error
	}

	// Opt configures a Client.
	Opt func(*Client)
)
