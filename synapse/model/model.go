package model

// ColumnType is the type of a remote table column.
type ColumnType string

const (
	ColumnTypeBoolean      ColumnType = "BOOLEAN"
	ColumnTypeDate         ColumnType = "DATE"
	ColumnTypeDouble       ColumnType = "DOUBLE"
	ColumnTypeFileHandleID ColumnType = "FILEHANDLEID"
	ColumnTypeInteger      ColumnType = "INTEGER"
	ColumnTypeLargeText    ColumnType = "LARGETEXT"
	ColumnTypeString       ColumnType = "STRING"
)

// AccessType is a single permission granted by an ACL entry.
type AccessType string

const (
	AccessTypeRead              AccessType = "READ"
	AccessTypeDownload          AccessType = "DOWNLOAD"
	AccessTypeUpdate            AccessType = "UPDATE"
	AccessTypeDelete            AccessType = "DELETE"
	AccessTypeCreate            AccessType = "CREATE"
	AccessTypeChangePermissions AccessType = "CHANGE_PERMISSIONS"
	AccessTypeChangeSettings    AccessType = "CHANGE_SETTINGS"
	AccessTypeModerate          AccessType = "MODERATE"
)

const (
	concreteTypePrefix = "org.sagebionetworks.repo.model."

	ConcreteTypeTableEntity              = concreteTypePrefix + "table.TableEntity"
	ConcreteTypeTableSchemaChange        = concreteTypePrefix + "table.TableSchemaChangeRequest"
	ConcreteTypeTableSchemaChangeResp    = concreteTypePrefix + "table.TableSchemaChangeResponse"
	ConcreteTypeTableUpdateTransaction   = concreteTypePrefix + "table.TableUpdateTransactionRequest"
	ConcreteTypeUploadToTableRequest     = concreteTypePrefix + "table.UploadToTableRequest"
	ConcreteTypeQueryBundleRequest       = concreteTypePrefix + "table.QueryBundleRequest"
	ConcreteTypeQueryNextPageToken       = concreteTypePrefix + "table.QueryNextPageToken"
	ConcreteTypeListWrapper              = concreteTypePrefix + "ListWrapper"
	ConcreteTypeExternalS3Storage        = concreteTypePrefix + "project.ExternalS3StorageLocationSetting"
	ConcreteTypeUploadDestinationSetting = concreteTypePrefix + "project.UploadDestinationListSetting"
	ConcreteTypeS3FileHandle             = concreteTypePrefix + "file.S3FileHandle"
)

// StatusReadWrite is the stack status of a store accepting writes.
const StatusReadWrite = "READ_WRITE"

// DefaultStorageLocationID is the store's own storage location, present in every project.
const DefaultStorageLocationID int64 = 1

// QueryPartMask asks for query results, the next page token and the etag.
const QueryPartMask int64 = 0x1 | 0x2 | 0x4 | 0x8 | 0x10

type ColumnModel struct {
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name"`
	ColumnType   ColumnType `json:"columnType"`
	MaximumSize  *int64     `json:"maximumSize,omitempty"`
	DefaultValue string     `json:"defaultValue,omitempty"`
	EnumValues   []string   `json:"enumValues,omitempty"`
}

// MaxSize returns a pointer to n, for use in ColumnModel literals.
func MaxSize(n int64) *int64 { return &n }

type ColumnModelList struct {
	ConcreteType string        `json:"concreteType,omitempty"`
	List         []ColumnModel `json:"list"`
}

type PaginatedColumnModels struct {
	Results              []ColumnModel `json:"results"`
	TotalNumberOfResults int64         `json:"totalNumberOfResults"`
}

type TableEntity struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	ParentID     string   `json:"parentId"`
	ColumnIDs    []string `json:"columnIds"`
	Etag         string   `json:"etag,omitempty"`
	ConcreteType string   `json:"concreteType"`
}

type ResourceAccess struct {
	PrincipalID int64        `json:"principalId"`
	AccessType  []AccessType `json:"accessType"`
}

type AccessControlList struct {
	ID             string           `json:"id"`
	ResourceAccess []ResourceAccess `json:"resourceAccess"`
}

// AsyncJobID is the response to every async start call.
type AsyncJobID struct {
	Token string `json:"token"`
}

// AsyncJobStatus is returned, with HTTP 202, while an async job is still running.
type AsyncJobStatus struct {
	JobState     string `json:"jobState"`
	JobID        string `json:"jobId"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type CsvTableDescriptor struct {
	IsFirstLineHeader bool   `json:"isFirstLineHeader"`
	Separator         string `json:"separator"`
	QuoteCharacter    string `json:"quoteCharacter,omitempty"`
	EscapeCharacter   string `json:"escapeCharacter,omitempty"`
}

type UploadToTableRequest struct {
	ConcreteType       string             `json:"concreteType"`
	TableID            string             `json:"tableId"`
	UploadFileHandleID string             `json:"uploadFileHandleId"`
	CsvTableDescriptor CsvTableDescriptor `json:"csvTableDescriptor"`
}

type UploadToTableResult struct {
	RowsProcessed *int64 `json:"rowsProcessed"`
	EtagString    string `json:"etag,omitempty"`
}

type ColumnChange struct {
	OldColumnID string `json:"oldColumnId,omitempty"`
	NewColumnID string `json:"newColumnId,omitempty"`
}

type TableSchemaChangeRequest struct {
	ConcreteType     string         `json:"concreteType"`
	EntityID         string         `json:"entityId"`
	Changes          []ColumnChange `json:"changes"`
	OrderedColumnIDs []string       `json:"orderedColumnIds,omitempty"`
}

type TableUpdateTransactionRequest struct {
	ConcreteType string                     `json:"concreteType"`
	EntityID     string                     `json:"entityId"`
	Changes      []TableSchemaChangeRequest `json:"changes"`
}

type TableUpdateResponse struct {
	ConcreteType string        `json:"concreteType"`
	Schema       []ColumnModel `json:"schema,omitempty"`
}

type TableUpdateTransactionResponse struct {
	Results []TableUpdateResponse `json:"results"`
}

type Query struct {
	SQL string `json:"sql"`
}

type QueryBundleRequest struct {
	ConcreteType string `json:"concreteType"`
	EntityID     string `json:"entityId"`
	Query        Query  `json:"query"`
	PartMask     int64  `json:"partMask"`
}

type QueryNextPageToken struct {
	ConcreteType string `json:"concreteType,omitempty"`
	EntityID     string `json:"entityId,omitempty"`
	Token        string `json:"token"`
}

type SelectColumn struct {
	Name       string     `json:"name"`
	ColumnType ColumnType `json:"columnType"`
	ID         string     `json:"id,omitempty"`
}

type Row struct {
	RowID         int64     `json:"rowId"`
	VersionNumber int64     `json:"versionNumber"`
	Values        []*string `json:"values"`
}

type RowSet struct {
	Etag    string         `json:"etag"`
	TableID string         `json:"tableId"`
	Headers []SelectColumn `json:"headers"`
	Rows    []Row          `json:"rows"`
}

type QueryResult struct {
	QueryResults  RowSet              `json:"queryResults"`
	NextPageToken *QueryNextPageToken `json:"nextPageToken,omitempty"`
}

type QueryResultBundle struct {
	QueryResult QueryResult `json:"queryResult"`
}

type FileHandle struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	ContentSize int64  `json:"contentSize,omitempty"`
}

type S3FileHandle struct {
	ConcreteType      string `json:"concreteType"`
	ID                string `json:"id,omitempty"`
	BucketName        string `json:"bucketName"`
	Key               string `json:"key"`
	FileName          string `json:"fileName"`
	ContentType       string `json:"contentType"`
	ContentSize       int64  `json:"contentSize"`
	ContentMd5        string `json:"contentMd5,omitempty"`
	StorageLocationID int64  `json:"storageLocationId"`
}

type StackStatus struct {
	Status         string `json:"status"`
	CurrentMessage string `json:"currentMessage,omitempty"`
}

type UploadDestinationLocation struct {
	StorageLocationID int64  `json:"storageLocationId"`
	UploadType        string `json:"uploadType"`
}

type UploadDestinationLocations struct {
	List []UploadDestinationLocation `json:"list"`
}

type StorageLocationSetting struct {
	ConcreteType      string `json:"concreteType"`
	StorageLocationID int64  `json:"storageLocationId,omitempty"`
	Bucket            string `json:"bucket,omitempty"`
	UploadType        string `json:"uploadType"`
}

type ProjectSetting struct {
	ConcreteType string  `json:"concreteType"`
	ID           string  `json:"id,omitempty"`
	ProjectID    string  `json:"projectId"`
	SettingsType string  `json:"settingsType"`
	Locations    []int64 `json:"locations"`
	Etag         string  `json:"etag,omitempty"`
}
