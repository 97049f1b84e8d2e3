package logfield

const (
	RunID          = "runID"
	StudyID        = "studyID"
	RecordID       = "recordID"
	SchemaKey      = "schemaKey"
	TableName      = "tableName"
	TableID        = "tableID"
	ProjectID      = "projectID"
	FileHandleID   = "fileHandleID"
	ScratchPath    = "scratchPath"
	FieldName      = "fieldName"
	Lines          = "lines"
	Errors         = "errors"
	RowsProcessed  = "rowsProcessed"
	Tag            = "tag"
	AttachmentID   = "attachmentID"
	OriginalLength = "originalLength"
	MaxLength      = "maxLength"
	OrphanTableID  = "orphanTableID"
)
