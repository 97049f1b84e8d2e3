package synapse

import (
	"context"
	"errors"
	"fmt"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

const (
	ContentTypeTSV = "text/tab-separated-values"

	// The TSV dialect written by encoding/csv with a tab separator: cells are quoted with double quotes and
	// quotes inside are doubled.
	tsvSeparator       = "\t"
	tsvQuoteCharacter  = `"`
	tsvEscapeCharacter = `\`
)

// CreateFileHandle uploads the local file at path into parentID and returns the id of the new file handle.
func (c *Client) CreateFileHandle(ctx context.Context, path, contentType, parentID string) (string, error) {
	fh, err := call(ctx, c, c.limiter, c.policies.fileUpload, func(ctx context.Context) (*model.FileHandle, error) {
		return c.api.CreateFileHandle(ctx, path, contentType, parentID)
	})
	if err != nil {
		return "", fmt.Errorf("creating file handle for %s: %w", path, err)
	}
	return fh.ID, nil
}

// UploadTsvToTable imports the TSV file handle, whose first line is a header, into tableID and waits for the
// import to complete. It returns the number of rows processed.
func (c *Client) UploadTsvToTable(ctx context.Context, tableID, fileHandleID string) (int64, error) {
	req := &model.UploadToTableRequest{
		ConcreteType:       model.ConcreteTypeUploadToTableRequest,
		TableID:            tableID,
		UploadFileHandleID: fileHandleID,
		CsvTableDescriptor: model.CsvTableDescriptor{
			IsFirstLineHeader: true,
			Separator:         tsvSeparator,
			QuoteCharacter:    tsvQuoteCharacter,
			EscapeCharacter:   tsvEscapeCharacter,
		},
	}

	res, err := RunAsyncJob(ctx,
		func(ctx context.Context) (string, error) {
			return call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (string, error) {
				return c.api.StartUploadCsvToTable(ctx, req)
			})
		},
		func(ctx context.Context, token string) (*model.UploadToTableResult, error) {
			return call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.UploadToTableResult, error) {
				return c.api.GetUploadCsvToTableResult(ctx, token, tableID)
			})
		},
		c.config.async.interval,
		c.config.async.timeoutLoops,
	)
	if err != nil {
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			return 0, fmt.Errorf("timed out uploading file handle %s: %w", fileHandleID, err)
		}
		return 0, fmt.Errorf("uploading file handle %s to table %s: %w", fileHandleID, tableID, err)
	}
	if res.RowsProcessed == nil {
		return 0, fmt.Errorf("uploading file handle %s to table %s: null rows processed", fileHandleID, tableID)
	}
	return *res.RowsProcessed, nil
}
