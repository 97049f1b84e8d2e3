package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
	"github.com/rudderlabs/bridge-exporter/utils/httputil"
)

// CreateFileHandle uploads the local file at path and returns the store's file handle for it.
func (a *API) CreateFileHandle(ctx context.Context, path, contentType, parentID string) (*model.FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copying file %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	reqPath := "/file/v1/fileHandle"
	if parentID != "" {
		reqPath += "?parentId=" + parentID
	}
	req, err := a.newRequest(ctx, http.MethodPost, reqPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating file handle request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, reqErr := a.requestDoer.Do(req)
	if reqErr != nil {
		return nil, fmt.Errorf("sending file handle request: %w", reqErr)
	}
	defer func() { httputil.CloseResponse(resp) }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &Error{Op: "create file handle", StatusCode: resp.StatusCode, Body: httputil.ReadBodyLimited(resp, maxErrorBodyLength)}
	}

	var res struct {
		List []model.FileHandle `json:"list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding file handle response: %w", err)
	}
	if len(res.List) != 1 {
		return nil, fmt.Errorf("create file handle: expected 1 file handle, got %d", len(res.List))
	}
	return &res.List[0], nil
}

func (a *API) CreateExternalS3FileHandle(ctx context.Context, handle *model.S3FileHandle) (*model.S3FileHandle, error) {
	req := *handle
	req.ConcreteType = model.ConcreteTypeS3FileHandle

	var res model.S3FileHandle
	if err := a.doJSON(ctx, "create external s3 file handle", http.MethodPost, "/file/v1/externalFileHandle/s3", &req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
