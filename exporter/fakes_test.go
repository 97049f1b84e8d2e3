package exporter_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter"
	"github.com/rudderlabs/bridge-exporter/exporter/record"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

type fakeClient struct {
	mu sync.Mutex

	notWritable bool
	writableErr error

	createColumnsErr error
	createTableErr   error
	migrateErr       error
	createFileErr    error
	uploadErr        error
	// tableUploadErrs fails uploads to single tables.
	tableUploadErrs map[string]error
	// rowsProcessedDelta is added to the rows processed reported by uploads.
	rowsProcessedDelta int64

	nextID   int
	columns  [][]model.ColumnModel
	tables   []*model.TableEntity
	acls     []*model.AccessControlList
	migrated []string
	files    map[string]string
	uploads  map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		files:           make(map[string]string),
		uploads:         make(map[string]string),
		tableUploadErrs: make(map[string]error),
	}
}

func (f *fakeClient) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeClient) IsWritable(context.Context) (bool, error) {
	return !f.notWritable, f.writableErr
}

func (f *fakeClient) CreateColumnModels(_ context.Context, columns []model.ColumnModel) ([]model.ColumnModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createColumnsErr != nil {
		return nil, f.createColumnsErr
	}
	f.columns = append(f.columns, columns)
	return lo.Map(columns, func(col model.ColumnModel, _ int) model.ColumnModel {
		col.ID = f.id("col")
		return col
	}), nil
}

func (f *fakeClient) CreateTable(_ context.Context, table *model.TableEntity) (*model.TableEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTableErr != nil {
		return nil, f.createTableErr
	}
	created := *table
	created.ID = f.id("syn")
	f.tables = append(f.tables, &created)
	return &created, nil
}

func (f *fakeClient) CreateACL(_ context.Context, acl *model.AccessControlList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acls = append(f.acls, acl)
	return nil
}

func (f *fakeClient) MigrateTable(_ context.Context, tableID string, _ []model.ColumnModel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.migrateErr != nil {
		return false, f.migrateErr
	}
	f.migrated = append(f.migrated, tableID)
	return false, nil
}

func (f *fakeClient) CreateFileHandle(_ context.Context, path, contentType, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFileErr != nil {
		return "", f.createFileErr
	}
	if contentType != "text/tab-separated-values" {
		return "", errors.New("unexpected content type " + contentType)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := f.id("fh")
	f.files[id] = string(b)
	return id, nil
}

func (f *fakeClient) UploadTsvToTable(_ context.Context, tableID, fileHandleID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	if err := f.tableUploadErrs[tableID]; err != nil {
		return 0, err
	}
	content, ok := f.files[fileHandleID]
	if !ok {
		return 0, errors.New("unknown file handle " + fileHandleID)
	}
	f.uploads[tableID] = content
	lines := strings.Count(content, "\n") - 1
	return int64(lines) + f.rowsProcessedDelta, nil
}

// fakeSpec is a table holding the id and the value field of records.
type fakeSpec struct {
	name    string
	dest    exporter.Destination
	failOn  string
	panicOn string

	mu       sync.Mutex
	reported *exporter.TableSummary
}

func (s *fakeSpec) Name() string                      { return s.name }
func (s *fakeSpec) Destination() exporter.Destination { return s.dest }

func (s *fakeSpec) Columns() []model.ColumnModel {
	return []model.ColumnModel{
		{Name: "recordId", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(36)},
		{Name: "value", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(100)},
	}
}

func (s *fakeSpec) Headers() []string { return []string{"recordId", "value"} }

func (s *fakeSpec) Row(_ context.Context, task exporter.Task) ([]*string, error) {
	rec := task.Record
	switch rec.ID() {
	case s.failOn:
		return nil, errors.New("bad row")
	case s.panicOn:
		panic("boom")
	}
	var value *string
	if v := rec.Field("value"); v.Exists() {
		value = lo.ToPtr(v.String())
	}
	return []*string{lo.ToPtr(rec.ID()), value}, nil
}

func (s *fakeSpec) Report(_ logger.Logger, summary *exporter.TableSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reported = summary
}

// fakeRouter routes records by study.
type fakeRouter struct {
	specs map[string][]exporter.TableSpec
}

func (r *fakeRouter) Route(_ context.Context, rec *record.Record) ([]exporter.TableSpec, error) {
	if rec.StudyID() == "unroutable" {
		return nil, errors.New("no schema")
	}
	return r.specs[rec.StudyID()], nil
}

type sliceSource struct {
	lines []string
	next  int
}

func (s *sliceSource) Next(context.Context) (*record.Record, error) {
	if s.next >= len(s.lines) {
		return nil, io.EOF
	}
	s.next++
	rec, err := record.Parse([]byte(s.lines[s.next-1]))
	if err != nil {
		return nil, &record.ParseError{Line: s.next, Err: err}
	}
	return rec, nil
}

func recordLine(id, studyID, value string) string {
	return fmt.Sprintf(`{"id":%q,"healthCode":"hc","studyId":%q,"data":{"value":%q}}`, id, studyID, value)
}
