package tables

import (
	"context"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter"
	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

var appVersionColumns = []ColumnDefinition{
	{Name: "recordId", Source: "id", MaxSize: 36, Transfer: TransferString},
	{Name: "healthCode", MaxSize: 36, Transfer: TransferString},
	{Name: "externalId", Source: "userExternalId", MaxSize: 128, Sanitize: true},
	{Name: "originalTable", MaxSize: 128, Transfer: TransferString},
	{Name: "appVersion", MaxSize: 48, Sanitize: true, Metadata: true},
	{Name: "phoneInfo", MaxSize: 48, Sanitize: true, Metadata: true},
}

const (
	originalTableColumn = 3
	appVersionColumn    = 4
)

// AppVersion is the table of a study holding the app version and phone of every record, whatever its schema.
// Row and Report are called by the table's worker only.
type AppVersion struct {
	studyID   string
	dest      exporter.Destination
	sanitizer *serialize.Sanitizer

	appVersions map[string]struct{}
}

func NewAppVersion(studyID string, dest exporter.Destination, sanitizer *serialize.Sanitizer) *AppVersion {
	return &AppVersion{
		studyID:     studyID,
		dest:        dest,
		sanitizer:   sanitizer,
		appVersions: make(map[string]struct{}),
	}
}

func (t *AppVersion) Name() string                      { return t.studyID + "-appVersion" }
func (t *AppVersion) Destination() exporter.Destination { return t.dest }
func (t *AppVersion) Columns() []model.ColumnModel      { return columnModels(appVersionColumns) }
func (t *AppVersion) Headers() []string                 { return columnNames(appVersionColumns) }

func (t *AppVersion) Row(_ context.Context, task exporter.Task) ([]*string, error) {
	rec := task.Record
	row := make([]*string, 0, len(appVersionColumns))
	for i, c := range appVersionColumns {
		if i == originalTableColumn {
			if key, ok := rec.SchemaKey(); ok {
				row = append(row, lo.ToPtr(key.String()))
			} else {
				row = append(row, nil)
			}
			continue
		}
		row = append(row, c.Value(rec, t.sanitizer))
	}

	if appVersion := row[appVersionColumn]; appVersion != nil && *appVersion != "" {
		t.appVersions[*appVersion] = struct{}{}
	}
	return row, nil
}

// AppVersions returns the unique app versions seen so far, sorted.
func (t *AppVersion) AppVersions() []string {
	versions := lo.Keys(t.appVersions)
	slices.Sort(versions)
	return versions
}

func (t *AppVersion) Report(log logger.Logger, _ *exporter.TableSummary) {
	if len(t.appVersions) == 0 {
		return
	}
	log.Infon("Unique app versions for study "+t.studyID+": "+strings.Join(t.AppVersions(), "; "),
		logger.NewStringField(logfield.StudyID, t.studyID),
	)
}
