// Package tables holds the kinds of tables records are exported to.
package tables

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter"
	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/schema"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

// HealthData is the table of one upload schema revision: the common columns followed by a column per schema
// field.
type HealthData struct {
	schema     *schema.UploadSchema
	dest       exporter.Destination
	sanitizer  *serialize.Sanitizer
	serializer *serialize.Serializer

	columns []model.ColumnModel
	headers []string
}

func NewHealthData(
	s *schema.UploadSchema,
	dest exporter.Destination,
	sanitizer *serialize.Sanitizer,
	serializer *serialize.Serializer,
) (*HealthData, error) {
	t := &HealthData{
		schema:     s,
		dest:       dest,
		sanitizer:  sanitizer,
		serializer: serializer,
		columns:    columnModels(CommonColumns),
		headers:    columnNames(CommonColumns),
	}
	for _, fd := range s.Fields {
		col, err := serialize.ColumnForField(fd)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", s.Key(), err)
		}
		t.columns = append(t.columns, col)
		t.headers = append(t.headers, fd.Name)
	}
	if dup := lo.FindDuplicates(t.headers); len(dup) > 0 {
		return nil, fmt.Errorf("schema %s: fields %v clash with common columns", s.Key(), dup)
	}
	return t, nil
}

func (t *HealthData) Name() string                      { return t.schema.Key().String() }
func (t *HealthData) Destination() exporter.Destination { return t.dest }
func (t *HealthData) Columns() []model.ColumnModel      { return t.columns }
func (t *HealthData) Headers() []string                 { return t.headers }

func (t *HealthData) Row(ctx context.Context, task exporter.Task) ([]*string, error) {
	rec := task.Record
	row := make([]*string, 0, len(t.headers))
	for _, c := range CommonColumns {
		row = append(row, c.Value(rec, t.sanitizer))
	}
	for _, fd := range t.schema.Fields {
		cell, err := t.serializer.Serialize(ctx, t.dest.ProjectID, rec.ID(), rec.StudyID(), fd, rec.Field(fd.Name))
		if err != nil {
			return nil, err
		}
		row = append(row, cell)
	}
	return row, nil
}

func (t *HealthData) Report(log logger.Logger, summary *exporter.TableSummary) {
	log.Debugn("Health data table done",
		logger.NewStringField(logfield.SchemaKey, t.schema.Key().String()),
		logger.NewIntField(logfield.Lines, summary.Lines),
		logger.NewIntField(logfield.Errors, summary.Errors),
	)
}
