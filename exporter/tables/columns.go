package tables

import (
	"github.com/samber/lo"

	"github.com/rudderlabs/bridge-exporter/exporter/record"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

// ColumnDefinition is a column filled from a record attribute rather than from the record's data.
type ColumnDefinition struct {
	Name string
	// Source is the record attribute the column is filled from. Defaults to Name.
	Source string
	// MaxSize is the max length of string columns.
	MaxSize  int64
	Transfer TransferMethod
	// Sanitize sanitizes the attribute instead of transferring it.
	Sanitize bool
	// Metadata reads Source from the record's metadata.
	Metadata bool
}

// CommonColumns lead every health data table.
var CommonColumns = []ColumnDefinition{
	{Name: "recordId", Source: "id", MaxSize: 36, Transfer: TransferString},
	{Name: "appVersion", MaxSize: 48, Sanitize: true, Metadata: true},
	{Name: "phoneInfo", MaxSize: 48, Sanitize: true, Metadata: true},
	{Name: "uploadDate", MaxSize: 10, Transfer: TransferString},
	{Name: "healthCode", MaxSize: 36, Transfer: TransferString},
	{Name: "externalId", Source: "userExternalId", MaxSize: 128, Sanitize: true},
	{Name: "dataGroups", Source: "userDataGroups", MaxSize: 100, Transfer: TransferStringSet},
	{Name: "createdOn", Transfer: TransferDate},
	{Name: "userSharingScope", MaxSize: 48, Transfer: TransferString},
	{Name: "substudyMemberships", Source: "userSubstudyMemberships", MaxSize: 250, Transfer: TransferStringMap},
}

func (c ColumnDefinition) source() string {
	if c.Source == "" {
		return c.Name
	}
	return c.Source
}

// Column is the column model of c.
func (c ColumnDefinition) Column() model.ColumnModel {
	col := model.ColumnModel{Name: c.Name, ColumnType: c.Transfer.ColumnType()}
	if c.Sanitize {
		col.ColumnType = model.ColumnTypeString
	}
	if col.ColumnType == model.ColumnTypeString && c.MaxSize > 0 {
		col.MaximumSize = model.MaxSize(c.MaxSize)
	}
	return col
}

// Value returns the cell value of c for rec.
func (c ColumnDefinition) Value(rec *record.Record, sanitizer *serialize.Sanitizer) *string {
	value := rec.Get(c.source())
	if c.Metadata {
		value = rec.Metadata(c.source())
	}
	if !c.Sanitize {
		return c.Transfer.Transfer(value)
	}
	if !exists(value) {
		return nil
	}
	var maxLength *int
	if c.MaxSize > 0 {
		maxLength = lo.ToPtr(int(c.MaxSize))
	}
	return sanitizer.Sanitize(lo.ToPtr(value.String()), c.Name, maxLength, rec.ID(), rec.StudyID())
}

func columnModels(defs []ColumnDefinition) []model.ColumnModel {
	return lo.Map(defs, func(c ColumnDefinition, _ int) model.ColumnModel { return c.Column() })
}

func columnNames(defs []ColumnDefinition) []string {
	return lo.Map(defs, func(c ColumnDefinition, _ int) string { return c.Name })
}
