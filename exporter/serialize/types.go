package serialize

import (
	"fmt"

	"github.com/rudderlabs/bridge-exporter/exporter/schema"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

const defaultMaxLength = 100

var columnTypes = map[schema.FieldType]model.ColumnType{
	schema.FieldTypeAttachmentBlob:      model.ColumnTypeFileHandleID,
	schema.FieldTypeAttachmentCSV:       model.ColumnTypeFileHandleID,
	schema.FieldTypeAttachmentJSONBlob:  model.ColumnTypeFileHandleID,
	schema.FieldTypeAttachmentJSONTable: model.ColumnTypeFileHandleID,
	schema.FieldTypeAttachmentV2:        model.ColumnTypeFileHandleID,
	schema.FieldTypeBoolean:             model.ColumnTypeBoolean,
	schema.FieldTypeCalendarDate:        model.ColumnTypeString,
	schema.FieldTypeDate:                model.ColumnTypeDate,
	schema.FieldTypeDurationV2:          model.ColumnTypeString,
	schema.FieldTypeFloat:               model.ColumnTypeDouble,
	schema.FieldTypeInlineJSONBlob:      model.ColumnTypeString,
	schema.FieldTypeInt:                 model.ColumnTypeInteger,
	schema.FieldTypeLargeTextAttachment: model.ColumnTypeLargeText,
	schema.FieldTypeSingleChoice:        model.ColumnTypeString,
	schema.FieldTypeString:              model.ColumnTypeString,
	schema.FieldTypeTimeV2:              model.ColumnTypeString,
	schema.FieldTypeTimestamp:           model.ColumnTypeDate,
}

var typeMaxLengths = map[schema.FieldType]int{
	schema.FieldTypeCalendarDate: 10,
	schema.FieldTypeDurationV2:   24,
	schema.FieldTypeTimeV2:       12,
}

// ColumnType returns the column type values of type t are stored in.
func ColumnType(t schema.FieldType) (model.ColumnType, bool) {
	ct, ok := columnTypes[t]
	return ct, ok
}

// MaxLength returns the max length of a string field: its declared max length, else the max length of its
// type, else 100. Unbounded fields have none.
func MaxLength(fd schema.FieldDefinition) *int {
	if fd.UnboundedText {
		return nil
	}
	if fd.MaxLength != nil {
		return fd.MaxLength
	}
	if n, ok := typeMaxLengths[fd.Type]; ok {
		return &n
	}
	n := defaultMaxLength
	return &n
}

// ColumnForField returns the column model of a schema field. Unbounded string fields are stored as large text.
func ColumnForField(fd schema.FieldDefinition) (model.ColumnModel, error) {
	ct, ok := ColumnType(fd.Type)
	if !ok {
		return model.ColumnModel{}, fmt.Errorf("field %s: no column type for %q", fd.Name, fd.Type)
	}
	col := model.ColumnModel{Name: fd.Name, ColumnType: ct}
	if ct == model.ColumnTypeString {
		maxLength := MaxLength(fd)
		if maxLength == nil {
			col.ColumnType = model.ColumnTypeLargeText
		} else {
			col.MaximumSize = model.MaxSize(int64(*maxLength))
		}
	}
	return col, nil
}
