package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldType is the type of a field in an upload schema.
type FieldType string

const (
	FieldTypeAttachmentBlob      FieldType = "attachment_blob"
	FieldTypeAttachmentCSV       FieldType = "attachment_csv"
	FieldTypeAttachmentJSONBlob  FieldType = "attachment_json_blob"
	FieldTypeAttachmentJSONTable FieldType = "attachment_json_table"
	FieldTypeAttachmentV2        FieldType = "attachment_v2"
	FieldTypeBoolean             FieldType = "boolean"
	FieldTypeCalendarDate        FieldType = "calendar_date"
	FieldTypeDate                FieldType = "date"
	FieldTypeDurationV2          FieldType = "duration_v2"
	FieldTypeFloat               FieldType = "float"
	FieldTypeInlineJSONBlob      FieldType = "inline_json_blob"
	FieldTypeInt                 FieldType = "int"
	FieldTypeLargeTextAttachment FieldType = "large_text_attachment"
	FieldTypeSingleChoice        FieldType = "single_choice"
	FieldTypeString              FieldType = "string"
	FieldTypeTimeV2              FieldType = "time_v2"
	FieldTypeTimestamp           FieldType = "timestamp"
)

var knownFieldTypes = map[FieldType]struct{}{
	FieldTypeAttachmentBlob: {}, FieldTypeAttachmentCSV: {}, FieldTypeAttachmentJSONBlob: {},
	FieldTypeAttachmentJSONTable: {}, FieldTypeAttachmentV2: {}, FieldTypeBoolean: {}, FieldTypeCalendarDate: {},
	FieldTypeDate: {}, FieldTypeDurationV2: {}, FieldTypeFloat: {}, FieldTypeInlineJSONBlob: {}, FieldTypeInt: {},
	FieldTypeLargeTextAttachment: {}, FieldTypeSingleChoice: {}, FieldTypeString: {}, FieldTypeTimeV2: {},
	FieldTypeTimestamp: {},
}

// IsAttachment reports whether values of this type are S3 keys of attachments.
func (t FieldType) IsAttachment() bool {
	switch t {
	case FieldTypeAttachmentBlob, FieldTypeAttachmentCSV, FieldTypeAttachmentJSONBlob, FieldTypeAttachmentJSONTable, FieldTypeAttachmentV2:
		return true
	default:
		return false
	}
}

// IsString reports whether values of this type are exported as strings.
func (t FieldType) IsString() bool {
	switch t {
	case FieldTypeCalendarDate, FieldTypeDurationV2, FieldTypeInlineJSONBlob, FieldTypeSingleChoice, FieldTypeString, FieldTypeTimeV2:
		return true
	default:
		return false
	}
}

type FieldDefinition struct {
	Name          string    `yaml:"name"`
	Type          FieldType `yaml:"type"`
	MaxLength     *int      `yaml:"maxLength,omitempty"`
	UnboundedText bool      `yaml:"unboundedText,omitempty"`
}

// Key identifies an upload schema revision. Its string form is the name of the schema's table.
type Key struct {
	StudyID  string
	SchemaID string
	Revision int
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s-v%d", k.StudyID, k.SchemaID, k.Revision)
}

type UploadSchema struct {
	StudyID  string            `yaml:"studyId"`
	SchemaID string            `yaml:"schemaId"`
	Revision int               `yaml:"revision"`
	Fields   []FieldDefinition `yaml:"fields"`
}

func (s *UploadSchema) Key() Key {
	return Key{StudyID: s.StudyID, SchemaID: s.SchemaID, Revision: s.Revision}
}

func (s *UploadSchema) validate() error {
	if s.StudyID == "" || s.SchemaID == "" {
		return fmt.Errorf("schema %s: studyId and schemaId are required", s.Key())
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with no name", s.Key())
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema %s: duplicate field %s", s.Key(), f.Name)
		}
		seen[f.Name] = struct{}{}
		if _, ok := knownFieldTypes[f.Type]; !ok {
			return fmt.Errorf("schema %s: field %s has unsupported type %q", s.Key(), f.Name, f.Type)
		}
		if f.MaxLength != nil && *f.MaxLength <= 0 {
			return fmt.Errorf("schema %s: field %s has invalid max length %d", s.Key(), f.Name, *f.MaxLength)
		}
	}
	return nil
}

// Set is a collection of upload schemas, looked up by key.
type Set struct {
	schemas map[Key]*UploadSchema
}

func NewSet(schemas ...*UploadSchema) (*Set, error) {
	s := &Set{schemas: make(map[Key]*UploadSchema, len(schemas))}
	for _, schema := range schemas {
		if err := schema.validate(); err != nil {
			return nil, err
		}
		if _, ok := s.schemas[schema.Key()]; ok {
			return nil, fmt.Errorf("duplicate schema %s", schema.Key())
		}
		s.schemas[schema.Key()] = schema
	}
	return s, nil
}

func (s *Set) Get(key Key) (*UploadSchema, bool) {
	schema, ok := s.schemas[key]
	return schema, ok
}

func (s *Set) Len() int {
	return len(s.schemas)
}

// LoadFile reads a yaml file holding a list of upload schemas.
func LoadFile(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schemas file: %w", err)
	}

	var doc struct {
		Schemas []*UploadSchema `yaml:"schemas"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing schemas file %s: %w", path, err)
	}
	return NewSet(doc.Schemas...)
}
