// Package record holds health data records as read from the record store.
package record

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/rudderlabs/bridge-exporter/exporter/schema"
)

// Record is a single health data record. Attributes are read straight from its JSON document.
type Record struct {
	raw []byte
}

// Parse wraps a JSON document holding a record. The id, healthCode and studyId attributes are required.
func Parse(b []byte) (*Record, error) {
	if !gjson.ValidBytes(b) {
		return nil, errors.New("invalid record json")
	}
	r := &Record{raw: b}
	for _, attr := range []string{"id", "healthCode", "studyId"} {
		if r.Get(attr).String() == "" {
			return nil, fmt.Errorf("record has no %s", attr)
		}
	}
	return r, nil
}

// Get returns the top level attribute name.
func (r *Record) Get(name string) gjson.Result {
	return gjson.GetBytes(r.raw, gjsonKey(name))
}

func (r *Record) ID() string         { return r.Get("id").String() }
func (r *Record) HealthCode() string { return r.Get("healthCode").String() }
func (r *Record) StudyID() string    { return r.Get("studyId").String() }

// SchemaKey returns the key of the schema the record was uploaded with. Schemaless records have none.
func (r *Record) SchemaKey() (schema.Key, bool) {
	schemaID, revision := r.Get("schemaId"), r.Get("schemaRevision")
	if !schemaID.Exists() || !revision.Exists() {
		return schema.Key{}, false
	}
	return schema.Key{StudyID: r.StudyID(), SchemaID: schemaID.String(), Revision: int(revision.Int())}, true
}

// Metadata returns the attribute name of the record's metadata. Metadata is stored as a JSON string.
func (r *Record) Metadata(name string) gjson.Result {
	metadata := r.Get("metadata")
	if metadata.Type == gjson.String {
		return gjson.Get(metadata.String(), gjsonKey(name))
	}
	return metadata.Get(gjsonKey(name))
}

// Field returns the data field name, as uploaded by the participant. Safe for concurrent use.
func (r *Record) Field(name string) gjson.Result {
	data := r.Get("data")
	if data.Type == gjson.String {
		return gjson.Get(data.String(), gjsonKey(name))
	}
	return data.Get(gjsonKey(name))
}

// gjsonKey escapes the characters gjson treats as path syntax.
func gjsonKey(name string) string {
	var escaped []byte
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			escaped = append(escaped, '\\', c)
		default:
			escaped = append(escaped, c)
		}
	}
	return string(escaped)
}
