package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/bridge-exporter/exporter/schema"
)

func TestLoadFile(t *testing.T) {
	write := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "schemas.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("valid", func(t *testing.T) {
		set, err := schema.LoadFile(write(t, `
schemas:
  - studyId: study
    schemaId: survey
    revision: 2
    fields:
      - name: answer
        type: string
        maxLength: 20
      - name: notes
        type: string
        unboundedText: true
      - name: photo
        type: attachment_v2
`))
		require.NoError(t, err)
		require.Equal(t, 1, set.Len())

		key := schema.Key{StudyID: "study", SchemaID: "survey", Revision: 2}
		require.Equal(t, "study-survey-v2", key.String())

		s, ok := set.Get(key)
		require.True(t, ok)
		require.Len(t, s.Fields, 3)
		require.Equal(t, 20, *s.Fields[0].MaxLength)
		require.True(t, s.Fields[1].UnboundedText)
		require.True(t, s.Fields[2].Type.IsAttachment())

		_, ok = set.Get(schema.Key{StudyID: "study", SchemaID: "survey", Revision: 1})
		require.False(t, ok)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := schema.LoadFile(write(t, `
schemas:
  - studyId: study
    schemaId: survey
    revision: 1
    fields:
      - name: choices
        type: multi_choice
`))
		require.ErrorContains(t, err, `unsupported type "multi_choice"`)
	})

	t.Run("duplicate schema", func(t *testing.T) {
		_, err := schema.LoadFile(write(t, `
schemas:
  - {studyId: study, schemaId: survey, revision: 1}
  - {studyId: study, schemaId: survey, revision: 1}
`))
		require.ErrorContains(t, err, "duplicate schema study-survey-v1")
	})

	t.Run("duplicate field", func(t *testing.T) {
		_, err := schema.LoadFile(write(t, `
schemas:
  - studyId: study
    schemaId: survey
    revision: 1
    fields:
      - {name: a, type: int}
      - {name: a, type: float}
`))
		require.ErrorContains(t, err, "duplicate field a")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := schema.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestFieldType(t *testing.T) {
	require.True(t, schema.FieldTypeAttachmentBlob.IsAttachment())
	require.False(t, schema.FieldTypeLargeTextAttachment.IsAttachment())
	require.True(t, schema.FieldTypeInlineJSONBlob.IsString())
	require.False(t, schema.FieldTypeInt.IsString())
}
