package serialize_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/logger/mock_logger"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/schema"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

type fakeAttachments struct {
	fileHandles map[string]string
	texts       map[string]string
	err         error
	uploads     []string
}

func (f *fakeAttachments) UploadFileHandle(_ context.Context, projectID, attachmentID string) (*string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, projectID+"/"+attachmentID)
	id, ok := f.fileHandles[attachmentID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeAttachments) DownloadText(_ context.Context, attachmentID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[attachmentID], nil
}

func TestSanitize(t *testing.T) {
	s := serialize.NewSanitizer(logger.NOP)

	testCases := []struct {
		name      string
		in        *string
		maxLength *int
		want      *string
	}{
		{name: "nil", in: nil, maxLength: lo.ToPtr(5), want: nil},
		{name: "html and whitespace", in: lo.ToPtr("<b>hello</b>\tworld"), want: lo.ToPtr("hello world")},
		{name: "truncated", in: lo.ToPtr("<b>hello</b>\tworld"), maxLength: lo.ToPtr(5), want: lo.ToPtr("hello")},
		{name: "newlines", in: lo.ToPtr("  a\r\nb\n\nc  "), maxLength: lo.ToPtr(100), want: lo.ToPtr("a b c")},
		{name: "truncates runes", in: lo.ToPtr("héllo wörld"), maxLength: lo.ToPtr(7), want: lo.ToPtr("héllo w")},
		{name: "exactly max length", in: lo.ToPtr("abc"), maxLength: lo.ToPtr(3), want: lo.ToPtr("abc")},
		{name: "empty", in: lo.ToPtr(""), maxLength: lo.ToPtr(3), want: lo.ToPtr("")},
		{name: "invisible characters", in: lo.ToPtr("a\u200bb\x00c\ufeff"), want: lo.ToPtr("abc")},
		{name: "unicode spaces", in: lo.ToPtr("a\u00a0b\u3000c"), want: lo.ToPtr("a b c")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, s.Sanitize(tc.in, "field", tc.maxLength, "record", "study"))
		})
	}
}

func TestSanitizeTruncationLog(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	mockLogger := mock_logger.NewMockLogger(mockCtrl)
	mockLogger.EXPECT().Child("sanitize").Return(mockLogger).Times(1)

	s := serialize.NewSanitizer(mockLogger)

	t.Run("truncated", func(t *testing.T) {
		var fields []logger.Field
		mockLogger.EXPECT().Errorn("Truncating string for field answer in record rec-1 in study study-1", gomock.Any()).
			Do(func(_ string, f ...logger.Field) { fields = f }).
			Times(1)

		require.Equal(t, lo.ToPtr("hello"), s.Sanitize(lo.ToPtr("hello world"), "answer", lo.ToPtr(5), "rec-1", "study-1"))
		require.Contains(t, fields, logger.NewStringField(logfield.FieldName, "answer"))
		require.Contains(t, fields, logger.NewStringField(logfield.RecordID, "rec-1"))
		require.Contains(t, fields, logger.NewStringField(logfield.StudyID, "study-1"))
		require.Contains(t, fields, logger.NewIntField(logfield.OriginalLength, 11))
		require.Contains(t, fields, logger.NewIntField(logfield.MaxLength, 5))
	})

	t.Run("within max length", func(t *testing.T) {
		require.Equal(t, lo.ToPtr("hello"), s.Sanitize(lo.ToPtr("hello"), "answer", lo.ToPtr(5), "rec-2", "study-1"))
		require.Equal(t, lo.ToPtr("hello world"), s.Sanitize(lo.ToPtr("hello world"), "answer", nil, "rec-3", "study-1"))
	})
}

func TestColumnForField(t *testing.T) {
	testCases := []struct {
		name string
		fd   schema.FieldDefinition
		want model.ColumnModel
	}{
		{
			name: "attachment",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeAttachmentV2},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeFileHandleID},
		},
		{
			name: "boolean",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeBoolean},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeBoolean},
		},
		{
			name: "default string length",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeString},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(100)},
		},
		{
			name: "calendar date",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeCalendarDate},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(10)},
		},
		{
			name: "duration",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeDurationV2},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(24)},
		},
		{
			name: "time",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeTimeV2},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(12)},
		},
		{
			name: "declared max length wins",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeTimeV2, MaxLength: lo.ToPtr(30)},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeString, MaximumSize: model.MaxSize(30)},
		},
		{
			name: "unbounded",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeString, UnboundedText: true},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeLargeText},
		},
		{
			name: "float",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeFloat},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeDouble},
		},
		{
			name: "int",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeInt},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeInteger},
		},
		{
			name: "timestamp",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeTimestamp},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeDate},
		},
		{
			name: "large text",
			fd:   schema.FieldDefinition{Name: "a", Type: schema.FieldTypeLargeTextAttachment},
			want: model.ColumnModel{Name: "a", ColumnType: model.ColumnTypeLargeText},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			col, err := serialize.ColumnForField(tc.fd)
			require.NoError(t, err)
			require.Equal(t, tc.want, col)
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, err := serialize.ColumnForField(schema.FieldDefinition{Name: "a", Type: "multi_choice"})
		require.Error(t, err)
	})
}

func TestSerialize(t *testing.T) {
	ctx := context.Background()
	attachments := &fakeAttachments{
		fileHandles: map[string]string{"att-1": "fh-1"},
		texts:       map[string]string{"text-1": "<p>long\ttext</p>"},
	}
	s := serialize.NewSerializer(logger.NOP, serialize.NewSanitizer(logger.NOP), attachments)

	field := func(fieldType schema.FieldType) schema.FieldDefinition {
		return schema.FieldDefinition{Name: "field", Type: fieldType}
	}

	testCases := []struct {
		name  string
		fd    schema.FieldDefinition
		value string
		want  *string
	}{
		{name: "null", fd: field(schema.FieldTypeString), value: `null`, want: nil},
		{name: "boolean", fd: field(schema.FieldTypeBoolean), value: `true`, want: lo.ToPtr("true")},
		{name: "boolean from string", fd: field(schema.FieldTypeBoolean), value: `"true"`, want: nil},
		{name: "string", fd: field(schema.FieldTypeString), value: `"a\tb"`, want: lo.ToPtr("a b")},
		{name: "string from number", fd: field(schema.FieldTypeString), value: `42`, want: lo.ToPtr("42")},
		{name: "inline json", fd: field(schema.FieldTypeInlineJSONBlob), value: `{"a":[1,2]}`, want: lo.ToPtr(`{"a":[1,2]}`)},
		{name: "calendar date truncated", fd: field(schema.FieldTypeCalendarDate), value: `"2024-01-02T00:00"`, want: lo.ToPtr("2024-01-02")},
		{
			name:  "unbounded string",
			fd:    schema.FieldDefinition{Name: "field", Type: schema.FieldTypeString, UnboundedText: true},
			value: `"` + strings.Repeat("x", 200) + `"`,
			want:  lo.ToPtr(strings.Repeat("x", 200)),
		},
		{name: "float keeps precision", fd: field(schema.FieldTypeFloat), value: `3.14159265358979323846`, want: lo.ToPtr("3.14159265358979323846")},
		{name: "float from string", fd: field(schema.FieldTypeFloat), value: `"3.1"`, want: nil},
		{name: "int", fd: field(schema.FieldTypeInt), value: `12345678901234567890`, want: lo.ToPtr("12345678901234567890")},
		{name: "int from decimal", fd: field(schema.FieldTypeInt), value: `-3.7`, want: lo.ToPtr("-3")},
		{name: "date", fd: field(schema.FieldTypeDate), value: `"2024-01-02"`, want: lo.ToPtr("1704153600000")},
		{name: "timestamp with zone", fd: field(schema.FieldTypeTimestamp), value: `"2024-01-02T03:04:05.678-08:00"`, want: lo.ToPtr("1704193445678")},
		{name: "timestamp millis", fd: field(schema.FieldTypeTimestamp), value: `1704153600000`, want: lo.ToPtr("1704153600000")},
		{name: "attachment", fd: field(schema.FieldTypeAttachmentBlob), value: `"att-1"`, want: lo.ToPtr("fh-1")},
		{name: "empty attachment", fd: field(schema.FieldTypeAttachmentCSV), value: `"att-empty"`, want: nil},
		{name: "attachment not a key", fd: field(schema.FieldTypeAttachmentV2), value: `{"a":1}`, want: nil},
		{name: "large text", fd: field(schema.FieldTypeLargeTextAttachment), value: `"text-1"`, want: lo.ToPtr("long text")},
		{name: "unknown type", fd: field("multi_choice"), value: `"a"`, want: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Serialize(ctx, "syn1", "record", "study", tc.fd, gjson.Parse(tc.value))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	t.Run("missing value", func(t *testing.T) {
		got, err := s.Serialize(ctx, "syn1", "record", "study", field(schema.FieldTypeString), gjson.Get(`{}`, "missing"))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("attachments go to the project", func(t *testing.T) {
		require.Contains(t, attachments.uploads, "syn1/att-1")
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := s.Serialize(ctx, "syn1", "record", "study", field(schema.FieldTypeDate), gjson.Parse(`"not a date"`))
		require.ErrorContains(t, err, "field field")
	})

	t.Run("attachment failure", func(t *testing.T) {
		errUnavailable := errors.New("unavailable")
		s := serialize.NewSerializer(logger.NOP, serialize.NewSanitizer(logger.NOP), &fakeAttachments{err: errUnavailable})
		_, err := s.Serialize(ctx, "syn1", "record", "study", field(schema.FieldTypeAttachmentV2), gjson.Parse(`"att-1"`))
		require.ErrorIs(t, err, errUnavailable)
		_, err = s.Serialize(ctx, "syn1", "record", "study", field(schema.FieldTypeLargeTextAttachment), gjson.Parse(`"text-1"`))
		require.ErrorIs(t, err, errUnavailable)
	})
}
