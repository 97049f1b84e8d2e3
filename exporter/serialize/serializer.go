// Package serialize turns record field values into the cell values of a table row.
package serialize

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/schema"
)

// Attachments resolves attachment ids found in records.
type Attachments interface {
	UploadFileHandle(ctx context.Context, projectID, attachmentID string) (*string, error)
	DownloadText(ctx context.Context, attachmentID string) (string, error)
}

type Serializer struct {
	logger      logger.Logger
	sanitizer   *Sanitizer
	attachments Attachments
}

func NewSerializer(log logger.Logger, sanitizer *Sanitizer, attachments Attachments) *Serializer {
	return &Serializer{
		logger:      log.Child("serializer"),
		sanitizer:   sanitizer,
		attachments: attachments,
	}
}

// Serialize returns the cell value of field fd, holding value, of recordID. A nil value is an empty cell.
// Values of the wrong JSON type are empty cells too.
func (s *Serializer) Serialize(
	ctx context.Context,
	projectID, recordID, studyID string,
	fd schema.FieldDefinition,
	value gjson.Result,
) (*string, error) {
	if !value.Exists() || value.Type == gjson.Null {
		return nil, nil
	}

	switch fd.Type {
	case schema.FieldTypeAttachmentBlob,
		schema.FieldTypeAttachmentCSV,
		schema.FieldTypeAttachmentJSONBlob,
		schema.FieldTypeAttachmentJSONTable,
		schema.FieldTypeAttachmentV2:
		if value.Type != gjson.String {
			return nil, nil
		}
		fileHandleID, err := s.attachments.UploadFileHandle(ctx, projectID, value.String())
		if err != nil {
			return nil, fmt.Errorf("uploading attachment for field %s: %w", fd.Name, err)
		}
		return fileHandleID, nil

	case schema.FieldTypeBoolean:
		if !value.IsBool() {
			return nil, nil
		}
		return lo.ToPtr(strconv.FormatBool(value.Bool())), nil

	case schema.FieldTypeCalendarDate,
		schema.FieldTypeDurationV2,
		schema.FieldTypeInlineJSONBlob,
		schema.FieldTypeSingleChoice,
		schema.FieldTypeString,
		schema.FieldTypeTimeV2:
		// non-string values, inline JSON blobs in particular, are exported as their JSON
		text := value.Raw
		if value.Type == gjson.String {
			text = value.String()
		}
		return s.sanitizer.Sanitize(&text, fd.Name, MaxLength(fd), recordID, studyID), nil

	case schema.FieldTypeFloat:
		if value.Type != gjson.Number {
			return nil, nil
		}
		return lo.ToPtr(value.Raw), nil

	case schema.FieldTypeInt:
		if value.Type != gjson.Number {
			return nil, nil
		}
		n, err := bigInteger(value.Raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		return lo.ToPtr(n), nil

	case schema.FieldTypeDate, schema.FieldTypeTimestamp:
		millis, err := EpochMillis(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		return lo.ToPtr(strconv.FormatInt(millis, 10)), nil

	case schema.FieldTypeLargeTextAttachment:
		if value.Type != gjson.String {
			return nil, nil
		}
		text, err := s.attachments.DownloadText(ctx, value.String())
		if err != nil {
			return nil, fmt.Errorf("downloading large text for field %s: %w", fd.Name, err)
		}
		return s.sanitizer.Sanitize(&text, fd.Name, nil, recordID, studyID), nil

	default:
		s.logger.Errorn("Unexpected field type",
			logger.NewStringField(logfield.FieldName, fd.Name),
			logger.NewStringField(logfield.RecordID, recordID),
			logger.NewStringField("fieldType", string(fd.Type)),
		)
		return nil, nil
	}
}

// EpochMillis returns value as milliseconds since the epoch. Numbers already are; strings are parsed as dates
// or timestamps, in UTC unless they carry a zone.
func EpochMillis(value gjson.Result) (int64, error) {
	switch value.Type {
	case gjson.Number:
		return value.Int(), nil
	case gjson.String:
		t, err := dateparse.ParseIn(value.String(), time.UTC)
		if err != nil {
			return 0, fmt.Errorf("parsing date %q: %w", value.String(), err)
		}
		return t.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("invalid date %s", value.Raw)
	}
}

// bigInteger returns the integer part of the JSON number raw, without losing precision.
func bigInteger(raw string) (string, error) {
	if n, ok := new(big.Int).SetString(raw, 10); ok {
		return n.String(), nil
	}
	f, _, err := big.ParseFloat(raw, 10, 256, big.ToZero)
	if err != nil {
		return "", fmt.Errorf("parsing number %s: %w", raw, err)
	}
	n, _ := f.Int(nil)
	return n.String(), nil
}
