package serialize

import (
	"strings"
	"unicode/utf8"

	"github.com/k3a/html2text"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
)

// Sanitizer makes strings safe for a TSV cell: HTML is stripped, whitespace runs are flattened into a single
// space and values longer than the column allows are truncated.
type Sanitizer struct {
	logger logger.Logger
}

func NewSanitizer(log logger.Logger) *Sanitizer {
	return &Sanitizer{logger: log.Child("sanitize")}
}

// Sanitize returns the sanitized in. A nil maxLength means the value is unbounded. Truncation is logged as an
// error with the field, record and study so it can be found after the run.
func (s *Sanitizer) Sanitize(in *string, fieldName string, maxLength *int, recordID, studyID string) *string {
	if in == nil {
		return nil
	}
	out := SanitizeString(*in)

	if maxLength != nil {
		if n := utf8.RuneCountInString(out); n > *maxLength {
			s.logger.Errorn("Truncating string for field "+fieldName+" in record "+recordID+" in study "+studyID,
				logger.NewStringField(logfield.FieldName, fieldName),
				logger.NewStringField(logfield.RecordID, recordID),
				logger.NewStringField(logfield.StudyID, studyID),
				logger.NewIntField(logfield.OriginalLength, int64(n)),
				logger.NewIntField(logfield.MaxLength, int64(*maxLength)),
			)
			out = truncateRunes(out, *maxLength)
		}
	}
	return &out
}

// SanitizeString strips HTML and invisible characters from in and flattens its whitespace. Nothing is truncated.
func SanitizeString(in string) string {
	if in == "" {
		return in
	}
	if strings.ContainsAny(in, "<&") {
		in = html2text.HTML2Text(in)
	}
	return strings.Join(strings.Fields(stripInvisible(in)), " ")
}

func truncateRunes(s string, n int) string {
	var i int
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
