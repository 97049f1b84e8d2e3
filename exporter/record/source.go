package record

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxRecordSize = 16 << 20

// Source yields records one at a time. Next returns io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context) (*Record, error)
}

// FileSource reads records from a file with one JSON document per line. Blank lines are skipped.
type FileSource struct {
	f       *os.File
	scanner *bufio.Scanner
	line    int
}

func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening records file: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxRecordSize)
	return &FileSource{f: f, scanner: scanner}, nil
}

func (s *FileSource) Next(ctx context.Context) (*Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading records file at line %d: %w", s.line+1, err)
			}
			return nil, io.EOF
		}
		s.line++

		b := s.scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		r, err := Parse(append([]byte(nil), b...))
		if err != nil {
			return nil, &ParseError{Line: s.line, Err: err}
		}
		return r, nil
	}
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

// ParseError is a line of a records file that doesn't hold a valid record. The source can still be read past it.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing record at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// Filter restricts the records of a source to the given upload date, studies and schemas. Empty allow-lists
// allow everything.
type Filter struct {
	Source     Source
	UploadDate string
	Studies    map[string]struct{}
	Tables     map[string]struct{}
}

func (f *Filter) Next(ctx context.Context) (*Record, error) {
	for {
		r, err := f.Source.Next(ctx)
		if err != nil {
			return nil, err
		}
		if f.Accept(r) {
			return r, nil
		}
	}
}

// Accept reports whether r passes the filter. Schemaless records never pass a table allow-list.
func (f *Filter) Accept(r *Record) bool {
	if f.UploadDate != "" && r.Get("uploadDate").String() != f.UploadDate {
		return false
	}
	if len(f.Studies) > 0 {
		if _, ok := f.Studies[r.StudyID()]; !ok {
			return false
		}
	}
	if len(f.Tables) > 0 {
		key, ok := r.SchemaKey()
		if !ok {
			return false
		}
		if _, ok := f.Tables[key.String()]; !ok {
			return false
		}
	}
	return true
}
