package exporter

import (
	"context"
	"errors"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter/record"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

var (
	// ErrRowCountMismatch is returned when the store applied a different number of rows than were uploaded.
	ErrRowCountMismatch = errors.New("rows processed does not match lines written")
	// ErrNotWritable is returned by Run when the store doesn't accept writes.
	ErrNotWritable = errors.New("store is not writable")
)

type (
	TaskKind int

	// Task is a unit of work for a table worker.
	Task struct {
		Kind   TaskKind
		Record *record.Record
	}

	// Destination is where a table lives and who may read it.
	Destination struct {
		ProjectID        string
		DataAccessTeamID int64
	}

	// TableSpec is a kind of table: its columns and how records become its rows.
	TableSpec interface {
		// Name is the table name, and its key in the registry.
		Name() string
		Destination() Destination
		Columns() []model.ColumnModel
		// Headers are the TSV header, in the same order as Columns.
		Headers() []string
		// Row renders task into cells. A nil cell is empty.
		Row(ctx context.Context, task Task) ([]*string, error)
		// Report logs kind specific metrics once the table is done.
		Report(log logger.Logger, summary *TableSummary)
	}

	// Router maps a record to the tables it is exported to. A record routed nowhere is skipped.
	Router interface {
		Route(ctx context.Context, rec *record.Record) ([]TableSpec, error)
	}

	// TableSummary is the outcome of exporting one table.
	TableSummary struct {
		Table          string
		TableID        string
		Lines          int64
		Errors         int64
		Uploaded       bool
		Err            error
		ScratchPath    string
		UploadDuration time.Duration
	}

	// RunSummary is the outcome of a run.
	RunSummary struct {
		RunID        string
		Tag          string
		Records      int64
		RecordErrors int64
		Tables       []TableSummary
	}
)

const (
	TaskRowData TaskKind = iota
	TaskEndOfStream
)

// EndOfStream terminates a worker's consume loop.
var EndOfStream = Task{Kind: TaskEndOfStream}

func RowTask(rec *record.Record) Task {
	return Task{Kind: TaskRowData, Record: rec}
}

// Failed reports whether any table of the run failed.
func (s *RunSummary) Failed() bool {
	for _, table := range s.Tables {
		if table.Err != nil {
			return true
		}
	}
	return false
}
