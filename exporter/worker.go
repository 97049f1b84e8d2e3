package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	obskit "github.com/rudderlabs/rudder-observability-kit/go/labels"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/synapse"
	"github.com/rudderlabs/bridge-exporter/utils/misc"
)

type uploadClient interface {
	CreateFileHandle(ctx context.Context, path, contentType, parentID string) (string, error)
	UploadTsvToTable(ctx context.Context, tableID, fileHandleID string) (int64, error)
}

// worker exports the rows of one table. Rows are appended to a scratch TSV file as tasks arrive, and the file
// is uploaded and applied to the table at end of stream.
type worker struct {
	logger  logger.Logger
	spec    TableSpec
	tableID string
	client  uploadClient
	queue   chan Task

	scratchDir             string
	keepFailedScratchFiles bool
	createScratch          func(path string) (io.WriteCloser, error)

	lines  int64
	errors int64

	stats struct {
		lines      stats.Counter
		errors     stats.Counter
		uploadTime stats.Timer
	}
}

func newWorker(
	log logger.Logger,
	statsFactory stats.Stats,
	spec TableSpec,
	tableID string,
	client uploadClient,
	queueSize int,
	scratchDir string,
	keepFailedScratchFiles bool,
) *worker {
	w := &worker{
		logger: log.Child("worker").Withn(
			logger.NewStringField(logfield.TableName, spec.Name()),
			logger.NewStringField(logfield.TableID, tableID),
		),
		spec:                   spec,
		tableID:                tableID,
		client:                 client,
		queue:                  make(chan Task, queueSize),
		scratchDir:             scratchDir,
		keepFailedScratchFiles: keepFailedScratchFiles,
		createScratch: func(path string) (io.WriteCloser, error) {
			return os.Create(path)
		},
	}
	tags := stats.Tags{"table": spec.Name()}
	w.stats.lines = statsFactory.NewTaggedStat("bridge_ex_table_lines", stats.CountType, tags)
	w.stats.errors = statsFactory.NewTaggedStat("bridge_ex_table_errors", stats.CountType, tags)
	w.stats.uploadTime = statsFactory.NewTaggedStat("bridge_ex_upload_time", stats.TimerType, tags)
	return w
}

// run consumes the queue until end of stream and uploads the table.
func (w *worker) run(ctx context.Context) TableSummary {
	summary := w.export(ctx)
	summary.Lines, summary.Errors = w.lines, w.errors

	w.stats.lines.Count(int(w.lines))
	w.stats.errors.Count(int(w.errors))
	w.spec.Report(w.logger, &summary)
	return summary
}

func (w *worker) export(ctx context.Context) TableSummary {
	summary := TableSummary{Table: w.spec.Name(), TableID: w.tableID}

	path := filepath.Join(w.scratchDir, misc.SafeFileName(w.spec.Name())+"."+uuid.NewString()+".tsv")
	f, err := w.createScratch(path)
	if err != nil {
		summary.Err = fmt.Errorf("creating scratch file: %w", err)
		w.drain(ctx)
		return summary
	}

	tsv := csv.NewWriter(f)
	tsv.Comma = '\t'
	if err := writeHeader(tsv, w.spec.Headers()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		summary.Err = fmt.Errorf("writing header to %s: %w", path, err)
		w.drain(ctx)
		return summary
	}

	if err := w.accumulate(ctx, tsv); err != nil {
		_ = f.Close()
		summary.Err, summary.ScratchPath = err, path
		return summary
	}

	tsv.Flush()
	if err := tsv.Error(); err != nil {
		_ = f.Close()
		summary.Err, summary.ScratchPath = fmt.Errorf("flushing %s: %w", path, err), path
		return summary
	}
	if err := f.Close(); err != nil {
		summary.Err, summary.ScratchPath = fmt.Errorf("closing %s: %w", path, err), path
		return summary
	}

	if w.lines == 0 {
		_ = os.Remove(path)
		w.logger.Infon("No rows to upload")
		return summary
	}

	start := time.Now()
	fileHandleID, err := w.upload(ctx, path)
	if err != nil {
		w.logger.Errorn("Error uploading table",
			logger.NewStringField(logfield.ScratchPath, path),
			logger.NewStringField(logfield.FileHandleID, fileHandleID),
			logger.NewIntField(logfield.Lines, w.lines),
			obskit.Error(err),
		)
		summary.Err = err
		if w.keepFailedScratchFiles {
			summary.ScratchPath = path
		} else {
			_ = os.Remove(path)
		}
		return summary
	}
	summary.UploadDuration = time.Since(start)
	w.stats.uploadTime.SendTiming(summary.UploadDuration)
	summary.Uploaded = true
	_ = os.Remove(path)

	w.logger.Infon("Uploaded table",
		logger.NewStringField(logfield.FileHandleID, fileHandleID),
		logger.NewIntField(logfield.Lines, w.lines),
		logger.NewIntField(logfield.Errors, w.errors),
		logger.NewDurationField("uploadDuration", summary.UploadDuration),
	)
	return summary
}

func writeHeader(tsv *csv.Writer, headers []string) error {
	if err := tsv.Write(headers); err != nil {
		return err
	}
	tsv.Flush()
	return tsv.Error()
}

// accumulate writes a line per row task until end of stream. Failing rows are counted and skipped.
func (w *worker) accumulate(ctx context.Context, tsv *csv.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-w.queue:
			if task.Kind == TaskEndOfStream {
				return nil
			}
			cells, err := w.render(ctx, task)
			if err == nil {
				err = tsv.Write(cells)
			}
			if err != nil {
				w.errors++
				w.logger.Errorn("Error exporting row",
					logger.NewStringField(logfield.RecordID, task.Record.ID()),
					obskit.Error(err),
				)
				continue
			}
			w.lines++
		}
	}
}

func (w *worker) render(ctx context.Context, task Task) (cells []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			cells, err = nil, fmt.Errorf("panic rendering row: %v", r)
		}
	}()

	row, err := w.spec.Row(ctx, task)
	if err != nil {
		return nil, err
	}
	if len(row) != len(w.spec.Headers()) {
		return nil, fmt.Errorf("row has %d cells, table has %d columns", len(row), len(w.spec.Headers()))
	}
	cells = make([]string, len(row))
	for i, cell := range row {
		if cell != nil {
			cells[i] = *cell
		}
	}
	return cells, nil
}

func (w *worker) upload(ctx context.Context, path string) (string, error) {
	fileHandleID, err := w.client.CreateFileHandle(ctx, path, synapse.ContentTypeTSV, w.spec.Destination().ProjectID)
	if err != nil {
		return "", err
	}
	rows, err := w.client.UploadTsvToTable(ctx, w.tableID, fileHandleID)
	if err != nil {
		return fileHandleID, err
	}
	if rows != w.lines {
		return fileHandleID, fmt.Errorf("%d rows processed, %d lines written: %w", rows, w.lines, ErrRowCountMismatch)
	}
	return fileHandleID, nil
}

// drain discards tasks until end of stream, counting rows as errors.
func (w *worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			if task.Kind == TaskEndOfStream {
				return
			}
			w.errors++
		}
	}
}
