package exporter

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rudderlabs/rudder-go-kit/logger"
	obskit "github.com/rudderlabs/rudder-observability-kit/go/labels"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/record"
)

// dispatcher fans records out to table workers. A table is provisioned the first time a record is routed to it,
// on the dispatching goroutine, and its worker is started once provisioning succeeded.
type dispatcher struct {
	exporter   *Exporter
	logger     logger.Logger
	router     Router
	scratchDir string
	group      *errgroup.Group
	results    chan<- TableSummary

	workers map[string]*worker
	failed  map[string]*TableSummary
}

func (d *dispatcher) dispatch(ctx context.Context, rec *record.Record) error {
	specs, err := d.router.Route(ctx, rec)
	if err != nil {
		return fmt.Errorf("routing record: %w", err)
	}

	for _, spec := range specs {
		if failed, ok := d.failed[spec.Name()]; ok {
			failed.Errors++
			continue
		}
		w, ok := d.workers[spec.Name()]
		if !ok {
			if w, err = d.startWorker(ctx, spec); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Errorn("Error provisioning table",
					logger.NewStringField(logfield.TableName, spec.Name()),
					logger.NewStringField(logfield.ProjectID, spec.Destination().ProjectID),
					obskit.Error(err),
				)
				d.failed[spec.Name()] = &TableSummary{Table: spec.Name(), Errors: 1, Err: err}
				continue
			}
		}

		select {
		case w.queue <- RowTask(rec):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *dispatcher) startWorker(ctx context.Context, spec TableSpec) (*worker, error) {
	e := d.exporter
	dest := spec.Destination()

	tableID, created, err := e.provisioner.EnsureTable(ctx, spec.Name(), dest.ProjectID, spec.Columns(), e.accessPolicy(dest))
	if err != nil {
		return nil, err
	}
	if !created && e.config.migrateSchemas {
		if _, err := e.client.MigrateTable(ctx, tableID, spec.Columns()); err != nil {
			return nil, fmt.Errorf("migrating table %s: %w", spec.Name(), err)
		}
	}

	w := newWorker(d.logger, e.statsFactory, spec, tableID, e.client, e.config.workerQueueSize, d.scratchDir, e.config.keepFailedScratchFiles)
	d.workers[spec.Name()] = w
	d.group.Go(func() error {
		summary := w.run(ctx)
		d.results <- summary
		return nil
	})
	return w, nil
}

// close sends end of stream to every worker.
func (d *dispatcher) close(ctx context.Context) {
	for _, w := range d.workers {
		select {
		case w.queue <- EndOfStream:
		case <-ctx.Done():
			return
		}
	}
}

func (d *dispatcher) failedTables() []TableSummary {
	tables := make([]TableSummary, 0, len(d.failed))
	for _, failed := range d.failed {
		tables = append(tables, *failed)
	}
	return tables
}
