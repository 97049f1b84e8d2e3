// Package exporter exports health data records to tables in the store, one worker per table.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	obskit "github.com/rudderlabs/rudder-observability-kit/go/labels"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/record"
	"github.com/rudderlabs/bridge-exporter/exporter/registry"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
	"github.com/rudderlabs/bridge-exporter/utils/misc"
)

type synapseClient interface {
	tableClient
	uploadClient
	IsWritable(ctx context.Context) (bool, error)
	MigrateTable(ctx context.Context, tableID string, desired []model.ColumnModel) (bool, error)
}

type Exporter struct {
	logger       logger.Logger
	statsFactory stats.Stats
	client       synapseClient
	provisioner  *Provisioner

	config struct {
		workerQueueSize        int
		tmpDir                 string
		migrateSchemas         bool
		requireWritable        bool
		keepFailedScratchFiles bool
		principalID            int64
		adminTeamID            int64
		staffTeamID            int64
	}
}

func New(conf *config.Config, log logger.Logger, statsFactory stats.Stats, client synapseClient, registry registry.Store) *Exporter {
	e := &Exporter{
		logger:       log.Child("exporter"),
		statsFactory: statsFactory,
		client:       client,
	}
	e.provisioner = NewProvisioner(e.logger, client, registry)

	e.config.workerQueueSize = conf.GetInt("Exporter.workerQueueSize", 1000)
	e.config.tmpDir = conf.GetString("Exporter.tmpDir", "")
	e.config.migrateSchemas = conf.GetBool("Exporter.migrateSchemas", true)
	e.config.requireWritable = conf.GetBool("Exporter.requireWritable", true)
	e.config.keepFailedScratchFiles = conf.GetBool("Exporter.keepFailedScratchFiles", true)
	e.config.principalID = conf.GetInt64("Synapse.principalId", 0)
	e.config.adminTeamID = conf.GetInt64("Synapse.team.bridgeAdmin", 0)
	e.config.staffTeamID = conf.GetInt64("Synapse.team.bridgeStaff", 0)
	return e
}

// Run exports every record of source to the tables router sends it to. Tables are provisioned one at a time, as
// they are first seen, and then fed to their own worker. Table failures are reported in the summary; an error
// is only returned when the run couldn't go on.
func (e *Exporter) Run(ctx context.Context, source record.Source, router Router, tag string) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.NewString(), Tag: tag}
	log := e.logger.Withn(
		logger.NewStringField(logfield.RunID, summary.RunID),
		logger.NewStringField(logfield.Tag, tag),
	)

	if e.config.requireWritable {
		writable, err := e.client.IsWritable(ctx)
		if err != nil {
			return nil, fmt.Errorf("checking store status: %w", err)
		}
		if !writable {
			return nil, ErrNotWritable
		}
	}

	scratchDir, err := misc.CreateTMPDIR(e.config.tmpDir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log.Infon("Starting export")

	results := make(chan TableSummary)
	collected := make(chan []TableSummary)
	go func() {
		var tables []TableSummary
		for table := range results {
			tables = append(tables, table)
		}
		collected <- tables
	}()

	var g errgroup.Group
	d := &dispatcher{
		exporter:   e,
		logger:     log,
		router:     router,
		scratchDir: scratchDir,
		group:      &g,
		results:    results,
		workers:    make(map[string]*worker),
		failed:     make(map[string]*TableSummary),
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		rec, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if record.IsParseError(err) {
			summary.RecordErrors++
			log.Warnn("Skipping invalid record", obskit.Error(err))
			continue
		}
		if err != nil {
			runErr = fmt.Errorf("reading records: %w", err)
			break
		}
		summary.Records++

		if err := d.dispatch(ctx, rec); err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			summary.RecordErrors++
			log.Errorn("Error dispatching record",
				logger.NewStringField(logfield.RecordID, rec.ID()),
				logger.NewStringField(logfield.StudyID, rec.StudyID()),
				obskit.Error(err),
			)
		}
	}

	d.close(ctx)
	_ = g.Wait()
	close(results)
	summary.Tables = append(<-collected, d.failedTables()...)
	slices.SortFunc(summary.Tables, func(a, b TableSummary) int { return strings.Compare(a.Table, b.Table) })

	log.Infon("Finished export",
		logger.NewIntField("records", summary.Records),
		logger.NewIntField("recordErrors", summary.RecordErrors),
		logger.NewIntField("tables", int64(len(summary.Tables))),
		logger.NewBoolField("failed", summary.Failed()),
		logger.NewDurationField("duration", time.Since(start)),
	)
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (e *Exporter) accessPolicy(dest Destination) AccessPolicy {
	return AccessPolicy{
		Admins:  []int64{e.config.principalID, e.config.adminTeamID},
		Readers: []int64{dest.DataAccessTeamID, e.config.staffTeamID},
	}
}
