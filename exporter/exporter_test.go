package exporter_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/rudderlabs/rudder-go-kit/stats/memstats"

	"github.com/rudderlabs/bridge-exporter/exporter"
	"github.com/rudderlabs/bridge-exporter/exporter/registry"
	"github.com/rudderlabs/bridge-exporter/synapse"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

func TestMain(m *testing.M) {
	// config.New watches the config file for the lifetime of the process
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/spf13/viper.(*Viper).WatchConfig.func1"),
		goleak.IgnoreAnyFunction("github.com/spf13/viper.(*Viper).WatchConfig.func1.1"),
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*inotify).readEvents"),
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
	)
}

func newTestExporter(t *testing.T, client *fakeClient, reg registry.Store, settings map[string]any) (*exporter.Exporter, *memstats.Store, string) {
	t.Helper()
	statsStore, err := memstats.New()
	require.NoError(t, err)

	tmpDir := t.TempDir()
	conf := config.New()
	conf.Set("Exporter.tmpDir", tmpDir)
	conf.Set("Exporter.workerQueueSize", 2)
	conf.Set("Synapse.principalId", 100)
	conf.Set("Synapse.team.bridgeAdmin", 200)
	conf.Set("Synapse.team.bridgeStaff", 300)
	for k, v := range settings {
		conf.Set(k, v)
	}
	return exporter.New(conf, logger.NOP, statsStore, client, reg), statsStore, tmpDir
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	dest := exporter.Destination{ProjectID: "syn10", DataAccessTeamID: 1337}

	t.Run("exports every table", func(t *testing.T) {
		client := newFakeClient()
		e, statsStore, tmpDir := newTestExporter(t, client, registry.NewMemory(), nil)

		survey := &fakeSpec{name: "study-survey-v1", dest: dest, failOn: "r3", panicOn: "r4"}
		appVersion := &fakeSpec{name: "study-appVersion", dest: dest}
		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {survey, appVersion}}}
		source := &sliceSource{lines: []string{
			recordLine("r1", "study", "a\tb"),
			recordLine("r2", "study", "c"),
			`not json`,
			recordLine("r3", "study", "d"),
			recordLine("r4", "study", "e"),
			recordLine("r5", "unroutable", "f"),
			recordLine("r6", "ignored", "g"),
		}}

		summary, err := e.Run(ctx, source, router, "test")
		require.NoError(t, err)
		require.False(t, summary.Failed())
		require.NotEmpty(t, summary.RunID)
		require.Equal(t, "test", summary.Tag)
		require.EqualValues(t, 6, summary.Records)
		require.EqualValues(t, 2, summary.RecordErrors)

		require.Len(t, summary.Tables, 2)
		appVersionSummary, surveySummary := summary.Tables[0], summary.Tables[1]

		require.Equal(t, "study-survey-v1", surveySummary.Table)
		require.EqualValues(t, 2, surveySummary.Lines)
		require.EqualValues(t, 2, surveySummary.Errors)
		require.True(t, surveySummary.Uploaded)
		require.NoError(t, surveySummary.Err)
		require.Equal(t, "recordId\tvalue\nr1\t\"a\tb\"\nr2\tc\n", client.uploads[surveySummary.TableID])
		require.Equal(t, &surveySummary, survey.reported)

		require.Equal(t, "study-appVersion", appVersionSummary.Table)
		require.EqualValues(t, 4, appVersionSummary.Lines)
		require.Zero(t, appVersionSummary.Errors)
		require.True(t, appVersionSummary.Uploaded)

		require.Len(t, client.tables, 2)
		require.Equal(t, "syn10", client.tables[0].ParentID)
		require.Len(t, client.acls, 2)
		require.Equal(t, []int64{100, 200, 1337, 300}, []int64{
			client.acls[0].ResourceAccess[0].PrincipalID,
			client.acls[0].ResourceAccess[1].PrincipalID,
			client.acls[0].ResourceAccess[2].PrincipalID,
			client.acls[0].ResourceAccess[3].PrincipalID,
		})

		require.EqualValues(t, 2, statsStore.Get("bridge_ex_table_lines", stats.Tags{"table": "study-survey-v1"}).LastValue())
		require.EqualValues(t, 2, statsStore.Get("bridge_ex_table_errors", stats.Tags{"table": "study-survey-v1"}).LastValue())
		require.Len(t, statsStore.Get("bridge_ex_upload_time", stats.Tags{"table": "study-survey-v1"}).Durations(), 1)
		require.Empty(t, scratchFiles(t, tmpDir))
	})

	t.Run("registered tables are migrated, not created", func(t *testing.T) {
		client := newFakeClient()
		reg := registry.NewMemory()
		require.NoError(t, reg.Put(ctx, "study-survey-v1", "syn99"))
		e, _, _ := newTestExporter(t, client, reg, nil)

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{recordLine("r1", "study", "a")}}, router, "")
		require.NoError(t, err)
		require.False(t, summary.Failed())
		require.Equal(t, "syn99", summary.Tables[0].TableID)
		require.Empty(t, client.tables)
		require.Equal(t, []string{"syn99"}, client.migrated)
	})

	t.Run("incompatible schema fails the table", func(t *testing.T) {
		client := newFakeClient()
		client.migrateErr = synapse.ErrIncompatibleSchema
		reg := registry.NewMemory()
		require.NoError(t, reg.Put(ctx, "study-survey-v1", "syn99"))
		e, _, _ := newTestExporter(t, client, reg, nil)

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{
			recordLine("r1", "study", "a"),
			recordLine("r2", "study", "b"),
		}}, router, "")
		require.NoError(t, err)
		require.True(t, summary.Failed())
		require.ErrorIs(t, summary.Tables[0].Err, synapse.ErrIncompatibleSchema)
		require.EqualValues(t, 2, summary.Tables[0].Errors)
		require.Empty(t, client.files)
	})

	t.Run("migration disabled", func(t *testing.T) {
		client := newFakeClient()
		reg := registry.NewMemory()
		require.NoError(t, reg.Put(ctx, "study-survey-v1", "syn99"))
		e, _, _ := newTestExporter(t, client, reg, map[string]any{"Exporter.migrateSchemas": false})

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		_, err := e.Run(ctx, &sliceSource{lines: []string{recordLine("r1", "study", "a")}}, router, "")
		require.NoError(t, err)
		require.Empty(t, client.migrated)
	})

	t.Run("failed table doesn't affect others", func(t *testing.T) {
		client := newFakeClient()
		client.tableUploadErrs["syn1"] = errors.New("conflict")
		reg := registry.NewMemory()
		require.NoError(t, reg.Put(ctx, "broken", "syn1"))
		require.NoError(t, reg.Put(ctx, "fine", "syn2"))
		e, _, tmpDir := newTestExporter(t, client, reg, map[string]any{"Exporter.migrateSchemas": false})

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{
			"a": {&fakeSpec{name: "broken", dest: dest}},
			"b": {&fakeSpec{name: "fine", dest: dest}},
		}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{
			recordLine("r1", "a", "x"),
			recordLine("r2", "a", "y"),
			recordLine("r3", "b", "z"),
		}}, router, "")
		require.NoError(t, err)
		require.True(t, summary.Failed())

		broken, fine := summary.Tables[0], summary.Tables[1]
		require.ErrorContains(t, broken.Err, "conflict")
		require.False(t, broken.Uploaded)
		require.EqualValues(t, 2, broken.Lines)
		require.FileExists(t, broken.ScratchPath)
		require.Len(t, scratchFiles(t, tmpDir), 1)

		require.NoError(t, fine.Err)
		require.True(t, fine.Uploaded)
		require.Equal(t, "recordId\tvalue\nr3\tz\n", client.uploads["syn2"])
	})

	t.Run("row count mismatch", func(t *testing.T) {
		client := newFakeClient()
		client.rowsProcessedDelta = -1
		e, _, _ := newTestExporter(t, client, registry.NewMemory(), nil)

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{
			recordLine("r1", "study", "a"),
			recordLine("r2", "study", "b"),
		}}, router, "")
		require.NoError(t, err)
		require.ErrorIs(t, summary.Tables[0].Err, exporter.ErrRowCountMismatch)
		require.FileExists(t, summary.Tables[0].ScratchPath)
	})

	t.Run("upload failure keeps the scratch file", func(t *testing.T) {
		client := newFakeClient()
		client.uploadErr = &synapse.TimeoutError{JobToken: "job-1"}
		e, _, _ := newTestExporter(t, client, registry.NewMemory(), nil)

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{recordLine("r1", "study", "a")}}, router, "")
		require.NoError(t, err)

		var timeoutErr *synapse.TimeoutError
		require.ErrorAs(t, summary.Tables[0].Err, &timeoutErr)
		require.Equal(t, "job-1", timeoutErr.JobToken)
		require.FileExists(t, summary.Tables[0].ScratchPath)
	})

	t.Run("upload failure without keeping scratch files", func(t *testing.T) {
		client := newFakeClient()
		client.createFileErr = errors.New("upload failed")
		e, _, tmpDir := newTestExporter(t, client, registry.NewMemory(), map[string]any{"Exporter.keepFailedScratchFiles": false})

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{recordLine("r1", "study", "a")}}, router, "")
		require.NoError(t, err)
		require.ErrorContains(t, summary.Tables[0].Err, "upload failed")
		require.Empty(t, summary.Tables[0].ScratchPath)
		require.Empty(t, scratchFiles(t, tmpDir))
	})

	t.Run("table without rows isn't uploaded", func(t *testing.T) {
		client := newFakeClient()
		e, _, tmpDir := newTestExporter(t, client, registry.NewMemory(), nil)

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest, failOn: "r1"}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{recordLine("r1", "study", "a")}}, router, "")
		require.NoError(t, err)
		require.False(t, summary.Failed())
		require.False(t, summary.Tables[0].Uploaded)
		require.EqualValues(t, 1, summary.Tables[0].Errors)
		require.Empty(t, client.files)
		require.Empty(t, scratchFiles(t, tmpDir))
	})

	t.Run("provisioning failure", func(t *testing.T) {
		client := newFakeClient()
		client.createTableErr = errors.New("throttled")
		e, _, _ := newTestExporter(t, client, registry.NewMemory(), nil)

		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		summary, err := e.Run(ctx, &sliceSource{lines: []string{
			recordLine("r1", "study", "a"),
			recordLine("r2", "study", "b"),
		}}, router, "")
		require.NoError(t, err)
		require.True(t, summary.Failed())
		require.ErrorContains(t, summary.Tables[0].Err, "throttled")
		require.EqualValues(t, 2, summary.Tables[0].Errors)
	})

	t.Run("store not writable", func(t *testing.T) {
		client := newFakeClient()
		client.notWritable = true
		e, _, _ := newTestExporter(t, client, registry.NewMemory(), nil)

		_, err := e.Run(ctx, &sliceSource{}, &fakeRouter{}, "")
		require.ErrorIs(t, err, exporter.ErrNotWritable)

		e, _, _ = newTestExporter(t, client, registry.NewMemory(), map[string]any{"Exporter.requireWritable": false})
		summary, err := e.Run(ctx, &sliceSource{}, &fakeRouter{}, "")
		require.NoError(t, err)
		require.Empty(t, summary.Tables)
	})

	t.Run("cancelled run", func(t *testing.T) {
		client := newFakeClient()
		e, _, _ := newTestExporter(t, client, registry.NewMemory(), map[string]any{"Exporter.requireWritable": false})

		ctx, cancel := context.WithCancel(ctx)
		cancel()
		router := &fakeRouter{specs: map[string][]exporter.TableSpec{"study": {&fakeSpec{name: "study-survey-v1", dest: dest}}}}
		_, err := e.Run(ctx, &sliceSource{lines: []string{recordLine("r1", "study", "a")}}, router, "")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAccessPolicy(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	p := exporter.NewProvisioner(logger.NOP, client, registry.NewMemory())

	_, _, err := p.EnsureTable(ctx, "key", "syn1", []model.ColumnModel{{Name: "a", ColumnType: model.ColumnTypeBoolean}},
		exporter.AccessPolicy{Admins: []int64{1, 0}, Readers: []int64{0, 2}})
	require.NoError(t, err)
	require.Equal(t, []model.ResourceAccess{
		{PrincipalID: 1, AccessType: []model.AccessType{
			model.AccessTypeRead, model.AccessTypeDownload, model.AccessTypeUpdate, model.AccessTypeDelete,
			model.AccessTypeCreate, model.AccessTypeChangePermissions, model.AccessTypeChangeSettings, model.AccessTypeModerate,
		}},
		{PrincipalID: 2, AccessType: []model.AccessType{model.AccessTypeRead, model.AccessTypeDownload}},
	}, client.acls[0].ResourceAccess)
}
