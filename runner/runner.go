// Package runner wires the exporter and its dependencies into the bridge-ex command line.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	svcMetric "github.com/rudderlabs/rudder-go-kit/stats/metric"
	obskit "github.com/rudderlabs/rudder-observability-kit/go/labels"
)

const serviceName = "bridge-exporter"

// ReleaseInfo holds the release information
type ReleaseInfo struct {
	Version   string
	Commit    string
	BuildDate string
	BuiltBy   string
}

// Runner is responsible for running the command line
type Runner struct {
	releaseInfo ReleaseInfo
	conf        *config.Config
	logFactory  *logger.Factory
	logger      logger.Logger
	stats       stats.Stats
	out         io.Writer
}

// New creates and initializes a new Runner
func New(releaseInfo ReleaseInfo) *Runner {
	conf := config.New(config.WithEnvPrefix("BRIDGE_EX"))
	logFactory := logger.NewFactory(conf)
	return &Runner{
		releaseInfo: releaseInfo,
		conf:        conf,
		logFactory:  logFactory,
		logger:      logFactory.NewLogger().Child("runner"),
		out:         os.Stdout,
	}
}

// Run runs the command line and returns the exit code
func (r *Runner) Run(ctx context.Context, args []string) int {
	defer r.logFactory.Sync()

	if path, err := r.conf.ConfigFileUsed(); err != nil {
		r.logger.Warnn("Config: Failed to parse config file, using default values",
			logger.NewStringField("path", path),
			obskit.Error(err),
		)
	} else {
		r.logger.Infon("Config: Using config file", logger.NewStringField("path", path))
	}
	if err := r.conf.DotEnvLoaded(); err != nil {
		r.logger.Infon("Config: No .env file loaded", obskit.Error(err))
	}

	statsOptions := []stats.Option{
		stats.WithServiceName(serviceName),
		stats.WithServiceVersion(r.releaseInfo.Version),
		stats.WithDefaultHistogramBuckets(defaultHistogramBuckets),
	}
	for histogramName, buckets := range customBuckets {
		statsOptions = append(statsOptions, stats.WithHistogramBuckets(histogramName, buckets))
	}
	r.stats = stats.NewStats(r.conf, r.logFactory, svcMetric.Instance, statsOptions...)
	if err := r.stats.Start(ctx, stats.DefaultGoRoutineFactory); err != nil {
		r.logger.Errorn("Failed to start stats", obskit.Error(err))
		return 1
	}
	defer r.stats.Stop()

	err := r.app().RunContext(ctx, args)
	if err == nil {
		return 0
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			r.logger.Errorn("Exiting", obskit.Error(err))
		}
		return exitErr.ExitCode()
	}
	r.logger.Errorn("Terminal error", obskit.Error(err))
	return 1
}

func (r *Runner) app() *cli.App {
	return &cli.App{
		Name:            "bridge-ex",
		Usage:           "export health study records to store tables",
		Version:         fmt.Sprintf("%s (commit %s, built %s by %s)", r.releaseInfo.Version, r.releaseInfo.Commit, r.releaseInfo.BuildDate, r.releaseInfo.BuiltBy),
		Writer:          r.out,
		HideHelpCommand: true,
		ExitErrHandler:  func(*cli.Context, error) {},
		Commands: []*cli.Command{
			r.exportCommand(),
			r.queryCommand(),
			r.statusCommand(),
			r.tableIDCommand(),
		},
	}
}
