package runner

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/rudderlabs/bridge-exporter/exporter"
	"github.com/rudderlabs/bridge-exporter/exporter/record"
	"github.com/rudderlabs/bridge-exporter/exporter/schema"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/exporter/studyinfo"
	"github.com/rudderlabs/bridge-exporter/exporter/tables"
	"github.com/rudderlabs/bridge-exporter/synapse"
)

var registryPrefixFlag = &cli.StringFlag{
	Name:  "registry-prefix",
	Usage: "table registry prefix, for one-off exports to separate projects",
}

func (r *Runner) exportCommand() *cli.Command {
	return &cli.Command{
		Name:   "export",
		Usage:  "export a batch of records",
		Action: r.export,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "records",
				Usage:    "file with one JSON record per line",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "schemas",
				Usage:    "upload schemas YAML file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "date",
				Usage: "only export records uploaded on this date (YYYY-MM-DD)",
			},
			&cli.StringSliceFlag{
				Name:  "study",
				Usage: "only export records of this study",
			},
			&cli.StringSliceFlag{
				Name:  "table",
				Usage: "only export records of this schema (studyId-schemaId-vN)",
			},
			&cli.StringSliceFlag{
				Name:  "project",
				Usage: "export a study to another project (study=syn123)",
			},
			registryPrefixFlag,
			&cli.StringFlag{
				Name:  "tag",
				Usage: "tag logged with the run",
			},
		},
	}
}

func (r *Runner) export(c *cli.Context) error {
	ctx := c.Context
	log := r.logFactory.NewLogger()

	schemas, err := schema.LoadFile(c.String("schemas"))
	if err != nil {
		return err
	}
	overrides, err := parseProjectOverrides(c.StringSlice("project"))
	if err != nil {
		return err
	}

	reg, closeRegistry, err := newRegistry(ctx, r.conf, r.stats, c.String("registry-prefix"))
	if err != nil {
		return err
	}
	defer closeRegistry()

	client := synapse.New(r.conf, log, r.stats)
	sess, err := newAWSSession(r.conf, "dynamodb")
	if err != nil {
		return err
	}
	studies := studyinfo.New(r.conf, log, dynamodb.New(sess))
	attachments, err := newAttachments(r.conf, log, r.stats, client)
	if err != nil {
		return err
	}

	sanitizer := serialize.NewSanitizer(log)
	router := tables.NewRouter(log, schemas, studies, sanitizer,
		serialize.NewSerializer(log, sanitizer, attachments),
		tables.WithProjectOverrides(overrides),
	)

	src, err := record.OpenFile(c.String("records"))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	source := &record.Filter{
		Source:     src,
		UploadDate: c.String("date"),
		Studies:    toSet(c.StringSlice("study")),
		Tables:     toSet(c.StringSlice("table")),
	}

	summary, err := exporter.New(r.conf, log, r.stats, client, reg).Run(ctx, source, router, c.String("tag"))
	if summary != nil {
		printSummary(r.out, summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed() {
		return cli.Exit("", 1)
	}
	return nil
}

func (r *Runner) queryCommand() *cli.Command {
	return &cli.Command{
		Name:   "query",
		Usage:  "print the rows of a table",
		Action: r.query,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "table",
				Usage:    "table id (syn123)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "sql",
				Usage: "query to run, all rows by default",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "stop after this many rows, 0 for all",
			},
		},
	}
}

func (r *Runner) query(c *cli.Context) error {
	ctx := c.Context
	client := synapse.New(r.conf, r.logFactory.NewLogger(), r.stats)

	it, err := synapse.NewTableIterator(ctx, client, c.String("sql"), c.String("table"))
	if err != nil {
		return err
	}
	var rows [][]*string
	for limit := c.Int("limit"); limit == 0 || len(rows) < limit; {
		ok, err := it.HasNext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row, err := it.Next(ctx)
		if err != nil {
			return err
		}
		rows = append(rows, row.Values)
	}
	printRows(r.out, rows)
	return nil
}

func (r *Runner) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "check whether the store accepts writes",
		Action: func(c *cli.Context) error {
			writable, err := synapse.New(r.conf, r.logFactory.NewLogger(), r.stats).IsWritable(c.Context)
			if err != nil {
				return err
			}
			printStatus(r.out, r.conf.GetString("Synapse.Client.URL", "https://repo-prod.prod.sagebase.org"), writable)
			if !writable {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func (r *Runner) tableIDCommand() *cli.Command {
	return &cli.Command{
		Name:  "table-id",
		Usage: "print the id of a registered table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "key",
				Usage:    "table key (studyId-schemaId-vN or studyId-appVersion)",
				Required: true,
			},
			registryPrefixFlag,
		},
		Action: func(c *cli.Context) error {
			reg, closeRegistry, err := newRegistry(c.Context, r.conf, r.stats, c.String("registry-prefix"))
			if err != nil {
				return err
			}
			defer closeRegistry()

			tableID, found, err := reg.Get(c.Context, c.String("key"))
			if err != nil {
				return err
			}
			if !found {
				return cli.Exit(fmt.Sprintf("table %s is not registered", c.String("key")), 1)
			}
			_, err = fmt.Fprintln(r.out, tableID)
			return err
		},
	}
}

// parseProjectOverrides parses study=project pairs.
func parseProjectOverrides(pairs []string) (map[string]string, error) {
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		studyID, projectID, ok := strings.Cut(pair, "=")
		if !ok || studyID == "" || projectID == "" {
			return nil, fmt.Errorf("invalid project override %q, expected study=project", pair)
		}
		overrides[studyID] = projectID
	}
	return overrides, nil
}

func toSet(values []string) map[string]struct{} {
	return lo.SliceToMap(values, func(v string) (string, struct{}) { return v, struct{}{} })
}
