package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/bridge-exporter/exporter/registry"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/synapse"
	"github.com/rudderlabs/bridge-exporter/utils/awsutils"
	"github.com/rudderlabs/bridge-exporter/utils/circuitbreaker"
	"github.com/rudderlabs/bridge-exporter/utils/misc"
)

const (
	registryBackendDynamoDB = "dynamodb"
	registryBackendPostgres = "postgres"
	registryBackendMemory   = "memory"
)

func newAWSSession(conf *config.Config, service string) (*session.Session, error) {
	sess, err := awsutils.CreateSession(awsutils.NewSessionConfig(conf, service))
	if err != nil {
		return nil, fmt.Errorf("creating %s session: %w", service, err)
	}
	return sess, nil
}

// newRegistry returns the table registry backend configured in Registry.backend. A non-empty prefix replaces the
// configured one. The returned func releases the backend.
func newRegistry(ctx context.Context, conf *config.Config, statsFactory stats.Stats, prefix string) (registry.Store, func(), error) {
	backend := strings.ToLower(conf.GetString("Registry.backend", registryBackendDynamoDB))
	noop := func() {}

	switch backend {
	case registryBackendDynamoDB:
		if prefix == "" {
			prefix = conf.GetString("Registry.dynamodb.prefix", "prod-exporter-")
		}
		sess, err := newAWSSession(conf, "dynamodb")
		if err != nil {
			return nil, nil, err
		}
		return registry.NewDynamoDB(dynamodb.New(sess), prefix), noop, nil

	case registryBackendPostgres:
		if prefix == "" {
			prefix = conf.GetString("Registry.postgres.prefix", "")
		}
		db, err := misc.NewDatabaseConnectionPool(ctx, conf, "Registry.postgres", "registry", statsFactory)
		if err != nil {
			return nil, nil, fmt.Errorf("opening registry database: %w", err)
		}

		store := registry.NewPostgres(db, prefix)
		if err := store.Setup(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	case registryBackendMemory:
		return registry.NewMemory(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", backend)
	}
}

var errNoAttachmentsBucket = errors.New("no attachments bucket configured")

// unconfiguredAttachments fails every attachment field.
type unconfiguredAttachments struct{}

func (unconfiguredAttachments) UploadFileHandle(context.Context, string, string) (*string, error) {
	return nil, errNoAttachmentsBucket
}

func (unconfiguredAttachments) DownloadText(context.Context, string) (string, error) {
	return "", errNoAttachmentsBucket
}

// newAttachments returns the S3 attachments reader of the bucket in Attachments.bucket.
func newAttachments(conf *config.Config, log logger.Logger, statsFactory stats.Stats, client *synapse.Client) (serialize.Attachments, error) {
	bucket := conf.GetString("Attachments.bucket", "")
	if bucket == "" {
		log.Warnn("No attachments bucket configured, attachment fields will fail")
		return unconfiguredAttachments{}, nil
	}
	sess, err := newAWSSession(conf, "s3")
	if err != nil {
		return nil, err
	}
	breaker := circuitbreaker.New("attachments",
		circuitbreaker.WithLogger(log),
		circuitbreaker.WithConsecutiveFailures(conf.GetInt("Attachments.breaker.consecutiveFailures", 5)),
		circuitbreaker.WithTimeout(conf.GetDuration("Attachments.breaker.timeout", 30, time.Second)),
		circuitbreaker.WithFailurePredicate(serialize.IsTransientError),
	)
	return serialize.NewS3Attachments(log, statsFactory, s3.New(sess), bucket, client, breaker), nil
}
