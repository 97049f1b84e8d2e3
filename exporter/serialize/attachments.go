package serialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/synapse"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
	"github.com/rudderlabs/bridge-exporter/utils/circuitbreaker"
	"github.com/rudderlabs/bridge-exporter/utils/httputil"
)

// contentMD5Key is the user metadata key attachments carry their MD5 in.
const contentMD5Key = "Custom-Content-MD5"

type synapseClient interface {
	EnsureS3StorageLocationCached(ctx context.Context, projectID, bucket string) (int64, error)
	CreateS3FileHandle(ctx context.Context, handle *model.S3FileHandle) (string, error)
}

// S3Attachments reads attachments from the attachments bucket. Calls go through a circuit breaker shared by
// all workers.
type S3Attachments struct {
	logger  logger.Logger
	s3      s3iface.S3API
	bucket  string
	synapse synapseClient
	breaker *circuitbreaker.CircuitBreaker

	stats struct {
		attachments stats.Counter
	}
}

func NewS3Attachments(
	log logger.Logger,
	statsFactory stats.Stats,
	s3Client s3iface.S3API,
	bucket string,
	synapse synapseClient,
	breaker *circuitbreaker.CircuitBreaker,
) *S3Attachments {
	a := &S3Attachments{
		logger:  log.Child("attachments"),
		s3:      s3Client,
		bucket:  bucket,
		synapse: synapse,
		breaker: breaker,
	}
	a.stats.attachments = statsFactory.NewStat("bridge_ex_attachments", stats.CountType)
	return a
}

// UploadFileHandle registers attachmentID as an external S3 file handle in projectID and returns the file
// handle id. Empty attachments have no file handle.
func (a *S3Attachments) UploadFileHandle(ctx context.Context, projectID, attachmentID string) (*string, error) {
	var fileHandleID *string
	err := a.breaker.Do(func() error {
		storageLocationID, err := a.synapse.EnsureS3StorageLocationCached(ctx, projectID, a.bucket)
		if err != nil {
			return fmt.Errorf("ensuring storage location: %w", err)
		}

		head, err := a.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(attachmentID),
		})
		if err != nil {
			return fmt.Errorf("getting metadata of attachment %s: %w", attachmentID, err)
		}
		if aws.Int64Value(head.ContentLength) == 0 {
			return nil
		}

		id, err := a.synapse.CreateS3FileHandle(ctx, &model.S3FileHandle{
			ConcreteType:      model.ConcreteTypeS3FileHandle,
			BucketName:        a.bucket,
			Key:               attachmentID,
			FileName:          attachmentID,
			ContentType:       aws.StringValue(head.ContentType),
			ContentSize:       aws.Int64Value(head.ContentLength),
			ContentMd5:        userMetadata(head.Metadata, contentMD5Key),
			StorageLocationID: storageLocationID,
		})
		if err != nil {
			return err
		}
		fileHandleID = &id
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.stats.attachments.Increment()
	a.logger.Debugn("Uploaded attachment",
		logger.NewStringField(logfield.AttachmentID, attachmentID),
		logger.NewStringField(logfield.ProjectID, projectID),
	)
	return fileHandleID, nil
}

// DownloadText returns the content of attachmentID.
func (a *S3Attachments) DownloadText(ctx context.Context, attachmentID string) (string, error) {
	var text string
	err := a.breaker.Do(func() error {
		out, err := a.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(attachmentID),
		})
		if err != nil {
			return fmt.Errorf("getting attachment %s: %w", attachmentID, err)
		}
		defer func() { _ = out.Body.Close() }()

		b, err := io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("reading attachment %s: %w", attachmentID, err)
		}
		text = string(b)
		return nil
	})
	return text, err
}

// IsTransientError reports whether an attachment call failed because S3 or the store is unavailable, throttling
// or unreachable. A missing object or any other 4xx is a problem of the attachment itself and is not transient.
func IsTransientError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return httputil.RetriableStatus(reqErr.StatusCode())
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case request.ErrCodeRequestError, request.ErrCodeResponseTimeout,
			"RequestTimeout", "SlowDown", "Throttling", "ThrottlingException", "ServiceUnavailable", "InternalError":
			return true
		default:
			return false
		}
	}
	return synapse.IsRetryable(err)
}

// userMetadata looks key up in S3 user metadata, whose keys the SDK canonicalizes.
func userMetadata(metadata map[string]*string, key string) string {
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return aws.StringValue(v)
		}
	}
	return ""
}
