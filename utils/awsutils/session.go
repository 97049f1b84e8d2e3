package awsutils

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/rudderlabs/rudder-go-kit/config"
)

type SessionConfig struct {
	Region      string
	AccessKeyID string
	AccessKey   string
	IAMRoleARN  string
	ExternalID  string
	// Endpoint overrides the service endpoint, e.g. for a local DynamoDB.
	Endpoint string
	Service  string
	Timeout  time.Duration
}

// NewSessionConfig reads the AWS.* keys of conf.
func NewSessionConfig(conf *config.Config, serviceName string) *SessionConfig {
	return &SessionConfig{
		Region:      conf.GetString("AWS.region", "us-east-1"),
		AccessKeyID: conf.GetString("AWS.accessKeyID", ""),
		AccessKey:   conf.GetString("AWS.accessKey", ""),
		IAMRoleARN:  conf.GetString("AWS.iamRoleARN", ""),
		ExternalID:  conf.GetString("AWS.externalID", ""),
		Endpoint:    conf.GetString("AWS.endpoint", ""),
		Service:     serviceName,
		Timeout:     conf.GetDuration("AWS.timeout", 30, time.Second),
	}
}

func createRoleSessionName(serviceName string) string {
	return fmt.Sprintf("bridge-exporter-aws-%s-access", strings.ToLower(serviceName))
}

func createCredentials(config *SessionConfig) (*credentials.Credentials, error) {
	switch {
	case config.IAMRoleARN != "":
		hostSession, err := session.NewSession(&aws.Config{
			HTTPClient: &http.Client{Timeout: config.Timeout},
			Region:     aws.String(config.Region),
		})
		if err != nil {
			return nil, fmt.Errorf("creating host session: %w", err)
		}
		return stscreds.NewCredentials(hostSession, config.IAMRoleARN, func(p *stscreds.AssumeRoleProvider) {
			if config.ExternalID != "" {
				p.ExternalID = aws.String(config.ExternalID)
			}
			p.RoleSessionName = createRoleSessionName(config.Service)
		}), nil
	case config.AccessKey != "" && config.AccessKeyID != "":
		return credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKey, ""), nil
	default:
		// default credential chain
		return nil, nil
	}
}

func CreateSession(config *SessionConfig) (*session.Session, error) {
	creds, err := createCredentials(config)
	if err != nil {
		return nil, err
	}
	awsConfig := &aws.Config{
		HTTPClient:  &http.Client{Timeout: config.Timeout},
		Region:      aws.String(config.Region),
		Credentials: creds,
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating %s session: %w", config.Service, err)
	}
	return sess, nil
}
