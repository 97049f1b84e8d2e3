// Package studyinfo looks up the export settings of studies.
package studyinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/spf13/cast"

	"github.com/rudderlabs/rudder-go-kit/cachettl"
	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
)

const (
	attributeIdentifier       = "identifier"
	attributeDataAccessTeamID = "synapseDataAccessTeamId"
	attributeProjectID        = "synapseProjectId"
	attributeDisableExport    = "disableExport"
)

// StudyInfo holds where a study's data is exported to.
type StudyInfo struct {
	ProjectID        string
	DataAccessTeamID int64
}

type cacheEntry struct {
	info *StudyInfo
}

// Store reads study info from the studies DynamoDB table. Lookups are cached, misses included.
type Store struct {
	logger logger.Logger
	client dynamodbiface.DynamoDBAPI
	cache  *cachettl.Cache[string, *cacheEntry]

	config struct {
		table    string
		cacheTTL time.Duration
	}
}

func New(conf *config.Config, log logger.Logger, client dynamodbiface.DynamoDBAPI) *Store {
	s := &Store{
		logger: log.Child("studyinfo"),
		client: client,
		cache:  cachettl.New[string, *cacheEntry](),
	}
	s.config.table = conf.GetString("StudyInfo.dynamodb.table", "prod-heroku-Study")
	s.config.cacheTTL = conf.GetDuration("StudyInfo.cacheTTL", 5, time.Minute)
	return s
}

// Get returns the study info of studyID. Studies with export disabled, or without a project or data access
// team, have none.
func (s *Store) Get(ctx context.Context, studyID string) (*StudyInfo, error) {
	if entry := s.cache.Get(studyID); entry != nil {
		return entry.info, nil
	}

	info, err := s.get(ctx, studyID)
	if err != nil {
		return nil, err
	}
	s.cache.Put(studyID, &cacheEntry{info: info}, s.config.cacheTTL)
	return info, nil
}

func (s *Store) get(ctx context.Context, studyID string) (*StudyInfo, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.table),
		Key:       map[string]*dynamodb.AttributeValue{attributeIdentifier: {S: aws.String(studyID)}},
	})
	if err != nil {
		return nil, fmt.Errorf("getting study %s: %w", studyID, err)
	}
	if len(out.Item) == 0 {
		s.logger.Warnn("Study not found", logger.NewStringField(logfield.StudyID, studyID))
		return nil, nil
	}

	var item map[string]any
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshalling study %s: %w", studyID, err)
	}

	if disable, ok := item[attributeDisableExport]; ok && disable != nil {
		disabled, err := cast.ToInt64E(disable)
		if err != nil {
			return nil, fmt.Errorf("study %s: invalid %s: %w", studyID, attributeDisableExport, err)
		}
		if disabled != 0 {
			return nil, nil
		}
	}

	projectID := cast.ToString(item[attributeProjectID])
	teamValue, ok := item[attributeDataAccessTeamID]
	if projectID == "" || !ok || teamValue == nil {
		return nil, nil
	}
	teamID, err := cast.ToInt64E(teamValue)
	if err != nil {
		return nil, fmt.Errorf("study %s: invalid %s: %w", studyID, attributeDataAccessTeamID, err)
	}
	return &StudyInfo{ProjectID: projectID, DataAccessTeamID: teamID}, nil
}
