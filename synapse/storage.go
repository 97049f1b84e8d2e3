package synapse

import (
	"context"
	"errors"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

const (
	uploadTypeS3       = "S3"
	settingsTypeUpload = "upload"
)

// IsWritable reports whether the store currently accepts writes.
func (c *Client) IsWritable(ctx context.Context) (bool, error) {
	status, err := call(ctx, c, c.limiter, c.policies.writable, func(ctx context.Context) (*model.StackStatus, error) {
		return c.api.GetStackStatus(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("getting stack status: %w", err)
	}
	return status.Status == model.StatusReadWrite, nil
}

// EnsureS3StorageLocationCached is EnsureS3StorageLocation with its result cached per project and bucket.
func (c *Client) EnsureS3StorageLocationCached(ctx context.Context, projectID, bucket string) (int64, error) {
	key := projectID + "/" + bucket
	if id := c.storageLocations.Get(key); id != 0 {
		return id, nil
	}
	id, err := c.EnsureS3StorageLocation(ctx, projectID, bucket)
	if err != nil {
		return 0, err
	}
	c.storageLocations.Put(key, id, c.config.storageLocationCacheTTL)
	return id, nil
}

// EnsureS3StorageLocation returns the id of the project's external S3 storage location, creating it and adding
// it to the project's upload destinations if needed. Calls are serialized.
func (c *Client) EnsureS3StorageLocation(ctx context.Context, projectID, bucket string) (int64, error) {
	c.storageLocationMu.Lock()
	defer c.storageLocationMu.Unlock()

	locations, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) ([]model.UploadDestinationLocation, error) {
		return c.api.GetUploadDestinationLocations(ctx, projectID)
	})
	if err != nil {
		return 0, fmt.Errorf("getting upload destinations of project %s: %w", projectID, err)
	}
	for _, location := range locations {
		if location.UploadType == uploadTypeS3 && location.StorageLocationID != model.DefaultStorageLocationID {
			return location.StorageLocationID, nil
		}
	}

	setting, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.StorageLocationSetting, error) {
		return c.api.CreateStorageLocationSetting(ctx, &model.StorageLocationSetting{
			ConcreteType: model.ConcreteTypeExternalS3Storage,
			Bucket:       bucket,
			UploadType:   uploadTypeS3,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("creating storage location for bucket %s: %w", bucket, err)
	}
	storageLocationID := setting.StorageLocationID

	projectSetting, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.ProjectSetting, error) {
		return c.api.GetUploadProjectSetting(ctx, projectID)
	})
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.ProjectSetting, error) {
			return c.api.CreateProjectSetting(ctx, &model.ProjectSetting{
				ConcreteType: model.ConcreteTypeUploadDestinationSetting,
				ProjectID:    projectID,
				SettingsType: settingsTypeUpload,
				Locations:    []int64{model.DefaultStorageLocationID, storageLocationID},
			})
		})
		if err != nil {
			return 0, fmt.Errorf("creating upload setting of project %s: %w", projectID, err)
		}
	case err != nil:
		return 0, fmt.Errorf("getting upload setting of project %s: %w", projectID, err)
	default:
		projectSetting.Locations = append(projectSetting.Locations, storageLocationID)
		_, err = call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.UpdateProjectSetting(ctx, projectSetting)
		})
		if err != nil {
			return 0, fmt.Errorf("updating upload setting of project %s: %w", projectID, err)
		}
	}

	c.logger.Infon("Created S3 storage location",
		logger.NewStringField("projectId", projectID),
		logger.NewStringField("bucket", bucket),
		logger.NewIntField("storageLocationId", storageLocationID),
	)
	return storageLocationID, nil
}

// CreateS3FileHandle registers an existing S3 object as a file handle in the store and returns its id.
func (c *Client) CreateS3FileHandle(ctx context.Context, handle *model.S3FileHandle) (string, error) {
	created, err := call(ctx, c, c.limiter, c.policies.def, func(ctx context.Context) (*model.S3FileHandle, error) {
		return c.api.CreateExternalS3FileHandle(ctx, handle)
	})
	if err != nil {
		return "", fmt.Errorf("creating s3 file handle for %s: %w", handle.Key, err)
	}
	return created.ID, nil
}
