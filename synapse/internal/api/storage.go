package api

import (
	"context"
	"net/http"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

func (a *API) GetStackStatus(ctx context.Context) (*model.StackStatus, error) {
	var res model.StackStatus
	if err := a.doJSON(ctx, "get stack status", http.MethodGet, "/repo/v1/status", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) GetUploadDestinationLocations(ctx context.Context, parentID string) ([]model.UploadDestinationLocation, error) {
	var res model.UploadDestinationLocations
	if err := a.doJSON(ctx, "get upload destination locations", http.MethodGet, "/file/v1/entity/"+parentID+"/uploadDestinationLocations", nil, &res); err != nil {
		return nil, err
	}
	return res.List, nil
}

func (a *API) CreateStorageLocationSetting(ctx context.Context, setting *model.StorageLocationSetting) (*model.StorageLocationSetting, error) {
	var res model.StorageLocationSetting
	if err := a.doJSON(ctx, "create storage location", http.MethodPost, "/repo/v1/storageLocation", setting, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetUploadProjectSetting returns ErrNotFound if the project has no upload setting yet.
func (a *API) GetUploadProjectSetting(ctx context.Context, projectID string) (*model.ProjectSetting, error) {
	var res model.ProjectSetting
	if err := a.doJSON(ctx, "get project setting", http.MethodGet, "/repo/v1/projectSettings/"+projectID+"/type/upload", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) CreateProjectSetting(ctx context.Context, setting *model.ProjectSetting) (*model.ProjectSetting, error) {
	var res model.ProjectSetting
	if err := a.doJSON(ctx, "create project setting", http.MethodPost, "/repo/v1/projectSettings", setting, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) UpdateProjectSetting(ctx context.Context, setting *model.ProjectSetting) error {
	return a.doJSON(ctx, "update project setting", http.MethodPut, "/repo/v1/projectSettings", setting, nil)
}
