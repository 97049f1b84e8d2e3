package tables

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter"
	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/record"
	"github.com/rudderlabs/bridge-exporter/exporter/schema"
	"github.com/rudderlabs/bridge-exporter/exporter/serialize"
	"github.com/rudderlabs/bridge-exporter/exporter/studyinfo"
)

// Studies looks up where a study is exported to. A nil StudyInfo means the study isn't exported.
type Studies interface {
	Get(ctx context.Context, studyID string) (*studyinfo.StudyInfo, error)
}

type RouterOpt func(*Router)

// WithProjectOverrides exports the studies in overrides to the given projects instead of their own.
func WithProjectOverrides(overrides map[string]string) RouterOpt {
	return func(r *Router) {
		r.projectOverrides = overrides
	}
}

// Router sends a record to the table of its schema and to its study's app version table. Specs are built once
// per table. A Router is used by a single dispatcher goroutine.
type Router struct {
	logger     logger.Logger
	schemas    *schema.Set
	studies    Studies
	sanitizer  *serialize.Sanitizer
	serializer *serialize.Serializer

	projectOverrides map[string]string

	healthData  map[schema.Key]*HealthData
	appVersions map[string]*AppVersion
	skipped     map[string]struct{}
}

func NewRouter(
	log logger.Logger,
	schemas *schema.Set,
	studies Studies,
	sanitizer *serialize.Sanitizer,
	serializer *serialize.Serializer,
	opts ...RouterOpt,
) *Router {
	r := &Router{
		logger:      log.Child("router"),
		schemas:     schemas,
		studies:     studies,
		sanitizer:   sanitizer,
		serializer:  serializer,
		healthData:  make(map[schema.Key]*HealthData),
		appVersions: make(map[string]*AppVersion),
		skipped:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Route(ctx context.Context, rec *record.Record) ([]exporter.TableSpec, error) {
	studyID := rec.StudyID()
	dest, ok, err := r.destination(ctx, studyID)
	if err != nil || !ok {
		return nil, err
	}

	var specs []exporter.TableSpec
	if key, ok := rec.SchemaKey(); ok {
		t, err := r.healthDataTable(key, dest)
		if err != nil {
			return nil, err
		}
		specs = append(specs, t)
	}

	t, ok := r.appVersions[studyID]
	if !ok {
		t = NewAppVersion(studyID, dest, r.sanitizer)
		r.appVersions[studyID] = t
	}
	return append(specs, t), nil
}

func (r *Router) destination(ctx context.Context, studyID string) (exporter.Destination, bool, error) {
	if _, ok := r.skipped[studyID]; ok {
		return exporter.Destination{}, false, nil
	}
	info, err := r.studies.Get(ctx, studyID)
	if err != nil {
		return exporter.Destination{}, false, fmt.Errorf("getting study info: %w", err)
	}
	if info == nil {
		r.logger.Infon("Skipping study, not configured for export", logger.NewStringField(logfield.StudyID, studyID))
		r.skipped[studyID] = struct{}{}
		return exporter.Destination{}, false, nil
	}

	dest := exporter.Destination{ProjectID: info.ProjectID, DataAccessTeamID: info.DataAccessTeamID}
	if projectID, ok := r.projectOverrides[studyID]; ok {
		dest.ProjectID = projectID
	}
	return dest, true, nil
}

func (r *Router) healthDataTable(key schema.Key, dest exporter.Destination) (*HealthData, error) {
	if t, ok := r.healthData[key]; ok {
		return t, nil
	}
	s, ok := r.schemas.Get(key)
	if !ok {
		return nil, fmt.Errorf("schema %s not found", key)
	}
	t, err := NewHealthData(s, dest, r.sanitizer, r.serializer)
	if err != nil {
		return nil, err
	}
	r.healthData[key] = t
	return t, nil
}
