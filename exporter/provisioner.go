package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/bridge-exporter/exporter/logfield"
	"github.com/rudderlabs/bridge-exporter/exporter/registry"
	"github.com/rudderlabs/bridge-exporter/synapse"
	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

var (
	adminAccess = []model.AccessType{
		model.AccessTypeRead,
		model.AccessTypeDownload,
		model.AccessTypeUpdate,
		model.AccessTypeDelete,
		model.AccessTypeCreate,
		model.AccessTypeChangePermissions,
		model.AccessTypeChangeSettings,
		model.AccessTypeModerate,
	}
	readAccess = []model.AccessType{
		model.AccessTypeRead,
		model.AccessTypeDownload,
	}
)

// AccessPolicy lists the principals granted access to new tables. Zero principal ids are skipped.
type AccessPolicy struct {
	Admins  []int64
	Readers []int64
}

func (p AccessPolicy) acl(tableID string) *model.AccessControlList {
	acl := &model.AccessControlList{ID: tableID}
	for _, id := range lo.Compact(p.Admins) {
		acl.ResourceAccess = append(acl.ResourceAccess, model.ResourceAccess{PrincipalID: id, AccessType: adminAccess})
	}
	for _, id := range lo.Compact(p.Readers) {
		acl.ResourceAccess = append(acl.ResourceAccess, model.ResourceAccess{PrincipalID: id, AccessType: readAccess})
	}
	return acl
}

type tableClient interface {
	CreateColumnModels(ctx context.Context, columns []model.ColumnModel) ([]model.ColumnModel, error)
	CreateTable(ctx context.Context, table *model.TableEntity) (*model.TableEntity, error)
	CreateACL(ctx context.Context, acl *model.AccessControlList) error
}

// Provisioner gets or creates tables. It is not safe for concurrent use: tables are provisioned one at a time.
type Provisioner struct {
	logger   logger.Logger
	client   tableClient
	registry registry.Store
}

func NewProvisioner(log logger.Logger, client tableClient, registry registry.Store) *Provisioner {
	return &Provisioner{
		logger:   log.Child("provisioner"),
		client:   client,
		registry: registry,
	}
}

// EnsureTable returns the id of the table registered for key, creating the table in projectID if there is none.
// A registered table costs no remote calls. The returned bool reports whether the table was created by this call.
func (p *Provisioner) EnsureTable(
	ctx context.Context,
	key, projectID string,
	columns []model.ColumnModel,
	policy AccessPolicy,
) (string, bool, error) {
	tableID, found, err := p.registry.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("looking up table %s: %w", key, err)
	}
	if found {
		return tableID, false, nil
	}

	for _, col := range columns {
		if col.ColumnType == model.ColumnTypeString && col.MaximumSize == nil {
			return "", false, &synapse.ConfigError{Column: col.Name, Reason: "string column has no max length"}
		}
	}

	createdColumns, err := p.client.CreateColumnModels(ctx, columns)
	if err != nil {
		return "", false, fmt.Errorf("provisioning table %s: %w", key, err)
	}

	table, err := p.client.CreateTable(ctx, &model.TableEntity{
		ConcreteType: model.ConcreteTypeTableEntity,
		Name:         key,
		ParentID:     projectID,
		ColumnIDs:    lo.Map(createdColumns, func(col model.ColumnModel, _ int) string { return col.ID }),
	})
	if err != nil {
		return "", false, fmt.Errorf("provisioning table %s: %w", key, err)
	}

	if err := p.client.CreateACL(ctx, policy.acl(table.ID)); err != nil {
		return "", false, fmt.Errorf("provisioning table %s: %w", key, err)
	}

	if err := p.registry.Put(ctx, key, table.ID); err != nil {
		if !errors.Is(err, registry.ErrAlreadyRegistered) {
			return "", false, fmt.Errorf("registering table %s: %w", key, err)
		}
		return p.registeredElsewhere(ctx, key, table.ID)
	}

	p.logger.Infon("Created table",
		logger.NewStringField(logfield.TableName, key),
		logger.NewStringField(logfield.TableID, table.ID),
		logger.NewStringField(logfield.ProjectID, projectID),
	)
	return table.ID, true, nil
}

// registeredElsewhere returns the table another exporter registered for key while this one was creating orphanID.
func (p *Provisioner) registeredElsewhere(ctx context.Context, key, orphanID string) (string, bool, error) {
	tableID, found, err := p.registry.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("looking up table %s: %w", key, err)
	}
	if !found {
		return "", false, fmt.Errorf("registering table %s: %w", key, registry.ErrAlreadyRegistered)
	}
	p.logger.Warnn("Table registered concurrently, leaving created table orphaned",
		logger.NewStringField(logfield.TableName, key),
		logger.NewStringField(logfield.TableID, tableID),
		logger.NewStringField(logfield.OrphanTableID, orphanID),
	)
	return tableID, false, nil
}
