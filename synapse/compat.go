package synapse

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/rudderlabs/bridge-exporter/synapse/model"
)

// allowedTypeChanges maps an existing column type to the types it can be migrated to in place.
var allowedTypeChanges = map[model.ColumnType][]model.ColumnType{
	model.ColumnTypeInteger: {model.ColumnTypeDouble, model.ColumnTypeDate, model.ColumnTypeString, model.ColumnTypeLargeText},
	model.ColumnTypeDate:    {model.ColumnTypeInteger, model.ColumnTypeDouble},
	model.ColumnTypeDouble:  {model.ColumnTypeString, model.ColumnTypeLargeText},
	model.ColumnTypeString:  {model.ColumnTypeLargeText},
}

// Longest string representation of numeric values, used when a numeric column becomes a string column.
const (
	doubleStringLength  = 22
	integerStringLength = 20
)

// IsCompatibleColumn reports whether the existing column oldCol can be replaced by newCol without losing data.
func IsCompatibleColumn(oldCol, newCol model.ColumnModel) (bool, error) {
	if oldCol.Name != newCol.Name {
		return false, nil
	}
	if oldCol.ColumnType != newCol.ColumnType && !lo.Contains(allowedTypeChanges[oldCol.ColumnType], newCol.ColumnType) {
		return false, nil
	}

	if newCol.ColumnType == model.ColumnTypeString && !sameMaxSize(oldCol, newCol) {
		var oldMax int64
		switch {
		case oldCol.MaximumSize != nil:
			oldMax = *oldCol.MaximumSize
		case oldCol.ColumnType == model.ColumnTypeDouble:
			oldMax = doubleStringLength
		case oldCol.ColumnType == model.ColumnTypeInteger:
			oldMax = integerStringLength
		default:
			return false, &ConfigError{Column: oldCol.Name, Reason: fmt.Sprintf("no max length for existing %s column", oldCol.ColumnType)}
		}
		if newCol.MaximumSize == nil {
			return false, &ConfigError{Column: newCol.Name, Reason: "no max length for new STRING column"}
		}
		return oldMax <= *newCol.MaximumSize, nil
	}
	return true, nil
}

func sameMaxSize(a, b model.ColumnModel) bool {
	if a.MaximumSize == nil || b.MaximumSize == nil {
		return a.MaximumSize == nil && b.MaximumSize == nil
	}
	return *a.MaximumSize == *b.MaximumSize
}

func sameColumn(a, b model.ColumnModel) bool {
	return a.Name == b.Name && a.ColumnType == b.ColumnType && sameMaxSize(a, b)
}

// SchemaChangePlan is the outcome of comparing a table's columns with the desired ones.
type SchemaChangePlan struct {
	existing []model.ColumnModel
	replaces map[string]string

	// Create lists the column models to create: changed columns in table order, then added ones.
	Create []model.ColumnModel
}

// PlanSchemaChange pairs existing and desired columns by name. Unchanged columns are kept, changed ones must be
// compatible and are replaced, desired-only columns are added and existing-only columns are kept as they are.
func PlanSchemaChange(existing, desired []model.ColumnModel) (*SchemaChangePlan, error) {
	desiredByName := lo.KeyBy(desired, func(c model.ColumnModel) string { return c.Name })
	existingByName := lo.KeyBy(existing, func(c model.ColumnModel) string { return c.Name })

	plan := &SchemaChangePlan{
		existing: existing,
		replaces: make(map[string]string),
	}
	for _, oldCol := range existing {
		newCol, ok := desiredByName[oldCol.Name]
		if !ok || sameColumn(oldCol, newCol) {
			continue
		}
		compatible, err := IsCompatibleColumn(oldCol, newCol)
		if err != nil {
			return nil, err
		}
		if !compatible {
			return nil, fmt.Errorf("column %s: %s(%s) to %s(%s): %w",
				oldCol.Name, oldCol.ColumnType, maxSizeString(oldCol), newCol.ColumnType, maxSizeString(newCol), ErrIncompatibleSchema,
			)
		}
		newCol.ID = ""
		plan.Create = append(plan.Create, newCol)
		plan.replaces[oldCol.Name] = oldCol.ID
	}
	for _, newCol := range desired {
		if _, ok := existingByName[newCol.Name]; ok {
			continue
		}
		newCol.ID = ""
		plan.Create = append(plan.Create, newCol)
	}
	return plan, nil
}

// Empty reports whether the table already has the desired columns.
func (p *SchemaChangePlan) Empty() bool {
	return len(p.Create) == 0
}

// Request builds the schema change for tableID, given the column models created from p.Create, in order.
func (p *SchemaChangePlan) Request(tableID string, created []model.ColumnModel) (*model.TableSchemaChangeRequest, error) {
	if len(created) != len(p.Create) {
		return nil, fmt.Errorf("expected %d created columns, got %d", len(p.Create), len(created))
	}

	newIDs := make(map[string]string, len(created))
	changes := make([]model.ColumnChange, 0, len(created))
	for i, col := range created {
		if col.Name != p.Create[i].Name {
			return nil, fmt.Errorf("created column %d: expected %s, got %s", i, p.Create[i].Name, col.Name)
		}
		if col.ID == "" {
			return nil, fmt.Errorf("created column %s has no id", col.Name)
		}
		newIDs[col.Name] = col.ID
		changes = append(changes, model.ColumnChange{OldColumnID: p.replaces[col.Name], NewColumnID: col.ID})
	}

	ordered := make([]string, 0, len(p.existing)+len(created))
	for _, col := range p.existing {
		if id, ok := newIDs[col.Name]; ok {
			ordered = append(ordered, id)
			delete(newIDs, col.Name)
			continue
		}
		ordered = append(ordered, col.ID)
	}
	for _, col := range created {
		if id, ok := newIDs[col.Name]; ok {
			ordered = append(ordered, id)
		}
	}

	return &model.TableSchemaChangeRequest{
		ConcreteType:     model.ConcreteTypeTableSchemaChange,
		EntityID:         tableID,
		Changes:          changes,
		OrderedColumnIDs: ordered,
	}, nil
}

func maxSizeString(c model.ColumnModel) string {
	if c.MaximumSize == nil {
		return "-"
	}
	return fmt.Sprint(*c.MaximumSize)
}
