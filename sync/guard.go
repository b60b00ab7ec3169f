// ABOUTME: Referential integrity guard for mapped rows about to be written to the target store
// ABOUTME: Nulls references the target cannot resolve and reports each one as an IntegrityWarning
package sync

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/harperreed/crmbridge/connector"
	"github.com/harperreed/crmbridge/models"
)

// IntegrityWarning records a reference dropped because the target store lacks the referenced row.
type IntegrityWarning struct {
	Entity       models.EntityType `json:"entity"`
	EntityID     string            `json:"entity_id"`
	DroppedField string            `json:"dropped_field"`
	ReferencedID string            `json:"referenced_id"`
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("%s %s: %s %q not found in target, reference dropped", w.Entity, w.EntityID, w.DroppedField, w.ReferencedID)
}

// Guard checks foreign keys against the target store.
type Guard struct {
	target connector.Connector
	logger *zap.Logger
}

// NewGuard creates a guard for the given target store.
func NewGuard(target connector.Connector, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{target: target, logger: logger}
}

// Resolve checks every foreign key held by rows. It issues one Exists call per
// referenced collection, then clears each reference the target does not hold.
// Empty references are left alone and produce no warning.
// An error means existence could not be checked and no row was modified.
func (g *Guard) Resolve(ctx context.Context, rows []models.Record) ([]IntegrityWarning, error) {
	wanted := make(map[models.EntityType]map[string]struct{})
	for _, row := range rows {
		for _, fk := range row.ForeignKeys() {
			id := fk.Value()
			if id == "" {
				continue
			}
			if wanted[fk.Target] == nil {
				wanted[fk.Target] = make(map[string]struct{})
			}
			wanted[fk.Target][id] = struct{}{}
		}
	}

	found := make(map[models.EntityType]map[string]bool, len(wanted))
	for _, entity := range models.AllEntities {
		idSet, ok := wanted[entity]
		if !ok {
			continue
		}
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		present, err := g.target.Exists(ctx, entity.Collection(g.target.Side()), ids)
		if err != nil {
			return nil, err
		}
		found[entity] = present
	}

	var warnings []IntegrityWarning
	for _, row := range rows {
		for _, fk := range row.ForeignKeys() {
			id := fk.Value()
			if id == "" || found[fk.Target][id] {
				continue
			}
			fk.Clear()
			w := IntegrityWarning{
				Entity:       row.Entity(),
				EntityID:     row.RecordID(),
				DroppedField: fk.Field,
				ReferencedID: id,
			}
			warnings = append(warnings, w)
			g.logger.Warn("dropped unresolved reference",
				zap.String("entity", string(w.Entity)),
				zap.String("id", w.EntityID),
				zap.String("field", w.DroppedField),
				zap.String("referenced_id", w.ReferencedID))
		}
	}
	return warnings, nil
}
