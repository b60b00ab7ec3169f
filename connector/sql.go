// ABOUTME: Primary store connector over the CRM's SQLite database
// ABOUTME: Upserts each batch in one transaction and reports per-row constraint failures
package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
)

// SQLConnector reads and writes the primary CRM store.
type SQLConnector struct {
	db   *sql.DB
	name string
}

// NewSQLConnector wraps an open primary database.
func NewSQLConnector(database *sql.DB) *SQLConnector {
	return &SQLConnector{db: database, name: "primary"}
}

func (c *SQLConnector) Name() string      { return c.name }
func (c *SQLConnector) Side() models.Side { return models.SidePrimary }

// FetchAll returns every row of the collection ordered by id.
func (c *SQLConnector) FetchAll(ctx context.Context, collection string) ([]models.Record, error) {
	entity, err := entityFor(models.SidePrimary, collection)
	if err != nil {
		return nil, wrap(c.name, collection, "fetch", err)
	}
	records, err := db.FetchRecords(ctx, c.db, entity)
	if err != nil {
		return nil, wrap(c.name, collection, "fetch", err)
	}
	return records, nil
}

// UpsertBatch writes rows in one transaction. SQLite aborts only the failing
// statement on a constraint violation, so the remaining rows still commit.
func (c *SQLConnector) UpsertBatch(ctx context.Context, collection string, rows []models.Record, conflictKey string) ([]string, map[string]error, error) {
	if err := checkConflictKey(conflictKey); err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", err)
	}
	entity, err := entityFor(models.SidePrimary, collection)
	if err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", err)
	}

	failures := make(map[string]error)
	if len(rows) == 0 {
		return nil, failures, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	succeeded := make([]string, 0, len(rows))
	for i, rec := range rows {
		if err := rowError(entity, rec); err != nil {
			failures[failureKey(i, rec)] = err
			continue
		}
		if err := db.UpsertRecord(ctx, tx, rec); err != nil {
			failures[rec.RecordID()] = err
			continue
		}
		succeeded = append(succeeded, rec.RecordID())
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", fmt.Errorf("failed to commit batch: %w", err))
	}

	return succeeded, failures, nil
}

// Exists reports which ids are present in the collection.
func (c *SQLConnector) Exists(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	entity, err := entityFor(models.SidePrimary, collection)
	if err != nil {
		return nil, wrap(c.name, collection, "exists", err)
	}
	found, err := db.ExistingIDs(ctx, c.db, entity, ids)
	if err != nil {
		return nil, wrap(c.name, collection, "exists", err)
	}
	return found, nil
}
