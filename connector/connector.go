// ABOUTME: Store connector contract shared by the primary and partner stores
// ABOUTME: Defines Connector, ConnectorError, and the sentinel errors connectors return
package connector

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/crmbridge/models"
)

// ConflictKey is the only conflict key connectors accept.
const ConflictKey = "id"

var (
	// ErrUnsupportedConflictKey is returned when an upsert names any conflict key other than id.
	ErrUnsupportedConflictKey = errors.New("unsupported conflict key")

	// ErrUnknownCollection is returned for a collection the store does not hold.
	ErrUnknownCollection = errors.New("unknown collection")
)

// Connector reads and writes one store's native schema.
// Connectors never translate schemas or check references.
type Connector interface {
	// Name identifies the store in reports and logs.
	Name() string

	// Side is the schema the connector speaks.
	Side() models.Side

	// FetchAll returns every row of a collection ordered by id.
	FetchAll(ctx context.Context, collection string) ([]models.Record, error)

	// UpsertBatch writes rows keyed on conflictKey. Row-level failures are
	// reported in failures; err is set only when the whole batch failed.
	UpsertBatch(ctx context.Context, collection string, rows []models.Record, conflictKey string) (succeeded []string, failures map[string]error, err error)

	// Exists reports which of ids are present in the collection.
	Exists(ctx context.Context, collection string, ids []string) (map[string]bool, error)
}

// ConnectorError is a store-level failure on fetch, exists, or upsert.
type ConnectorError struct {
	Store      string
	Collection string
	Op         string
	Err        error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Store, e.Op, e.Collection, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

func wrap(store, collection, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectorError{Store: store, Collection: collection, Op: op, Err: err}
}

func checkConflictKey(conflictKey string) error {
	if conflictKey != ConflictKey {
		return fmt.Errorf("%w: %q", ErrUnsupportedConflictKey, conflictKey)
	}
	return nil
}

func entityFor(side models.Side, collection string) (models.EntityType, error) {
	entity, ok := models.EntityForCollection(side, collection)
	if !ok {
		return "", fmt.Errorf("%w: %s store has no %q", ErrUnknownCollection, side, collection)
	}
	return entity, nil
}

// rowError validates that a row belongs to the collection being written.
func rowError(entity models.EntityType, rec models.Record) error {
	if rec == nil {
		return errors.New("nil row")
	}
	if rec.Entity() != entity {
		return fmt.Errorf("row %s is a %s, not a %s", rec.RecordID(), rec.Entity(), entity)
	}
	if rec.RecordID() == "" {
		return errors.New("row has no id")
	}
	return nil
}

// failureKey names a row in a failure map even when it has no usable id.
func failureKey(i int, rec models.Record) string {
	if rec != nil && rec.RecordID() != "" {
		return rec.RecordID()
	}
	return fmt.Sprintf("#%d", i)
}
