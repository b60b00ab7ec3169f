// ABOUTME: In-process connector holding collections in maps
// ABOUTME: Backs dry runs and tests; supports per-row and per-batch failure injection
package connector

import (
	"context"
	"sort"
	"sync"

	"github.com/harperreed/crmbridge/models"
)

// MemoryConnector is a Connector over in-memory maps. Safe for concurrent use.
type MemoryConnector struct {
	name string
	side models.Side

	mu   sync.RWMutex
	rows map[string]map[string]models.Record

	// RowError, when set, is consulted before each row write; a non-nil result fails that row.
	RowError func(collection, id string) error
	// BatchError, when set, is consulted before each batch; a non-nil result fails the batch.
	BatchError func(collection string, ids []string) error
}

// NewMemoryConnector creates an empty store speaking the given side's schema.
func NewMemoryConnector(name string, side models.Side) *MemoryConnector {
	return &MemoryConnector{
		name: name,
		side: side,
		rows: make(map[string]map[string]models.Record),
	}
}

// Snapshot copies every collection of src into a new MemoryConnector named after src.
func Snapshot(ctx context.Context, src Connector) (*MemoryConnector, error) {
	mem := NewMemoryConnector(src.Name(), src.Side())
	for _, entity := range models.AllEntities {
		collection := entity.Collection(src.Side())
		records, err := src.FetchAll(ctx, collection)
		if err != nil {
			return nil, err
		}
		mem.Seed(collection, records...)
	}
	return mem, nil
}

func (m *MemoryConnector) Name() string      { return m.name }
func (m *MemoryConnector) Side() models.Side { return m.side }

// Seed stores rows directly, bypassing validation and failure injection.
func (m *MemoryConnector) Seed(collection string, rows ...models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.bucket(collection)
	for _, r := range rows {
		bucket[r.RecordID()] = r
	}
}

// Get returns one row or nil.
func (m *MemoryConnector) Get(collection, id string) models.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows[collection][id]
}

// Len returns the number of rows in a collection.
func (m *MemoryConnector) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows[collection])
}

// Delete removes a row.
func (m *MemoryConnector) Delete(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[collection], id)
}

func (m *MemoryConnector) bucket(collection string) map[string]models.Record {
	b, ok := m.rows[collection]
	if !ok {
		b = make(map[string]models.Record)
		m.rows[collection] = b
	}
	return b
}

func (m *MemoryConnector) FetchAll(ctx context.Context, collection string) ([]models.Record, error) {
	if _, err := entityFor(m.side, collection); err != nil {
		return nil, wrap(m.name, collection, "fetch", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap(m.name, collection, "fetch", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rows[collection]))
	for id := range m.rows[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, m.rows[collection][id])
	}
	return records, nil
}

func (m *MemoryConnector) UpsertBatch(ctx context.Context, collection string, rows []models.Record, conflictKey string) ([]string, map[string]error, error) {
	if err := checkConflictKey(conflictKey); err != nil {
		return nil, nil, wrap(m.name, collection, "upsert", err)
	}
	entity, err := entityFor(m.side, collection)
	if err != nil {
		return nil, nil, wrap(m.name, collection, "upsert", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, wrap(m.name, collection, "upsert", err)
	}
	if m.BatchError != nil {
		ids := make([]string, 0, len(rows))
		for i, r := range rows {
			ids = append(ids, failureKey(i, r))
		}
		if err := m.BatchError(collection, ids); err != nil {
			return nil, nil, wrap(m.name, collection, "upsert", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.bucket(collection)
	failures := make(map[string]error)
	succeeded := make([]string, 0, len(rows))
	for i, rec := range rows {
		if err := rowError(entity, rec); err != nil {
			failures[failureKey(i, rec)] = err
			continue
		}
		if m.RowError != nil {
			if err := m.RowError(collection, rec.RecordID()); err != nil {
				failures[rec.RecordID()] = err
				continue
			}
		}
		bucket[rec.RecordID()] = rec
		succeeded = append(succeeded, rec.RecordID())
	}
	return succeeded, failures, nil
}

func (m *MemoryConnector) Exists(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	if _, err := entityFor(m.side, collection); err != nil {
		return nil, wrap(m.name, collection, "exists", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap(m.name, collection, "exists", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := m.rows[collection][id]; ok {
			found[id] = true
		}
	}
	return found, nil
}
