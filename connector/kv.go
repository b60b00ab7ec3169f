// ABOUTME: Partner store connector over the Charm KV store
// ABOUTME: Rows are JSON documents keyed partner/<collection>/<id>
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/crmbridge/charm"
	"github.com/harperreed/crmbridge/models"
)

// KVStore is the subset of charm.Client the partner connector uses.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	SetMany(pairs map[string][]byte) map[string]error
	KeysWithPrefix(prefix []byte) ([][]byte, error)
}

// KVConnector reads and writes the partner platform's collections.
type KVConnector struct {
	kv   KVStore
	name string
}

// NewKVConnector wraps a partner KV store.
func NewKVConnector(kv KVStore) *KVConnector {
	return &KVConnector{kv: kv, name: "partner"}
}

func (c *KVConnector) Name() string      { return c.name }
func (c *KVConnector) Side() models.Side { return models.SidePartner }

func collectionPrefix(collection string) string {
	return charm.KeyPrefix + collection + "/"
}

func recordKey(collection, id string) string {
	return collectionPrefix(collection) + id
}

// FetchAll decodes every document in the collection, ordered by id.
func (c *KVConnector) FetchAll(ctx context.Context, collection string) ([]models.Record, error) {
	entity, err := entityFor(models.SidePartner, collection)
	if err != nil {
		return nil, wrap(c.name, collection, "fetch", err)
	}

	ids, err := c.ids(collection)
	if err != nil {
		return nil, wrap(c.name, collection, "fetch", err)
	}

	records := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, wrap(c.name, collection, "fetch", err)
		}
		data, err := c.kv.Get([]byte(recordKey(collection, id)))
		if err != nil {
			if charm.IsNotFound(err) {
				continue
			}
			return nil, wrap(c.name, collection, "fetch", fmt.Errorf("failed to get %s: %w", id, err))
		}
		rec := models.NewRecord(models.SidePartner, entity)
		if err := json.Unmarshal(data, rec); err != nil {
			return nil, wrap(c.name, collection, "fetch", fmt.Errorf("failed to decode %s: %w", id, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpsertBatch writes every row as one JSON document. Rewriting a key replaces the
// document, which gives conflict-on-id semantics.
func (c *KVConnector) UpsertBatch(ctx context.Context, collection string, rows []models.Record, conflictKey string) ([]string, map[string]error, error) {
	if err := checkConflictKey(conflictKey); err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", err)
	}
	entity, err := entityFor(models.SidePartner, collection)
	if err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, wrap(c.name, collection, "upsert", err)
	}

	failures := make(map[string]error)
	pairs := make(map[string][]byte, len(rows))
	keyToID := make(map[string]string, len(rows))
	var order []string

	for i, rec := range rows {
		if err := rowError(entity, rec); err != nil {
			failures[failureKey(i, rec)] = err
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			failures[rec.RecordID()] = fmt.Errorf("failed to encode: %w", err)
			continue
		}
		key := recordKey(collection, rec.RecordID())
		if _, dup := pairs[key]; !dup {
			order = append(order, rec.RecordID())
		}
		pairs[key] = data
		keyToID[key] = rec.RecordID()
	}

	if len(pairs) == 0 {
		return nil, failures, nil
	}

	for key, err := range c.kv.SetMany(pairs) {
		failures[keyToID[key]] = err
	}

	succeeded := make([]string, 0, len(order))
	for _, id := range order {
		if _, failed := failures[id]; !failed {
			succeeded = append(succeeded, id)
		}
	}
	return succeeded, failures, nil
}

// Exists scans the collection's keys once and answers membership from that scan.
func (c *KVConnector) Exists(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	if _, err := entityFor(models.SidePartner, collection); err != nil {
		return nil, wrap(c.name, collection, "exists", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap(c.name, collection, "exists", err)
	}

	present, err := c.ids(collection)
	if err != nil {
		return nil, wrap(c.name, collection, "exists", err)
	}
	set := make(map[string]struct{}, len(present))
	for _, id := range present {
		set[id] = struct{}{}
	}

	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := set[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (c *KVConnector) ids(collection string) ([]string, error) {
	prefix := collectionPrefix(collection)
	keys, err := c.kv.KeysWithPrefix([]byte(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(string(k), prefix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
