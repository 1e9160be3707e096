package entity_test

import (
	"context"
	"sync"

	"github.com/taibuivan/inkwell/internal/core/content"
	"github.com/taibuivan/inkwell/internal/core/entity"
	"github.com/taibuivan/inkwell/internal/platform/dberr"
)

// uniqueRow mirrors one row of the unique-index ownership table.
type uniqueRow struct {
	owner     string
	latest    bool
	published bool
}

// fakeStore is an in-memory [entity.Store] with snapshot-based transaction
// rollback, so atomicity failures are observable in tests.
type fakeStore struct {
	mu       sync.Mutex
	entities map[string]*entity.Record
	versions map[string]map[int][]byte
	indexes  map[string]map[entity.IndexScope]*entity.IndexData
	unique   map[string]*uniqueRow
	events   []*entity.Event
	inTx     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: map[string]*entity.Record{},
		versions: map[string]map[int][]byte{},
		indexes:  map[string]map[entity.IndexScope]*entity.IndexData{},
		unique:   map[string]*uniqueRow{},
	}
}

func uniqueKey(index, value string) string {
	return index + "\x00" + value
}

func copyRecord(record *entity.Record) *entity.Record {
	clone := *record
	if record.Info.PublishedVersion != nil {
		v := *record.Info.PublishedVersion
		clone.Info.PublishedVersion = &v
	}
	if record.Info.ValidPublished != nil {
		b := *record.Info.ValidPublished
		clone.Info.ValidPublished = &b
	}
	return &clone
}

func (store *fakeStore) snapshot() *fakeStore {
	snap := newFakeStore()
	for id, record := range store.entities {
		snap.entities[id] = copyRecord(record)
	}
	for id, versions := range store.versions {
		snap.versions[id] = map[int][]byte{}
		for version, data := range versions {
			snap.versions[id][version] = data
		}
	}
	for id, scopes := range store.indexes {
		snap.indexes[id] = map[entity.IndexScope]*entity.IndexData{}
		for scope, data := range scopes {
			snap.indexes[id][scope] = data
		}
	}
	for key, row := range store.unique {
		clone := *row
		snap.unique[key] = &clone
	}
	snap.events = append([]*entity.Event(nil), store.events...)
	return snap
}

func (store *fakeStore) restore(snap *fakeStore) {
	store.entities = snap.entities
	store.versions = snap.versions
	store.indexes = snap.indexes
	store.unique = snap.unique
	store.events = snap.events
}

func (store *fakeStore) WithTransaction(_ context.Context, fn func(tx entity.Store) error) error {
	if store.inTx {
		return fn(store)
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	snap := store.snapshot()
	store.inTx = true
	err := fn(store)
	store.inTx = false
	if err != nil {
		store.restore(snap)
	}
	return err
}

func (store *fakeStore) InsertEntity(_ context.Context, record *entity.Record, encoded []byte) error {
	if _, exists := store.entities[record.ID]; exists {
		return dberr.ErrConflict
	}
	for _, other := range store.entities {
		if other.Info.Name == record.Info.Name {
			return dberr.ErrConflict
		}
	}
	store.entities[record.ID] = copyRecord(record)
	store.versions[record.ID] = map[int][]byte{record.Info.Version: encoded}
	return nil
}

func (store *fakeStore) GetRecord(_ context.Context, id string, _ bool) (*entity.Record, error) {
	record, ok := store.entities[id]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	return copyRecord(record), nil
}

func (store *fakeStore) GetVersionData(_ context.Context, id string, version int) ([]byte, error) {
	data, ok := store.versions[id][version]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	return data, nil
}

func (store *fakeStore) InsertVersion(_ context.Context, id string, version int, encoded []byte) error {
	versions, ok := store.versions[id]
	if !ok {
		return dberr.ErrNotFound
	}
	versions[version] = encoded
	return nil
}

func (store *fakeStore) UpdateLatest(_ context.Context, id, name string, version int, status entity.Status, valid bool) error {
	record, ok := store.entities[id]
	if !ok {
		return dberr.ErrNotFound
	}
	for otherID, other := range store.entities {
		if otherID != id && other.Info.Name == name {
			return dberr.ErrConflict
		}
	}
	record.Info.Name = name
	record.Info.Version = version
	record.Info.Status = status
	record.Info.Valid = valid
	return nil
}

func (store *fakeStore) SetPublished(_ context.Context, id string, publishedVersion *int, status entity.Status, validPublished *bool) error {
	record, ok := store.entities[id]
	if !ok {
		return dberr.ErrNotFound
	}
	record.Info.PublishedVersion = publishedVersion
	record.Info.Status = status
	record.Info.ValidPublished = validPublished
	return nil
}

func (store *fakeStore) SetStatus(_ context.Context, id string, status entity.Status) error {
	record, ok := store.entities[id]
	if !ok {
		return dberr.ErrNotFound
	}
	record.Info.Status = status
	return nil
}

func (store *fakeStore) ReplaceIndexes(_ context.Context, id string, scope entity.IndexScope, data *entity.IndexData) error {
	scopes, ok := store.indexes[id]
	if !ok {
		scopes = map[entity.IndexScope]*entity.IndexData{}
		store.indexes[id] = scopes
	}
	if data == nil {
		delete(scopes, scope)
		return nil
	}
	scopes[scope] = data
	return nil
}

func (store *fakeStore) ClaimUniqueValues(_ context.Context, id string, scope entity.IndexScope, values []content.UniqueIndexValue) error {
	// 1. Release this entity's current claims for the scope
	for _, row := range store.unique {
		if row.owner != id {
			continue
		}
		if scope == entity.ScopeLatest {
			row.latest = false
		} else {
			row.published = false
		}
	}

	// 2. Re-acquire the new claim set
	for _, value := range values {
		key := uniqueKey(value.Index, value.Value)
		row, exists := store.unique[key]
		if exists && row.owner != id {
			return &entity.UniqueConflictError{Index: value.Index, Value: value.Value, OwnerID: row.owner}
		}
		if !exists {
			row = &uniqueRow{owner: id}
			store.unique[key] = row
		}
		if scope == entity.ScopeLatest {
			row.latest = true
		} else {
			row.published = true
		}
	}

	// 3. Drop rows no scope claims anymore
	for key, row := range store.unique {
		if row.owner == id && !row.latest && !row.published {
			delete(store.unique, key)
		}
	}
	return nil
}

func (store *fakeStore) List(_ context.Context, filter entity.Filter, limit, offset int) ([]*entity.Record, int, error) {
	matched := make([]*entity.Record, 0)
	for _, record := range store.entities {
		if len(filter.Types) > 0 && !containsString(filter.Types, record.Info.Type) {
			continue
		}
		if len(filter.AuthKeys) > 0 && !containsString(filter.AuthKeys, record.Info.AuthKey) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, record.Info.Status) {
			continue
		}
		matched = append(matched, copyRecord(record))
	}
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (store *fakeStore) Sample(_ context.Context, _ string, count int) ([]*entity.Record, error) {
	records := make([]*entity.Record, 0, count)
	for _, record := range store.entities {
		if len(records) == count {
			break
		}
		records = append(records, copyRecord(record))
	}
	return records, nil
}

func (store *fakeStore) AppendEvent(_ context.Context, event *entity.Event) error {
	store.events = append(store.events, event)
	return nil
}

func (store *fakeStore) uniqueOwner(index, value string) (string, bool) {
	row, ok := store.unique[uniqueKey(index, value)]
	if !ok {
		return "", false
	}
	return row.owner, true
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

func containsStatus(values []entity.Status, value entity.Status) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
