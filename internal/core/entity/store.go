package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/inkwell/internal/core/content"
)

// IndexScope selects which side of an entity's derived indexes an operation
// touches: the draft head or the published version.
type IndexScope string

const (
	ScopeLatest    IndexScope = "latest"
	ScopePublished IndexScope = "published"
)

// Record is the stored metadata of one entity (no field data).
type Record struct {
	ID   string
	Info Info
}

// IndexData is the derived indexable data of one entity version.
type IndexData struct {
	FullTextTokens []string
	ReferenceIDs   []string
	Locations      []content.Location
	ComponentTypes []string
}

// UniqueConflictError reports a unique-index value already owned by another
// entity. It is a structured signal, not a wrapped SQL error, so the service
// can turn it into an actionable BadRequest.
type UniqueConflictError struct {
	Index   string
	Value   string
	OwnerID string
}

func (e *UniqueConflictError) Error() string {
	return fmt.Sprintf("unique index %s value %q is owned by entity %s", e.Index, e.Value, e.OwnerID)
}

// EventType enumerates the append-only event log entries.
type EventType string

const (
	EventCreateEntity      EventType = "createEntity"
	EventUpdateEntity      EventType = "updateEntity"
	EventPublishEntities   EventType = "publishEntities"
	EventUnpublishEntities EventType = "unpublishEntities"
	EventArchiveEntity     EventType = "archiveEntity"
	EventUnarchiveEntity   EventType = "unarchiveEntity"
)

// Event is one append-only log entry listing the affected entity versions.
type Event struct {
	ID        string
	Type      EventType
	Principal string
	CreatedAt time.Time
	Entities  []EventEntity
}

// EventEntity is one affected entity version inside an event.
type EventEntity struct {
	ID      string
	Version int
}

// Filter narrows a search over entity records.
type Filter struct {
	Types    []string
	Statuses []Status
	AuthKeys []string
	// Text matches entities whose latest full-text tokens contain every
	// token of the query.
	Text string
	// ReferencesID matches entities whose latest version references the
	// given entity.
	ReferencesID string
}

/*
Store is the storage adapter contract for entities, their versions, derived
index tables, unique-value ownership, and the event log.

Implementations must return dberr.ErrNotFound for missing rows,
dberr.ErrConflict for uniqueness violations on entity rows, and
[*UniqueConflictError] for unique-index value conflicts, never raw driver
errors, so the service layer can map failures without knowing the backend.

WithTransaction runs fn against a transactional view of the store; the multi
step publish protocol relies on it for atomicity and on GetRecord's
forUpdate row locking for serializing concurrent publishes of overlapping
entities.
*/
type Store interface {
	WithTransaction(context context.Context, fn func(tx Store) error) error

	// InsertEntity writes the entity row plus its first version blob.
	InsertEntity(context context.Context, record *Record, encoded []byte) error

	// GetRecord loads an entity's metadata; forUpdate takes a row lock.
	GetRecord(context context.Context, id string, forUpdate bool) (*Record, error)

	// GetVersionData loads one version's encoded field blob.
	GetVersionData(context context.Context, id string, version int) ([]byte, error)

	// InsertVersion appends a new version blob.
	InsertVersion(context context.Context, id string, version int, encoded []byte) error

	// UpdateLatest advances the draft head: name, version, status, validity.
	UpdateLatest(context context.Context, id, name string, version int, status Status, valid bool) error

	// SetPublished records (or clears, with a nil version) the published
	// version together with the resulting status and publish validity.
	SetPublished(context context.Context, id string, publishedVersion *int, status Status, validPublished *bool) error

	// SetStatus updates the lifecycle status only.
	SetStatus(context context.Context, id string, status Status) error

	// ReplaceIndexes replaces one scope of an entity's derived indexes;
	// nil data clears the scope.
	ReplaceIndexes(context context.Context, id string, scope IndexScope, data *IndexData) error

	// ClaimUniqueValues makes the given values the entity's complete claim
	// set for the scope, releasing values no longer held. A value owned by
	// another entity fails with [*UniqueConflictError].
	ClaimUniqueValues(context context.Context, id string, scope IndexScope, values []content.UniqueIndexValue) error

	// List returns matching records and the total count.
	List(context context.Context, filter Filter, limit, offset int) ([]*Record, int, error)

	// Sample returns up to count records drawn pseudo-randomly but
	// deterministically for a given seed.
	Sample(context context.Context, seed string, count int) ([]*Record, error)

	// AppendEvent writes one event log entry.
	AppendEvent(context context.Context, event *Event) error
}
