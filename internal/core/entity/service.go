package entity

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/taibuivan/inkwell/internal/core/content"
	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
	"github.com/taibuivan/inkwell/internal/platform/ctxutil"
	"github.com/taibuivan/inkwell/internal/platform/dberr"
	"github.com/taibuivan/inkwell/internal/platform/sec"
	"github.com/taibuivan/inkwell/pkg/uuidv7"
)

// SchemaProvider supplies the current schema to the entity service.
type SchemaProvider interface {
	GetSchema(context context.Context) (*schema.Schema, error)
}

// Service orchestrates entity lifecycle operations on top of the content
// engine and the storage adapter.
type Service struct {
	store   Store
	schemas SchemaProvider
	logger  *slog.Logger
}

// NewService constructs the entity service.
func NewService(store Store, schemas SchemaProvider, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		schemas: schemas,
		logger:  logger,
	}
}

// CreateRequest carries the arguments of CreateEntity.
type CreateRequest struct {
	// ID is optional; a UUIDv7 is generated when empty.
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Name    string         `json:"name,omitempty"`
	AuthKey string         `json:"authKey"`
	Version *int           `json:"version,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// UpdateRequest carries the arguments of UpdateEntity. Type and AuthKey are
// immutable; when given they must match the stored entity.
type UpdateRequest struct {
	ID      string         `json:"-"`
	Type    string         `json:"type,omitempty"`
	Name    string         `json:"name,omitempty"`
	AuthKey string         `json:"authKey,omitempty"`
	Version *int           `json:"version,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

/*
CreateEntity validates, normalizes, and stores a new entity at version 0 in
draft status.

Display names are unique per repository: a collision is resolved once by
appending a '#' fragment derived from the entity id.
*/
func (service *Service) CreateEntity(context context.Context, request CreateRequest) (*Entity, error) {
	session, err := writableSession(context)
	if err != nil {
		return nil, err
	}

	currentSchema, err := service.schemas.GetSchema(context)
	if err != nil {
		return nil, err
	}

	// 1. Entity-info checks
	entityType, err := checkTypeAndAuthKey(currentSchema, request.Type, request.AuthKey)
	if err != nil {
		return nil, err
	}
	if request.Version != nil && *request.Version != 0 {
		return nil, apperr.BadRequest("info.version: Version must be 0 on create")
	}
	if !session.CanAccess(request.AuthKey) {
		return nil, apperr.NotAuthorized("Not authorized for authKey " + request.AuthKey)
	}

	// 2. Normalize and validate the content tree
	fields := request.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	normalized, err := content.NormalizeEntityFields(currentSchema, content.Path{}, request.Type, fields, content.NormalizeOptions{})
	if err != nil {
		return nil, err
	}
	collected, err := validateAndCollect(currentSchema, request.Type, normalized)
	if err != nil {
		return nil, err
	}

	name, err := resolveName(request.Name, entityType, normalized)
	if err != nil {
		return nil, err
	}

	id := request.ID
	if id == "" {
		id = uuidv7.New()
	}

	encoded, err := content.EncodeEntityFields(currentSchema, normalized)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &Record{
		ID: id,
		Info: Info{
			Type:      request.Type,
			Name:      name,
			AuthKey:   request.AuthKey,
			Version:   0,
			Status:    StatusDraft,
			Valid:     true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	err = service.store.WithTransaction(context, func(tx Store) error {
		if err := tx.InsertEntity(context, record, encoded); err != nil {
			if !dberr.IsConflict(err) {
				return err
			}
			// Name collision: retry once with a disambiguating suffix.
			record.Info.Name = disambiguateName(name, id)
			if err := tx.InsertEntity(context, record, encoded); err != nil {
				if dberr.IsConflict(err) {
					return apperr.BadRequestf("Entity %s already exists", id)
				}
				return err
			}
		}

		if err := tx.ReplaceIndexes(context, id, ScopeLatest, indexDataOf(collected)); err != nil {
			return err
		}
		if err := claimUniqueValues(context, tx, id, ScopeLatest, collected.UniqueIndexValues); err != nil {
			return err
		}

		return tx.AppendEvent(context, service.newEvent(EventCreateEntity, session, EventEntity{ID: id, Version: 0}))
	})
	if err != nil {
		return nil, err
	}

	service.logger.Info("entity created",
		slog.String("id", id),
		slog.String("type", request.Type),
		slog.String("subject", session.Subject),
	)

	return &Entity{ID: id, Info: record.Info, Fields: normalized}, nil
}

/*
UpdateEntity writes a new draft version of an existing entity.

Provided fields are merged over the stored latest version (absent fields
keep their value, explicit nulls clear). An update that changes nothing
writes no version. A published entity moves to modified.
*/
func (service *Service) UpdateEntity(context context.Context, request UpdateRequest) (*Entity, error) {
	session, err := writableSession(context)
	if err != nil {
		return nil, err
	}

	currentSchema, err := service.schemas.GetSchema(context)
	if err != nil {
		return nil, err
	}

	var result *Entity
	err = service.store.WithTransaction(context, func(tx Store) error {
		record, err := getRecord(context, tx, request.ID, true)
		if err != nil {
			return err
		}

		// 1. Entity-info checks against the stored record
		if record.Info.Status == StatusArchived {
			return apperr.BadRequest("Archived entities cannot be updated")
		}
		if request.Type != "" && request.Type != record.Info.Type {
			return apperr.BadRequestf("info.type: Type cannot be changed (is %s)", record.Info.Type)
		}
		if request.AuthKey != "" && request.AuthKey != record.Info.AuthKey {
			return apperr.BadRequest("info.authKey: AuthKey cannot be changed")
		}
		if request.Version != nil && *request.Version != record.Info.Version+1 {
			return apperr.BadRequestf("info.version: Expected version %d", record.Info.Version+1)
		}
		if !session.CanAccess(record.Info.AuthKey) {
			return apperr.NotAuthorized("Not authorized for authKey " + record.Info.AuthKey)
		}

		entityType := currentSchema.EntityType(record.Info.Type)
		if entityType == nil {
			return apperr.BadRequestf("info.type: Unknown entity type %s", record.Info.Type)
		}

		// 2. Merge the update over the stored latest version
		existing, err := service.loadFields(context, tx, currentSchema, record, record.Info.Version)
		if err != nil {
			return err
		}
		merged, err := mergeFields(currentSchema, record.Info.Type, existing, request.Fields)
		if err != nil {
			return err
		}

		// An omitted name keeps the stored one; a nameField change renames.
		name := request.Name
		if name == "" && entityType.NameField != "" {
			if value, ok := merged[entityType.NameField].(string); ok {
				name = value
			}
		}
		if name == "" {
			name = record.Info.Name
		}
		if strings.ContainsAny(name, "\n\r") {
			return apperr.BadRequest("info.name: Name must not contain line breaks")
		}

		// 3. Nothing changed: no new version, no event
		if name == record.Info.Name && reflect.DeepEqual(existing, merged) {
			result = &Entity{ID: record.ID, Info: record.Info, Fields: existing}
			return nil
		}

		collected, err := validateAndCollect(currentSchema, record.Info.Type, merged)
		if err != nil {
			return err
		}

		encoded, err := content.EncodeEntityFields(currentSchema, merged)
		if err != nil {
			return err
		}

		// 4. Commit the new draft head
		newVersion := record.Info.Version + 1
		newStatus := record.Info.Status.afterEdit()

		if err := tx.InsertVersion(context, record.ID, newVersion, encoded); err != nil {
			return err
		}
		if err := tx.UpdateLatest(context, record.ID, name, newVersion, newStatus, true); err != nil {
			if dberr.IsConflict(err) {
				return apperr.BadRequestf("info.name: Name %s is already in use", name)
			}
			return err
		}
		if err := tx.ReplaceIndexes(context, record.ID, ScopeLatest, indexDataOf(collected)); err != nil {
			return err
		}
		if err := claimUniqueValues(context, tx, record.ID, ScopeLatest, collected.UniqueIndexValues); err != nil {
			return err
		}
		if err := tx.AppendEvent(context, service.newEvent(EventUpdateEntity, session, EventEntity{ID: record.ID, Version: newVersion})); err != nil {
			return err
		}

		info := record.Info
		info.Name = name
		info.Version = newVersion
		info.Status = newStatus
		info.Valid = true
		info.UpdatedAt = time.Now().UTC()
		result = &Entity{ID: record.ID, Info: info, Fields: merged}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetEntity loads one entity with its fields decoded and migrated to the
// current schema. version selects a historical version; a negative version
// means the latest.
func (service *Service) GetEntity(context context.Context, id string, version int) (*Entity, error) {
	session := ctxutil.GetSession(context)
	if session == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	currentSchema, err := service.schemas.GetSchema(context)
	if err != nil {
		return nil, err
	}

	record, err := getRecord(context, service.store, id, false)
	if err != nil {
		return nil, err
	}
	if !session.CanAccess(record.Info.AuthKey) {
		return nil, apperr.NotAuthorized("Not authorized for authKey " + record.Info.AuthKey)
	}

	if version < 0 {
		version = record.Info.Version
	}
	fields, err := service.loadFields(context, service.store, currentSchema, record, version)
	if err != nil {
		return nil, err
	}

	return &Entity{ID: record.ID, Info: record.Info, Fields: fields}, nil
}

// SearchEntities returns matching entity records (metadata only) and the
// total count. The filter's authKeys are narrowed to what the session may
// read.
func (service *Service) SearchEntities(context context.Context, filter Filter, limit, offset int) ([]*Entity, int, error) {
	session := ctxutil.GetSession(context)
	if session == nil {
		return nil, 0, apperr.Unauthorized("Authentication required")
	}

	narrowed, err := narrowAuthKeys(session, filter.AuthKeys)
	if err != nil {
		return nil, 0, err
	}
	filter.AuthKeys = narrowed

	records, total, err := service.store.List(context, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	entities := make([]*Entity, 0, len(records))
	for _, record := range records {
		entities = append(entities, &Entity{ID: record.ID, Info: record.Info})
	}
	return entities, total, nil
}

// SampleEntities returns a deterministic pseudo-random sample for a seed.
func (service *Service) SampleEntities(context context.Context, seed string, count int) ([]*Entity, error) {
	session := ctxutil.GetSession(context)
	if session == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	records, err := service.store.Sample(context, seed, count)
	if err != nil {
		return nil, err
	}

	entities := make([]*Entity, 0, len(records))
	for _, record := range records {
		if !session.CanAccess(record.Info.AuthKey) {
			continue
		}
		entities = append(entities, &Entity{ID: record.ID, Info: record.Info})
	}
	return entities, nil
}

// # Shared helpers

func writableSession(ctx context.Context) (*sec.Session, error) {
	session := ctxutil.GetSession(ctx)
	if session == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	if session.ReadOnly {
		return nil, apperr.BadRequest("Read-only session cannot modify entities")
	}
	return session, nil
}

func getRecord(ctx context.Context, store Store, id string, forUpdate bool) (*Record, error) {
	record, err := store.GetRecord(ctx, id, forUpdate)
	if errors.Is(err, dberr.ErrNotFound) {
		return nil, apperr.NotFound("Entity")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func checkTypeAndAuthKey(s *schema.Schema, typeName, authKey string) (*schema.EntityType, error) {
	if typeName == "" {
		return nil, apperr.BadRequest("info.type: Entity type is required")
	}
	entityType := s.EntityType(typeName)
	if entityType == nil {
		return nil, apperr.BadRequestf("info.type: Unknown entity type %s", typeName)
	}

	if authKey == "" {
		return nil, apperr.BadRequest("info.authKey: AuthKey is required")
	}
	if entityType.AuthKeyPattern != "" {
		pattern := s.PatternRegexp(entityType.AuthKeyPattern)
		if pattern != nil && !pattern.MatchString(authKey) {
			return nil, apperr.BadRequestf("info.authKey: Value does not match pattern %s", entityType.AuthKeyPattern)
		}
	}

	return entityType, nil
}

// resolveName picks the explicit name or falls back to the type's nameField
// value. Names must be single-line and non-empty.
func resolveName(explicit string, entityType *schema.EntityType, fields map[string]any) (string, error) {
	name := explicit
	if name == "" && entityType.NameField != "" {
		if value, ok := fields[entityType.NameField].(string); ok {
			name = value
		}
	}
	if name == "" && entityType.NameField == "" {
		return "", apperr.BadRequest("info.name: Name is required")
	}
	if strings.ContainsAny(name, "\n\r") {
		return "", apperr.BadRequest("info.name: Name must not contain line breaks")
	}
	if name == "" {
		return "", apperr.BadRequest("info.name: Name is required")
	}
	return name, nil
}

// disambiguateName appends a '#' fragment from the entity id.
func disambiguateName(name, id string) string {
	fragment := id
	if len(fragment) > 8 {
		fragment = fragment[len(fragment)-8:]
	}
	return name + "#" + fragment
}

// validateAndCollect traverses once, failing on the first save issue and
// collecting derived data in the same pass.
func validateAndCollect(s *schema.Schema, typeName string, fields map[string]any) (content.CollectResult, error) {
	collector := content.NewCollector()
	for node := range content.TraverseEntity(s, content.Path{}, typeName, fields) {
		if issue := content.ValidateNodeForSave(s, node); issue != nil {
			return content.CollectResult{}, apperr.BadRequest(issue.String())
		}
		collector.Visit(node)
	}
	return collector.Result(), nil
}

// mergeFields lays a normalized partial update over the stored fields and
// re-normalizes the result so omitted fields materialize consistently.
func mergeFields(s *schema.Schema, typeName string, existing, update map[string]any) (map[string]any, error) {
	normalizedUpdate, err := content.NormalizeEntityFields(s, content.Path{}, typeName, update, content.NormalizeOptions{ExcludeOmitted: true})
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(existing)+len(normalizedUpdate))
	for name, value := range existing {
		merged[name] = value
	}
	for name, value := range normalizedUpdate {
		merged[name] = value
	}

	return content.NormalizeEntityFields(s, content.Path{}, typeName, merged, content.NormalizeOptions{})
}

func (service *Service) loadFields(ctx context.Context, store Store, s *schema.Schema, record *Record, version int) (map[string]any, error) {
	blob, err := store.GetVersionData(ctx, record.ID, version)
	if errors.Is(err, dberr.ErrNotFound) {
		return nil, apperr.NotFoundf("Entity %s version %d not found", record.ID, version)
	}
	if err != nil {
		return nil, err
	}
	return content.DecodeEntityFields(s, record.Info.Type, blob)
}

func indexDataOf(collected content.CollectResult) *IndexData {
	return &IndexData{
		FullTextTokens: collected.FullTextTokens,
		ReferenceIDs:   collected.ReferenceIDs,
		Locations:      collected.Locations,
		ComponentTypes: collected.ComponentTypes,
	}
}

// claimUniqueValues translates a store-level ownership conflict into the
// actionable BadRequest the caller surfaces verbatim.
func claimUniqueValues(ctx context.Context, store Store, id string, scope IndexScope, values []content.UniqueIndexValue) error {
	err := store.ClaimUniqueValues(ctx, id, scope, values)
	var conflict *UniqueConflictError
	if errors.As(err, &conflict) {
		return apperr.BadRequestf("Unique index %s already contains value %s", conflict.Index, conflict.Value)
	}
	return err
}

// narrowAuthKeys intersects requested authKeys with the session's grants. A
// wildcard session passes requests through; an empty request defaults to
// the session's own grants.
func narrowAuthKeys(session *sec.Session, requested []string) ([]string, error) {
	if session.CanAccess("*") {
		return requested, nil
	}
	if len(requested) == 0 {
		return session.AuthKeys, nil
	}
	narrowed := make([]string, 0, len(requested))
	for _, authKey := range requested {
		if session.CanAccess(authKey) {
			narrowed = append(narrowed, authKey)
		}
	}
	if len(narrowed) == 0 {
		return nil, apperr.NotAuthorized("Not authorized for the requested authKeys")
	}
	return narrowed, nil
}

func (service *Service) newEvent(eventType EventType, session *sec.Session, entities ...EventEntity) *Event {
	return &Event{
		ID:        uuidv7.New(),
		Type:      eventType,
		Principal: session.Subject,
		CreatedAt: time.Now().UTC(),
		Entities:  entities,
	}
}
