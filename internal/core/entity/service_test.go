package entity_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkwell/internal/core/entity"
	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
	"github.com/taibuivan/inkwell/internal/platform/ctxutil"
	"github.com/taibuivan/inkwell/internal/platform/sec"
	"github.com/taibuivan/inkwell/pkg/pointer"
)

// articleSchema builds the fixture schema the entity tests run against.
func articleSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Spec{
		Version: 1,
		Patterns: []schema.Pattern{
			{Name: "tenantKey", Pattern: "^[a-z]+$"},
		},
		Indexes: []schema.Index{
			{Name: "articleSlug", Type: schema.IndexTypeUnique},
		},
		EntityTypes: []schema.EntityType{
			{
				Name:           "Article",
				Publishable:    true,
				AuthKeyPattern: "tenantKey",
				NameField:      "title",
				Fields: []schema.Field{
					{Name: "title", Type: schema.FieldTypeString, Required: true},
					{Name: "slug", Type: schema.FieldTypeString, Index: "articleSlug"},
					{Name: "summary", Type: schema.FieldTypeString},
					{Name: "related", Type: schema.FieldTypeReference, List: true, EntityTypes: []string{"Article"}},
				},
			},
			{
				Name: "Memo",
				Fields: []schema.Field{
					{Name: "note", Type: schema.FieldTypeString},
				},
			},
		},
	})
	require.NoError(t, err)
	return s
}

type staticSchemas struct {
	s *schema.Schema
}

func (p staticSchemas) GetSchema(context.Context) (*schema.Schema, error) {
	return p.s, nil
}

func newTestService(t *testing.T) (*entity.Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return entity.NewService(store, staticSchemas{s: articleSchema(t)}, logger), store
}

func sessionContext(subject string, readOnly bool, authKeys ...string) context.Context {
	return ctxutil.WithSession(context.Background(), &sec.Session{
		Subject:  subject,
		ReadOnly: readOnly,
		AuthKeys: authKeys,
	})
}

func adminContext() context.Context {
	return sessionContext("admin", false, "*")
}

func createArticle(t *testing.T, service *entity.Service, id, title string, fields map[string]any) *entity.Entity {
	t.Helper()
	merged := map[string]any{"title": title}
	for name, value := range fields {
		merged[name] = value
	}
	created, err := service.CreateEntity(adminContext(), entity.CreateRequest{
		ID:      id,
		Type:    "Article",
		AuthKey: "tenant",
		Fields:  merged,
	})
	require.NoError(t, err)
	return created
}

/*
TestService_CreateEntity verifies the create flow: normalization, draft
status at version 0, name derivation, index claims, and the event log.
*/
func TestService_CreateEntity(t *testing.T) {
	service, store := newTestService(t)

	created, err := service.CreateEntity(adminContext(), entity.CreateRequest{
		Type:    "Article",
		AuthKey: "tenant",
		Fields: map[string]any{
			"title":   "Hello",
			"slug":    "hello",
			"summary": "",
		},
	})
	require.NoError(t, err)

	// 1. Draft head at version 0, valid, name derived from the nameField
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Hello", created.Info.Name)
	assert.Equal(t, 0, created.Info.Version)
	assert.Equal(t, entity.StatusDraft, created.Info.Status)
	assert.True(t, created.Info.Valid)
	assert.Nil(t, created.Info.PublishedVersion)

	// 2. Normalization materialized the empty string as null
	assert.Equal(t, map[string]any{
		"title":   "Hello",
		"slug":    "hello",
		"summary": nil,
		"related": nil,
	}, created.Fields)

	// 3. The unique slug value belongs to the new entity
	owner, claimed := store.uniqueOwner("articleSlug", "hello")
	assert.True(t, claimed)
	assert.Equal(t, created.ID, owner)

	// 4. One create event with the entity at version 0
	require.Len(t, store.events, 1)
	assert.Equal(t, entity.EventCreateEntity, store.events[0].Type)
	assert.Equal(t, []entity.EventEntity{{ID: created.ID, Version: 0}}, store.events[0].Entities)
}

/*
TestService_CreateEntity_Checks verifies entity-info validation and
authorization gates on create.
*/
func TestService_CreateEntity_Checks(t *testing.T) {
	service, _ := newTestService(t)

	// 1. No session
	_, err := service.CreateEntity(context.Background(), entity.CreateRequest{Type: "Article", AuthKey: "tenant"})
	assert.Error(t, err)

	// 2. Read-only session
	_, err = service.CreateEntity(sessionContext("viewer", true, "*"), entity.CreateRequest{
		Type: "Article", AuthKey: "tenant", Fields: map[string]any{"title": "x"},
	})
	assert.EqualError(t, err, "Read-only session cannot modify entities")

	// 3. Unknown entity type
	_, err = service.CreateEntity(adminContext(), entity.CreateRequest{Type: "Nope", AuthKey: "tenant"})
	assert.EqualError(t, err, "info.type: Unknown entity type Nope")

	// 4. AuthKey violating the type's pattern
	_, err = service.CreateEntity(adminContext(), entity.CreateRequest{
		Type: "Article", AuthKey: "Tenant-1", Fields: map[string]any{"title": "x"},
	})
	assert.EqualError(t, err, "info.authKey: Value does not match pattern tenantKey")

	// 5. Version other than 0
	_, err = service.CreateEntity(adminContext(), entity.CreateRequest{
		Type: "Article", AuthKey: "tenant", Version: pointer.To(1), Fields: map[string]any{"title": "x"},
	})
	assert.EqualError(t, err, "info.version: Version must be 0 on create")

	// 6. Session without a grant for the authKey
	_, err = service.CreateEntity(sessionContext("limited", false, "other"), entity.CreateRequest{
		Type: "Article", AuthKey: "tenant", Fields: map[string]any{"title": "x"},
	})
	assert.True(t, apperr.IsAppError(err))

	// 7. Save-level content issue surfaces path-qualified
	_, err = service.CreateEntity(adminContext(), entity.CreateRequest{
		Type: "Article", AuthKey: "tenant",
		Fields: map[string]any{"title": "x", "slug": 5},
	})
	assert.EqualError(t, err, "fields.slug: Expected a string, got int")

	// 8. A type without a nameField needs an explicit name
	_, err = service.CreateEntity(adminContext(), entity.CreateRequest{
		Type: "Memo", AuthKey: "tenant", Fields: map[string]any{"note": "n"},
	})
	assert.EqualError(t, err, "info.name: Name is required")
}

/*
TestService_CreateEntity_NameCollision verifies a taken display name is
retried once with a disambiguating suffix.
*/
func TestService_CreateEntity_NameCollision(t *testing.T) {
	service, _ := newTestService(t)

	first := createArticle(t, service, "id-aaaaaaaa", "Same Title", nil)
	second := createArticle(t, service, "id-bbbbbbbb", "Same Title", nil)

	assert.Equal(t, "Same Title", first.Info.Name)
	assert.Equal(t, "Same Title#bbbbbbbb", second.Info.Name)
}

/*
TestService_UpdateEntity verifies merge semantics, version advancement, and
the draft/modified transition.
*/
func TestService_UpdateEntity(t *testing.T) {
	service, store := newTestService(t)
	created := createArticle(t, service, "", "Original", map[string]any{
		"slug":    "original",
		"summary": "keep me",
	})

	// 1. Absent fields keep their value; provided fields replace
	updated, err := service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID:     created.ID,
		Fields: map[string]any{"slug": "changed"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Info.Version)
	assert.Equal(t, entity.StatusDraft, updated.Info.Status)
	assert.Equal(t, "changed", updated.Fields["slug"])
	assert.Equal(t, "keep me", updated.Fields["summary"])

	// 2. Explicit null clears a field
	updated, err = service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID:     created.ID,
		Fields: map[string]any{"summary": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Info.Version)
	assert.Nil(t, updated.Fields["summary"])

	// 3. A no-op update writes no version and no event
	eventsBefore := len(store.events)
	same, err := service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID:     created.ID,
		Fields: map[string]any{"slug": "changed"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, same.Info.Version)
	assert.Len(t, store.events, eventsBefore)

	// 4. The unique claim follows the latest value
	owner, claimed := store.uniqueOwner("articleSlug", "changed")
	assert.True(t, claimed)
	assert.Equal(t, created.ID, owner)
	_, stillClaimed := store.uniqueOwner("articleSlug", "original")
	assert.False(t, stillClaimed)
}

/*
TestService_UpdateEntity_Checks verifies immutability and version guards on
update.
*/
func TestService_UpdateEntity_Checks(t *testing.T) {
	service, _ := newTestService(t)
	created := createArticle(t, service, "", "Guarded", nil)

	_, err := service.UpdateEntity(adminContext(), entity.UpdateRequest{ID: "missing"})
	assert.True(t, apperr.IsNotFound(err))

	_, err = service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID: created.ID, Type: "Memo",
	})
	assert.EqualError(t, err, "info.type: Type cannot be changed (is Article)")

	_, err = service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID: created.ID, AuthKey: "other",
	})
	assert.EqualError(t, err, "info.authKey: AuthKey cannot be changed")

	_, err = service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID: created.ID, Version: pointer.To(5), Fields: map[string]any{"summary": "x"},
	})
	assert.EqualError(t, err, "info.version: Expected version 1")
}

/*
TestService_GetEntity verifies latest and historical reads plus the authKey
gate.
*/
func TestService_GetEntity(t *testing.T) {
	service, _ := newTestService(t)
	created := createArticle(t, service, "", "Readable", map[string]any{"summary": "v0"})

	_, err := service.UpdateEntity(adminContext(), entity.UpdateRequest{
		ID:     created.ID,
		Fields: map[string]any{"summary": "v1"},
	})
	require.NoError(t, err)

	// 1. Latest by default
	latest, err := service.GetEntity(adminContext(), created.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Info.Version)
	assert.Equal(t, "v1", latest.Fields["summary"])

	// 2. Historical version on request
	historical, err := service.GetEntity(sessionContext("reader", true, "tenant"), created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "v0", historical.Fields["summary"])

	// 3. Session without a matching grant is rejected
	_, err = service.GetEntity(sessionContext("outsider", true, "other"), created.ID, -1)
	assert.Error(t, err)
}

/*
TestService_SearchEntities verifies authKey narrowing against the session.
*/
func TestService_SearchEntities(t *testing.T) {
	service, _ := newTestService(t)
	createArticle(t, service, "", "One", nil)

	_, err := service.CreateEntity(adminContext(), entity.CreateRequest{
		Type: "Article", AuthKey: "secret", Fields: map[string]any{"title": "Two"},
	})
	require.NoError(t, err)

	// 1. A limited session only sees its own partitions
	entities, total, err := service.SearchEntities(sessionContext("limited", true, "tenant"), entity.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entities, 1)
	assert.Equal(t, "tenant", entities[0].Info.AuthKey)
	assert.Nil(t, entities[0].Fields)

	// 2. Requesting an unauthorized partition fails
	_, _, err = service.SearchEntities(sessionContext("limited", true, "tenant"), entity.Filter{AuthKeys: []string{"secret"}}, 10, 0)
	assert.Error(t, err)

	// 3. A wildcard session sees everything
	_, total, err = service.SearchEntities(adminContext(), entity.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

/*
TestService_UniqueValues_Exclusive verifies that a value claimed by one
entity cannot be claimed by another, and the first owner keeps it.
*/
func TestService_UniqueValues_Exclusive(t *testing.T) {
	service, store := newTestService(t)
	first := createArticle(t, service, "", "First", map[string]any{"slug": "shared"})

	_, err := service.CreateEntity(adminContext(), entity.CreateRequest{
		Type: "Article", AuthKey: "tenant",
		Fields: map[string]any{"title": "Second", "slug": "shared"},
	})
	assert.EqualError(t, err, "Unique index articleSlug already contains value shared")

	// The failed create rolled back: ownership and entity count unchanged
	owner, claimed := store.uniqueOwner("articleSlug", "shared")
	assert.True(t, claimed)
	assert.Equal(t, first.ID, owner)
	assert.Len(t, store.entities, 1)
}
