package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkwell/internal/core/schema"
)

func testSpec() schema.Spec {
	return schema.Spec{
		Version: 1,
		EntityTypes: []schema.EntityType{
			{
				Name:        "Article",
				Publishable: true,
				NameField:   "title",
				Fields: []schema.Field{
					{Name: "title", Type: schema.FieldTypeString, Required: true},
					{Name: "slug", Type: schema.FieldTypeString, MatchPattern: "slug", Index: "articleSlug"},
					{Name: "body", Type: schema.FieldTypeRichText},
					{Name: "related", Type: schema.FieldTypeReference, List: true, EntityTypes: []string{"Article"}},
					{Name: "hero", Type: schema.FieldTypeComponent, ComponentTypes: []string{"Hero"}},
					{Name: "internalNote", Type: schema.FieldTypeString, AdminOnly: true},
				},
			},
			{
				Name: "DraftOnly",
				Fields: []schema.Field{
					{Name: "note", Type: schema.FieldTypeString},
				},
			},
		},
		ComponentTypes: []schema.ComponentType{
			{
				Name: "Hero",
				Fields: []schema.Field{
					{Name: "caption", Type: schema.FieldTypeString},
					{Name: "position", Type: schema.FieldTypeLocation},
				},
			},
			{
				Name:      "AdminWidget",
				AdminOnly: true,
				Fields: []schema.Field{
					{Name: "flag", Type: schema.FieldTypeBoolean},
				},
			},
		},
		Patterns: []schema.Pattern{
			{Name: "slug", Pattern: `^[a-z0-9-]+$`},
		},
		Indexes: []schema.Index{
			{Name: "articleSlug", Type: schema.IndexTypeUnique},
		},
	}
}

/*
TestSchema_Validate verifies the structural invariants of the specification.
*/
func TestSchema_Validate(t *testing.T) {
	// 1. A well-formed spec passes
	_, err := schema.New(testSpec())
	require.NoError(t, err)

	// 2. Type names must be PascalCase
	bad := testSpec()
	bad.EntityTypes[0].Name = "article"
	_, err = schema.New(bad)
	assert.EqualError(t, err, "article: type name must be PascalCase")

	// 3. Type names are unique across entity and component namespaces
	bad = testSpec()
	bad.ComponentTypes[0].Name = "Article"
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article: duplicate type name")

	// 4. Field names must be camelCase
	bad = testSpec()
	bad.EntityTypes[0].Fields[0].Name = "Title"
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article.Title: field name must be camelCase")

	// 5. Attributes must match the declared field type
	bad = testSpec()
	bad.EntityTypes[0].Fields[0].Integer = true
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article.title: integer is not supported for String fields")

	// 6. matchPattern and values are mutually exclusive
	bad = testSpec()
	bad.EntityTypes[0].Fields[1].Values = []string{"a", "b"}
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article.slug: matchPattern and values are mutually exclusive")

	// 7. Referenced patterns must exist
	bad = testSpec()
	bad.EntityTypes[0].Fields[1].MatchPattern = "missing"
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article.slug: unknown matchPattern missing")

	// 8. Referenced types must exist
	bad = testSpec()
	bad.EntityTypes[0].Fields[4].ComponentTypes = []string{"Missing"}
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article.hero: referenced component type Missing does not exist")

	// 9. Publishable types cannot reference non-publishable ones
	bad = testSpec()
	bad.EntityTypes[0].Fields[3].EntityTypes = []string{"DraftOnly"}
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Article.related: referenced entity type DraftOnly is not publishable")

	// 10. ...unless the referencing field is adminOnly
	ok := testSpec()
	ok.EntityTypes[0].Fields[3].EntityTypes = []string{"DraftOnly"}
	ok.EntityTypes[0].Fields[3].AdminOnly = true
	_, err = schema.New(ok)
	assert.NoError(t, err)
}

/*
TestSchema_ValidateRichTextNodes verifies the rich text node declarations.
*/
func TestSchema_ValidateRichTextNodes(t *testing.T) {
	// 1. A restricted node set must include the structural minimum
	bad := schema.Spec{
		EntityTypes: []schema.EntityType{{
			Name: "Foo",
			Fields: []schema.Field{
				{Name: "bar", Type: schema.FieldTypeRichText, RichTextNodes: []string{"entity"}},
			},
		}},
	}
	_, err := schema.New(bad)
	assert.EqualError(t, err, "Foo.bar: richTextNodes must include root, paragraph, text")

	// 2. Grouped node types must appear together
	bad.EntityTypes[0].Fields[0].RichTextNodes = []string{"root", "paragraph", "text", "list"}
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Foo.bar: richTextNodes must include both list and listitem")

	// 3. entityTypes requires the entity node to be declared
	bad.EntityTypes[0].Fields[0].RichTextNodes = []string{"root", "paragraph", "text"}
	bad.EntityTypes[0].Fields[0].EntityTypes = []string{"Foo"}
	bad.EntityTypes[0].Publishable = true
	_, err = schema.New(bad)
	assert.EqualError(t, err, "Foo.bar: entityTypes is set but richTextNodes does not include entity")

	// 4. The full structural minimum plus declared targets passes
	bad.EntityTypes[0].Fields[0].RichTextNodes = []string{"root", "paragraph", "text", "entity"}
	_, err = schema.New(bad)
	assert.NoError(t, err)
}

/*
TestSchema_Published verifies the published projection rules.
*/
func TestSchema_Published(t *testing.T) {
	full, err := schema.New(testSpec())
	require.NoError(t, err)

	published := full.Published()

	// 1. Non-publishable entity types and adminOnly component types are dropped
	assert.Nil(t, published.EntityType("DraftOnly"))
	assert.Nil(t, published.ComponentType("AdminWidget"))
	assert.NotNil(t, published.EntityType("Article"))
	assert.NotNil(t, published.ComponentType("Hero"))

	// 2. adminOnly fields are dropped
	article := published.EntityType("Article")
	for _, field := range article.Fields {
		assert.NotEqual(t, "internalNote", field.Name)
	}

	// 3. Referenced patterns and indexes survive, others are dropped
	assert.NotNil(t, published.Pattern("slug"))
	assert.NotNil(t, published.Index("articleSlug"))

	// 4. Projection is idempotent and memoized
	assert.Same(t, published, full.Published())
	assert.Equal(t, published.Spec(), published.Published().Spec())
}

/*
TestSchema_PublishedDropsEmptiedFields verifies that fields whose declared
target sets become empty under projection are removed with their targets.
*/
func TestSchema_PublishedDropsEmptiedFields(t *testing.T) {
	spec := schema.Spec{
		EntityTypes: []schema.EntityType{
			{
				Name:        "Page",
				Publishable: true,
				Fields: []schema.Field{
					{Name: "title", Type: schema.FieldTypeString},
					{Name: "widget", Type: schema.FieldTypeComponent, ComponentTypes: []string{"Secret"}},
				},
			},
		},
		ComponentTypes: []schema.ComponentType{
			{Name: "Secret", AdminOnly: true, Fields: []schema.Field{{Name: "x", Type: schema.FieldTypeBoolean}}},
		},
	}
	full, err := schema.New(spec)
	require.NoError(t, err)

	page := full.Published().EntityType("Page")
	require.NotNil(t, page)
	require.Len(t, page.Fields, 1)
	assert.Equal(t, "title", page.Fields[0].Name)
}

/*
TestSchema_Merge verifies additive evolution and migration handling.
*/
func TestSchema_Merge(t *testing.T) {
	current, err := schema.New(testSpec())
	require.NoError(t, err)

	// 1. Adding a field to an existing type bumps the version
	merged, err := current.Merge(schema.Spec{
		EntityTypes: []schema.EntityType{{
			Name:        "Article",
			Publishable: true,
			NameField:   "title",
			Fields: append(testSpec().EntityTypes[0].Fields,
				schema.Field{Name: "subtitle", Type: schema.FieldTypeString}),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Version())
	assert.NotNil(t, merged.Field("Article", "subtitle"))

	// 2. Declaration order of existing fields is stable, new fields append
	article := merged.EntityType("Article")
	assert.Equal(t, "title", article.Fields[0].Name)
	assert.Equal(t, "subtitle", article.Fields[len(article.Fields)-1].Name)

	// 3. A no-op update returns the same schema at the same version
	same, err := current.Merge(schema.Spec{})
	require.NoError(t, err)
	assert.Same(t, current, same)

	// 4. A renameField migration rewrites the catalog and the history
	renamed, err := current.Merge(schema.Spec{
		Migrations: []schema.Migration{{
			Version: 2,
			Actions: []schema.Action{{
				Action:        schema.ActionRenameField,
				ComponentType: "Hero",
				Field:         "caption",
				NewName:       "label",
			}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, renamed.Version())
	assert.Nil(t, renamed.Field("Hero", "caption"))
	assert.NotNil(t, renamed.Field("Hero", "label"))
	require.Len(t, renamed.Spec().Migrations, 1)

	// 5. Migration entries must carry the resulting version
	_, err = current.Merge(schema.Spec{
		Migrations: []schema.Migration{{
			Version: 7,
			Actions: []schema.Action{{Action: schema.ActionDeleteField, ComponentType: "Hero", Field: "caption"}},
		}},
	})
	assert.EqualError(t, err, "migration 7: expected version 2")

	// 6. A merge producing an invalid spec is rejected as a whole
	_, err = current.Merge(schema.Spec{
		EntityTypes: []schema.EntityType{{
			Name:   "Broken",
			Fields: []schema.Field{{Name: "Bad", Type: schema.FieldTypeString}},
		}},
	})
	assert.EqualError(t, err, "Broken.Bad: field name must be camelCase")
}

/*
TestSchema_TypeActionsComponentScopeOnly verifies renameType and deleteType
reject entity scope: stored entity rows keep their type column, so renaming
or deleting an entity type would orphan every existing row of that type.
*/
func TestSchema_TypeActionsComponentScopeOnly(t *testing.T) {
	current, err := schema.New(testSpec())
	require.NoError(t, err)

	// 1. Merge rejects an entity-scoped renameType
	_, err = current.Merge(schema.Spec{
		Migrations: []schema.Migration{{
			Version: 2,
			Actions: []schema.Action{{
				Action:     schema.ActionRenameType,
				EntityType: "Article",
				NewName:    "Story",
			}},
		}},
	})
	assert.EqualError(t, err, "migration: renameType applies to componentType scope only")

	// 2. Same for an entity-scoped deleteType
	_, err = current.Merge(schema.Spec{
		Migrations: []schema.Migration{{
			Version: 2,
			Actions: []schema.Action{{Action: schema.ActionDeleteType, EntityType: "DraftOnly"}},
		}},
	})
	assert.EqualError(t, err, "migration: deleteType applies to componentType scope only")

	// 3. A directly loaded spec fails validation on the same actions
	bad := testSpec()
	bad.Migrations = []schema.Migration{{
		Version: 1,
		Actions: []schema.Action{{
			Action:     schema.ActionRenameType,
			EntityType: "Article",
			NewName:    "Story",
		}},
	}}
	_, err = schema.New(bad)
	assert.EqualError(t, err, "migration 1: renameType applies to componentType scope only")
}
