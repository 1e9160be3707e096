package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkwell/internal/core/content"
	"github.com/taibuivan/inkwell/internal/core/schema"
)

// migrationSchema builds a schema at version 2 whose history carries the
// given actions at version 2, so content stored at version 1 replays them.
func migrationSchema(t *testing.T, actions ...schema.Action) *schema.Schema {
	t.Helper()

	s, err := schema.New(schema.Spec{
		Version: 2,
		EntityTypes: []schema.EntityType{{
			Name: "Doc",
			Fields: []schema.Field{
				{Name: "block", Type: schema.FieldTypeComponent},
				{Name: "blocks", Type: schema.FieldTypeComponent, List: true},
				{Name: "body", Type: schema.FieldTypeRichText},
			},
		}},
		ComponentTypes: []schema.ComponentType{{
			Name: "Renamed",
			Fields: []schema.Field{
				{Name: "string2", Type: schema.FieldTypeString},
				{Name: "child", Type: schema.FieldTypeComponent},
			},
		}},
		Migrations: []schema.Migration{{Version: 2, Actions: actions}},
	})
	require.NoError(t, err)
	return s
}

/*
TestMigrate_RenameFieldRecursive pins the recursive rename scenario: the
rename applies at every nesting depth of the component type.
*/
func TestMigrate_RenameFieldRecursive(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:        schema.ActionRenameField,
		ComponentType: "Component",
		Field:         "string",
		NewName:       "string2",
	})

	stored := map[string]any{
		"block": map[string]any{
			"type":   "Component",
			"string": "1",
			"child": map[string]any{
				"type":   "Component",
				"string": "1.1",
				"child":  nil,
			},
		},
	}

	migrated, err := content.ApplyMigrations(s, "Doc", stored, 1)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"block": map[string]any{
			"type":    "Component",
			"string2": "1",
			"child": map[string]any{
				"type":    "Component",
				"string2": "1.1",
				"child":   nil,
			},
		},
	}, migrated)
}

/*
TestMigrate_RenameTypeAllShapes verifies renameType behaves identically for
a bare component field, a component list, and a rich text embedded component.
*/
func TestMigrate_RenameTypeAllShapes(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:        schema.ActionRenameType,
		ComponentType: "Old",
		NewName:       "Renamed",
	})

	stored := map[string]any{
		"block":  map[string]any{"type": "Old"},
		"blocks": []any{map[string]any{"type": "Old"}},
		"body": richTextDoc(map[string]any{
			"type": "component",
			"data": map[string]any{"type": "Old"},
		}),
	}

	migrated, err := content.ApplyMigrations(s, "Doc", stored, 1)
	require.NoError(t, err)

	// 1. Bare field
	block := migrated["block"].(map[string]any)
	assert.Equal(t, "Renamed", block["type"])

	// 2. List item
	blocks := migrated["blocks"].([]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Renamed", blocks[0].(map[string]any)["type"])

	// 3. Rich text component node
	body := migrated["body"].(map[string]any)
	root := body["root"].(map[string]any)
	node := root["children"].([]any)[0].(map[string]any)
	assert.Equal(t, "Renamed", node["data"].(map[string]any)["type"])
}

/*
TestMigrate_RenameTypeRootField verifies a component is recognized by its
type tag even when one of its fields is named "root", and the rename still
reaches components nested under that field.
*/
func TestMigrate_RenameTypeRootField(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:        schema.ActionRenameType,
		ComponentType: "Old",
		NewName:       "Renamed",
	})

	stored := map[string]any{
		"block": map[string]any{
			"type": "Old",
			"root": map[string]any{"type": "Old"},
		},
	}

	migrated, err := content.ApplyMigrations(s, "Doc", stored, 1)
	require.NoError(t, err)

	block := migrated["block"].(map[string]any)
	assert.Equal(t, "Renamed", block["type"])
	assert.Equal(t, "Renamed", block["root"].(map[string]any)["type"])
}

/*
TestMigrate_DeleteTypeAllShapes verifies deleteType semantics per shape:
null slot, removed list item, removed rich text node.
*/
func TestMigrate_DeleteTypeAllShapes(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:        schema.ActionDeleteType,
		ComponentType: "Old",
	})

	stored := map[string]any{
		"block":  map[string]any{"type": "Old"},
		"blocks": []any{map[string]any{"type": "Old"}, map[string]any{"type": "Keep"}},
		"body": richTextDoc(
			map[string]any{"type": "component", "data": map[string]any{"type": "Old"}},
			textParagraph("stays"),
		),
	}

	migrated, err := content.ApplyMigrations(s, "Doc", stored, 1)
	require.NoError(t, err)

	// 1. Bare field becomes null
	assert.Nil(t, migrated["block"])

	// 2. Matching list items are removed, survivors stay
	blocks := migrated["blocks"].([]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Keep", blocks[0].(map[string]any)["type"])

	// 3. The rich text component node disappears, siblings stay
	body := migrated["body"].(map[string]any)
	children := body["root"].(map[string]any)["children"].([]any)
	require.Len(t, children, 1)
	assert.Equal(t, "paragraph", children[0].(map[string]any)["type"])
}

/*
TestMigrate_DeleteTypeEmptiesList pins the decision that a component list
whose items are all deleted collapses to null, matching the normalizer's
empty-list rule.
*/
func TestMigrate_DeleteTypeEmptiesList(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:        schema.ActionDeleteType,
		ComponentType: "Old",
	})

	migrated, err := content.ApplyMigrations(s, "Doc", map[string]any{
		"blocks": []any{map[string]any{"type": "Old"}, map[string]any{"type": "Old"}},
	}, 1)
	require.NoError(t, err)

	assert.Nil(t, migrated["blocks"])
}

/*
TestMigrate_EntityScopedFieldActions verifies entity-scoped actions apply to
the top-level field map only.
*/
func TestMigrate_EntityScopedFieldActions(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:     schema.ActionRenameField,
		EntityType: "Doc",
		Field:      "block",
		NewName:    "mainBlock",
	})

	migrated, err := content.ApplyMigrations(s, "Doc", map[string]any{
		"block": map[string]any{"type": "Renamed", "block": "unrelated"},
	}, 1)
	require.NoError(t, err)

	_, hasOld := migrated["block"]
	assert.False(t, hasOld)
	renamed := migrated["mainBlock"].(map[string]any)
	assert.Equal(t, "unrelated", renamed["block"])
}

/*
TestMigrate_VersionReplay verifies only migrations newer than the stored
version replay, and stored versions from the future are rejected.
*/
func TestMigrate_VersionReplay(t *testing.T) {
	s := migrationSchema(t, schema.Action{
		Action:        schema.ActionDeleteField,
		ComponentType: "Component",
		Field:         "obsolete",
	})

	stored := map[string]any{
		"block": map[string]any{"type": "Component", "obsolete": 1},
	}

	// 1. Content already at the current version replays nothing
	migrated, err := content.ApplyMigrations(s, "Doc", stored, 2)
	require.NoError(t, err)
	assert.Equal(t, stored, migrated)

	// 2. Older content replays the entry
	migrated, err = content.ApplyMigrations(s, "Doc", stored, 1)
	require.NoError(t, err)
	block := migrated["block"].(map[string]any)
	_, present := block["obsolete"]
	assert.False(t, present)

	// 3. Future content is rejected
	_, err = content.ApplyMigrations(s, "Doc", stored, 3)
	assert.EqualError(t, err, "Content schema version 3 is newer than the current schema 2")
}
