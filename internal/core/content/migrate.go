package content

import (
	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
)

/*
ApplyMigrations replays schema migrations over a stored field tree so content
encoded at an older schema version decodes under the current one.

Every migration entry with version > storedVersion is applied in ascending
version order, each entry's actions in declared order. Component-scoped
actions rewrite every occurrence of the component type anywhere in the tree:
a bare component field, items of a component list, and component nodes
embedded in rich text documents all go through the same recursive routine.

deleteType semantics: a matching bare component value becomes null, a
matching list item is removed (a list emptied this way collapses to null,
matching the normalizer), and a matching rich text component node is removed
from its parent's children.
*/
func ApplyMigrations(s *schema.Schema, entityTypeName string, fields map[string]any, storedVersion int) (map[string]any, error) {
	if storedVersion > s.Version() {
		return nil, apperr.BadRequestf("Content schema version %d is newer than the current schema %d",
			storedVersion, s.Version())
	}

	migrated := fields
	for _, migration := range s.Spec().Migrations {
		if migration.Version <= storedVersion {
			continue
		}
		for _, action := range migration.Actions {
			migrated = applyAction(action, entityTypeName, migrated)
		}
	}

	return migrated, nil
}

// applyAction rewrites the whole tree for one action. The input is never
// mutated; unchanged subtrees may be shared with the result.
func applyAction(action schema.Action, entityTypeName string, fields map[string]any) map[string]any {
	result := make(map[string]any, len(fields))
	for name, value := range fields {
		result[name] = migrateValue(action, value)
	}

	// Entity-scoped field actions apply to the top-level map only.
	if action.EntityType == entityTypeName {
		applyFieldAction(action, result)
	}

	return result
}

func applyFieldAction(action schema.Action, fields map[string]any) {
	switch action.Action {
	case schema.ActionRenameField:
		if value, ok := fields[action.Field]; ok {
			delete(fields, action.Field)
			fields[action.NewName] = value
		}
	case schema.ActionDeleteField:
		delete(fields, action.Field)
	}
}

// migrateValue recurses into one field value. A nil return marks a value
// deleted by deleteType; callers decide whether that means a null slot or a
// removed list item.
func migrateValue(action schema.Action, value any) any {
	switch value := value.(type) {
	case []any:
		items := make([]any, 0, len(value))
		for _, item := range value {
			if item == nil {
				items = append(items, nil)
				continue
			}
			migrated := migrateValue(action, item)
			if migrated == nil {
				// Deleted list item: removed, not nulled.
				continue
			}
			items = append(items, migrated)
		}
		if len(items) == 0 && len(value) > 0 {
			return nil
		}
		return items

	case map[string]any:
		// A component always carries a type tag; a rich text document never
		// does, so the type check must run first or a component with a field
		// named "root" would be mistaken for a document.
		if _, ok := ComponentTypeName(value); ok {
			return migrateComponent(action, value)
		}
		if _, ok := RichTextRoot(value); ok {
			return migrateRichText(action, value)
		}
		return value

	default:
		return value
	}
}

func migrateComponent(action schema.Action, component map[string]any) any {
	typeName, _ := ComponentTypeName(component)
	matches := action.ComponentType != "" && action.ComponentType == typeName

	if matches && action.Action == schema.ActionDeleteType {
		return nil
	}

	result := make(map[string]any, len(component))
	for name, value := range component {
		if name == keyType {
			result[name] = value
			continue
		}
		result[name] = migrateValue(action, value)
	}

	if matches {
		switch action.Action {
		case schema.ActionRenameType:
			result[keyType] = action.NewName
		case schema.ActionRenameField, schema.ActionDeleteField:
			applyFieldAction(action, result)
		}
	}

	return result
}

func migrateRichText(action schema.Action, document map[string]any) any {
	root, _ := RichTextRoot(document)

	migratedRoot := migrateRichTextNode(action, root)
	if migratedRoot == nil {
		// The root itself is never a component node; keep the document.
		migratedRoot = root
	}

	result := make(map[string]any, len(document))
	for name, value := range document {
		result[name] = value
	}
	result[keyRoot] = migratedRoot
	return result
}

// migrateRichTextNode rewrites one rich text node. A nil return removes the
// node (its embedded component was deleted).
func migrateRichTextNode(action schema.Action, node map[string]any) map[string]any {
	result := make(map[string]any, len(node))
	for name, value := range node {
		result[name] = value
	}

	if NodeType(node) == schema.RichTextNodeComponent {
		data, ok := node[keyData].(map[string]any)
		if ok {
			migrated := migrateComponent(action, data)
			if migrated == nil {
				return nil
			}
			result[keyData] = migrated
		}
	}

	if children := NodeChildren(node); children != nil {
		migratedChildren := make([]any, 0, len(children))
		for _, child := range children {
			childNode, ok := child.(map[string]any)
			if !ok {
				migratedChildren = append(migratedChildren, child)
				continue
			}
			migratedChild := migrateRichTextNode(action, childNode)
			if migratedChild == nil {
				continue
			}
			migratedChildren = append(migratedChildren, migratedChild)
		}
		result[keyChildren] = migratedChildren
	}

	return result
}
