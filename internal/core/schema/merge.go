package schema

import (
	"reflect"

	"github.com/taibuivan/inkwell/internal/platform/apperr"
)

/*
Merge applies an additive update to the schema and returns the resulting
validated schema.

# Merge semantics

  - Entity and component types are matched by name: unknown names are
    appended, known names are updated in place. Within an updated type,
    fields are matched by name the same way, so declaration order of
    existing fields is stable and new fields append.
  - Patterns and indexes merge by name (replace or append).
  - Migration entries in the update are appended to the history and applied
    to the merged specification itself (a renamed field is renamed in its
    type specification, a deleted type disappears from the catalog).

An update that changes nothing returns the receiver unchanged; an effective
update bumps Version by one and requires any new migration entries to carry
exactly the resulting version. The merged result is re-validated in full.
*/
func (schema *Schema) Merge(update Spec) (*Schema, error) {
	merged := cloneSpec(schema.spec)

	// 1. Types, patterns, indexes: replace-or-append by name.
	for _, entityType := range update.EntityTypes {
		mergeEntityType(&merged, entityType)
	}
	for _, componentType := range update.ComponentTypes {
		mergeComponentType(&merged, componentType)
	}
	for _, pattern := range update.Patterns {
		mergePattern(&merged, pattern)
	}
	for _, index := range update.Indexes {
		mergeIndex(&merged, index)
	}

	// 2. New migration entries rewrite the merged catalog itself.
	newVersion := schema.spec.Version + 1
	for _, migration := range update.Migrations {
		if migration.Version != newVersion {
			return nil, apperr.BadRequestf("migration %d: expected version %d", migration.Version, newVersion)
		}
		merged.Migrations = append(merged.Migrations, migration)
		for _, action := range migration.Actions {
			if err := applyActionToSpec(&merged, action); err != nil {
				return nil, err
			}
		}
	}

	// 3. No effective change: keep the current schema and version.
	if reflect.DeepEqual(schema.spec, merged) {
		return schema, nil
	}

	merged.Version = newVersion
	return New(merged)
}

func mergeEntityType(spec *Spec, update EntityType) {
	for i := range spec.EntityTypes {
		if spec.EntityTypes[i].Name == update.Name {
			update.Fields = mergeFields(spec.EntityTypes[i].Fields, update.Fields)
			spec.EntityTypes[i] = update
			return
		}
	}
	spec.EntityTypes = append(spec.EntityTypes, update)
}

func mergeComponentType(spec *Spec, update ComponentType) {
	for i := range spec.ComponentTypes {
		if spec.ComponentTypes[i].Name == update.Name {
			update.Fields = mergeFields(spec.ComponentTypes[i].Fields, update.Fields)
			spec.ComponentTypes[i] = update
			return
		}
	}
	spec.ComponentTypes = append(spec.ComponentTypes, update)
}

func mergeFields(existing, updates []Field) []Field {
	merged := append([]Field(nil), existing...)
	for _, update := range updates {
		replaced := false
		for i := range merged {
			if merged[i].Name == update.Name {
				merged[i] = update
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, update)
		}
	}
	return merged
}

func mergePattern(spec *Spec, update Pattern) {
	for i := range spec.Patterns {
		if spec.Patterns[i].Name == update.Name {
			spec.Patterns[i] = update
			return
		}
	}
	spec.Patterns = append(spec.Patterns, update)
}

func mergeIndex(spec *Spec, update Index) {
	for i := range spec.Indexes {
		if spec.Indexes[i].Name == update.Name {
			spec.Indexes[i] = update
			return
		}
	}
	spec.Indexes = append(spec.Indexes, update)
}

// applyActionToSpec rewrites the catalog for one migration action so the
// specification matches the content trees after the same action is replayed
// over stored fields.
func applyActionToSpec(spec *Spec, action Action) error {
	switch action.Action {
	case ActionRenameField, ActionDeleteField:
		fields := scopedFields(spec, action)
		if fields == nil {
			return apperr.BadRequestf("migration: unknown type %s", actionScope(action))
		}
		if findField(*fields, action.Field) == nil {
			return apperr.BadRequestf("migration: %s has no field %s", actionScope(action), action.Field)
		}
		if action.Action == ActionRenameField {
			renameField(*fields, action.Field, action.NewName)
		} else {
			*fields = deleteField(*fields, action.Field)
		}

	case ActionRenameType:
		// Entity rows store their type in a column the migration replay never
		// touches, so only component types can be renamed or deleted.
		if action.EntityType != "" {
			return apperr.BadRequestf("migration: renameType applies to componentType scope only")
		}
		if !renameComponentType(spec, action.ComponentType, action.NewName) {
			return apperr.BadRequestf("migration: unknown type %s", action.ComponentType)
		}

	case ActionDeleteType:
		if action.EntityType != "" {
			return apperr.BadRequestf("migration: deleteType applies to componentType scope only")
		}
		if !deleteComponentType(spec, action.ComponentType) {
			return apperr.BadRequestf("migration: unknown type %s", action.ComponentType)
		}
	}
	return nil
}

func actionScope(action Action) string {
	if action.EntityType != "" {
		return action.EntityType
	}
	return action.ComponentType
}

func scopedFields(spec *Spec, action Action) *[]Field {
	if action.EntityType != "" {
		for i := range spec.EntityTypes {
			if spec.EntityTypes[i].Name == action.EntityType {
				return &spec.EntityTypes[i].Fields
			}
		}
		return nil
	}
	for i := range spec.ComponentTypes {
		if spec.ComponentTypes[i].Name == action.ComponentType {
			return &spec.ComponentTypes[i].Fields
		}
	}
	return nil
}

func renameField(fields []Field, name, newName string) {
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Name = newName
			return
		}
	}
}

func deleteField(fields []Field, name string) []Field {
	kept := fields[:0]
	for _, field := range fields {
		if field.Name != name {
			kept = append(kept, field)
		}
	}
	return kept
}

func renameComponentType(spec *Spec, name, newName string) bool {
	found := false
	for i := range spec.ComponentTypes {
		if spec.ComponentTypes[i].Name == name {
			spec.ComponentTypes[i].Name = newName
			found = true
		}
	}
	if !found {
		return false
	}
	rewriteTypeReferences(spec, func(field *Field) {
		field.ComponentTypes = replaceName(field.ComponentTypes, name, newName)
	})
	return true
}

func deleteComponentType(spec *Spec, name string) bool {
	kept := spec.ComponentTypes[:0]
	found := false
	for _, componentType := range spec.ComponentTypes {
		if componentType.Name == name {
			found = true
			continue
		}
		kept = append(kept, componentType)
	}
	if !found {
		return false
	}
	spec.ComponentTypes = kept
	rewriteTypeReferences(spec, func(field *Field) {
		field.ComponentTypes = removeName(field.ComponentTypes, name)
	})
	return true
}

func rewriteTypeReferences(spec *Spec, rewrite func(*Field)) {
	for i := range spec.EntityTypes {
		for j := range spec.EntityTypes[i].Fields {
			rewrite(&spec.EntityTypes[i].Fields[j])
		}
	}
	for i := range spec.ComponentTypes {
		for j := range spec.ComponentTypes[i].Fields {
			rewrite(&spec.ComponentTypes[i].Fields[j])
		}
	}
}

func replaceName(names []string, name, newName string) []string {
	for i := range names {
		if names[i] == name {
			names[i] = newName
		}
	}
	return names
}

func removeName(names []string, name string) []string {
	if names == nil {
		return nil
	}
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	return kept
}

// cloneSpec deep-copies a specification so merges never alias the receiver's
// backing arrays.
func cloneSpec(spec Spec) Spec {
	clone := spec
	clone.EntityTypes = append([]EntityType(nil), spec.EntityTypes...)
	for i := range clone.EntityTypes {
		clone.EntityTypes[i].Fields = cloneFields(clone.EntityTypes[i].Fields)
	}
	clone.ComponentTypes = append([]ComponentType(nil), spec.ComponentTypes...)
	for i := range clone.ComponentTypes {
		clone.ComponentTypes[i].Fields = cloneFields(clone.ComponentTypes[i].Fields)
	}
	clone.Patterns = append([]Pattern(nil), spec.Patterns...)
	clone.Indexes = append([]Index(nil), spec.Indexes...)
	clone.Migrations = append([]Migration(nil), spec.Migrations...)
	for i := range clone.Migrations {
		clone.Migrations[i].Actions = append([]Action(nil), spec.Migrations[i].Actions...)
	}
	return clone
}

func cloneFields(fields []Field) []Field {
	cloned := append([]Field(nil), fields...)
	for i := range cloned {
		cloned[i].Values = append([]string(nil), cloned[i].Values...)
		cloned[i].EntityTypes = cloneNames(cloned[i].EntityTypes)
		cloned[i].LinkEntityTypes = cloneNames(cloned[i].LinkEntityTypes)
		cloned[i].RichTextNodes = cloneNames(cloned[i].RichTextNodes)
		cloned[i].ComponentTypes = cloneNames(cloned[i].ComponentTypes)
	}
	return cloned
}

func cloneNames(names []string) []string {
	if names == nil {
		return nil
	}
	return append([]string(nil), names...)
}
