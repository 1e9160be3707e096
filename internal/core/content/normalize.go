package content

import (
	"sort"
	"strings"

	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
)

// NormalizeOptions tunes [NormalizeEntityFields].
type NormalizeOptions struct {
	// ExcludeOmitted skips fields absent from the input instead of
	// materializing an explicit null for them. Used for partial updates.
	ExcludeOmitted bool

	// KeepExtraFields preserves undeclared entity-level field names verbatim
	// instead of failing. Component values always preserve unknown keys for
	// forward compatibility.
	KeepExtraFields bool
}

/*
NormalizeEntityFields canonicalizes an entity's field values before
validation and storage.

# Rules

  - null stays null.
  - lists: each item normalized, null results dropped, an empty resulting
    list collapses to null.
  - strings: the empty string collapses to null.
  - rich text: a document whose root holds nothing but one empty paragraph
    collapses to null (no content).
  - components: declared fields normalized recursively; unknown keys are
    preserved verbatim so content written under a newer schema survives.
  - booleans, numbers, references, locations pass through unchanged.

Values the schema cannot make sense of (wrong shapes, wrong scalar types)
also pass through unchanged; flagging them is the save validator's job.

The result is a new map; the input is never mutated. Normalization is
idempotent: normalizing an already-normalized map returns an equal map.
*/
func NormalizeEntityFields(s *schema.Schema, path Path, typeName string, fields map[string]any, options NormalizeOptions) (map[string]any, error) {
	entityType := s.EntityType(typeName)
	if entityType == nil {
		return nil, apperr.BadRequestf("%s: Unknown entity type %s", messageAt(path, "entity"), typeName)
	}

	if !options.KeepExtraFields {
		if err := rejectExtraFields(path, entityType.Fields, fields); err != nil {
			return nil, err
		}
	}

	normalized := make(map[string]any, len(entityType.Fields))
	for i := range entityType.Fields {
		field := &entityType.Fields[i]

		raw, present := fields[field.Name]
		if !present && options.ExcludeOmitted {
			continue
		}

		value, err := normalizeFieldValue(s, path.Append("fields", field.Name), field, raw)
		if err != nil {
			return nil, err
		}
		normalized[field.Name] = value
	}

	if options.KeepExtraFields {
		declared := fieldNameSet(entityType.Fields)
		for name, value := range fields {
			if !declared[name] {
				normalized[name] = value
			}
		}
	}

	return normalized, nil
}

func normalizeFieldValue(s *schema.Schema, path Path, field *schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	if field.List {
		items, ok := value.([]any)
		if !ok {
			// Not a list at all; the save validator reports the mismatch.
			return value, nil
		}
		normalized := make([]any, 0, len(items))
		for i, item := range items {
			result, err := normalizeItem(s, path.Append(i), field, item)
			if err != nil {
				return nil, err
			}
			if result != nil {
				normalized = append(normalized, result)
			}
		}
		if len(normalized) == 0 {
			return nil, nil
		}
		return normalized, nil
	}

	return normalizeItem(s, path, field, value)
}

func normalizeItem(s *schema.Schema, path Path, field *schema.Field, item any) (any, error) {
	switch field.Type {
	case schema.FieldTypeString:
		if text, ok := item.(string); ok && text == "" {
			return nil, nil
		}

	case schema.FieldTypeRichText:
		if value, ok := AsMap(item); ok && isEmptyRichText(value) {
			return nil, nil
		}

	case schema.FieldTypeComponent:
		value, ok := AsMap(item)
		if !ok {
			return item, nil
		}
		return normalizeComponent(s, path, value)
	}

	return item, nil
}

func normalizeComponent(s *schema.Schema, path Path, value map[string]any) (any, error) {
	typeName, ok := ComponentTypeName(value)
	if !ok {
		// No type tag; preserved for the validator to flag.
		return value, nil
	}

	componentType := s.ComponentType(typeName)
	if componentType == nil {
		return nil, apperr.BadRequestf("%s: Unknown component type %s", path.String(), typeName)
	}

	declared := fieldNameSet(componentType.Fields)
	normalized := make(map[string]any, len(value))

	// Unknown keys ride along untouched (invalid-but-preserved).
	normalized[keyType] = typeName
	for name, raw := range value {
		if name != keyType && !declared[name] {
			normalized[name] = raw
		}
	}

	for i := range componentType.Fields {
		field := &componentType.Fields[i]
		raw, present := value[field.Name]
		if !present {
			continue
		}
		result, err := normalizeFieldValue(s, path.Append(field.Name), field, raw)
		if err != nil {
			return nil, err
		}
		normalized[field.Name] = result
	}

	return normalized, nil
}

// isEmptyRichText reports whether a rich text document carries no content:
// a root with no children, or exactly one paragraph with no children.
func isEmptyRichText(value map[string]any) bool {
	root, ok := RichTextRoot(value)
	if !ok {
		return false
	}
	children := NodeChildren(root)
	if len(children) == 0 {
		return true
	}
	if len(children) != 1 {
		return false
	}
	paragraph, ok := children[0].(map[string]any)
	if !ok {
		return false
	}
	return NodeType(paragraph) == schema.RichTextNodeParagraph && len(NodeChildren(paragraph)) == 0
}

func rejectExtraFields(path Path, declared []schema.Field, values map[string]any) error {
	declaredNames := fieldNameSet(declared)

	var extras []string
	for name := range values {
		if declaredNames[name] {
			continue
		}
		extras = append(extras, name)
	}
	if len(extras) == 0 {
		return nil
	}

	sort.Strings(extras)
	return apperr.BadRequestf("%s: Unsupported field names: %s", messageAt(path, "entity"), strings.Join(extras, ", "))
}

func fieldNameSet(fields []schema.Field) map[string]bool {
	names := make(map[string]bool, len(fields))
	for i := range fields {
		names[fields[i].Name] = true
	}
	return names
}

// messageAt renders a path for message prefixes, falling back to a label for
// the empty root path.
func messageAt(path Path, fallback string) string {
	if rendered := path.String(); rendered != "" {
		return rendered
	}
	return fallback
}
