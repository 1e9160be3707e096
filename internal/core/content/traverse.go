package content

import (
	"fmt"
	"iter"

	"github.com/taibuivan/inkwell/internal/core/schema"
)

// NodeKind discriminates the traversal node union.
type NodeKind string

const (
	NodeKindEntity       NodeKind = "entity"
	NodeKindField        NodeKind = "field"
	NodeKindFieldItem    NodeKind = "fieldItem"
	NodeKindRichTextNode NodeKind = "richTextNode"
	NodeKindComponent    NodeKind = "component"
	NodeKindError        NodeKind = "error"
)

// ErrorKind classifies structural problems found mid-walk.
type ErrorKind string

const (
	ErrorMissingTypeSpec ErrorKind = "missingTypeSpec"
	ErrorTypeMismatch    ErrorKind = "typeMismatch"
)

// Node is one element of a traversal: a tagged union over the node kinds.
// Only the fields relevant to Kind are set.
type Node struct {
	Kind NodeKind
	Path Path

	// EntityType is set on entity nodes.
	EntityType *schema.EntityType
	// ComponentType is set on component nodes.
	ComponentType *schema.ComponentType
	// Field is set on field, fieldItem, and richTextNode nodes.
	Field *schema.Field

	// Value is the resolved value: the field map for entity/component nodes,
	// the full field value for field nodes, one item for fieldItem nodes.
	Value any

	// RichTextNode is the node object for richTextNode nodes.
	RichTextNode map[string]any

	// ErrorKind, TypeName, and Message describe error nodes. TypeName names
	// the offending type for missingTypeSpec errors.
	ErrorKind ErrorKind
	TypeName  string
	Message   string
}

/*
TraverseEntity walks an entity's field tree against its type specification.

The sequence is lazy, finite, and restartable: each range over it starts a
fresh pre-order walk with no state shared between walks. Fields enumerate in
declaration order of the type specification, never in storage order, so two
entities with identical logical content always produce identical sequences.

Structural anomalies (unknown type names, shape mismatches) never abort the
walk; they are emitted as error nodes and the walk continues past the broken
branch. Passing a published schema instead of the full schema restricts the
walk to the published view with no other change in behavior.
*/
func TraverseEntity(s *schema.Schema, path Path, typeName string, fields map[string]any) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk := &traverser{schema: s, yield: yield}

		entityType := s.EntityType(typeName)
		if entityType == nil {
			walk.errorNode(path, ErrorMissingTypeSpec, typeName,
				fmt.Sprintf("Unknown entity type %s", typeName))
			return
		}

		if !yield(Node{Kind: NodeKindEntity, Path: path, EntityType: entityType, Value: fields}) {
			return
		}
		walk.fields(path, entityType.Fields, fields, true)
	}
}

// TraverseComponent walks a single component value the same way a component
// found inside an entity would be walked.
func TraverseComponent(s *schema.Schema, path Path, value map[string]any) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk := &traverser{schema: s, yield: yield}
		walk.component(path, value)
	}
}

// traverser carries the walk state: the schema view and the consumer. Every
// method returns false once the consumer stops the iteration.
type traverser struct {
	schema *schema.Schema
	yield  func(Node) bool
}

func (walk *traverser) errorNode(path Path, kind ErrorKind, typeName, message string) bool {
	return walk.yield(Node{
		Kind:      NodeKindError,
		Path:      path,
		ErrorKind: kind,
		TypeName:  typeName,
		Message:   message,
	})
}

// fields walks one level of declared fields. Entity-level fields live under
// a "fields" path segment; component fields sit directly on the component.
func (walk *traverser) fields(path Path, declared []schema.Field, values map[string]any, entityLevel bool) bool {
	for i := range declared {
		field := &declared[i]

		var fieldPath Path
		if entityLevel {
			fieldPath = path.Append("fields", field.Name)
		} else {
			fieldPath = path.Append(field.Name)
		}

		var value any
		if values != nil {
			value = values[field.Name]
		}

		if !walk.yield(Node{Kind: NodeKindField, Path: fieldPath, Field: field, Value: value}) {
			return false
		}
		if !walk.fieldValue(fieldPath, field, value) {
			return false
		}
	}
	return true
}

func (walk *traverser) fieldValue(path Path, field *schema.Field, value any) bool {
	if value == nil {
		return true
	}

	if field.List {
		items, ok := value.([]any)
		if !ok {
			return walk.errorNode(path, ErrorTypeMismatch, "",
				fmt.Sprintf("Expected a list of values, got %T", value))
		}
		for i, item := range items {
			if item == nil {
				continue
			}
			if !walk.fieldItem(path.Append(i), field, item) {
				return false
			}
		}
		return true
	}

	if _, isList := value.([]any); isList {
		return walk.errorNode(path, ErrorTypeMismatch, "",
			"Expected a single value, got a list")
	}

	return walk.fieldItem(path, field, value)
}

func (walk *traverser) fieldItem(path Path, field *schema.Field, item any) bool {
	if !walk.yield(Node{Kind: NodeKindFieldItem, Path: path, Field: field, Value: item}) {
		return false
	}

	switch field.Type {
	case schema.FieldTypeComponent:
		value, ok := AsMap(item)
		if !ok {
			return walk.errorNode(path, ErrorTypeMismatch, "",
				fmt.Sprintf("Expected a component value, got %T", item))
		}
		return walk.component(path, value)

	case schema.FieldTypeRichText:
		value, ok := AsMap(item)
		if !ok {
			return walk.errorNode(path, ErrorTypeMismatch, "",
				fmt.Sprintf("Expected a rich text value, got %T", item))
		}
		root, ok := RichTextRoot(value)
		if !ok {
			return walk.errorNode(path, ErrorTypeMismatch, "",
				"Rich text value is missing a root node")
		}
		return walk.richTextNode(path.Append("root"), field, root)
	}

	return true
}

func (walk *traverser) component(path Path, value map[string]any) bool {
	typeName, ok := ComponentTypeName(value)
	if !ok {
		return walk.errorNode(path, ErrorTypeMismatch, "",
			"Component value is missing a type")
	}

	componentType := walk.schema.ComponentType(typeName)
	if componentType == nil {
		return walk.errorNode(path, ErrorMissingTypeSpec, typeName,
			fmt.Sprintf("Unknown component type %s", typeName))
	}

	if !walk.yield(Node{Kind: NodeKindComponent, Path: path, ComponentType: componentType, Value: value}) {
		return false
	}
	return walk.fields(path, componentType.Fields, value, false)
}

func (walk *traverser) richTextNode(path Path, field *schema.Field, node map[string]any) bool {
	if !walk.yield(Node{Kind: NodeKindRichTextNode, Path: path, Field: field, RichTextNode: node, Value: node}) {
		return false
	}

	// Component nodes embed a full component value under "data".
	if NodeType(node) == schema.RichTextNodeComponent {
		data, ok := node[keyData].(map[string]any)
		if !ok {
			return walk.errorNode(path.Append("data"), ErrorTypeMismatch, "",
				"Rich text component node is missing its data")
		}
		if !walk.component(path.Append("data"), data) {
			return false
		}
	}

	for i, child := range NodeChildren(node) {
		childNode, ok := child.(map[string]any)
		if !ok {
			if !walk.errorNode(path.Append("children", i), ErrorTypeMismatch, "",
				fmt.Sprintf("Expected a rich text node, got %T", child)) {
				return false
			}
			continue
		}
		if !walk.richTextNode(path.Append("children", i), field, childNode) {
			return false
		}
	}

	return true
}
