/*
Package schema defines the authoritative type catalog for the content
repository: entity and component type specifications, named patterns, index
declarations, and the versioned migration history.

A [Spec] is an immutable value. Evolution happens through [Schema.Merge],
which produces a new validated Spec with a bumped version; the restricted
published view is derived once per instance via [Schema.Published].
*/
package schema

import (
	"regexp"
	"sync"
)

// FieldType enumerates the supported field value types.
type FieldType string

const (
	FieldTypeBoolean   FieldType = "Boolean"
	FieldTypeComponent FieldType = "Component"
	FieldTypeLocation  FieldType = "Location"
	FieldTypeNumber    FieldType = "Number"
	FieldTypeReference FieldType = "Reference"
	FieldTypeRichText  FieldType = "RichText"
	FieldTypeString    FieldType = "String"
)

// Rich text node type names recognized by the schema and the traverser.
const (
	RichTextNodeRoot          = "root"
	RichTextNodeParagraph     = "paragraph"
	RichTextNodeText          = "text"
	RichTextNodeLinebreak     = "linebreak"
	RichTextNodeHeading       = "heading"
	RichTextNodeList          = "list"
	RichTextNodeListItem      = "listitem"
	RichTextNodeLink          = "link"
	RichTextNodeEntity        = "entity"
	RichTextNodeEntityLink    = "entityLink"
	RichTextNodeComponent     = "component"
	RichTextNodeCode          = "code"
	RichTextNodeCodeHighlight = "code-highlight"
	RichTextNodeTab           = "tab"
)

// IndexType enumerates the supported index declarations.
type IndexType string

const (
	IndexTypeUnique IndexType = "unique"
)

// ActionKind enumerates the supported migration actions.
type ActionKind string

const (
	ActionRenameField ActionKind = "renameField"
	ActionDeleteField ActionKind = "deleteField"
	ActionRenameType  ActionKind = "renameType"
	ActionDeleteType  ActionKind = "deleteType"
)

// Spec is the schema specification: the full catalog of entity and component
// types plus patterns, indexes, and the migration history. Treat it as an
// immutable value; never mutate a Spec after handing it to [New].
type Spec struct {
	Version        int             `json:"version"`
	EntityTypes    []EntityType    `json:"entityTypes"`
	ComponentTypes []ComponentType `json:"componentTypes,omitempty"`
	Patterns       []Pattern       `json:"patterns,omitempty"`
	Indexes        []Index         `json:"indexes,omitempty"`
	Migrations     []Migration     `json:"migrations,omitempty"`
}

// EntityType specifies one entity type: its fields and publish behavior.
type EntityType struct {
	Name           string  `json:"name"`
	Publishable    bool    `json:"publishable,omitempty"`
	AdminOnly      bool    `json:"adminOnly,omitempty"`
	AuthKeyPattern string  `json:"authKeyPattern,omitempty"`
	NameField      string  `json:"nameField,omitempty"`
	Fields         []Field `json:"fields"`
}

// ComponentType specifies one nested component record type.
type ComponentType struct {
	Name      string  `json:"name"`
	AdminOnly bool    `json:"adminOnly,omitempty"`
	Fields    []Field `json:"fields"`
}

// Field specifies one field of an entity or component type. Only the
// attributes matching the declared Type may be set; Validate rejects the rest.
type Field struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	List      bool      `json:"list,omitempty"`
	Required  bool      `json:"required,omitempty"`
	AdminOnly bool      `json:"adminOnly,omitempty"`

	// String attributes
	Multiline    bool     `json:"multiline,omitempty"`
	MatchPattern string   `json:"matchPattern,omitempty"`
	Values       []string `json:"values,omitempty"`
	Index        string   `json:"index,omitempty"`

	// Number attributes
	Integer bool `json:"integer,omitempty"`

	// Reference and RichText attributes
	EntityTypes []string `json:"entityTypes,omitempty"`

	// RichText attributes
	LinkEntityTypes []string `json:"linkEntityTypes,omitempty"`
	RichTextNodes   []string `json:"richTextNodes,omitempty"`

	// Component and RichText attributes
	ComponentTypes []string `json:"componentTypes,omitempty"`
}

// Pattern is a named regular expression referenced by matchPattern and
// authKeyPattern declarations.
type Pattern struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// Index is a named index declaration referenced by String fields.
type Index struct {
	Name string    `json:"name"`
	Type IndexType `json:"type"`
}

// Migration is one versioned entry of the schema migration history.
type Migration struct {
	Version int      `json:"version"`
	Actions []Action `json:"actions"`
}

// Action is a single migration action, scoped to an entity or component type.
type Action struct {
	Action        ActionKind `json:"action"`
	EntityType    string     `json:"entityType,omitempty"`
	ComponentType string     `json:"componentType,omitempty"`
	Field         string     `json:"field,omitempty"`
	NewName       string     `json:"newName,omitempty"`
}

// Schema wraps a validated [Spec] with O(1) lookups and the memoized
// published projection. Construct via [New]; a Schema is safe for concurrent
// readers.
type Schema struct {
	spec      Spec
	published bool

	entityTypes    map[string]*EntityType
	componentTypes map[string]*ComponentType
	patterns       map[string]*Pattern
	patternRegexps map[string]*regexp.Regexp
	indexes        map[string]*Index

	publishedOnce sync.Once
	publishedView *Schema
}

// New validates spec and wraps it with lookup tables.
//
// Returns an apperr.BadRequest naming the first violated invariant
// (path-qualified as "Type.field: <reason>") if the spec is not well-formed.
func New(spec Spec) (*Schema, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	return newSchema(spec, false), nil
}

// newSchema builds lookup tables without re-validating. Used by New after
// validation and by the published projection, which is correct by
// construction.
func newSchema(spec Spec, published bool) *Schema {
	schema := &Schema{
		spec:           spec,
		published:      published,
		entityTypes:    make(map[string]*EntityType, len(spec.EntityTypes)),
		componentTypes: make(map[string]*ComponentType, len(spec.ComponentTypes)),
		patterns:       make(map[string]*Pattern, len(spec.Patterns)),
		patternRegexps: make(map[string]*regexp.Regexp, len(spec.Patterns)),
		indexes:        make(map[string]*Index, len(spec.Indexes)),
	}

	for i := range spec.EntityTypes {
		schema.entityTypes[spec.EntityTypes[i].Name] = &spec.EntityTypes[i]
	}
	for i := range spec.ComponentTypes {
		schema.componentTypes[spec.ComponentTypes[i].Name] = &spec.ComponentTypes[i]
	}
	for i := range spec.Patterns {
		pattern := &spec.Patterns[i]
		schema.patterns[pattern.Name] = pattern
		// Compilation already succeeded during validation.
		if compiled, err := regexp.Compile(pattern.Pattern); err == nil {
			schema.patternRegexps[pattern.Name] = compiled
		}
	}
	for i := range spec.Indexes {
		schema.indexes[spec.Indexes[i].Name] = &spec.Indexes[i]
	}

	return schema
}

// Spec returns the underlying specification value.
func (schema *Schema) Spec() Spec { return schema.spec }

// Version returns the specification version.
func (schema *Schema) Version() int { return schema.spec.Version }

// IsPublishedView reports whether this schema is a published projection.
func (schema *Schema) IsPublishedView() bool { return schema.published }

// EntityType returns the entity type specification, or nil if unknown.
func (schema *Schema) EntityType(name string) *EntityType {
	return schema.entityTypes[name]
}

// ComponentType returns the component type specification, or nil if unknown.
func (schema *Schema) ComponentType(name string) *ComponentType {
	return schema.componentTypes[name]
}

// Pattern returns the named pattern, or nil if unknown.
func (schema *Schema) Pattern(name string) *Pattern {
	return schema.patterns[name]
}

// PatternRegexp returns the compiled regular expression for the named
// pattern, or nil if unknown.
func (schema *Schema) PatternRegexp(name string) *regexp.Regexp {
	return schema.patternRegexps[name]
}

// Index returns the named index declaration, or nil if unknown.
func (schema *Schema) Index(name string) *Index {
	return schema.indexes[name]
}

// Field returns the named field of the named entity or component type, or
// nil when either is unknown. Entity types shadow component types, but
// validation guarantees the namespaces are disjoint.
func (schema *Schema) Field(typeName, fieldName string) *Field {
	var fields []Field
	switch {
	case schema.entityTypes[typeName] != nil:
		fields = schema.entityTypes[typeName].Fields
	case schema.componentTypes[typeName] != nil:
		fields = schema.componentTypes[typeName].Fields
	default:
		return nil
	}
	for i := range fields {
		if fields[i].Name == fieldName {
			return &fields[i]
		}
	}
	return nil
}
