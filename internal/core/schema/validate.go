package schema

import (
	"fmt"
	"regexp"

	"github.com/taibuivan/inkwell/internal/platform/apperr"
)

var (
	pascalCaseName = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	camelCaseName  = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
)

// knownRichTextNodes is the closed set of rich text node type names a field
// may declare.
var knownRichTextNodes = map[string]bool{
	RichTextNodeRoot:          true,
	RichTextNodeParagraph:     true,
	RichTextNodeText:          true,
	RichTextNodeLinebreak:     true,
	RichTextNodeHeading:       true,
	RichTextNodeList:          true,
	RichTextNodeListItem:      true,
	RichTextNodeLink:          true,
	RichTextNodeEntity:        true,
	RichTextNodeEntityLink:    true,
	RichTextNodeComponent:     true,
	RichTextNodeCode:          true,
	RichTextNodeCodeHighlight: true,
	RichTextNodeTab:           true,
}

// groupedRichTextNodes lists node types that must be declared together.
var groupedRichTextNodes = [][2]string{
	{RichTextNodeList, RichTextNodeListItem},
	{RichTextNodeCode, RichTextNodeCodeHighlight},
}

/*
Validate checks the structural well-formedness of a schema specification.

It is a pure function: the first violated invariant short-circuits with an
apperr.BadRequest whose message is path-qualified ("Type.field: <reason>")
and directly actionable. A nil return means the spec can be wrapped by [New]
without further checks.
*/
func Validate(spec Spec) error {
	v := &specValidator{spec: spec}
	return v.run()
}

type specValidator struct {
	spec Spec

	typeNames      map[string]bool
	entityTypes    map[string]*EntityType
	componentTypes map[string]*ComponentType
	patterns       map[string]bool
	indexes        map[string]bool
}

func (v *specValidator) run() error {

	// 1. Patterns and indexes first: fields refer to them by name.
	if err := v.checkPatterns(); err != nil {
		return err
	}
	if err := v.checkIndexes(); err != nil {
		return err
	}

	// 2. Type name well-formedness and cross-namespace uniqueness.
	if err := v.collectTypes(); err != nil {
		return err
	}

	// 3. Per-type field checks, in declaration order.
	for i := range v.spec.EntityTypes {
		if err := v.checkEntityType(&v.spec.EntityTypes[i]); err != nil {
			return err
		}
	}
	for i := range v.spec.ComponentTypes {
		componentType := &v.spec.ComponentTypes[i]
		if err := v.checkFields(componentType.Name, componentType.Fields); err != nil {
			return err
		}
	}

	// 4. Migration history must be strictly monotonic.
	return v.checkMigrations()
}

func (v *specValidator) checkPatterns() error {
	v.patterns = make(map[string]bool, len(v.spec.Patterns))
	for _, pattern := range v.spec.Patterns {
		if !camelCaseName.MatchString(pattern.Name) {
			return apperr.BadRequestf("pattern %s: name must be camelCase", pattern.Name)
		}
		if v.patterns[pattern.Name] {
			return apperr.BadRequestf("pattern %s: duplicate pattern name", pattern.Name)
		}
		if _, err := regexp.Compile(pattern.Pattern); err != nil {
			return apperr.BadRequestf("pattern %s: invalid regular expression", pattern.Name)
		}
		v.patterns[pattern.Name] = true
	}
	return nil
}

func (v *specValidator) checkIndexes() error {
	v.indexes = make(map[string]bool, len(v.spec.Indexes))
	for _, index := range v.spec.Indexes {
		if !camelCaseName.MatchString(index.Name) {
			return apperr.BadRequestf("index %s: name must be camelCase", index.Name)
		}
		if v.indexes[index.Name] {
			return apperr.BadRequestf("index %s: duplicate index name", index.Name)
		}
		if index.Type != IndexTypeUnique {
			return apperr.BadRequestf("index %s: unknown index type %s", index.Name, index.Type)
		}
		v.indexes[index.Name] = true
	}
	return nil
}

func (v *specValidator) collectTypes() error {
	v.typeNames = make(map[string]bool, len(v.spec.EntityTypes)+len(v.spec.ComponentTypes))
	v.entityTypes = make(map[string]*EntityType, len(v.spec.EntityTypes))
	v.componentTypes = make(map[string]*ComponentType, len(v.spec.ComponentTypes))

	for i := range v.spec.EntityTypes {
		entityType := &v.spec.EntityTypes[i]
		if !pascalCaseName.MatchString(entityType.Name) {
			return apperr.BadRequestf("%s: type name must be PascalCase", entityType.Name)
		}
		if v.typeNames[entityType.Name] {
			return apperr.BadRequestf("%s: duplicate type name", entityType.Name)
		}
		v.typeNames[entityType.Name] = true
		v.entityTypes[entityType.Name] = entityType
	}

	for i := range v.spec.ComponentTypes {
		componentType := &v.spec.ComponentTypes[i]
		if !pascalCaseName.MatchString(componentType.Name) {
			return apperr.BadRequestf("%s: type name must be PascalCase", componentType.Name)
		}
		if v.typeNames[componentType.Name] {
			return apperr.BadRequestf("%s: duplicate type name", componentType.Name)
		}
		v.typeNames[componentType.Name] = true
		v.componentTypes[componentType.Name] = componentType
	}

	return nil
}

func (v *specValidator) checkEntityType(entityType *EntityType) error {
	if entityType.AuthKeyPattern != "" && !v.patterns[entityType.AuthKeyPattern] {
		return apperr.BadRequestf("%s: unknown authKeyPattern %s", entityType.Name, entityType.AuthKeyPattern)
	}

	if err := v.checkFields(entityType.Name, entityType.Fields); err != nil {
		return err
	}

	if entityType.NameField != "" {
		nameField := findField(entityType.Fields, entityType.NameField)
		if nameField == nil {
			return apperr.BadRequestf("%s: nameField %s does not exist", entityType.Name, entityType.NameField)
		}
		if nameField.Type != FieldTypeString || nameField.List {
			return apperr.BadRequestf("%s: nameField %s must be a single String field", entityType.Name, entityType.NameField)
		}
	}

	return nil
}

func (v *specValidator) checkFields(typeName string, fields []Field) error {
	names := make(map[string]bool, len(fields))
	for i := range fields {
		field := &fields[i]
		at := typeName + "." + field.Name

		if !camelCaseName.MatchString(field.Name) {
			return apperr.BadRequestf("%s: field name must be camelCase", at)
		}
		if names[field.Name] {
			return apperr.BadRequestf("%s: duplicate field name", at)
		}
		names[field.Name] = true

		if err := v.checkFieldAttributes(at, field); err != nil {
			return err
		}
		if err := v.checkFieldTargets(at, typeName, field); err != nil {
			return err
		}
		if field.Type == FieldTypeRichText {
			if err := v.checkRichTextNodes(at, field); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkFieldAttributes rejects type-specific attributes declared on a field
// whose type does not support them.
func (v *specValidator) checkFieldAttributes(at string, field *Field) error {
	switch field.Type {
	case FieldTypeBoolean, FieldTypeComponent, FieldTypeLocation,
		FieldTypeNumber, FieldTypeReference, FieldTypeRichText, FieldTypeString:
	default:
		return apperr.BadRequestf("%s: unknown field type %s", at, field.Type)
	}

	isString := field.Type == FieldTypeString
	if !isString {
		if field.Multiline {
			return apperr.BadRequestf("%s: multiline is not supported for %s fields", at, field.Type)
		}
		if field.MatchPattern != "" {
			return apperr.BadRequestf("%s: matchPattern is not supported for %s fields", at, field.Type)
		}
		if len(field.Values) > 0 {
			return apperr.BadRequestf("%s: values is not supported for %s fields", at, field.Type)
		}
		if field.Index != "" {
			return apperr.BadRequestf("%s: index is not supported for %s fields", at, field.Type)
		}
	}

	if field.Integer && field.Type != FieldTypeNumber {
		return apperr.BadRequestf("%s: integer is not supported for %s fields", at, field.Type)
	}

	if len(field.EntityTypes) > 0 && field.Type != FieldTypeReference && field.Type != FieldTypeRichText {
		return apperr.BadRequestf("%s: entityTypes is not supported for %s fields", at, field.Type)
	}
	if len(field.LinkEntityTypes) > 0 && field.Type != FieldTypeRichText {
		return apperr.BadRequestf("%s: linkEntityTypes is not supported for %s fields", at, field.Type)
	}
	if len(field.RichTextNodes) > 0 && field.Type != FieldTypeRichText {
		return apperr.BadRequestf("%s: richTextNodes is not supported for %s fields", at, field.Type)
	}
	if len(field.ComponentTypes) > 0 && field.Type != FieldTypeComponent && field.Type != FieldTypeRichText {
		return apperr.BadRequestf("%s: componentTypes is not supported for %s fields", at, field.Type)
	}

	if isString {
		if field.MatchPattern != "" && len(field.Values) > 0 {
			return apperr.BadRequestf("%s: matchPattern and values are mutually exclusive", at)
		}
		if field.MatchPattern != "" && !v.patterns[field.MatchPattern] {
			return apperr.BadRequestf("%s: unknown matchPattern %s", at, field.MatchPattern)
		}
		if field.Index != "" && !v.indexes[field.Index] {
			return apperr.BadRequestf("%s: unknown index %s", at, field.Index)
		}
		if field.Index != "" && field.List {
			return apperr.BadRequestf("%s: index is not supported for list fields", at)
		}
	}

	return nil
}

// checkFieldTargets verifies every referenced entity/component type exists
// and that publishable entity types do not leak references to unpublishable
// ones through non-adminOnly fields.
func (v *specValidator) checkFieldTargets(at, ownerName string, field *Field) error {
	for _, target := range field.EntityTypes {
		targetType := v.entityTypes[target]
		if targetType == nil {
			return apperr.BadRequestf("%s: referenced entity type %s does not exist", at, target)
		}
		if err := v.checkPublishableTarget(at, ownerName, field, targetType); err != nil {
			return err
		}
	}
	for _, target := range field.LinkEntityTypes {
		targetType := v.entityTypes[target]
		if targetType == nil {
			return apperr.BadRequestf("%s: referenced entity type %s does not exist", at, target)
		}
		if err := v.checkPublishableTarget(at, ownerName, field, targetType); err != nil {
			return err
		}
	}
	for _, target := range field.ComponentTypes {
		if v.componentTypes[target] == nil {
			return apperr.BadRequestf("%s: referenced component type %s does not exist", at, target)
		}
	}
	return nil
}

func (v *specValidator) checkPublishableTarget(at, ownerName string, field *Field, target *EntityType) error {
	owner := v.entityTypes[ownerName]
	if owner == nil || !owner.Publishable || owner.AdminOnly {
		// Component types and unpublishable entity types never surface in the
		// published schema, so their targets are unconstrained.
		return nil
	}
	if field.AdminOnly {
		return nil
	}
	if !target.Publishable || target.AdminOnly {
		return apperr.BadRequestf("%s: referenced entity type %s is not publishable", at, target.Name)
	}
	return nil
}

func (v *specValidator) checkRichTextNodes(at string, field *Field) error {
	if len(field.RichTextNodes) == 0 {
		return nil
	}

	declared := make(map[string]bool, len(field.RichTextNodes))
	for _, node := range field.RichTextNodes {
		if !knownRichTextNodes[node] {
			return apperr.BadRequestf("%s: unknown richTextNode %s", at, node)
		}
		declared[node] = true
	}

	if !declared[RichTextNodeRoot] || !declared[RichTextNodeParagraph] || !declared[RichTextNodeText] {
		return apperr.BadRequestf("%s: richTextNodes must include root, paragraph, text", at)
	}

	for _, group := range groupedRichTextNodes {
		if declared[group[0]] != declared[group[1]] {
			return apperr.BadRequestf("%s: richTextNodes must include both %s and %s", at, group[0], group[1])
		}
	}

	if len(field.EntityTypes) > 0 && !declared[RichTextNodeEntity] {
		return apperr.BadRequestf("%s: entityTypes is set but richTextNodes does not include entity", at)
	}
	if len(field.LinkEntityTypes) > 0 && !declared[RichTextNodeEntityLink] {
		return apperr.BadRequestf("%s: linkEntityTypes is set but richTextNodes does not include entityLink", at)
	}
	if len(field.ComponentTypes) > 0 && !declared[RichTextNodeComponent] {
		return apperr.BadRequestf("%s: componentTypes is set but richTextNodes does not include component", at)
	}

	return nil
}

func (v *specValidator) checkMigrations() error {
	previous := 0
	for _, migration := range v.spec.Migrations {
		if migration.Version <= previous {
			return apperr.BadRequestf("migration %d: versions must be strictly increasing", migration.Version)
		}
		previous = migration.Version

		if len(migration.Actions) == 0 {
			return apperr.BadRequestf("migration %d: must declare at least one action", migration.Version)
		}
		for _, action := range migration.Actions {
			if err := v.checkAction(migration.Version, action); err != nil {
				return err
			}
		}
	}
	if previous > v.spec.Version && v.spec.Version > 0 {
		return apperr.BadRequestf("migration %d: version exceeds schema version %d", previous, v.spec.Version)
	}
	return nil
}

func (v *specValidator) checkAction(version int, action Action) error {
	at := fmt.Sprintf("migration %d", version)

	if (action.EntityType == "") == (action.ComponentType == "") {
		return apperr.BadRequestf("%s: action must be scoped to exactly one of entityType or componentType", at)
	}

	switch action.Action {
	case ActionRenameField:
		if action.Field == "" || action.NewName == "" {
			return apperr.BadRequestf("%s: renameField requires field and newName", at)
		}
		if !camelCaseName.MatchString(action.NewName) {
			return apperr.BadRequestf("%s: renameField newName must be camelCase", at)
		}
	case ActionDeleteField:
		if action.Field == "" {
			return apperr.BadRequestf("%s: deleteField requires field", at)
		}
	case ActionRenameType:
		// Type actions rewrite the type tags of component values. Stored
		// entity rows keep their type column, so entity scope is not
		// supported here.
		if action.EntityType != "" {
			return apperr.BadRequestf("%s: renameType applies to componentType scope only", at)
		}
		if action.NewName == "" {
			return apperr.BadRequestf("%s: renameType requires newName", at)
		}
		if !pascalCaseName.MatchString(action.NewName) {
			return apperr.BadRequestf("%s: renameType newName must be PascalCase", at)
		}
	case ActionDeleteType:
		if action.EntityType != "" {
			return apperr.BadRequestf("%s: deleteType applies to componentType scope only", at)
		}
		// Scope alone identifies the target.
	default:
		return apperr.BadRequestf("%s: unknown action %s", at, action.Action)
	}

	return nil
}

func findField(fields []Field, name string) *Field {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}
