package content

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taibuivan/inkwell/internal/core/schema"
)

// IssueKind distinguishes the two validation passes.
type IssueKind string

const (
	IssueKindSave    IssueKind = "save"
	IssueKindPublish IssueKind = "publish"
)

// Issue is one path-tagged validation finding.
type Issue struct {
	Kind    IssueKind
	Path    Path
	Message string
}

// String renders the issue as "path: message" for error surfaces.
func (issue Issue) String() string {
	if rendered := issue.Path.String(); rendered != "" {
		return rendered + ": " + issue.Message
	}
	return issue.Message
}

/*
ValidateNodeForSave checks one traversal node against save-time rules.

Save-time validation runs against the full schema on every create/update and
flags type and shape violations only. A required field holding null is NOT a
save issue: drafts may be incomplete, and the gap is flagged at publish time
instead. Returns nil when the node is acceptable.
*/
func ValidateNodeForSave(s *schema.Schema, node Node) *Issue {
	switch node.Kind {
	case NodeKindEntity:
		return saveIssue(node, checkExtraKeys(node.EntityType.Fields, node.Value, false))

	case NodeKindComponent:
		return saveIssue(node, checkExtraKeys(node.ComponentType.Fields, node.Value, true))

	case NodeKindFieldItem:
		return saveIssue(node, checkFieldItem(s, node.Field, node.Value))

	case NodeKindRichTextNode:
		return saveIssue(node, checkRichTextNode(node.Field, node.RichTextNode))

	case NodeKindError:
		return &Issue{Kind: IssueKindSave, Path: node.Path, Message: node.Message}
	}

	return nil
}

/*
ValidateNodeForPublish checks one traversal node against publish-time rules.

The traversal feeding this pass runs against the published schema; the full
schema is still needed to translate "unknown component type" errors into the
more specific adminOnly diagnostic when the type exists but is admin-only.
*/
func ValidateNodeForPublish(full *schema.Schema, node Node) *Issue {
	switch node.Kind {
	case NodeKindField:
		if node.Field.Required && isEmptyValue(node.Value) {
			return &Issue{Kind: IssueKindPublish, Path: node.Path, Message: "Required field is empty"}
		}

	case NodeKindError:
		if node.ErrorKind == ErrorMissingTypeSpec {
			if componentType := full.ComponentType(node.TypeName); componentType != nil && componentType.AdminOnly {
				return &Issue{
					Kind:    IssueKindPublish,
					Path:    node.Path,
					Message: fmt.Sprintf("Component of type %s is adminOnly", node.TypeName),
				}
			}
		}
		return &Issue{Kind: IssueKindPublish, Path: node.Path, Message: node.Message}
	}

	return nil
}

// GroupIssuesByTopField splits issues into root-level ones (entity info,
// empty path) and per-field groups keyed by field name, rebasing each
// grouped issue's path below its field.
func GroupIssuesByTopField(issues []Issue) (root []Issue, byField map[string][]Issue) {
	byField = make(map[string][]Issue)
	for _, issue := range issues {
		if len(issue.Path) >= 2 && issue.Path[0] == "fields" {
			if name, ok := issue.Path[1].(string); ok {
				rebased := issue
				rebased.Path = issue.Path[2:]
				byField[name] = append(byField[name], rebased)
				continue
			}
		}
		root = append(root, issue)
	}
	return root, byField
}

func saveIssue(node Node, message string) *Issue {
	if message == "" {
		return nil
	}
	return &Issue{Kind: IssueKindSave, Path: node.Path, Message: message}
}

// checkExtraKeys flags stored keys that are not declared on the type. The
// component type tag is structural, not a field.
func checkExtraKeys(declared []schema.Field, value any, component bool) string {
	values, ok := AsMap(value)
	if !ok {
		return ""
	}

	declaredNames := fieldNameSet(declared)
	var extras []string
	for name := range values {
		if component && name == keyType {
			continue
		}
		if !declaredNames[name] {
			extras = append(extras, name)
		}
	}
	if len(extras) == 0 {
		return ""
	}

	sort.Strings(extras)
	return "Unsupported field names: " + strings.Join(extras, ", ")
}

func checkFieldItem(s *schema.Schema, field *schema.Field, item any) string {
	switch field.Type {
	case schema.FieldTypeBoolean:
		if _, ok := item.(bool); !ok {
			return fmt.Sprintf("Expected a boolean, got %T", item)
		}

	case schema.FieldTypeNumber:
		integral, ok := isNumber(item)
		if !ok {
			return fmt.Sprintf("Expected a number, got %T", item)
		}
		if field.Integer && !integral {
			return "Value must be an integer"
		}

	case schema.FieldTypeString:
		return checkStringItem(s, field, item)

	case schema.FieldTypeReference:
		value, ok := AsMap(item)
		if !ok {
			return fmt.Sprintf("Expected a reference, got %T", item)
		}
		if _, ok := ReferenceID(value); !ok || len(value) != 1 {
			return "Reference value must contain exactly {id}"
		}

	case schema.FieldTypeLocation:
		value, ok := AsMap(item)
		if !ok {
			return fmt.Sprintf("Expected a location, got %T", item)
		}
		if _, _, ok := LocationCoords(value); !ok || len(value) != 2 {
			return "Location value must contain exactly {lat, lng}"
		}

	case schema.FieldTypeComponent:
		value, ok := AsMap(item)
		if !ok {
			// The traverser already emitted a typeMismatch error node.
			return ""
		}
		typeName, ok := ComponentTypeName(value)
		if !ok {
			return ""
		}
		if len(field.ComponentTypes) > 0 && !containsName(field.ComponentTypes, typeName) {
			return fmt.Sprintf("Component of type %s is not allowed, allowed: %s",
				typeName, strings.Join(field.ComponentTypes, ", "))
		}
	}

	return ""
}

func checkStringItem(s *schema.Schema, field *schema.Field, item any) string {
	text, ok := item.(string)
	if !ok {
		return fmt.Sprintf("Expected a string, got %T", item)
	}

	if !field.Multiline && strings.ContainsAny(text, "\n\r") {
		return "Value must not contain line breaks"
	}

	if field.MatchPattern != "" {
		if pattern := s.PatternRegexp(field.MatchPattern); pattern != nil && !pattern.MatchString(text) {
			return fmt.Sprintf("Value does not match pattern %s", field.MatchPattern)
		}
	}

	if len(field.Values) > 0 && !containsName(field.Values, text) {
		return fmt.Sprintf("Value is not allowed, allowed: %s", strings.Join(field.Values, ", "))
	}

	return ""
}

func checkRichTextNode(field *schema.Field, node map[string]any) string {
	nodeType := NodeType(node)
	if nodeType == "" {
		return "Rich text node is missing a type"
	}

	if len(field.RichTextNodes) > 0 && !containsName(field.RichTextNodes, nodeType) {
		return fmt.Sprintf("Rich text node type %s is not allowed, allowed: %s",
			nodeType, strings.Join(field.RichTextNodes, ", "))
	}

	if nodeType == schema.RichTextNodeText {
		if text, ok := NodeText(node); ok && strings.ContainsAny(text, "\n\r") {
			return "Rich text text nodes must not contain line breaks"
		}
	}

	return ""
}

// isEmptyValue mirrors the normalizer's empty-equivalents so required-field
// checks agree with normalization.
func isEmptyValue(value any) bool {
	switch value := value.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return isEmptyRichText(value)
	default:
		return false
	}
}

func containsName(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}
