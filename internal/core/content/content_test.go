package content_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkwell/internal/core/content"
	"github.com/taibuivan/inkwell/internal/core/schema"
)

// docSchema builds the schema shared by the content engine tests.
func docSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := schema.New(schema.Spec{
		Version: 1,
		EntityTypes: []schema.EntityType{
			{
				Name:        "Doc",
				Publishable: true,
				Fields: []schema.Field{
					{Name: "title", Type: schema.FieldTypeString, Required: true},
					{Name: "slug", Type: schema.FieldTypeString, MatchPattern: "slug", Index: "docSlug"},
					{Name: "tags", Type: schema.FieldTypeString, List: true},
					{Name: "count", Type: schema.FieldTypeNumber, Integer: true},
					{Name: "flag", Type: schema.FieldTypeBoolean},
					{Name: "place", Type: schema.FieldTypeLocation},
					{Name: "related", Type: schema.FieldTypeReference, List: true, EntityTypes: []string{"Doc"}},
					{Name: "body", Type: schema.FieldTypeRichText},
					{Name: "block", Type: schema.FieldTypeComponent, ComponentTypes: []string{"Block"}},
					{Name: "blocks", Type: schema.FieldTypeComponent, List: true, ComponentTypes: []string{"Block"}},
				},
			},
			{
				Name: "StringsEntity",
				Fields: []schema.Field{
					{Name: "required", Type: schema.FieldTypeString, Required: true},
				},
			},
		},
		ComponentTypes: []schema.ComponentType{
			{
				Name: "Block",
				Fields: []schema.Field{
					{Name: "text", Type: schema.FieldTypeString},
					{Name: "child", Type: schema.FieldTypeComponent, ComponentTypes: []string{"Block"}},
				},
			},
		},
		Patterns: []schema.Pattern{
			{Name: "slug", Pattern: `^[a-z0-9-]+$`},
		},
		Indexes: []schema.Index{
			{Name: "docSlug", Type: schema.IndexTypeUnique},
		},
	})
	require.NoError(t, err)
	return s
}

// collectNodes drains a traversal into a slice.
func collectNodes(s *schema.Schema, typeName string, fields map[string]any) []content.Node {
	var nodes []content.Node
	for node := range content.TraverseEntity(s, content.Path{}, typeName, fields) {
		nodes = append(nodes, node)
	}
	return nodes
}

// saveIssues runs save-time validation over a full traversal.
func saveIssues(s *schema.Schema, typeName string, fields map[string]any) []content.Issue {
	var issues []content.Issue
	for node := range content.TraverseEntity(s, content.Path{}, typeName, fields) {
		if issue := content.ValidateNodeForSave(s, node); issue != nil {
			issues = append(issues, *issue)
		}
	}
	return issues
}

// publishIssues runs publish-time validation: traversal against the
// published view, translation against the full schema.
func publishIssues(full *schema.Schema, typeName string, fields map[string]any) []content.Issue {
	var issues []content.Issue
	for node := range content.TraverseEntity(full.Published(), content.Path{}, typeName, fields) {
		if issue := content.ValidateNodeForPublish(full, node); issue != nil {
			issues = append(issues, *issue)
		}
	}
	return issues
}

func richTextDoc(children ...any) map[string]any {
	return map[string]any{
		"root": map[string]any{"type": "root", "children": children},
	}
}

func textParagraph(text string) map[string]any {
	return map[string]any{
		"type": "paragraph",
		"children": []any{
			map[string]any{"type": "text", "text": text},
		},
	}
}
