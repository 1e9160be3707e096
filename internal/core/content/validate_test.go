package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkwell/internal/core/content"
	"github.com/taibuivan/inkwell/internal/core/schema"
)

/*
TestValidateSave_RequiredSplit pins the save/publish asymmetry: a required
field holding null produces no save issue (drafts may be incomplete) but one
publish issue at its path.
*/
func TestValidateSave_RequiredSplit(t *testing.T) {
	s := docSchema(t)
	fields := map[string]any{"required": nil}

	// 1. Save-time: no issue
	assert.Empty(t, saveIssues(s, "StringsEntity", fields))

	// 2. Publish-time: one issue citing the field path. StringsEntity is not
	// in the published view, so exercise the same split on Doc.title.
	issues := publishIssues(s, "Doc", map[string]any{"title": nil})
	require.Len(t, issues, 1)
	assert.Equal(t, content.IssueKindPublish, issues[0].Kind)
	assert.Equal(t, "fields.title", issues[0].Path.String())
	assert.Equal(t, "Required field is empty", issues[0].Message)

	assert.Empty(t, saveIssues(s, "Doc", map[string]any{"title": nil}))
}

/*
TestValidateSave_TypeChecks verifies per-type save rules.
*/
func TestValidateSave_TypeChecks(t *testing.T) {
	s := docSchema(t)

	cases := []struct {
		name    string
		fields  map[string]any
		path    string
		message string
	}{
		{
			name:    "boolean mismatch",
			fields:  map[string]any{"flag": "yes"},
			path:    "fields.flag",
			message: "Expected a boolean, got string",
		},
		{
			name:    "integer violation",
			fields:  map[string]any{"count": 1.5},
			path:    "fields.count",
			message: "Value must be an integer",
		},
		{
			name:    "pattern violation",
			fields:  map[string]any{"slug": "Not A Slug"},
			path:    "fields.slug",
			message: "Value does not match pattern slug",
		},
		{
			name:    "line break in single-line string",
			fields:  map[string]any{"title": "two\nlines"},
			path:    "fields.title",
			message: "Value must not contain line breaks",
		},
		{
			name:    "reference with extra keys",
			fields:  map[string]any{"related": []any{map[string]any{"id": "x", "extra": 1}}},
			path:    "fields.related[0]",
			message: "Reference value must contain exactly {id}",
		},
		{
			name:    "malformed location",
			fields:  map[string]any{"place": map[string]any{"lat": 1.0}},
			path:    "fields.place",
			message: "Location value must contain exactly {lat, lng}",
		},
		{
			name:    "undeclared entity field",
			fields:  map[string]any{"ghost": 1},
			path:    "",
			message: "Unsupported field names: ghost",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			issues := saveIssues(s, "Doc", testCase.fields)
			require.Len(t, issues, 1)
			assert.Equal(t, content.IssueKindSave, issues[0].Kind)
			assert.Equal(t, testCase.path, issues[0].Path.String())
			assert.Equal(t, testCase.message, issues[0].Message)
		})
	}
}

/*
TestValidateSave_RichText verifies rich text node restrictions.
*/
func TestValidateSave_RichText(t *testing.T) {
	restricted, err := schema.New(schema.Spec{
		EntityTypes: []schema.EntityType{{
			Name: "Note",
			Fields: []schema.Field{{
				Name:          "body",
				Type:          schema.FieldTypeRichText,
				RichTextNodes: []string{"root", "paragraph", "text"},
			}},
		}},
	})
	require.NoError(t, err)

	// 1. A disallowed node type is flagged at its path
	fields := map[string]any{
		"body": richTextDoc(map[string]any{"type": "heading", "children": []any{}}),
	}
	issues := saveIssues(restricted, "Note", fields)
	require.Len(t, issues, 1)
	assert.Equal(t, "fields.body.root.children[0]", issues[0].Path.String())
	assert.Equal(t, "Rich text node type heading is not allowed, allowed: root, paragraph, text", issues[0].Message)

	// 2. Text nodes must not embed line breaks
	fields = map[string]any{"body": richTextDoc(textParagraph("a\nb"))}
	issues = saveIssues(restricted, "Note", fields)
	require.Len(t, issues, 1)
	assert.Equal(t, "Rich text text nodes must not contain line breaks", issues[0].Message)
}

/*
TestValidatePublish_AdminOnlyComponent verifies the missing-type translation
for components that exist in the full schema but are adminOnly.
*/
func TestValidatePublish_AdminOnlyComponent(t *testing.T) {
	full, err := schema.New(schema.Spec{
		EntityTypes: []schema.EntityType{{
			Name:        "Page",
			Publishable: true,
			Fields: []schema.Field{
				{Name: "widget", Type: schema.FieldTypeComponent},
			},
		}},
		ComponentTypes: []schema.ComponentType{{
			Name:      "Secret",
			AdminOnly: true,
			Fields:    []schema.Field{{Name: "x", Type: schema.FieldTypeBoolean}},
		}},
	})
	require.NoError(t, err)

	fields := map[string]any{
		"widget": map[string]any{"type": "Secret", "x": true},
	}

	issues := publishIssues(full, "Page", fields)
	require.Len(t, issues, 1)
	assert.Equal(t, "fields.widget", issues[0].Path.String())
	assert.Equal(t, "Component of type Secret is adminOnly", issues[0].Message)
}

/*
TestGroupIssuesByTopField verifies root/per-field grouping with rebased paths.
*/
func TestGroupIssuesByTopField(t *testing.T) {
	issues := []content.Issue{
		{Kind: content.IssueKindSave, Path: content.Path{}, Message: "root problem"},
		{Kind: content.IssueKindSave, Path: content.Path{"fields", "title"}, Message: "title problem"},
		{Kind: content.IssueKindSave, Path: content.Path{"fields", "tags", 1}, Message: "item problem"},
	}

	root, byField := content.GroupIssuesByTopField(issues)

	require.Len(t, root, 1)
	assert.Equal(t, "root problem", root[0].Message)

	require.Len(t, byField["title"], 1)
	assert.Empty(t, byField["title"][0].Path)

	require.Len(t, byField["tags"], 1)
	assert.Equal(t, "[1]", byField["tags"][0].Path.String())
}
