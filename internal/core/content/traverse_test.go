package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkwell/internal/core/content"
)

/*
TestTraverse_Order verifies pre-order traversal in schema declaration order,
independent of storage order.
*/
func TestTraverse_Order(t *testing.T) {
	s := docSchema(t)

	fields := map[string]any{
		// Deliberately "out of order" relative to the declaration.
		"flag":  true,
		"title": "Hello",
		"tags":  []any{"a", "b"},
	}

	nodes := collectNodes(s, "Doc", fields)
	require.NotEmpty(t, nodes)

	// 1. The entity node comes first
	assert.Equal(t, content.NodeKindEntity, nodes[0].Kind)

	// 2. Field nodes enumerate in declaration order
	var fieldOrder []string
	for _, node := range nodes {
		if node.Kind == content.NodeKindField {
			fieldOrder = append(fieldOrder, node.Field.Name)
		}
	}
	assert.Equal(t, []string{
		"title", "slug", "tags", "count", "flag", "place",
		"related", "body", "block", "blocks",
	}, fieldOrder)

	// 3. List items carry indexed paths
	var itemPaths []string
	for _, node := range nodes {
		if node.Kind == content.NodeKindFieldItem && node.Field.Name == "tags" {
			itemPaths = append(itemPaths, node.Path.String())
		}
	}
	assert.Equal(t, []string{"fields.tags[0]", "fields.tags[1]"}, itemPaths)
}

/*
TestTraverse_Determinism verifies two traversals of the same input produce
identical node sequences.
*/
func TestTraverse_Determinism(t *testing.T) {
	s := docSchema(t)

	fields := map[string]any{
		"title": "Hello",
		"block": map[string]any{
			"type":  "Block",
			"text":  "outer",
			"child": map[string]any{"type": "Block", "text": "inner"},
		},
		"body": richTextDoc(textParagraph("rich")),
	}

	first := collectNodes(s, "Doc", fields)
	second := collectNodes(s, "Doc", fields)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Path.String(), second[i].Path.String())
	}
}

/*
TestTraverse_Components verifies recursion into nested components and their
path shapes.
*/
func TestTraverse_Components(t *testing.T) {
	s := docSchema(t)

	fields := map[string]any{
		"block": map[string]any{
			"type":  "Block",
			"text":  "outer",
			"child": map[string]any{"type": "Block", "text": "inner"},
		},
	}

	var componentPaths, textItemPaths []string
	for _, node := range collectNodes(s, "Doc", fields) {
		switch node.Kind {
		case content.NodeKindComponent:
			componentPaths = append(componentPaths, node.Path.String())
		case content.NodeKindFieldItem:
			if node.Field.Name == "text" {
				textItemPaths = append(textItemPaths, node.Path.String())
			}
		}
	}

	assert.Equal(t, []string{"fields.block", "fields.block.child"}, componentPaths)
	assert.Equal(t, []string{"fields.block.text", "fields.block.child.text"}, textItemPaths)
}

/*
TestTraverse_RichText verifies depth-first pre-order rich text walks,
including components embedded in nodes.
*/
func TestTraverse_RichText(t *testing.T) {
	s := docSchema(t)

	fields := map[string]any{
		"body": richTextDoc(
			textParagraph("first"),
			map[string]any{
				"type": "component",
				"data": map[string]any{"type": "Block", "text": "embedded"},
			},
		),
	}

	var kinds []content.NodeKind
	var richTextPaths []string
	for _, node := range collectNodes(s, "Doc", fields) {
		if node.Kind == content.NodeKindRichTextNode {
			richTextPaths = append(richTextPaths, node.Path.String())
		}
		if node.Kind == content.NodeKindComponent {
			kinds = append(kinds, node.Kind)
			assert.Equal(t, "fields.body.root.children[1].data", node.Path.String())
		}
	}

	assert.Equal(t, []string{
		"fields.body.root",
		"fields.body.root.children[0]",
		"fields.body.root.children[0].children[0]",
		"fields.body.root.children[1]",
	}, richTextPaths)
	assert.Len(t, kinds, 1)
}

/*
TestTraverse_ErrorNodes verifies structural anomalies become error nodes and
the walk continues past them.
*/
func TestTraverse_ErrorNodes(t *testing.T) {
	s := docSchema(t)

	// 1. Unknown entity type: a single error node
	nodes := collectNodes(s, "Missing", nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, content.NodeKindError, nodes[0].Kind)
	assert.Equal(t, content.ErrorMissingTypeSpec, nodes[0].ErrorKind)
	assert.Equal(t, "Missing", nodes[0].TypeName)

	// 2. A scalar where a list belongs: error node, siblings still visited
	nodes = collectNodes(s, "Doc", map[string]any{
		"tags":  "not-a-list",
		"title": "still here",
	})
	var sawError, sawTitle bool
	for _, node := range nodes {
		if node.Kind == content.NodeKindError {
			sawError = true
			assert.Equal(t, content.ErrorTypeMismatch, node.ErrorKind)
			assert.Equal(t, "fields.tags", node.Path.String())
		}
		if node.Kind == content.NodeKindFieldItem && node.Field.Name == "title" {
			sawTitle = true
		}
	}
	assert.True(t, sawError)
	assert.True(t, sawTitle)

	// 3. Unknown component type mid-tree
	nodes = collectNodes(s, "Doc", map[string]any{
		"block": map[string]any{"type": "Ghost"},
	})
	var errorNode *content.Node
	for i := range nodes {
		if nodes[i].Kind == content.NodeKindError {
			errorNode = &nodes[i]
		}
	}
	require.NotNil(t, errorNode)
	assert.Equal(t, content.ErrorMissingTypeSpec, errorNode.ErrorKind)
	assert.Equal(t, "Ghost", errorNode.TypeName)
}

/*
TestTraverse_PublishedView verifies the same walker restricted by the
published schema skips dropped types.
*/
func TestTraverse_PublishedView(t *testing.T) {
	s := docSchema(t)

	// StringsEntity is not publishable, so the published view cannot see it.
	nodes := []content.Node{}
	for node := range content.TraverseEntity(s.Published(), content.Path{}, "StringsEntity", nil) {
		nodes = append(nodes, node)
	}
	require.Len(t, nodes, 1)
	assert.Equal(t, content.NodeKindError, nodes[0].Kind)
	assert.Equal(t, content.ErrorMissingTypeSpec, nodes[0].ErrorKind)
}
