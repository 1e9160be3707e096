package content

import (
	"strings"

	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/pkg/fulltext"
)

// Location is one collected geographic point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UniqueIndexValue is one candidate value for a unique index, collected from
// a String field declaring an index.
type UniqueIndexValue struct {
	Index string
	Value string
}

// CollectResult is the derived indexable data of one entity version.
type CollectResult struct {
	// FullTextTokens are the normalized search tokens of every String and
	// rich-text text value, in traversal order.
	FullTextTokens []string
	// ReferenceIDs are the ids of every referenced entity, deduplicated in
	// first-seen traversal order.
	ReferenceIDs []string
	// Locations are every Location value, in traversal order.
	Locations []Location
	// ComponentTypes are the names of every component type used, deduplicated.
	ComponentTypes []string
	// UniqueIndexValues are the collected unique-index candidates.
	UniqueIndexValues []UniqueIndexValue
}

// Collector computes an entity's derived data in a single traversal pass.
// Feed every node of one traversal to [Collector.Visit], then read
// [Collector.Result]. A Collector is single-use.
type Collector struct {
	textParts      []string
	referenceIDs   []string
	seenReferences map[string]bool
	locations      []Location
	componentTypes []string
	seenComponents map[string]bool
	uniqueValues   []UniqueIndexValue
}

// NewCollector constructs an empty collector.
func NewCollector() *Collector {
	return &Collector{
		seenReferences: make(map[string]bool),
		seenComponents: make(map[string]bool),
	}
}

// Visit consumes one traversal node.
func (collector *Collector) Visit(node Node) {
	switch node.Kind {
	case NodeKindFieldItem:
		collector.visitFieldItem(node)

	case NodeKindComponent:
		name := node.ComponentType.Name
		if !collector.seenComponents[name] {
			collector.seenComponents[name] = true
			collector.componentTypes = append(collector.componentTypes, name)
		}

	case NodeKindRichTextNode:
		if NodeType(node.RichTextNode) == schema.RichTextNodeText {
			if text, ok := NodeText(node.RichTextNode); ok && text != "" {
				collector.textParts = append(collector.textParts, text)
			}
		}
	}
}

func (collector *Collector) visitFieldItem(node Node) {
	switch node.Field.Type {
	case schema.FieldTypeString:
		text, ok := node.Value.(string)
		if !ok || text == "" {
			return
		}
		collector.textParts = append(collector.textParts, text)
		if node.Field.Index != "" {
			collector.uniqueValues = append(collector.uniqueValues, UniqueIndexValue{
				Index: node.Field.Index,
				Value: text,
			})
		}

	case schema.FieldTypeReference:
		value, ok := AsMap(node.Value)
		if !ok {
			return
		}
		if id, ok := ReferenceID(value); ok && !collector.seenReferences[id] {
			collector.seenReferences[id] = true
			collector.referenceIDs = append(collector.referenceIDs, id)
		}

	case schema.FieldTypeLocation:
		value, ok := AsMap(node.Value)
		if !ok {
			return
		}
		if lat, lng, ok := LocationCoords(value); ok {
			collector.locations = append(collector.locations, Location{Lat: lat, Lng: lng})
		}
	}
}

// Result finalizes the collection. Full-text parts are concatenated in
// traversal order before tokenization, so token order is deterministic for
// identical logical content.
func (collector *Collector) Result() CollectResult {
	return CollectResult{
		FullTextTokens:    fulltext.Tokenize(strings.Join(collector.textParts, " ")),
		ReferenceIDs:      collector.referenceIDs,
		Locations:         collector.locations,
		ComponentTypes:    collector.componentTypes,
		UniqueIndexValues: collector.uniqueValues,
	}
}
