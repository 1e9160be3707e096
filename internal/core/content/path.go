/*
Package content implements the engine that walks entity field trees against a
schema: traversal, normalization, save/publish validation, derived-data
collection, schema migration replay, and the wire codec.

Everything here is a pure computation over in-memory trees. No function keeps
state between calls, so any number of goroutines may run the engine
concurrently on their own inputs.
*/
package content

import (
	"strconv"
	"strings"
)

// Path addresses one node inside an entity's field tree. Segments are field
// names (string) or list/children indexes (int).
type Path []any

// Append returns a new path extended by the given segments. The receiver's
// backing array is never shared, so paths captured by emitted nodes stay
// stable as the traversal advances.
func (path Path) Append(segments ...any) Path {
	extended := make(Path, 0, len(path)+len(segments))
	extended = append(extended, path...)
	extended = append(extended, segments...)
	return extended
}

// String renders the path for error messages: name segments joined with
// dots, index segments in brackets ("fields.sections[2].title").
func (path Path) String() string {
	var builder strings.Builder
	for _, segment := range path {
		switch segment := segment.(type) {
		case int:
			builder.WriteString("[")
			builder.WriteString(strconv.Itoa(segment))
			builder.WriteString("]")
		case string:
			if builder.Len() > 0 {
				builder.WriteString(".")
			}
			builder.WriteString(segment)
		}
	}
	return builder.String()
}
