package content

// Well-known keys of structured field values.
const (
	keyType     = "type"
	keyID       = "id"
	keyLat      = "lat"
	keyLng      = "lng"
	keyRoot     = "root"
	keyChildren = "children"
	keyData     = "data"
	keyText     = "text"
)

// AsMap narrows a decoded JSON value to an object.
func AsMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}

// ComponentTypeName extracts the type tag of a component value.
func ComponentTypeName(value map[string]any) (string, bool) {
	name, ok := value[keyType].(string)
	return name, ok && name != ""
}

// ReferenceID extracts the id of a reference value.
func ReferenceID(value map[string]any) (string, bool) {
	id, ok := value[keyID].(string)
	return id, ok && id != ""
}

// LocationCoords extracts lat/lng from a location value.
func LocationCoords(value map[string]any) (lat, lng float64, ok bool) {
	lat, latOK := asNumber(value[keyLat])
	lng, lngOK := asNumber(value[keyLng])
	return lat, lng, latOK && lngOK
}

// RichTextRoot extracts the root node of a rich text document.
func RichTextRoot(value map[string]any) (map[string]any, bool) {
	root, ok := value[keyRoot].(map[string]any)
	return root, ok
}

// NodeType returns the type tag of a rich text node ("" when missing).
func NodeType(node map[string]any) string {
	nodeType, _ := node[keyType].(string)
	return nodeType
}

// NodeChildren returns the children list of a rich text node.
func NodeChildren(node map[string]any) []any {
	children, _ := node[keyChildren].([]any)
	return children
}

// NodeText returns the text payload of a rich text text node.
func NodeText(node map[string]any) (string, bool) {
	text, ok := node[keyText].(string)
	return text, ok
}

// asNumber accepts the numeric representations a decoded JSON tree or a
// hand-built test fixture may carry.
func asNumber(value any) (float64, bool) {
	switch number := value.(type) {
	case float64:
		return number, true
	case int:
		return float64(number), true
	default:
		return 0, false
	}
}

// isNumber reports whether value is numeric, and whether it is integral.
func isNumber(value any) (integral bool, ok bool) {
	switch number := value.(type) {
	case float64:
		return number == float64(int64(number)), true
	case int:
		return true, true
	default:
		return false, false
	}
}
