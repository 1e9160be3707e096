package content

import (
	"encoding/json"
	"fmt"

	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
)

// CurrentEncodeVersion tags the serialization format of stored field blobs.
// It evolves independently of schema versions: encode versions cover the
// envelope format itself, schema versions cover the content shape.
const CurrentEncodeVersion = 1

// encodedFields is the persisted envelope of an entity version's fields.
type encodedFields struct {
	SchemaVersion int            `json:"schemaVersion"`
	EncodeVersion int            `json:"encodeVersion"`
	Fields        map[string]any `json:"fields"`
}

// EncodeEntityFields serializes a normalized field map tagged with the
// current schema and encode versions.
func EncodeEntityFields(s *schema.Schema, fields map[string]any) ([]byte, error) {
	blob, err := json.Marshal(encodedFields{
		SchemaVersion: s.Version(),
		EncodeVersion: CurrentEncodeVersion,
		Fields:        fields,
	})
	if err != nil {
		return nil, apperr.Generic(err)
	}
	return blob, nil
}

// DecodeEntityFields deserializes a stored blob and reconciles both format
// axes: the envelope via its encode version, then the content via schema
// migration replay from its stored schema version.
func DecodeEntityFields(s *schema.Schema, entityTypeName string, blob []byte) (map[string]any, error) {
	var envelope encodedFields
	if err := json.Unmarshal(blob, &envelope); err != nil {
		return nil, apperr.Generic(err)
	}

	switch envelope.EncodeVersion {
	case CurrentEncodeVersion:
		// Current format, nothing to convert.
	default:
		return nil, apperr.Generic(fmt.Errorf("unsupported encode version %d", envelope.EncodeVersion))
	}

	return ApplyMigrations(s, entityTypeName, envelope.Fields, envelope.SchemaVersion)
}
