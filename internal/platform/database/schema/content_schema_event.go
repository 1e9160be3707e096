package schema

// ContentSchemaSpecTable represents the 'content.schemaspec' table.
//
// A single-row table (id = 1) holding the current schema specification JSON
// and its version for optimistic concurrency on updates.
type ContentSchemaSpecTable struct {
	Table         string
	ID            string
	Version       string
	Specification string
	UpdatedAt     string
}

// ContentSchemaSpec is the schema definition for content.schemaspec
var ContentSchemaSpec = ContentSchemaSpecTable{
	Table:         "content.schemaspec",
	ID:            "id",
	Version:       "version",
	Specification: "specification",
	UpdatedAt:     "updatedat",
}

// ContentEventTable represents the 'content.event' table
type ContentEventTable struct {
	Table     string
	ID        string
	Type      string
	Principal string
	CreatedAt string
}

// ContentEvent is the schema definition for content.event
var ContentEvent = ContentEventTable{
	Table:     "content.event",
	ID:        "id",
	Type:      "type",
	Principal: "principal",
	CreatedAt: "createdat",
}

// ContentEventEntityTable represents the 'content.evententity' table
type ContentEventEntityTable struct {
	Table    string
	EventID  string
	EntityID string
	Version  string
}

// ContentEventEntity is the schema definition for content.evententity
var ContentEventEntity = ContentEventEntityTable{
	Table:    "content.evententity",
	EventID:  "eventid",
	EntityID: "entityid",
	Version:  "version",
}
