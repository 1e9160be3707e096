package schema

// ContentEntityFTSTable represents the 'content.entityfts' table.
//
// One row per entity and scope ('latest' or 'published') holding the
// normalized full-text tokens collected from the entity's fields.
type ContentEntityFTSTable struct {
	Table    string
	EntityID string
	Scope    string
	Tokens   string
}

// ContentEntityFTS is the schema definition for content.entityfts
var ContentEntityFTS = ContentEntityFTSTable{
	Table:    "content.entityfts",
	EntityID: "entityid",
	Scope:    "scope",
	Tokens:   "tokens",
}

// ContentEntityLocationTable represents the 'content.entitylocation' table
type ContentEntityLocationTable struct {
	Table    string
	EntityID string
	Scope    string
	Lat      string
	Lng      string
}

// ContentEntityLocation is the schema definition for content.entitylocation
var ContentEntityLocation = ContentEntityLocationTable{
	Table:    "content.entitylocation",
	EntityID: "entityid",
	Scope:    "scope",
	Lat:      "lat",
	Lng:      "lng",
}

// ContentEntityComponentTypeTable represents the 'content.entitycomponenttype' table
type ContentEntityComponentTypeTable struct {
	Table         string
	EntityID      string
	Scope         string
	ComponentType string
}

// ContentEntityComponentType is the schema definition for content.entitycomponenttype
var ContentEntityComponentType = ContentEntityComponentTypeTable{
	Table:         "content.entitycomponenttype",
	EntityID:      "entityid",
	Scope:         "scope",
	ComponentType: "componenttype",
}

// ContentEntityReferenceTable represents the 'content.entityreference' table
type ContentEntityReferenceTable struct {
	Table  string
	FromID string
	Scope  string
	ToID   string
}

// ContentEntityReference is the schema definition for content.entityreference
var ContentEntityReference = ContentEntityReferenceTable{
	Table:  "content.entityreference",
	FromID: "fromid",
	Scope:  "scope",
	ToID:   "toid",
}

// ContentUniqueIndexValueTable represents the 'content.uniqueindexvalue' table.
//
// Ownership of an (indexname, value) pair is exclusive across the whole
// repository; the latest/published flags record which scope of the owning
// entity currently claims the value.
type ContentUniqueIndexValueTable struct {
	Table     string
	IndexName string
	Value     string
	EntityID  string
	Latest    string
	Published string
}

// ContentUniqueIndexValue is the schema definition for content.uniqueindexvalue
var ContentUniqueIndexValue = ContentUniqueIndexValueTable{
	Table:     "content.uniqueindexvalue",
	IndexName: "indexname",
	Value:     "value",
	EntityID:  "entityid",
	Latest:    "latest",
	Published: "published",
}
