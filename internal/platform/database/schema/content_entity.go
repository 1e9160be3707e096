package schema

// ContentEntityTable represents the 'content.entity' table
type ContentEntityTable struct {
	Table            string
	ID               string
	Type             string
	Name             string
	AuthKey          string
	LatestVersion    string
	PublishedVersion string
	Status           string
	Valid            string
	ValidPublished   string
	CreatedAt        string
	UpdatedAt        string
}

// ContentEntity is the schema definition for content.entity
var ContentEntity = ContentEntityTable{
	Table:            "content.entity",
	ID:               "id",
	Type:             "type",
	Name:             "name",
	AuthKey:          "authkey",
	LatestVersion:    "latestversion",
	PublishedVersion: "publishedversion",
	Status:           "status",
	Valid:            "valid",
	ValidPublished:   "validpublished",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
}

func (t ContentEntityTable) Columns() []string {
	return []string{
		t.ID, t.Type, t.Name, t.AuthKey, t.LatestVersion, t.PublishedVersion,
		t.Status, t.Valid, t.ValidPublished, t.CreatedAt, t.UpdatedAt,
	}
}

// ContentEntityVersionTable represents the 'content.entityversion' table
type ContentEntityVersionTable struct {
	Table     string
	EntityID  string
	Version   string
	Data      string
	CreatedAt string
}

// ContentEntityVersion is the schema definition for content.entityversion
var ContentEntityVersion = ContentEntityVersionTable{
	Table:     "content.entityversion",
	EntityID:  "entityid",
	Version:   "version",
	Data:      "data",
	CreatedAt: "createdat",
}
