/*
Package entity implements the unit of content: versioned, schema-governed
entities with a draft/publish lifecycle.

Every entity owns a monotonically increasing version sequence. Exactly one
version is the latest (the draft head); at most one version is published and
may equal or precede the latest. The publish pipeline enforces cross-entity
reference integrity and unique-index ownership transactionally.
*/
package entity

import "time"

// Status is the finite lifecycle state of an entity. Exactly one status
// holds at a time.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	// StatusModified marks an entity whose latest draft has moved past its
	// published version.
	StatusModified  Status = "modified"
	StatusWithdrawn Status = "withdrawn"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusModified, StatusWithdrawn, StatusArchived:
		return true
	}
	return false
}

// IsPublished reports whether a published version currently exists.
func (s Status) IsPublished() bool {
	return s == StatusPublished || s == StatusModified
}

// afterEdit is the status after a new draft version is written.
func (s Status) afterEdit() Status {
	if s == StatusPublished {
		return StatusModified
	}
	return s
}

// CanArchive reports whether the entity may move to archived. Entities with
// a live published version must be unpublished first.
func (s Status) CanArchive() bool {
	return s == StatusDraft || s == StatusWithdrawn
}

// Info is the entity's metadata: identity, versioning, lifecycle, validity.
type Info struct {
	// Type names the entity type specification.
	Type string `json:"type"`
	// Name is the display name, unique per repository; a disambiguating
	// suffix may follow a '#'.
	Name string `json:"name"`
	// AuthKey is the authorization partition the entity belongs to.
	AuthKey string `json:"authKey"`

	// Version is the latest (draft head) version number.
	Version int `json:"version"`
	// PublishedVersion is the currently published version, nil when none.
	PublishedVersion *int `json:"publishedVersion,omitempty"`

	Status Status `json:"status"`

	// Valid reports whether the latest version passes save-time validation.
	Valid bool `json:"valid"`
	// ValidPublished reports whether the published version passes
	// publish-time validation; nil when nothing is published.
	ValidPublished *bool `json:"validPublished,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entity is one entity with its decoded latest (or requested) field values.
type Entity struct {
	ID     string         `json:"id"`
	Info   Info           `json:"info"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Effect describes what an operation actually did to one entity.
type Effect string

const (
	EffectCreated     Effect = "created"
	EffectUpdated     Effect = "updated"
	EffectPublished   Effect = "published"
	EffectUnpublished Effect = "unpublished"
	EffectArchived    Effect = "archived"
	EffectUnarchived  Effect = "unarchived"
	// EffectNone marks an operation that found nothing to change.
	EffectNone Effect = "none"
)

// OperationResult reports the outcome of a lifecycle operation per entity.
type OperationResult struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Effect Effect `json:"effect"`
}

// VersionRef addresses one entity version in a publish request. A nil
// Version means the latest version.
type VersionRef struct {
	ID      string `json:"id"`
	Version *int   `json:"version,omitempty"`
}
