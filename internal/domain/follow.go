package domain

import "time"

// EntityType is the kind of upstream entity a Follow subscribes to.
type EntityType string

const (
	EntityAuthor      EntityType = "author"
	EntityInstitution EntityType = "institution"
	EntityTopic       EntityType = "topic"
	EntitySource      EntityType = "source"
	// EntityCustom follows are fanned out through the search engine using a
	// free-text query rather than a resolved upstream id.
	EntityCustom EntityType = "custom"
)

// Valid reports whether t is one of the recognized entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityAuthor, EntityInstitution, EntityTopic, EntitySource, EntityCustom:
		return true
	default:
		return false
	}
}

// Follow is a durable subscription from a user to an external entity whose
// latest works should appear in the following feed. At most one Follow
// exists per (userId, entityType, entityId).
type Follow struct {
	EntityType EntityType `json:"type"`
	EntityID   string     `json:"entityId"`
	EntityName string     `json:"entityName"`
	UpstreamID string     `json:"upstreamId,omitempty"`
	FollowedAt time.Time  `json:"followedAt"`
}
