package model

import "time"

// EntityEdge is a bi-temporal relationship fact. ValidAt/InvalidAt track when
// the fact held in the world; CreatedAt/ExpiredAt track when the record was
// part of the graph's authoritative view. Contradicted edges are expired, not
// deleted.
type EntityEdge struct {
	UUID          string                 `json:"uuid"`
	SourceUUID    string                 `json:"source_node_uuid"`
	TargetUUID    string                 `json:"target_node_uuid"`
	GroupID       string                 `json:"group_id"`
	Name          string                 `json:"name"` // relation type, e.g. WORKS_AT
	Fact          string                 `json:"fact"`
	CreatedAt     time.Time              `json:"created_at"`
	ExpiredAt     *time.Time             `json:"expired_at,omitempty"`
	ValidAt       *time.Time             `json:"valid_at,omitempty"`
	InvalidAt     *time.Time             `json:"invalid_at,omitempty"`
	Episodes      []string               `json:"episodes"` // provenance Episode UUIDs
	FactEmbedding []float32              `json:"fact_embedding,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
}

// IsValidAt reports whether the fact held at t.
func (e *EntityEdge) IsValidAt(t time.Time) bool {
	if e.ValidAt != nil && t.Before(*e.ValidAt) {
		return false
	}
	if e.InvalidAt != nil && !t.Before(*e.InvalidAt) {
		return false
	}
	return true
}

// IsCurrentlyValid reports whether the fact holds at query time now.
func (e *EntityEdge) IsCurrentlyValid(now time.Time) bool {
	return e.InvalidAt == nil || e.InvalidAt.After(now)
}

// Key identifies the relationship slot an edge occupies for temporal
// conflict resolution.
func (e *EntityEdge) Key() EdgeKey {
	return EdgeKey{SourceUUID: e.SourceUUID, TargetUUID: e.TargetUUID, Name: e.Name}
}

type EdgeKey struct {
	SourceUUID string
	TargetUUID string
	Name       string
}

type EpisodicEdge struct {
	UUID       string    `json:"uuid"`
	SourceUUID string    `json:"source_node_uuid"` // Episode
	TargetUUID string    `json:"target_node_uuid"` // Entity
	GroupID    string    `json:"group_id"`
	CreatedAt  time.Time `json:"created_at"`
	// Relationship type is MENTIONS
}

type CommunityEdge struct {
	UUID       string    `json:"uuid"`
	SourceUUID string    `json:"source_node_uuid"` // Community
	TargetUUID string    `json:"target_node_uuid"` // Entity
	GroupID    string    `json:"group_id"`
	CreatedAt  time.Time `json:"created_at"`
	// Relationship type is HAS_MEMBER
}
