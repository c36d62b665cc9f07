package model

type ExtractedEntity struct {
	Name       string                 `json:"name"`
	EntityType string                 `json:"entity_type,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

type ExtractedEntities struct {
	ExtractedEntities []ExtractedEntity `json:"extracted_entities"`
}

type EntitySummary struct {
	Summary string `json:"summary"`
}

type CommunityName struct {
	Name string `json:"name"`
}

type ExtractedEdge struct {
	SourceName   string `json:"source_entity_name"`
	TargetName   string `json:"target_entity_name"`
	RelationType string `json:"relation_type"`
	Fact         string `json:"fact"`
	// RFC3339 timestamp for when the fact became true, if the text says so.
	ValidAt string `json:"valid_at,omitempty"`
}

type ExtractedEdges struct {
	ExtractedEdges []ExtractedEdge `json:"extracted_edges"`
}

type DisambiguationVerdict struct {
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type ContradictionResult struct {
	ContradictedEdgeUUIDs []string `json:"contradicted_edge_uuids"`
}
