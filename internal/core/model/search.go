package model

// SearchResult is one ranked item returned by the hybrid search engine.
// Signals records the native-scale score each contributing signal assigned,
// keyed by signal name.
type SearchResult struct {
	UUID    string             `json:"uuid"`
	Kind    string             `json:"kind"` // node, edge, community
	Name    string             `json:"name"`
	Content string             `json:"content,omitempty"` // summary or fact
	Score   float64            `json:"score"`
	Signals map[string]float64 `json:"signals,omitempty"`
}
