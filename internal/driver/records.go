package driver

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Timestamps are persisted as RFC3339 strings so the same Cypher works across
// Memgraph and Neo4j datetime handling.

func RecordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func RecordTime(rec *neo4j.Record, key string) *time.Time {
	s := RecordString(rec, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func RecordVector(rec *neo4j.Record, key string) []float32 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, x := range raw {
		switch f := x.(type) {
		case float64:
			out = append(out, float32(f))
		case float32:
			out = append(out, f)
		}
	}
	return out
}

func RecordStrings(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func RecordMap(rec *neo4j.Record, key string) map[string]interface{} {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

// TimeParam formats a timestamp for persistence; nil stays nil so validity
// range filters can distinguish "unknown" from a concrete instant.
func TimeParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
