package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestEdgeIsValidAt(t *testing.T) {
	edge := EntityEdge{
		ValidAt:   tp("2024-01-01T00:00:00Z"),
		InvalidAt: tp("2024-06-01T00:00:00Z"),
	}

	assert.False(t, edge.IsValidAt(ts("2023-12-31T00:00:00Z")))
	assert.True(t, edge.IsValidAt(ts("2024-01-01T00:00:00Z")))
	assert.True(t, edge.IsValidAt(ts("2024-03-01T00:00:00Z")))
	// Interval is half-open: the invalidation instant itself is outside.
	assert.False(t, edge.IsValidAt(ts("2024-06-01T00:00:00Z")))
	assert.False(t, edge.IsValidAt(ts("2024-07-01T00:00:00Z")))
}

func TestEdgeOpenInterval(t *testing.T) {
	edge := EntityEdge{}
	assert.True(t, edge.IsValidAt(ts("1990-01-01T00:00:00Z")))
	assert.True(t, edge.IsCurrentlyValid(time.Now()))

	edge.InvalidAt = tp("2024-06-01T00:00:00Z")
	assert.False(t, edge.IsCurrentlyValid(ts("2024-06-01T00:00:00Z")))
	assert.True(t, edge.IsCurrentlyValid(ts("2024-05-31T00:00:00Z")))
}

func TestEdgeKey(t *testing.T) {
	a := EntityEdge{SourceUUID: "s", TargetUUID: "t", Name: "WORKS_AT", Fact: "x"}
	b := EntityEdge{SourceUUID: "s", TargetUUID: "t", Name: "WORKS_AT", Fact: "y"}
	c := EntityEdge{SourceUUID: "s", TargetUUID: "t", Name: "LIVES_IN"}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}
