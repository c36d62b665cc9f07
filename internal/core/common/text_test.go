package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acme corp", NormalizeName("  ACME   Corp.  "))
	assert.Equal(t, "o'brien", NormalizeName("O'Brien"))
	assert.Equal(t, "a b c", NormalizeName("A-B-C"))
	assert.Equal(t, "", NormalizeName("!!!"))
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("ACME Corp", "acme corp."))
	assert.Equal(t, 0.0, NameSimilarity("", "anything"))

	// Short names only match exactly.
	assert.Equal(t, 1.0, NameSimilarity("AI", "ai"))
	assert.Equal(t, 0.0, NameSimilarity("AI", "AL"))

	close := NameSimilarity("Jonathan Smith", "Jonathon Smith")
	far := NameSimilarity("Jonathan Smith", "Acme Corporation")
	assert.Greater(t, close, 0.5)
	assert.Less(t, far, 0.2)
	assert.Greater(t, close, far)
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, TokenOverlap("acme corp", "The ACME Corp headquarters"))
	assert.Equal(t, 0.5, TokenOverlap("acme widgets", "acme sells gadgets"))
	assert.Equal(t, 0.0, TokenOverlap("", "doc"))
}
