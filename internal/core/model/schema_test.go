package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() EntityTypeSchema {
	return EntityTypeSchema{
		"Person": {
			Attributes: map[string]AttrSpec{
				"age":  {Type: "number"},
				"name": {Type: "string", Required: true},
			},
		},
	}
}

func TestValidateAttributes_Conforming(t *testing.T) {
	valid, err := personSchema().ValidateAttributes("Person", map[string]interface{}{
		"name": "Alice",
		"age":  float64(30),
	})
	require.NoError(t, err)
	assert.Len(t, valid, 2)
}

func TestValidateAttributes_TypeViolation(t *testing.T) {
	valid, err := personSchema().ValidateAttributes("Person", map[string]interface{}{
		"name": "Alice",
		"age":  "thirty",
	})
	assert.ErrorIs(t, err, ErrSchemaValidation)
	// The conforming subset survives.
	assert.Contains(t, valid, "name")
	assert.NotContains(t, valid, "age")
}

func TestValidateAttributes_MissingRequired(t *testing.T) {
	_, err := personSchema().ValidateAttributes("Person", map[string]interface{}{
		"age": float64(30),
	})
	assert.ErrorIs(t, err, ErrSchemaValidation)
}

func TestValidateAttributes_UnknownTypePassesThrough(t *testing.T) {
	valid, err := personSchema().ValidateAttributes("Organization", map[string]interface{}{
		"anything": 42,
	})
	require.NoError(t, err)
	assert.Contains(t, valid, "anything")
}

func TestValidateAttributes_UndeclaredAttributeKept(t *testing.T) {
	valid, err := personSchema().ValidateAttributes("Person", map[string]interface{}{
		"name":    "Alice",
		"hobbies": []string{"chess"},
	})
	require.NoError(t, err)
	assert.Contains(t, valid, "hobbies")
}

func TestValidateAttributes_NilSchema(t *testing.T) {
	var s EntityTypeSchema
	attrs := map[string]interface{}{"x": 1}
	valid, err := s.ValidateAttributes("Person", attrs)
	require.NoError(t, err)
	assert.Equal(t, attrs, valid)
}
