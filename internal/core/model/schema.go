package model

import "fmt"

// EntityTypeSchema is a caller-supplied description of entity types and their
// typed attributes. Extracted candidates are validated against it; attributes
// that do not conform are dropped rather than failing the episode.
type EntityTypeSchema map[string]EntityTypeSpec

type EntityTypeSpec struct {
	Description string              `json:"description,omitempty" toml:"description"`
	Attributes  map[string]AttrSpec `json:"attributes,omitempty" toml:"attributes"`
}

type AttrSpec struct {
	Type     string `json:"type" toml:"type"` // string, number, bool
	Required bool   `json:"required,omitempty" toml:"required"`
}

// ValidateAttributes checks a candidate's attributes against the schema for
// its entity type. It returns the subset of attributes that conform; the
// error reports the first violation for logging.
func (s EntityTypeSchema) ValidateAttributes(entityType string, attrs map[string]interface{}) (map[string]interface{}, error) {
	if s == nil {
		return attrs, nil
	}
	spec, ok := s[entityType]
	if !ok || spec.Attributes == nil {
		return attrs, nil
	}

	valid := make(map[string]interface{}, len(attrs))
	var firstErr error
	for name, value := range attrs {
		as, declared := spec.Attributes[name]
		if !declared {
			// Undeclared attributes pass through untyped.
			valid[name] = value
			continue
		}
		if attrTypeMatches(as.Type, value) {
			valid[name] = value
		} else if firstErr == nil {
			firstErr = fmt.Errorf("attribute %q of type %q: %w", name, entityType, ErrSchemaValidation)
		}
	}
	for name, as := range spec.Attributes {
		if as.Required {
			if _, ok := valid[name]; !ok && firstErr == nil {
				firstErr = fmt.Errorf("missing required attribute %q of type %q: %w", name, entityType, ErrSchemaValidation)
			}
		}
	}
	return valid, firstErr
}

func attrTypeMatches(declared string, value interface{}) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "bool":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
