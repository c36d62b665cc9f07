package model

import "errors"

// Sentinel errors for the ingestion and search paths. Callers match with
// errors.Is; wrapping sites attach episode and candidate identifiers.
var (
	// ErrExtraction marks an unreachable or malformed extraction capability
	// response. Retried with backoff, then surfaced per episode.
	ErrExtraction = errors.New("extraction failed")

	// ErrSchemaValidation marks a candidate attribute that violates the
	// caller-supplied entity type schema. The candidate is dropped and the
	// episode continues.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrCommitConflict marks a concurrent transaction collision on the same
	// entity cluster. Retried once with a fresh snapshot.
	ErrCommitConflict = errors.New("duplicate commit conflict")

	// ErrContradictionJudgment marks an undecidable contradiction check.
	// The resolver defaults to no invalidation.
	ErrContradictionJudgment = errors.New("contradiction judgment failed")

	// ErrTraversalBudget marks a breadth-first expansion that hit its
	// frontier cap. The signal returns partial results flagged truncated.
	ErrTraversalBudget = errors.New("traversal budget exceeded")
)
