package relationship

import "github.com/tidemark/recordhub-backend/internal/domain"

// Validation is the structured outcome of a single target check.
// Validation failures are results, never returned as errors.
type Validation struct {
	Valid bool
	Error string // empty when Valid
}

func valid() Validation             { return Validation{Valid: true} }
func invalid(msg string) Validation { return Validation{Valid: false, Error: msg} }

// BatchValidation aggregates per-field outcomes of a record payload check.
// A single invalid field never short-circuits checking of the others.
type BatchValidation struct {
	Valid         bool
	ErrorsByField map[string]string
}

// CleanupResult reports delete-time reference repair. A non-empty Errors
// list with a nil top-level error is the partial-failure outcome: cleanup
// is advisory repair, not a blocking gate on the original delete.
type CleanupResult struct {
	CleanedCount int
	Errors       []domain.FieldError
}
