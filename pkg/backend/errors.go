package backend

import "fmt"

// SQLGenerationError means the SQL adapter could not produce a
// syntactically valid query after its correction budget was exhausted
// (spec.md §4.4).
type SQLGenerationError struct {
	Attempts int
	Err      error
}

func (e *SQLGenerationError) Error() string {
	return fmt.Sprintf("sql generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SQLGenerationError) Unwrap() error { return e.Err }

// SQLExecutionError means every correction attempt was rejected by the
// database itself.
type SQLExecutionError struct {
	Attempts int
	Query    string
	Err      error
}

func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("sql execution failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SQLExecutionError) Unwrap() error { return e.Err }

// DomainResolutionError means the business terms in the question could
// not be resolved against the join graph's vocabulary.
type DomainResolutionError struct {
	Question string
	Err      error
}

func (e *DomainResolutionError) Error() string {
	return fmt.Sprintf("could not resolve business terms in %q: %v", e.Question, e.Err)
}

func (e *DomainResolutionError) Unwrap() error { return e.Err }
