// Package model contains the entity definitions shared across packages:
// projects and the QC records that hang off them, plus the typed patches used
// for partial updates.
package model

import (
	"fmt"
	"maps"
	"slices"
)

// Entity is implemented by every record kept in a repository. The type
// parameter lets WithID and Clone hand back the concrete type, so the generic
// stores never need type assertions.
type Entity[T any] interface {
	EntityID() string
	// ProjectRef is the project the record belongs to. Projects return their
	// own id, companies return "".
	ProjectRef() string
	WithID(id string) T
	Clone() T
}

// ValidationError reports a malformed create or update body.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func required(field, value string) error {
	if value == "" {
		return invalid(field, "is required")
	}
	return nil
}

func nonNegative(field string, v int) error {
	if v < 0 {
		return invalid(field, "must be >= 0")
	}
	return nil
}

func scoreInRange(v *int) error {
	if v != nil && (*v < 0 || *v > 100) {
		return invalid("aiScore", "must be between 0 and 100")
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return slices.Clone(in)
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}

func ptrClone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
