package hparams

import (
	"fmt"
	"strings"
)

// FieldError describes a single offending field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError lists every unknown, mistyped or out-of-range field found
// while building a Record.
type ValidationError struct {
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return fmt.Sprintf("invalid hyperparameters:\n- %s", strings.Join(lines, "\n- "))
}

// Fields returns the names of the offending fields in report order.
func (e *ValidationError) Fields() []string {
	names := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		names[i] = p.Field
	}
	return names
}

// ImmutableRecordError is returned when a field is set on a Builder that has
// already produced its Record.
type ImmutableRecordError struct {
	Field string
}

func (e *ImmutableRecordError) Error() string {
	return fmt.Sprintf("cannot set hyperparameter %q: record is already built and immutable", e.Field)
}
