package hparams

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/zclconf/go-cty/cty/gocty"
)

// Build validates fields against the declared schema and returns the
// resulting record. Declared fields absent from fields keep their defaults.
func Build(fields map[string]any) (Record, error) {
	return build(defaults(), fields)
}

// Builder accumulates fields one at a time. Once Build has been called the
// builder is sealed and further calls to Set fail.
type Builder struct {
	base   values
	fields map[string]any
	sealed bool
}

// NewBuilder returns a builder starting from the default values.
func NewBuilder() *Builder {
	return &Builder{base: defaults(), fields: make(map[string]any)}
}

// Set records a field value. Validation is deferred to Build so that every
// problem is reported at once.
func (b *Builder) Set(name string, value any) error {
	if b.sealed {
		return &ImmutableRecordError{Field: name}
	}
	b.fields[name] = value
	return nil
}

// Build seals the builder and validates the accumulated fields.
func (b *Builder) Build() (Record, error) {
	b.sealed = true
	return build(b.base, b.fields)
}

func build(base values, fields map[string]any) (Record, error) {
	v := base
	target := reflect.ValueOf(&v).Elem()

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []FieldError
	for _, name := range names {
		i, ok := fieldIndex[name]
		if !ok {
			problems = append(problems, FieldError{Field: name, Reason: "unknown field"})
			continue
		}
		if err := assign(target.Field(i), fields[name]); err != nil {
			problems = append(problems, FieldError{Field: name, Reason: err.Error()})
		}
	}

	// Fields that failed to assign still hold a valid base value, so range
	// problems on them would only repeat the type problem.
	reported := make(map[string]bool, len(problems))
	for _, p := range problems {
		reported[p.Field] = true
	}
	for _, p := range v.check() {
		if !reported[p.Field] {
			problems = append(problems, p)
		}
	}
	if len(problems) > 0 {
		sort.SliceStable(problems, func(i, j int) bool { return problems[i].Field < problems[j].Field })
		return Record{}, &ValidationError{Problems: problems}
	}
	return Record{v: v}, nil
}

// assign converts raw into the Go field, requiring the cty type implied by raw
// to match the one implied by the field exactly.
func assign(field reflect.Value, raw any) error {
	want, err := gocty.ImpliedType(field.Interface())
	if err != nil {
		return fmt.Errorf("unsupported field type %s: %w", field.Type(), err)
	}

	if raw == nil {
		return fmt.Errorf("expected %s, got null", want.FriendlyName())
	}
	if f, ok := asFloat(raw); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return fmt.Errorf("expected a finite number, got %g", f)
	}
	got, err := gocty.ImpliedType(raw)
	if err != nil {
		return fmt.Errorf("expected %s, got unsupported value of type %T", want.FriendlyName(), raw)
	}
	if !got.Equals(want) {
		return fmt.Errorf("expected %s, got %s", want.FriendlyName(), got.FriendlyName())
	}

	val, err := gocty.ToCtyValue(raw, got)
	if err != nil {
		return err
	}
	if val.IsNull() {
		return fmt.Errorf("expected %s, got null", want.FriendlyName())
	}
	if err := gocty.FromCtyValue(val, field.Addr().Interface()); err != nil {
		return fmt.Errorf("cannot use %s as %s: %w", val.GoString(), field.Type(), err)
	}
	return nil
}

func asFloat(raw any) (float64, bool) {
	switch f := raw.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	return 0, false
}
