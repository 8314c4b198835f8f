package registry

import (
	"fmt"
	"sort"
)

// Reserved keys of a descriptor record.
const (
	KeyWeightsURL = "model_weights_url"
	KeyRobotName  = "robot_name"
)

// Entry is one immutable descriptor.
type Entry struct {
	Name      string
	SourceURL string
	RobotName string

	fields map[string]any
}

// HyperparameterFields returns a copy of the entry's untyped hyperparameter
// fields.
func (e Entry) HyperparameterFields() map[string]any {
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// NotFoundError means a model name has no descriptor.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("model %q not found in registry", e.Name)
}

// Registry holds all descriptors of a process.
type Registry struct {
	entries map[string]Entry
}

// New validates raw records keyed by model name and returns the registry.
// Each record uses the same keys as a registry document.
func New(records map[string]map[string]any) (*Registry, error) {
	raw := make(map[string]any, len(records))
	for name, rec := range records {
		raw[name] = rec
	}
	r := &Registry{entries: make(map[string]Entry)}
	if problems := r.add(raw); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return r, nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, NotFoundError{Name: name}
	}
	return e, nil
}

// Names returns every model name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	return len(r.entries)
}
