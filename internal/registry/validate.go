package registry

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists every malformed descriptor found while loading.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry validation failed:\n- %s", strings.Join(e.Problems, "\n- "))
}

// add validates raw records and stores the valid ones. It returns one problem
// string per defect, in model-name order.
func (r *Registry) add(raw map[string]any) []string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "descriptor with an empty model name")
			continue
		}
		if _, exists := r.entries[name]; exists {
			errs = append(errs, fmt.Sprintf("model '%s': declared more than once", name))
			continue
		}

		record, ok := raw[name].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("model '%s': descriptor must be a mapping, got %T", name, raw[name]))
			continue
		}

		entry := Entry{Name: name, fields: make(map[string]any)}
		var entryErrs []string

		url, err := requiredString(record, KeyWeightsURL)
		if err != nil {
			entryErrs = append(entryErrs, fmt.Sprintf("model '%s': %v", name, err))
		}
		entry.SourceURL = url

		robot, err := requiredString(record, KeyRobotName)
		if err != nil {
			entryErrs = append(entryErrs, fmt.Sprintf("model '%s': %v", name, err))
		}
		entry.RobotName = robot

		keys := make([]string, 0, len(record))
		for key := range record {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if key == KeyWeightsURL || key == KeyRobotName {
				continue
			}
			if !isPrimitive(record[key]) {
				entryErrs = append(entryErrs, fmt.Sprintf("model '%s': hyperparameter '%s' must be a string, number or bool, got %T", name, key, record[key]))
				continue
			}
			entry.fields[key] = record[key]
		}

		if len(entryErrs) > 0 {
			errs = append(errs, entryErrs...)
			continue
		}
		r.entries[name] = entry
	}
	return errs
}

func requiredString(record map[string]any, key string) (string, error) {
	v, ok := record[key]
	if !ok {
		return "", fmt.Errorf("missing required key '%s'", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("key '%s' must be a string, got %T", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("key '%s' must not be empty", key)
	}
	return s, nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return true
	default:
		return false
	}
}
