// Package hparams defines the validated, immutable hyperparameter record that
// describes a model's architecture and its training configuration.
//
// Records are never assembled by assigning arbitrary keys. An untyped field
// mapping (as found in a registry entry or collected from CLI flags) is
// projected onto a declared schema: every key must name a declared field and
// every value must carry that field's type. All problems are collected and
// reported together in a single ValidationError. Declared fields missing from
// the mapping keep their defaults.
//
// Type checking is done with cty: each input value is converted to a cty.Value
// and compared against the type implied by the Go field, the same way module
// inputs are checked against manifests.
package hparams
