// Package tracking sends run hyperparameters and step-indexed metrics to an
// experiment tracker. The training loop decides when to emit; a Sink only
// decides where the records go.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
)

// Sink accepts run records.
type Sink interface {
	LogHyperparameters(ctx context.Context, params map[string]any) error
	LogScalars(ctx context.Context, step int, scalars map[string]float64) error
	Close(ctx context.Context) error
}

// LogSink writes records to the context logger.
type LogSink struct{}

// LogHyperparameters logs params as one record with sorted attributes.
func (LogSink) LogHyperparameters(ctx context.Context, params map[string]any) error {
	ctxlog.FromContext(ctx).Info("Run hyperparameters.", sortedAttrs(params)...)
	return nil
}

// LogScalars logs scalars as one record tagged with step.
func (LogSink) LogScalars(ctx context.Context, step int, scalars map[string]float64) error {
	args := append([]any{"step", step}, sortedAttrs(scalars)...)
	ctxlog.FromContext(ctx).Info("Training metrics.", args...)
	return nil
}

// Close is a no-op.
func (LogSink) Close(context.Context) error { return nil }

func sortedAttrs[V any](m map[string]V) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, m[k]))
	}
	return attrs
}

// ScalarRecord is one LogScalars call captured by a MemorySink.
type ScalarRecord struct {
	Step    int
	Scalars map[string]float64
}

// MemorySink keeps every record in memory. It is safe for concurrent use.
type MemorySink struct {
	mu              sync.Mutex
	hyperparameters []map[string]any
	scalars         []ScalarRecord
	closed          bool
}

// LogHyperparameters records a copy of params.
func (m *MemorySink) LogHyperparameters(_ context.Context, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	m.hyperparameters = append(m.hyperparameters, cp)
	return nil
}

// LogScalars records a copy of scalars at step.
func (m *MemorySink) LogScalars(_ context.Context, step int, scalars map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]float64, len(scalars))
	for k, v := range scalars {
		cp[k] = v
	}
	m.scalars = append(m.scalars, ScalarRecord{Step: step, Scalars: cp})
	return nil
}

// Close marks the sink closed.
func (m *MemorySink) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Hyperparameters returns every logged hyperparameter set.
func (m *MemorySink) Hyperparameters() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.hyperparameters...)
}

// Scalars returns every logged scalar record, in logging order.
func (m *MemorySink) Scalars() []ScalarRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScalarRecord(nil), m.scalars...)
}

// Steps returns the steps at which scalars containing key were logged.
func (m *MemorySink) Steps(key string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var steps []int
	for _, rec := range m.scalars {
		if _, ok := rec.Scalars[key]; ok {
			steps = append(steps, rec.Step)
		}
	}
	return steps
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Multi fans every record out to all sinks. All sinks are called even when
// one fails; the errors are joined.
type Multi []Sink

// LogHyperparameters forwards params to every sink.
func (ms Multi) LogHyperparameters(ctx context.Context, params map[string]any) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.LogHyperparameters(ctx, params))
	}
	return errors.Join(errs...)
}

// LogScalars forwards scalars to every sink.
func (ms Multi) LogScalars(ctx context.Context, step int, scalars map[string]float64) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.LogScalars(ctx, step, scalars))
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (ms Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.Close(ctx))
	}
	return errors.Join(errs...)
}
