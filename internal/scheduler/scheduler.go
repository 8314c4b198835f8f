package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
)

type action struct {
	kind    Kind
	period  int
	handler Handler
	fired   int
}

// Scheduler holds the registered actions. It is not safe for concurrent use;
// a training run owns exactly one.
type Scheduler struct {
	actions []*action
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Register adds an action of the given kind firing every period steps.
// Registering the same kind twice is a programming error and panics.
func (s *Scheduler) Register(kind Kind, period int, h Handler) error {
	if period < 1 {
		return &InvalidPeriodError{Kind: kind, Period: period}
	}
	for _, a := range s.actions {
		if a.kind == kind {
			panic(fmt.Sprintf("scheduler: %s action registered twice", kind))
		}
	}
	s.actions = append(s.actions, &action{kind: kind, period: period, handler: h})
	sort.SliceStable(s.actions, func(i, j int) bool { return s.actions[i].kind < s.actions[j].kind })
	return nil
}

// due returns the actions firing at step, in firing order.
func (s *Scheduler) due(step int) []*action {
	var due []*action
	for _, a := range s.actions {
		if step%a.period == 0 {
			due = append(due, a)
		}
	}
	return due
}

// Tick fires every action due at step. The first handler error aborts the
// tick and is returned wrapped with the action kind.
func (s *Scheduler) Tick(ctx context.Context, step int) error {
	if step < 0 {
		return fmt.Errorf("step must not be negative, got %d", step)
	}
	for _, a := range s.due(step) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctxlog.FromContext(ctx).Debug("Firing action.", "action", a.kind, "step", step)
		a.fired++
		if err := a.handler(ctx, step); err != nil {
			return fmt.Errorf("%s action at step %d: %w", a.kind, step, err)
		}
	}
	return nil
}

// Fired returns how many times kind has fired so far.
func (s *Scheduler) Fired(kind Kind) int {
	for _, a := range s.actions {
		if a.kind == kind {
			return a.fired
		}
	}
	return 0
}
