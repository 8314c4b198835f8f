package scheduler

import (
	"context"
	"fmt"
)

// Kind identifies a periodic action. The numeric order is the firing order
// within a single step.
type Kind int

const (
	Log Kind = iota
	DistPlot
	Eval
	Save
)

func (k Kind) String() string {
	switch k {
	case Log:
		return "log"
	case DistPlot:
		return "dist_plot"
	case Eval:
		return "eval"
	case Save:
		return "save"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Handler runs an action for the given step.
type Handler func(ctx context.Context, step int) error

// InvalidPeriodError is returned when an action is registered with a period below 1.
type InvalidPeriodError struct {
	Kind   Kind
	Period int
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %d for %s action: must be at least 1", e.Period, e.Kind)
}
