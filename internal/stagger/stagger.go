// Package stagger spreads out the start of jobs in a job array so they do
// not all hit shared storage and the network at the same moment.
package stagger

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
)

// JobIndexEnv names the environment variable holding the job array index.
const JobIndexEnv = "SLURM_ARRAY_TASK_ID"

// Step is the delay added per job index.
const Step = 5 * time.Second

// maxIndex is the largest index whose delay fits in a time.Duration.
const maxIndex = int64(math.MaxInt64 / Step)

// StartupDelay returns how long job index should wait before starting.
// Negative indices do not wait. Indices beyond what a time.Duration can hold
// saturate.
func StartupDelay(index int) time.Duration {
	if index <= 0 {
		return 0
	}
	if int64(index) > maxIndex {
		return time.Duration(maxIndex) * Step
	}
	return time.Duration(index) * Step
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv reads the job index through lookup. It returns false when the
// variable is absent or not a non-negative integer.
func FromEnv(ctx context.Context, lookup LookupFunc) (int, bool) {
	logger := ctxlog.FromContext(ctx)

	raw, ok := lookup(JobIndexEnv)
	if !ok {
		logger.Debug("No job array index in environment.", "variable", JobIndexEnv)
		return 0, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || index < 0 {
		logger.Warn("Ignoring invalid job array index.", "variable", JobIndexEnv, "value", raw)
		return 0, false
	}
	return index, true
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Apply looks up the job index and waits out its startup delay.
func Apply(ctx context.Context, lookup LookupFunc) error {
	index, ok := FromEnv(ctx, lookup)
	if !ok {
		return nil
	}
	d := StartupDelay(index)
	ctxlog.FromContext(ctx).Info("Staggering job start.", "job_index", index, "delay", d)
	return Wait(ctx, d)
}
