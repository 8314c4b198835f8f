// Package scheduler decides which periodic actions fire at a given training
// step.
//
// # Why Scheduler Exists
//
// A training run reports metrics and distribution summaries, evaluates the
// model and saves checkpoints, each on its own cadence. Keeping those
// cadences in one place means the training loop only has to call Tick once
// per step.
//
// # How It Works
//
// Each action kind is registered once with a period in steps. Tick(step) runs
// every action whose period divides step, in the fixed order log, dist_plot,
// eval, save. Step 0 fires every action. Over steps 0..N an action with
// period k fires floor(N/k)+1 times.
//
// A handler error stops the tick. Later actions for that step do not run.
package scheduler
