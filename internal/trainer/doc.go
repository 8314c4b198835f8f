// Package trainer drives a training run. It owns the run progress, ticks the
// cadence scheduler once per optimisation step and routes each fired action:
// log to the tracking sink, eval through the save gate into the checkpoint
// store, save as an unconditional periodic checkpoint.
//
// The optimisation itself is behind the Stepper interface.
package trainer
