// Package runconfig turns run flags into the policies and hyperparameters a
// training run needs.
//
// Flags come from three layers, lowest precedence first: built-in defaults,
// an optional HCL run file, and explicit command-line flags. Build is a pure
// function of the final Flags value.
//
// Smoke-test mode replaces the cadences with small fixed periods, shrinks
// evaluation, trains on the small dataset and disables saving. It exists to
// exercise the orchestration end to end in seconds.
package runconfig
