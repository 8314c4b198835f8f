// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates the train and resolve subcommands into the application's
// internal configuration.
//
// Training flags may also come from an HCL run file named by --config.
// Flags given explicitly on the command line override the file.
package cli
