// Package app contains the core application logic. It wires the registry,
// artifact cache, resolver, run configuration and training loop together
// behind the `train` and `resolve` commands, decoupled from any specific
// entrypoint like a CLI.
package app
