// Package main hosts the cspanlens CLI entrypoint and command graph.
//
// The Cobra-based command tree wires configuration, logging, the run lock and
// run history around the annotation pipeline. "analyze" is the main entry;
// "history", "show" and "doctor" read the run database and environment, and
// "config" scaffolds and validates the TOML configuration.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
