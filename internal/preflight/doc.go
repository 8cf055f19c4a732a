// Package preflight provides readiness checks for the external binaries,
// services, and filesystem paths cspanlens depends on.
//
// The analyze command calls RunAll before opening the video so a run with an
// unwritable output directory or a bad LLM key fails in seconds rather than
// after the transcription step. "cspanlens doctor" prints the same results
// alongside CheckSystemDeps.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
