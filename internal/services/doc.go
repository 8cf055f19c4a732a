// Package services defines shared utilities consumed by the analysis pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run statuses (failed vs aborted).
//
// Collaborator clients (pose worker, whisperx, llm) live in subpackages and
// report failures through these markers so callers can decide whether a
// failure degrades the run or ends it.
package services
