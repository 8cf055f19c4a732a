// Package logging assembles structured slog loggers and formatting helpers used
// across cspanlens.
//
// It owns the console and JSON handlers, tees output to the run log file, and
// exposes context-aware helpers so pipeline code can tag log lines with run
// IDs and stage names. ProgressSampler keeps frame-progress logging readable
// on long recordings.
package logging
