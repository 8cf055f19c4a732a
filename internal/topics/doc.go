// Package topics classifies stretches of speech into a fixed set of
// political topics and attaches a short summary.
//
// The Analyzer never fails a run. A classifier error produces a record
// labelled "unknown" that is returned to the caller but not kept in the
// history; a summarizer error falls back to the first hundred characters of
// the text.
package topics
