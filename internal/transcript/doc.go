// Package transcript holds the timed speech segments of a recording and
// answers "what was being said at time t".
//
// Build runs a Transcriber once per analysis run. A failing transcriber never
// aborts the run: the index is seeded with a single sentinel segment that
// covers the whole recording and announces the failure on screen. Cache and
// CachedTranscriber keep WhisperX output on disk keyed by a content
// fingerprint so repeated runs over the same recording skip transcription.
package transcript
