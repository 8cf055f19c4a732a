// Package pipeline drives one annotation run: probe the recording, build the
// transcript index, decode frames, estimate poses on every Nth frame,
// refresh the on-screen speech every few seconds, render the overlay and
// encode the result.
//
// The Driver is sequential. Collaborator failures (pose, transcription,
// classification) degrade the output and are logged; only failing to open
// the source or sink, a broken decode or encode, or cancellation end a run
// early. Source and sink are closed on every exit path.
package pipeline
