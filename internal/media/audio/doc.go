// Package audio picks the audio track that carries the speech of a
// recording.
//
// Hearing recordings often ship several tracks: the floor feed, an
// interpreter feed, sometimes a silent or descriptive track. Select ranks
// them by language match, the container's default flag and a speech-friendly
// channel layout, and reports the winner's position among the audio streams
// so ffmpeg can address it as a:N.
package audio
