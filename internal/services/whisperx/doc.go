// Package whisperx transcribes the speech track of a recording with WhisperX.
//
// This package handles:
//   - Audio extraction to mono 16kHz WAV via ffmpeg
//   - WhisperX invocation through uvx
//   - Parsing timed segments from the WhisperX JSON output
//
// Configuration options (model, CUDA, VAD method) are passed via Config.
package whisperx
