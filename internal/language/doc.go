// Package language normalizes the language hints handed to the speech
// transcriber: config values ("en", "eng", "english") and ffprobe stream
// tags are reduced to the ISO 639-1 codes WhisperX accepts.
package language
