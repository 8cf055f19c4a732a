// Package config loads, normalizes, and validates cspanlens configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and HF_TOKEN. The Config type centralizes every knob the
// analysis pipeline and CLI need: output/state directories, the ffmpeg
// toolchain, the pose worker command, transcription and LLM settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
