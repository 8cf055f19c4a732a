package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validatePose(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return errors.New("video.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.frame_skip":        c.Pipeline.FrameSkip,
		"pipeline.min_context_chars": c.Pipeline.MinContextChars,
		"pipeline.summary_min_chars": c.Pipeline.SummaryMinChars,
	}); err != nil {
		return err
	}
	if c.Pipeline.SpeechUpdateSeconds <= 0 {
		return errors.New("pipeline.speech_update_seconds must be positive")
	}
	if c.Pipeline.ProgressBucketPercent <= 0 || c.Pipeline.ProgressBucketPercent > 100 {
		return errors.New("pipeline.progress_bucket_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validatePose() error {
	if !c.Pose.Enabled {
		return nil
	}
	if c.Pose.ModelComplexity < 0 || c.Pose.ModelComplexity > 2 {
		return errors.New("pose.model_complexity must be 0, 1, or 2")
	}
	if c.Pose.MinDetectionConfidence < 0 || c.Pose.MinDetectionConfidence > 1 {
		return errors.New("pose.min_detection_confidence must be between 0 and 1")
	}
	if c.Pose.MinTrackingConfidence < 0 || c.Pose.MinTrackingConfidence > 1 {
		return errors.New("pose.min_tracking_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method: unsupported value %q (use silero or pyannote)", c.Transcription.VADMethod)
	}
	if c.Transcription.VADMethod == "pyannote" && c.Transcription.HuggingFace == "" {
		return errors.New("transcription.hf_token must be set when transcription.vad_method is pyannote (or set HF_TOKEN)")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
