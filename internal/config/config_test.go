package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cspanlens/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, ".local", "share", "cspanlens", "output")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "cspanlens") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Pipeline.FrameSkip != 2 {
		t.Fatalf("expected default frame skip 2, got %d", cfg.Pipeline.FrameSkip)
	}
	if cfg.Pipeline.SpeechUpdateSeconds != 3 {
		t.Fatalf("expected speech update every 3s, got %v", cfg.Pipeline.SpeechUpdateSeconds)
	}
	if cfg.Pipeline.MinContextChars != 20 || cfg.Pipeline.SummaryMinChars != 100 {
		t.Fatalf("unexpected context thresholds: %+v", cfg.Pipeline)
	}
	if !cfg.Pose.EnableSegmentation {
		t.Fatal("expected segmentation enabled by default")
	}
	if cfg.Transcription.VADMethod != "silero" {
		t.Fatalf("expected VAD default silero, got %q", cfg.Transcription.VADMethod)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty LLM key, got %q", cfg.LLM.APIKey)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir, cfg.Paths.DownloadDir, cfg.Paths.CacheDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cspanlens.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Pipeline struct {
			FrameSkip           int     `toml:"frame_skip"`
			SpeechUpdateSeconds float64 `toml:"speech_update_seconds"`
		} `toml:"pipeline"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Pipeline.FrameSkip = 5
	custom.Pipeline.SpeechUpdateSeconds = 1.5
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != custom.Paths.OutputDir {
		t.Fatalf("expected output dir override, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Pipeline.FrameSkip != 5 {
		t.Fatalf("expected frame skip 5, got %d", cfg.Pipeline.FrameSkip)
	}
	if cfg.Pipeline.SpeechUpdateSeconds != 1.5 {
		t.Fatalf("expected speech update 1.5, got %v", cfg.Pipeline.SpeechUpdateSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected log format to be lowercased, got %q", cfg.Logging.Format)
	}
}

func TestEnvVarOverridesConfigFileForAPIKeys(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cspanlens.toml")
	content := "[llm]\napi_key = \"file-key\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected env key to win, got %q", cfg.LLM.APIKey)
	}
	if got := cfg.GetLLM().APIKey; got != "env-key" {
		t.Fatalf("GetLLM returned %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"frame skip", func(c *config.Config) { c.Pipeline.FrameSkip = 0 }, "pipeline.frame_skip"},
		{"speech update", func(c *config.Config) { c.Pipeline.SpeechUpdateSeconds = 0 }, "pipeline.speech_update_seconds"},
		{"crf", func(c *config.Config) { c.Video.CRF = 60 }, "video.crf"},
		{"pose confidence", func(c *config.Config) { c.Pose.MinDetectionConfidence = 1.5 }, "pose.min_detection_confidence"},
		{"vad", func(c *config.Config) { c.Transcription.VADMethod = "webrtc" }, "transcription.vad_method"},
		{"pyannote token", func(c *config.Config) {
			c.Transcription.VADMethod = "pyannote"
			c.Transcription.HuggingFace = ""
		}, "transcription.hf_token"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveOutputPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()

	got, err := cfg.ResolveOutputPath("")
	if err != nil {
		t.Fatalf("ResolveOutputPath: %v", err)
	}
	if got != filepath.Join(cfg.Paths.OutputDir, config.DefaultOutputName) {
		t.Fatalf("unexpected default output path %q", got)
	}

	abs := filepath.Join(t.TempDir(), "custom.mp4")
	got, err = cfg.ResolveOutputPath(abs)
	if err != nil {
		t.Fatalf("ResolveOutputPath: %v", err)
	}
	if got != abs {
		t.Fatalf("expected absolute path to be preserved, got %q", got)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Pipeline.FrameSkip != 2 {
		t.Fatalf("unexpected frame skip from sample: %d", cfg.Pipeline.FrameSkip)
	}
}
