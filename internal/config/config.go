package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir   string `toml:"output_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	CacheDir    string `toml:"cache_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Video contains the ffmpeg toolchain used to decode and encode frames.
type Video struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Codec         string `toml:"codec"`
	Preset        string `toml:"preset"`
	CRF           int    `toml:"crf"`
	// KeepAudio muxes the source audio track into the annotated output.
	KeepAudio bool `toml:"keep_audio"`
}

// Pipeline contains frame selection and cadence settings.
type Pipeline struct {
	FrameSkip             int     `toml:"frame_skip"`
	SpeechUpdateSeconds   float64 `toml:"speech_update_seconds"`
	MinContextChars       int     `toml:"min_context_chars"`
	SummaryMinChars       int     `toml:"summary_min_chars"`
	ProgressBucketPercent float64 `toml:"progress_bucket_percent"`
}

// Pose contains settings for the external pose estimation worker.
type Pose struct {
	Enabled                bool     `toml:"enabled"`
	Command                string   `toml:"command"`
	Args                   []string `toml:"args"`
	ModelComplexity        int      `toml:"model_complexity"`
	MinDetectionConfidence float64  `toml:"min_detection_confidence"`
	MinTrackingConfidence  float64  `toml:"min_tracking_confidence"`
	EnableSegmentation     bool     `toml:"enable_segmentation"`
	StartupTimeout         int      `toml:"startup_timeout"`
}

// Transcription contains WhisperX speech-to-text settings.
type Transcription struct {
	Enabled       bool   `toml:"enabled"`
	WhisperXModel string `toml:"whisperx_model"`
	CUDAEnabled   bool   `toml:"cuda_enabled"`
	VADMethod     string `toml:"vad_method"`
	HuggingFace   string `toml:"hf_token"`
	Language      string `toml:"language"`
	CacheEnabled  bool   `toml:"cache_enabled"`
}

// LLM contains the chat-completions endpoint used for topic classification
// and summarization.
type LLM struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Download contains settings for resolving remote video URLs.
type Download struct {
	YtDlpBinary    string `toml:"yt_dlp_binary"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cspanlens.
//
// Configuration sections by subsystem:
//   - Paths: output, logs, run history, caches, downloads
//   - Video: ffmpeg/ffprobe binaries and output encoding
//   - Pipeline: frame skip, speech update cadence, context thresholds
//   - Pose: external pose estimation worker
//   - Transcription: WhisperX speech-to-text
//   - LLM: topic classification and summarization endpoint
//   - Download: yt-dlp settings for --url inputs
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Video         Video         `toml:"video"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Pose          Pose          `toml:"pose"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Download      Download      `toml:"download"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cspanlens.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for an analysis run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir, c.Paths.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Transcription.CacheEnabled && strings.TrimSpace(c.Paths.CacheDir) != "" {
		if err := os.MkdirAll(c.Paths.CacheDir, 0o755); err != nil {
			return fmt.Errorf("create cache directory %q: %w", c.Paths.CacheDir, err)
		}
	}
	return nil
}

// ResolveOutputPath places relative output file names under Paths.OutputDir.
func (c *Config) ResolveOutputPath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultOutputName
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "~") {
		return expandPath(name)
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return filepath.Abs(name)
	}
	return filepath.Join(c.Paths.OutputDir, name), nil
}

// TranscriptCacheDir returns the directory for cached transcription results.
func (c *Config) TranscriptCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "transcripts")
}

// RunDatabasePath returns the sqlite file holding run history.
func (c *Config) RunDatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LockPath returns the lock file that serializes analysis runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "cspanlens.lock")
}

// LogFilePath returns the file that receives a copy of all log output.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "cspanlens.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "cspanlens")
	}
	return defaultCacheDirFallback
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the LLM connection settings in a form service clients consume.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
