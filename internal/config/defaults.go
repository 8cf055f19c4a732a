package config

const (
	defaultConfigPath            = "~/.config/cspanlens/config.toml"
	defaultOutputDir             = "~/.local/share/cspanlens/output"
	defaultLogDir                = "~/.local/share/cspanlens/logs"
	defaultStateDir              = "~/.local/share/cspanlens/state"
	defaultCacheDirFallback      = "~/.cache/cspanlens"
	defaultDownloadDir           = "~/.local/share/cspanlens/downloads"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultVideoCodec            = "libx264"
	defaultVideoPreset           = "veryfast"
	defaultVideoCRF              = 20
	defaultFrameSkip             = 2
	defaultSpeechUpdateSeconds   = 3.0
	defaultMinContextChars       = 20
	defaultSummaryMinChars       = 100
	defaultProgressBucketPercent = 5.0
	defaultPoseCommand           = "uvx"
	defaultPoseModelComplexity   = 2
	defaultPoseConfidence        = 0.7
	defaultPoseStartupTimeout    = 120
	defaultWhisperXModel         = "base"
	defaultVADMethod             = "silero"
	defaultTranscriptLanguage    = "en"
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/cspanlens/cspanlens"
	defaultLLMTitle              = "cspanlens Context Analyzer"
	defaultLLMTimeoutSeconds     = 60
	defaultYtDlpBinary           = "yt-dlp"
	defaultDownloadFormat        = "best[ext=mp4][vcodec!=none][acodec!=none]/best[ext=mp4]"
	defaultDownloadTimeout       = 1800
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"

	// DefaultOutputName is the annotated video file name used when none is given.
	DefaultOutputName = "cspan_analyzed.mp4"
)

var defaultPoseArgs = []string{"--from", "cspanlens-pose", "cspanlens-pose-worker"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			CacheDir:    defaultCacheDir(),
			DownloadDir: defaultDownloadDir,
		},
		Video: Video{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Codec:         defaultVideoCodec,
			Preset:        defaultVideoPreset,
			CRF:           defaultVideoCRF,
		},
		Pipeline: Pipeline{
			FrameSkip:             defaultFrameSkip,
			SpeechUpdateSeconds:   defaultSpeechUpdateSeconds,
			MinContextChars:       defaultMinContextChars,
			SummaryMinChars:       defaultSummaryMinChars,
			ProgressBucketPercent: defaultProgressBucketPercent,
		},
		Pose: Pose{
			Enabled:                true,
			Command:                defaultPoseCommand,
			Args:                   append([]string(nil), defaultPoseArgs...),
			ModelComplexity:        defaultPoseModelComplexity,
			MinDetectionConfidence: defaultPoseConfidence,
			MinTrackingConfidence:  defaultPoseConfidence,
			EnableSegmentation:     true,
			StartupTimeout:         defaultPoseStartupTimeout,
		},
		Transcription: Transcription{
			Enabled:       true,
			WhisperXModel: defaultWhisperXModel,
			VADMethod:     defaultVADMethod,
			Language:      defaultTranscriptLanguage,
			CacheEnabled:  true,
		},
		LLM: LLM{
			Enabled:        true,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Download: Download{
			YtDlpBinary:    defaultYtDlpBinary,
			Format:         defaultDownloadFormat,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
