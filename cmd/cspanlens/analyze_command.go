package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cspanlens/internal/config"
	"cspanlens/internal/deps"
	"cspanlens/internal/download"
	"cspanlens/internal/language"
	"cspanlens/internal/logging"
	"cspanlens/internal/pipeline"
	"cspanlens/internal/pose"
	"cspanlens/internal/preflight"
	"cspanlens/internal/render"
	"cspanlens/internal/runstore"
	"cspanlens/internal/services"
	"cspanlens/internal/services/llm"
	"cspanlens/internal/services/posewire"
	"cspanlens/internal/services/whisperx"
	"cspanlens/internal/topics"
	"cspanlens/internal/transcript"
)

// newMedia builds the decode/encode backend; tests replace it.
var newMedia = func(cfg *config.Config) pipeline.Media {
	return pipeline.FFmpegMedia{
		FFmpegBinary:  cfg.Video.FFmpegBinary,
		FFprobeBinary: cfg.Video.FFprobeBinary,
		Codec:         cfg.Video.Codec,
		Preset:        cfg.Video.Preset,
		CRF:           cfg.Video.CRF,
		Language:      cfg.Transcription.Language,
	}
}

type analyzeFlags struct {
	video         string
	url           string
	output        string
	frameSkip     int
	keepAudio     bool
	skipPreflight bool
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Annotate a recording with pose, transcript and topic overlays",
		Example: "  cspanlens analyze --video hearing.mp4\n" +
			"  cspanlens analyze --url https://www.c-span.org/video/?123456 --frame-skip 3",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(flags.video) == "" && strings.TrimSpace(flags.url) == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
				return services.Wrap(services.ErrValidation, "analyze", "parse flags", "either --video or --url is required", nil)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("frame-skip") {
				flags.frameSkip = cfg.Pipeline.FrameSkip
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cfg, logger, flags)
		},
	}

	cmd.Flags().StringVar(&flags.video, "video", "", "Path to a local video file")
	cmd.Flags().StringVar(&flags.url, "url", "", "URL of a video to download and analyze")
	cmd.Flags().StringVar(&flags.output, "output", pipeline.DefaultOutput, "Output video path; bare names go to paths.output_dir")
	cmd.Flags().IntVar(&flags.frameSkip, "frame-skip", pipeline.DefaultFrameSkip, "Process every Nth frame")
	cmd.Flags().BoolVar(&flags.keepAudio, "keep-audio", false, "Mux the source audio into the output")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip directory, dependency and LLM checks")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, flags analyzeFlags) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.NewComponentLogger(logger, "analyze")

	opts, err := analyzeOptions(cfg, flags)
	if err != nil {
		return err
	}
	if err = opts.Validate(); err != nil {
		return err
	}

	if !flags.skipPreflight {
		if err = checkReady(ctx, cfg); err != nil {
			return err
		}
	}

	lock, err := runstore.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			logger.Debug("release run lock", logging.Error(rerr))
		}
	}()

	store, err := runstore.Open(cfg.RunDatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	if n, aerr := store.AbortStale(ctx); aerr != nil {
		return aerr
	} else if n > 0 {
		logger.Info("marked interrupted runs as aborted", logging.Int("runs", int(n)))
	}

	run, err := store.Begin(ctx, opts.VideoPath, opts.URL, opts.OutputPath)
	if err != nil {
		return err
	}
	ctx = services.WithRunID(ctx, run.ID)
	logger = logging.WithContext(ctx, logger)
	logger.Info("analysis started",
		logging.String("video", opts.VideoPath),
		logging.String("url", opts.URL),
		logging.String("output", opts.OutputPath),
		logging.Int("frame_skip", opts.FrameSkip))

	var res pipeline.Result
	defer func() {
		finishRun(context.WithoutCancel(ctx), store, run, res, err, logger)
	}()

	if opts.NeedsDownload() {
		downloader := download.New(download.Config{
			Binary:  cfg.Download.YtDlpBinary,
			Format:  cfg.Download.Format,
			Dir:     cfg.Paths.DownloadDir,
			Timeout: time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		}, logger)
		path, derr := downloader.Download(services.WithStage(ctx, "download"), opts.URL)
		if derr != nil {
			err = derr
			return err
		}
		opts.VideoPath = path
		run.InputPath = path
	}

	extractor, closeExtractor := buildExtractor(ctx, cfg, logger)
	defer closeExtractor()

	driver := pipeline.NewDriver(pipeline.Deps{
		Media:       newMedia(cfg),
		Transcriber: transcriberFactory(cfg, logger),
		Extractor:   extractor,
		Renderer:    render.New(render.Options{}, logger),
		Analyzer:    buildAnalyzer(cfg, logger),
		Logger:      logger,
	})

	res, err = driver.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Annotated video written to %s\n", res.Output)
	fmt.Fprintf(out, "Run %s: %d frames read, %d processed, %d context records in %s\n",
		shortID(run.ID), res.FramesRead, res.FramesProcessed, len(res.Contexts), res.Elapsed.Round(time.Millisecond))
	if res.TranscriptDegraded {
		fmt.Fprintln(out, "Speech transcription failed; the speech figures below describe the placeholder transcript.")
	}
	writeReport(out, res.Report)
	return nil
}

func analyzeOptions(cfg *config.Config, flags analyzeFlags) (pipeline.Options, error) {
	opts := pipeline.Options{
		URL:                 strings.TrimSpace(flags.url),
		FrameSkip:           flags.frameSkip,
		SpeechUpdateSeconds: cfg.Pipeline.SpeechUpdateSeconds,
		ProgressBucket:      cfg.Pipeline.ProgressBucketPercent,
		KeepAudio:           cfg.Video.KeepAudio || flags.keepAudio,
	}
	if video := strings.TrimSpace(flags.video); video != "" {
		expanded, err := config.ExpandPath(video)
		if err != nil {
			return opts, err
		}
		opts.VideoPath = expanded
	}
	output, err := cfg.ResolveOutputPath(flags.output)
	if err != nil {
		return opts, err
	}
	opts.OutputPath = output
	return opts, nil
}

// checkReady fails when a required binary is missing or a preflight check
// does not pass.
func checkReady(ctx context.Context, cfg *config.Config) error {
	var problems []string
	for _, status := range deps.Missing(preflight.CheckSystemDeps(cfg)) {
		problems = append(problems, fmt.Sprintf("%s: %s", status.Name, status.Detail))
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "analyze", "preflight", strings.Join(problems, "; "), nil)
}

// buildExtractor starts the pose worker. A worker that fails to start
// leaves the run without skeletons rather than failing it.
func buildExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pose.Extractor, func()) {
	noop := func() {}
	if !cfg.Pose.Enabled {
		return nil, noop
	}
	worker, err := posewire.Start(services.WithStage(ctx, "pose"), posewire.Config{
		Command:                cfg.Pose.Command,
		Args:                   cfg.Pose.Args,
		ModelComplexity:        cfg.Pose.ModelComplexity,
		MinDetectionConfidence: cfg.Pose.MinDetectionConfidence,
		MinTrackingConfidence:  cfg.Pose.MinTrackingConfidence,
		EnableSegmentation:     cfg.Pose.EnableSegmentation,
		StartupTimeout:         time.Duration(cfg.Pose.StartupTimeout) * time.Second,
	}, logger)
	if err != nil {
		logging.WarnWithContext(logger, "pose worker unavailable", "pose_worker_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "frames written without skeletons"),
			logging.String(logging.FieldErrorHint, "check [pose] command and args, or set pose.enabled = false"),
		)
		return nil, noop
	}
	return pose.NewExtractor(worker, logger), func() {
		if cerr := worker.Close(); cerr != nil {
			logger.Debug("pose worker close", logging.Error(cerr))
		}
	}
}

func transcriberFactory(cfg *config.Config, logger *slog.Logger) func(pipeline.SourceInfo) transcript.Transcriber {
	if !cfg.Transcription.Enabled {
		return nil
	}
	service := whisperx.NewService(whisperx.Config{
		Model:       cfg.Transcription.WhisperXModel,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Transcription.HuggingFace,
	}, cfg.Video.FFmpegBinary)

	return func(info pipeline.SourceInfo) transcript.Transcriber {
		lang := language.Resolve(cfg.Transcription.Language, info.AudioTags)
		logger.Debug("transcription language resolved",
			logging.String("configured", cfg.Transcription.Language),
			logging.String("language", lang),
			logging.String(logging.FieldDecisionType, "transcription_language"))
		var t transcript.Transcriber = transcript.NewWhisperX(service, lang)
		if cfg.Transcription.CacheEnabled {
			cache := transcript.NewCache(cfg.TranscriptCacheDir(), logger)
			t = transcript.NewCachedTranscriber(t, cache, service.Model(), lang)
		}
		return t
	}
}

func buildAnalyzer(cfg *config.Config, logger *slog.Logger) *topics.Analyzer {
	opts := topics.Options{
		MinContextChars: cfg.Pipeline.MinContextChars,
		SummaryMinChars: cfg.Pipeline.SummaryMinChars,
	}
	if !cfg.LLM.Enabled {
		return topics.NewAnalyzer(nil, nil, opts, logger)
	}
	llmCfg := cfg.GetLLM()
	if llmCfg.APIKey == "" {
		logging.WarnWithContext(logger, "llm api key missing", "llm_key_missing",
			logging.String(logging.FieldImpact, "context records labelled unknown"),
			logging.String(logging.FieldErrorHint, "set llm.api_key or OPENROUTER_API_KEY"),
		)
		return topics.NewAnalyzer(nil, nil, opts, logger)
	}
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	return topics.NewAnalyzer(topics.NewLLMClassifier(client), client, opts, logger)
}

// finishRun records the outcome of a run, including failed and cancelled
// ones, in the run history.
func finishRun(ctx context.Context, store *runstore.Store, run *runstore.Run, res pipeline.Result, runErr error, logger *slog.Logger) {
	run.Status = services.FailureStatus(runErr)
	run.FramesRead = res.FramesRead
	run.FramesProcessed = res.FramesProcessed
	run.PoseFrames = len(res.PoseRecords)
	run.SpeechSegments = len(res.Segments)
	run.TranscriptDegraded = res.TranscriptDegraded
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if res.FramesRead > 0 {
		if encoded, err := json.Marshal(res.Report); err == nil {
			run.AnalyticsJSON = string(encoded)
		}
	}
	if err := store.Finish(ctx, run, res.Contexts); err != nil {
		logging.ErrorWithContext(logger, "failed to record run", "run_history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
		)
		return
	}
	switch {
	case runErr == nil:
		logger.Info("analysis finished", logging.String("status", run.Status))
	case errors.Is(runErr, context.Canceled):
		logger.Info("analysis cancelled", logging.String("status", run.Status))
	default:
		logger.Info("analysis failed", logging.String("status", run.Status), logging.Error(runErr))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
