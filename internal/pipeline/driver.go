package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"cspanlens/internal/analytics"
	"cspanlens/internal/logging"
	"cspanlens/internal/pose"
	"cspanlens/internal/render"
	"cspanlens/internal/services"
	"cspanlens/internal/topics"
	"cspanlens/internal/transcript"
)

// fallbackFPS is assumed when the container reports no usable frame rate.
const fallbackFPS = 30.0

// State is the lifecycle position of a Driver.
type State int

const (
	StateIdle State = iota
	StateOpened
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// FrameRenderer draws the overlay onto a processed frame in place.
type FrameRenderer interface {
	Render(frame *image.RGBA, result pose.Result, text string, timestamp float64)
}

// Deps are the collaborators of a Driver. Only Media is required.
type Deps struct {
	Media Media
	// Transcriber builds the transcriber for a probed source. Returning nil
	// runs without speech.
	Transcriber func(info SourceInfo) transcript.Transcriber
	Extractor   *pose.Extractor
	Renderer    FrameRenderer
	Analyzer    *topics.Analyzer
	Logger      *slog.Logger
}

// Result summarizes a run. It is filled in as far as the run got, also when
// Run returns an error.
type Result struct {
	Input              string
	Output             string
	Source             SourceInfo
	OutputFPS          float64
	SpeechInterval     int
	FramesRead         int
	FramesProcessed    int
	SpeechUpdates      int
	PoseRecords        []pose.FrameRecord
	PoseFailures       int
	Segments           []transcript.Segment
	TranscriptDegraded bool
	Contexts           []topics.Record
	Report             analytics.Report
	Elapsed            time.Duration
}

// Driver runs the annotation pipeline. A Driver runs one job at a time.
type Driver struct {
	deps   Deps
	logger *slog.Logger

	mu    sync.Mutex
	busy  bool
	state State
}

// NewDriver constructs a Driver. Missing optional collaborators are replaced
// with inert defaults.
func NewDriver(deps Deps) *Driver {
	logger := logging.NewComponentLogger(deps.Logger, "pipeline")
	if deps.Extractor == nil {
		deps.Extractor = pose.NewExtractor(nil, deps.Logger)
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New(render.Options{}, deps.Logger)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = topics.NewAnalyzer(nil, nil, topics.Options{}, deps.Logger)
	}
	return &Driver{deps: deps, logger: logger}
}

// State returns the lifecycle state of the current or last run.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Driver) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return services.Wrap(services.ErrValidation, "pipeline", "run", "a run is already in progress", nil)
	}
	d.busy = true
	d.state = StateIdle
	return nil
}

func (d *Driver) release() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

// SpeechInterval converts the speech update cadence into frames.
func SpeechInterval(fps, seconds float64) int {
	return max(1, int(math.Round(fps*seconds)))
}

// Run processes opts.VideoPath into opts.OutputPath.
func (d *Driver) Run(ctx context.Context, opts Options) (res Result, err error) {
	if d.deps.Media == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "media backend required", nil)
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if opts.NeedsDownload() {
		return Result{}, services.Wrap(services.ErrValidation, "pipeline", "run", "remote input must be downloaded before the run", nil)
	}
	if err := d.acquire(); err != nil {
		return Result{}, err
	}
	defer d.release()
	d.deps.Extractor.Reset()
	d.deps.Analyzer.Reset()

	start := time.Now()
	res = Result{Input: opts.VideoPath, Output: opts.OutputPath}
	defer func() {
		res.PoseFailures = d.deps.Extractor.Failures()
		res.Contexts = d.deps.Analyzer.Records()
		res.Report = analytics.Summarize(res.PoseRecords, res.Segments)
		res.Report.Topics = analytics.TopicDistribution(res.Contexts)
		res.Elapsed = time.Since(start)
	}()

	ctx = services.WithStage(ctx, "probe")
	logger := logging.WithContext(ctx, d.logger)

	info, err := d.deps.Media.Probe(ctx, opts.VideoPath)
	if err != nil {
		return res, services.Wrap(services.ErrExternalTool, "pipeline", "open source", opts.VideoPath, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return res, services.Wrap(services.ErrValidation, "pipeline", "open source",
			fmt.Sprintf("unusable frame size %dx%d", info.Width, info.Height), nil)
	}
	if info.FPS <= 0 || math.IsNaN(info.FPS) || math.IsInf(info.FPS, 0) {
		logging.WarnWithContext(logger, "source reports no frame rate", "source_fps_missing",
			logging.Float64("assumed_fps", fallbackFPS),
			logging.String(logging.FieldImpact, "timestamps and output duration may drift"),
			logging.String(logging.FieldErrorHint, "remux the recording so the container carries a frame rate"),
		)
		info.FPS = fallbackFPS
	}
	res.Source = info
	res.OutputFPS = info.FPS / float64(opts.FrameSkip)
	res.SpeechInterval = SpeechInterval(info.FPS, opts.SpeechUpdateSeconds)

	logger.Info("source probed",
		logging.String("video", opts.VideoPath),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Float64("fps", info.FPS),
		logging.Int("frame_count", info.FrameCount),
		logging.Int("frame_skip", opts.FrameSkip),
		logging.Int("speech_interval_frames", res.SpeechInterval))

	ctx = services.WithStage(ctx, "transcribe")
	var transcriber transcript.Transcriber
	if d.deps.Transcriber != nil {
		transcriber = d.deps.Transcriber(info)
	}
	built := transcript.Build(ctx, transcriber, opts.VideoPath, logging.WithContext(ctx, d.logger))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	index := built.Index
	res.Segments = index.Segments()
	res.TranscriptDegraded = built.Degraded

	ctx = services.WithStage(ctx, "annotate")
	logger = logging.WithContext(ctx, d.logger)

	src, err := d.deps.Media.OpenSource(ctx, opts.VideoPath, info)
	if err != nil {
		return res, services.Wrap(services.ErrExternalTool, "pipeline", "open source", opts.VideoPath, err)
	}
	defer func() {
		cerr := src.Close()
		if cerr == nil || ctx.Err() != nil {
			return
		}
		if err == nil {
			err = services.Wrap(services.ErrExternalTool, "pipeline", "decode", opts.VideoPath, cerr)
			return
		}
		logger.Debug("source close reported error", logging.Error(cerr))
	}()

	spec := SinkSpec{Path: opts.OutputPath, Width: info.Width, Height: info.Height, FPS: res.OutputFPS}
	if opts.KeepAudio && info.HasAudio {
		spec.AudioSource = opts.VideoPath
		spec.AudioTrack = info.AudioTrack
	}
	sink, err := d.deps.Media.CreateSink(ctx, spec)
	if err != nil {
		return res, services.Wrap(services.ErrExternalTool, "pipeline", "open sink", opts.OutputPath, err)
	}
	sinkClosed := false
	defer func() {
		if sinkClosed {
			return
		}
		if cerr := sink.Close(); cerr != nil {
			logger.Debug("sink close after failure reported error", logging.Error(cerr))
		}
	}()
	d.setState(StateOpened)
	defer d.setState(StateClosed)

	if err := d.loop(ctx, logger, opts, index, src, sink, &res); err != nil {
		return res, err
	}

	sinkClosed = true
	if err := sink.Close(); err != nil {
		return res, services.Wrap(services.ErrExternalTool, "pipeline", "finalize output", opts.OutputPath, err)
	}

	logger.Info("annotation complete",
		logging.String("output", opts.OutputPath),
		logging.Int("frames_read", res.FramesRead),
		logging.Int("frames_processed", res.FramesProcessed),
		logging.Int("pose_frames", len(res.PoseRecords)),
		logging.Int("speech_updates", res.SpeechUpdates),
		logging.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (d *Driver) loop(ctx context.Context, logger *slog.Logger, opts Options, index *transcript.Index, src FrameSource, sink FrameSink, res *Result) error {
	sampler := logging.NewProgressSampler(opts.ProgressBucket)
	fps := res.Source.FPS
	lastUpdate := -1
	text := ""

	for frameIndex := 0; ; frameIndex++ {
		if err := ctx.Err(); err != nil {
			logger.Info("annotation cancelled",
				logging.Int("frames_read", res.FramesRead),
				logging.Int("frames_processed", res.FramesProcessed))
			return err
		}
		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			if res.FramesRead == 0 {
				return services.Wrap(services.ErrExternalTool, "pipeline", "decode",
					"no frames decoded from "+opts.VideoPath, src.Close())
			}
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "pipeline", "decode", fmt.Sprintf("frame %d", frameIndex), err)
		}
		res.FramesRead++
		d.logProgress(logger, sampler, res)

		if frameIndex%opts.FrameSkip != 0 {
			continue
		}
		timestamp := float64(frameIndex) / fps

		estimate := d.deps.Extractor.Extract(ctx, frame)
		if estimate.Detected() {
			res.PoseRecords = append(res.PoseRecords, pose.FrameRecord{
				FrameIndex: frameIndex,
				Timestamp:  timestamp,
				Landmarks:  estimate.Landmarks,
			})
		}

		if lastUpdate < 0 || frameIndex-lastUpdate >= res.SpeechInterval {
			lastUpdate = frameIndex
			text = index.Lookup(timestamp)
			res.SpeechUpdates++
			if d.deps.Analyzer.ShouldAnalyze(text) {
				d.deps.Analyzer.Analyze(ctx, text, timestamp)
			}
		}

		d.deps.Renderer.Render(frame, estimate, text, timestamp)
		if err := sink.WriteFrame(frame); err != nil {
			return services.Wrap(services.ErrExternalTool, "pipeline", "encode", fmt.Sprintf("frame %d", frameIndex), err)
		}
		res.FramesProcessed++
	}
}

func (d *Driver) logProgress(logger *slog.Logger, sampler *logging.ProgressSampler, res *Result) {
	total := res.Source.FrameCount
	if total <= 0 {
		return
	}
	percent := math.Min(100, float64(res.FramesRead)/float64(total)*100)
	if !sampler.ShouldLog(percent, "annotate") {
		return
	}
	logger.Info("annotation progress",
		logging.Float64(logging.FieldProgressPercent, math.Round(percent*10)/10),
		logging.String(logging.FieldProgressStage, "annotate"),
		logging.Int("frame", res.FramesRead),
		logging.Int("total_frames", total),
		logging.Int("pose_frames", len(res.PoseRecords)))
}
