package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"math"
	"strings"
	"testing"

	"cspanlens/internal/pose"
	"cspanlens/internal/services"
	"cspanlens/internal/topics"
	"cspanlens/internal/transcript"
)

type fakeSource struct {
	total    int
	read     int
	closed   bool
	closeErr error
	failAt   int
	onFrame  func(i int)
}

func (s *fakeSource) ReadFrame() (*image.RGBA, error) {
	if s.failAt > 0 && s.read == s.failAt {
		return nil, errors.New("corrupt packet")
	}
	if s.read >= s.total {
		return nil, io.EOF
	}
	if s.onFrame != nil {
		s.onFrame(s.read)
	}
	s.read++
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return s.closeErr
}

type fakeSink struct {
	spec   SinkSpec
	frames int
	closed int
}

func (s *fakeSink) WriteFrame(*image.RGBA) error {
	s.frames++
	return nil
}

func (s *fakeSink) Close() error {
	s.closed++
	return nil
}

type fakeMedia struct {
	info     SourceInfo
	probeErr error
	sinkErr  error
	source   *fakeSource
	sink     *fakeSink
	onProbe  func()
}

func (m *fakeMedia) Probe(context.Context, string) (SourceInfo, error) {
	if m.onProbe != nil {
		m.onProbe()
	}
	return m.info, m.probeErr
}

func (m *fakeMedia) OpenSource(context.Context, string, SourceInfo) (FrameSource, error) {
	return m.source, nil
}

func (m *fakeMedia) CreateSink(_ context.Context, spec SinkSpec) (FrameSink, error) {
	if m.sinkErr != nil {
		return nil, m.sinkErr
	}
	m.sink.spec = spec
	return m.sink, nil
}

type poseEverywhere struct{}

func (poseEverywhere) Estimate(context.Context, pose.RGBFrame) (pose.Estimation, error) {
	return pose.Estimation{Landmarks: make([]pose.Landmark, pose.NumLandmarks)}, nil
}

type recordingClassifier struct {
	texts []string
}

func (c *recordingClassifier) Classify(_ context.Context, text string, _ []string) (topics.Topics, error) {
	c.texts = append(c.texts, text)
	return topics.Topics{Labels: []string{"budget"}, Scores: []float64{1}}, nil
}

type renderCall struct {
	frame int
	text  string
}

// recordingRenderer remembers which frame got which speech text.
type recordingRenderer struct {
	fps   float64
	calls []renderCall
}

func (r *recordingRenderer) Render(_ *image.RGBA, _ pose.Result, text string, timestamp float64) {
	r.calls = append(r.calls, renderCall{frame: int(math.Round(timestamp * r.fps)), text: text})
}

const floorSpeech = "The gentleman from Ohio is recognized for five minutes."

func newMedia(frames int, fps float64) *fakeMedia {
	return &fakeMedia{
		info:   SourceInfo{Width: 64, Height: 48, FPS: fps, FrameCount: frames, HasAudio: true},
		source: &fakeSource{total: frames},
		sink:   &fakeSink{},
	}
}

func newDriver(media Media, cls topics.Classifier, tr transcript.Transcriber) *Driver {
	return NewDriver(Deps{
		Media:       media,
		Transcriber: func(SourceInfo) transcript.Transcriber { return tr },
		Extractor:   pose.NewExtractor(poseEverywhere{}, nil),
		Analyzer:    topics.NewAnalyzer(cls, nil, topics.Options{}, nil),
	})
}

func baseOptions() Options {
	return Options{
		VideoPath:           "/videos/floor.mp4",
		OutputPath:          "/tmp/out.mp4",
		FrameSkip:           2,
		SpeechUpdateSeconds: 3,
	}
}

func speech(segments ...transcript.Segment) transcript.Transcriber {
	return transcript.TranscriberFunc(func(context.Context, string) ([]transcript.Segment, error) {
		return segments, nil
	})
}

func TestRunProcessesEveryNthFrame(t *testing.T) {
	media := newMedia(200, 30)
	cls := &recordingClassifier{}
	d := newDriver(media, cls, speech(transcript.Segment{Start: 0, End: 100, Text: floorSpeech}))

	res, err := d.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.FramesRead != 200 || res.FramesProcessed != 100 || media.sink.frames != 100 {
		t.Fatalf("read=%d processed=%d written=%d", res.FramesRead, res.FramesProcessed, media.sink.frames)
	}
	if media.sink.spec.FPS != 15 {
		t.Fatalf("output fps = %v, want 15", media.sink.spec.FPS)
	}
	if media.sink.spec.AudioSource != "" {
		t.Fatal("audio should only be muxed when requested")
	}
	if len(res.PoseRecords) != 100 || res.PoseRecords[1].FrameIndex != 2 {
		t.Fatalf("unexpected pose records: %d", len(res.PoseRecords))
	}
	if !media.source.closed || media.sink.closed != 1 {
		t.Fatalf("source closed=%v sink closes=%d", media.source.closed, media.sink.closed)
	}
	if d.State() != StateClosed {
		t.Fatalf("state = %v", d.State())
	}
}

func TestRunSpeechCadence(t *testing.T) {
	media := newMedia(200, 30)
	cls := &recordingClassifier{}
	d := newDriver(media, cls, speech(transcript.Segment{Start: 0, End: 100, Text: floorSpeech}))

	res, err := d.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.SpeechInterval != 90 {
		t.Fatalf("interval = %d, want 90", res.SpeechInterval)
	}
	// Updates at frames 0, 90 and 180.
	if res.SpeechUpdates != 3 || len(cls.texts) != 3 {
		t.Fatalf("updates=%d analyses=%d", res.SpeechUpdates, len(cls.texts))
	}
	if len(res.Contexts) != 3 {
		t.Fatalf("contexts = %d", len(res.Contexts))
	}
	for i, want := range []float64{0, 3, 6} {
		if res.Contexts[i].Timestamp != want {
			t.Fatalf("context %d timestamp = %v, want %v", i, res.Contexts[i].Timestamp, want)
		}
	}
	if !res.Report.Available || res.Report.FramesAnalyzed != 100 {
		t.Fatalf("report = %+v", res.Report)
	}
	if len(res.Report.Topics) != 1 || res.Report.Topics[0].Label != "budget" {
		t.Fatalf("topic distribution = %+v", res.Report.Topics)
	}
}

func TestRunSkipsShortSpeech(t *testing.T) {
	media := newMedia(100, 30)
	cls := &recordingClassifier{}
	d := newDriver(media, cls, speech(transcript.Segment{Start: 0, End: 100, Text: "I yield back."}))

	res, err := d.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.SpeechUpdates != 2 || len(cls.texts) != 0 {
		t.Fatalf("updates=%d analyses=%d", res.SpeechUpdates, len(cls.texts))
	}
}

func TestRunTranscriptionFailureUsesSentinel(t *testing.T) {
	media := newMedia(10, 30)
	cls := &recordingClassifier{}
	failing := transcript.TranscriberFunc(func(context.Context, string) ([]transcript.Segment, error) {
		return nil, errors.New("whisperx exited 1")
	})
	d := newDriver(media, cls, failing)

	res, err := d.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatalf("transcription failure must not fail the run: %v", err)
	}
	if !res.TranscriptDegraded {
		t.Fatal("expected degraded transcript")
	}
	if len(cls.texts) != 1 || cls.texts[0] != transcript.FailureText {
		t.Fatalf("analyzer saw %q", cls.texts)
	}
}

func TestRunKeepAudio(t *testing.T) {
	media := newMedia(4, 30)
	opts := baseOptions()
	opts.KeepAudio = true
	media.info.AudioTrack = 1
	if _, err := newDriver(media, nil, nil).Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if media.sink.spec.AudioSource != opts.VideoPath {
		t.Fatalf("audio source = %q", media.sink.spec.AudioSource)
	}
	if media.sink.spec.AudioTrack != 1 {
		t.Fatalf("audio track = %d", media.sink.spec.AudioTrack)
	}
}

func TestRunProbeFailure(t *testing.T) {
	media := newMedia(10, 30)
	media.probeErr = errors.New("moov atom not found")
	_, err := newDriver(media, nil, nil).Run(context.Background(), baseOptions())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestRunSinkFailureClosesSource(t *testing.T) {
	media := newMedia(10, 30)
	media.sinkErr = errors.New("permission denied")
	d := newDriver(media, nil, nil)
	_, err := d.Run(context.Background(), baseOptions())
	if err == nil || !strings.Contains(err.Error(), "open sink") {
		t.Fatalf("expected sink error, got %v", err)
	}
	if !media.source.closed {
		t.Fatal("source must be closed when the sink fails to open")
	}
}

func TestRunDecodeFailure(t *testing.T) {
	media := newMedia(10, 30)
	media.source.failAt = 5
	res, err := newDriver(media, nil, nil).Run(context.Background(), baseOptions())
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
	if res.FramesRead != 5 || media.sink.closed != 1 || !media.source.closed {
		t.Fatalf("read=%d sink closes=%d source closed=%v", res.FramesRead, media.sink.closed, media.source.closed)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	media := newMedia(100, 30)
	media.source.onFrame = func(i int) {
		if i == 9 {
			cancel()
		}
	}
	d := newDriver(media, nil, nil)
	res, err := d.Run(ctx, baseOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if services.FailureStatus(err) != services.StatusAborted {
		t.Fatal("cancelled runs are recorded as aborted")
	}
	if res.FramesRead != 10 {
		t.Fatalf("frames read = %d", res.FramesRead)
	}
	if !media.source.closed || media.sink.closed != 1 {
		t.Fatal("source and sink must be released on cancellation")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	media := newMedia(2, 30)
	d := newDriver(media, nil, nil)
	var nested error
	media.onProbe = func() {
		_, nested = d.Run(context.Background(), baseOptions())
	}
	if _, err := d.Run(context.Background(), baseOptions()); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nested, services.ErrValidation) {
		t.Fatalf("nested run should be rejected, got %v", nested)
	}
}

func TestRunMissingFrameRateFallsBack(t *testing.T) {
	media := newMedia(4, 0)
	res, err := newDriver(media, nil, nil).Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Source.FPS != fallbackFPS || media.sink.spec.FPS != fallbackFPS/2 {
		t.Fatalf("fps = %v / %v", res.Source.FPS, media.sink.spec.FPS)
	}
}

func TestSpeechInterval(t *testing.T) {
	tests := []struct {
		fps, seconds float64
		want         int
	}{
		{30, 3, 90},
		{29.97, 3, 90},
		{25, 3, 75},
		{59.94, 3, 180},
		{0.1, 3, 1},
	}
	for _, tt := range tests {
		if got := SpeechInterval(tt.fps, tt.seconds); got != tt.want {
			t.Errorf("SpeechInterval(%v, %v) = %d, want %d", tt.fps, tt.seconds, got, tt.want)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"valid", func(*Options) {}, ""},
		{"url only", func(o *Options) { o.VideoPath = ""; o.URL = "https://www.youtube.com/watch?v=abc" }, ""},
		{"no input", func(o *Options) { o.VideoPath = "" }, "either a local video path or a URL"},
		{"bad url", func(o *Options) { o.VideoPath = ""; o.URL = "not a url" }, "not a valid URL"},
		{"zero skip", func(o *Options) { o.FrameSkip = 0 }, "FrameSkip"},
		{"no output", func(o *Options) { o.OutputPath = "" }, "OutputPath is required"},
		{"zero cadence", func(o *Options) { o.SpeechUpdateSeconds = 0 }, "SpeechUpdateSeconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunRequiresDownloadedInput(t *testing.T) {
	opts := baseOptions()
	opts.VideoPath = ""
	opts.URL = "https://www.c-span.org/video/?123"
	_, err := newDriver(newMedia(1, 30), nil, nil).Run(context.Background(), opts)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunFrameSkip(t *testing.T) {
	tests := []struct {
		skip       int
		wantFrames []int
	}{
		{1, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{3, []int{0, 3, 6, 9}},
	}
	for _, tt := range tests {
		media := newMedia(10, 30)
		rec := &recordingRenderer{fps: 30}
		d := NewDriver(Deps{Media: media, Renderer: rec})
		opts := baseOptions()
		opts.FrameSkip = tt.skip

		res, err := d.Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("skip %d: %v", tt.skip, err)
		}
		if res.FramesRead != 10 {
			t.Fatalf("skip %d: frames read = %d, want 10", tt.skip, res.FramesRead)
		}
		if res.FramesProcessed != len(tt.wantFrames) || media.sink.frames != len(tt.wantFrames) {
			t.Fatalf("skip %d: processed=%d written=%d", tt.skip, res.FramesProcessed, media.sink.frames)
		}
		for i, want := range tt.wantFrames {
			if rec.calls[i].frame != want {
				t.Fatalf("skip %d: render %d at frame %d, want %d", tt.skip, i, rec.calls[i].frame, want)
			}
		}
		if media.sink.spec.FPS != 30/float64(tt.skip) {
			t.Fatalf("skip %d: output fps = %v", tt.skip, media.sink.spec.FPS)
		}
	}
}

func TestRunSpeechTextFollowsTranscript(t *testing.T) {
	media := newMedia(450, 30)
	rec := &recordingRenderer{fps: 30}
	d := NewDriver(Deps{
		Media: media,
		Transcriber: func(SourceInfo) transcript.Transcriber {
			return speech(
				transcript.Segment{Start: 0, End: 5, Text: "A"},
				transcript.Segment{Start: 5, End: 10, Text: "B"},
				transcript.Segment{Start: 10, End: 15, Text: "C"},
			)
		},
		Renderer: rec,
	})
	opts := baseOptions()
	opts.FrameSkip = 1

	res, err := d.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	// Updates land on frames 0, 90, 180, 270 and 360.
	if res.SpeechUpdates != 5 {
		t.Fatalf("speech updates = %d, want 5", res.SpeechUpdates)
	}
	if len(rec.calls) != 450 {
		t.Fatalf("rendered %d frames, want 450", len(rec.calls))
	}
	for _, tt := range []struct {
		frame int
		want  string
	}{
		{0, "A"}, {60, "A"}, {179, "A"}, {180, "B"}, {210, "B"}, {359, "B"}, {360, "C"}, {449, "C"},
	} {
		if got := rec.calls[tt.frame]; got.frame != tt.frame || got.text != tt.want {
			t.Fatalf("frame %d shows %q (recorded frame %d), want %q", tt.frame, got.text, got.frame, tt.want)
		}
	}
}

func TestRunUndecodableSourceFails(t *testing.T) {
	media := newMedia(0, 30)
	media.source.closeErr = errors.New("Invalid data found when processing input")
	res, err := newDriver(media, nil, nil).Run(context.Background(), baseOptions())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "decode") || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("error should carry the decoder failure: %v", err)
	}
	if services.FailureStatus(err) != services.StatusFailed {
		t.Fatal("undecodable input must be recorded as failed")
	}
	if res.FramesRead != 0 || media.sink.closed != 1 || !media.source.closed {
		t.Fatalf("read=%d sink closes=%d source closed=%v", res.FramesRead, media.sink.closed, media.source.closed)
	}
}

func TestRunEmptySourceFails(t *testing.T) {
	media := newMedia(0, 30)
	_, err := newDriver(media, nil, nil).Run(context.Background(), baseOptions())
	if err == nil || !strings.Contains(err.Error(), "no frames decoded") {
		t.Fatalf("expected no-frames error, got %v", err)
	}
}

func TestRunSourceCloseErrorFailsRun(t *testing.T) {
	media := newMedia(6, 30)
	media.source.closeErr = errors.New("decoder exited 183")
	_, err := newDriver(media, nil, nil).Run(context.Background(), baseOptions())
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "decoder exited 183") {
		t.Fatalf("expected decoder exit error, got %v", err)
	}
}

func TestRunResetsStateBetweenRuns(t *testing.T) {
	media := newMedia(200, 30)
	cls := &recordingClassifier{}
	failing := &flakyEstimator{}
	d := NewDriver(Deps{
		Media:       media,
		Transcriber: func(SourceInfo) transcript.Transcriber { return speech(transcript.Segment{Start: 0, End: 100, Text: floorSpeech}) },
		Extractor:   pose.NewExtractor(failing, nil),
		Analyzer:    topics.NewAnalyzer(cls, nil, topics.Options{}, nil),
	})

	for run := 1; run <= 2; run++ {
		media.source = &fakeSource{total: 200}
		media.sink = &fakeSink{}
		res, err := d.Run(context.Background(), baseOptions())
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if len(res.Contexts) != 3 {
			t.Fatalf("run %d: contexts = %d, want 3", run, len(res.Contexts))
		}
		if len(res.Report.Topics) != 1 || res.Report.Topics[0].Count != 3 {
			t.Fatalf("run %d: topic distribution = %+v", run, res.Report.Topics)
		}
		if res.PoseFailures != 100 {
			t.Fatalf("run %d: pose failures = %d, want 100", run, res.PoseFailures)
		}
	}
}

type flakyEstimator struct{}

func (flakyEstimator) Estimate(context.Context, pose.RGBFrame) (pose.Estimation, error) {
	return pose.Estimation{}, errors.New("worker timed out")
}
