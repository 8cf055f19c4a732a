package pipeline

import (
	"context"
	"image"

	"cspanlens/internal/media/audio"
	"cspanlens/internal/media/ffprobe"
	"cspanlens/internal/media/video"
	"cspanlens/internal/services"
)

// SourceInfo describes the probed input.
type SourceInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	Duration   float64
	HasAudio   bool
	// AudioTrack is the position of the speech track among the audio streams.
	AudioTrack int
	// AudioTags are the metadata tags of the speech track.
	AudioTags map[string]string
}

// FrameSource yields decoded frames; ReadFrame returns io.EOF when done.
// Close may be called more than once and returns the same result each time.
type FrameSource interface {
	ReadFrame() (*image.RGBA, error)
	Close() error
}

// FrameSink accepts annotated frames.
type FrameSink interface {
	WriteFrame(*image.RGBA) error
	Close() error
}

// SinkSpec describes the output encode.
type SinkSpec struct {
	Path   string
	Width  int
	Height int
	FPS    float64
	// AudioSource is muxed in as the audio track when set.
	AudioSource string
	AudioTrack  int
}

// Media opens decoders and encoders.
type Media interface {
	Probe(ctx context.Context, path string) (SourceInfo, error)
	OpenSource(ctx context.Context, path string, info SourceInfo) (FrameSource, error)
	CreateSink(ctx context.Context, spec SinkSpec) (FrameSink, error)
}

// FFmpegMedia implements Media with ffprobe and ffmpeg subprocesses.
type FFmpegMedia struct {
	FFmpegBinary  string
	FFprobeBinary string
	Codec         string
	Preset        string
	CRF           int
	// Language ranks audio tracks when a recording carries several.
	Language string
}

// Probe inspects path and extracts the geometry and timing of its first
// video stream.
func (m FFmpegMedia) Probe(ctx context.Context, path string) (SourceInfo, error) {
	result, err := ffprobe.Inspect(ctx, m.FFprobeBinary, path)
	if err != nil {
		return SourceInfo{}, err
	}
	stream, ok := result.VideoStream()
	if !ok {
		return SourceInfo{}, services.Wrap(services.ErrValidation, "probe", "video stream", path+" has no video stream", nil)
	}
	duration := result.DurationSeconds()
	info := SourceInfo{
		Width:      stream.Width,
		Height:     stream.Height,
		FPS:        stream.FrameRate(),
		FrameCount: stream.FrameCount(duration),
		Duration:   duration,
	}
	if track := audio.Select(result.Streams, m.Language); track.Found() {
		info.HasAudio = true
		info.AudioTrack = track.Track
		info.AudioTags = track.Stream.Tags
	}
	return info, nil
}

// OpenSource starts the decoder.
func (m FFmpegMedia) OpenSource(ctx context.Context, path string, info SourceInfo) (FrameSource, error) {
	return video.OpenSource(ctx, video.SourceConfig{
		FFmpegBinary: m.FFmpegBinary,
		Path:         path,
		Width:        info.Width,
		Height:       info.Height,
	})
}

// CreateSink starts the encoder.
func (m FFmpegMedia) CreateSink(ctx context.Context, spec SinkSpec) (FrameSink, error) {
	return video.CreateSink(ctx, video.SinkConfig{
		FFmpegBinary: m.FFmpegBinary,
		Path:         spec.Path,
		Width:        spec.Width,
		Height:       spec.Height,
		FPS:          spec.FPS,
		Codec:        m.Codec,
		Preset:       m.Preset,
		CRF:          m.CRF,
		AudioSource:  spec.AudioSource,
		AudioTrack:   spec.AudioTrack,
	})
}

var _ Media = FFmpegMedia{}
