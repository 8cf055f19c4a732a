package video

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"cspanlens/internal/services"
)

// SinkConfig describes an encode.
type SinkConfig struct {
	FFmpegBinary string
	Path         string
	Width        int
	Height       int
	FPS          float64
	Codec        string
	Preset       string
	CRF          int
	// AudioSource, when set, is muxed in as the output's audio track.
	AudioSource string
	// AudioTrack selects the audio stream of AudioSource, counted among its
	// audio streams.
	AudioTrack int
}

// Sink encodes frames written to it.
type Sink struct {
	cfg    SinkConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *strings.Builder
	buf    []byte
	frames int

	closeOnce sync.Once
	closeErr  error
}

// CreateSink starts an encoder writing to cfg.Path, overwriting any existing file.
func CreateSink(ctx context.Context, cfg SinkConfig) (*Sink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, services.Wrap(services.ErrValidation, "encode", "open", "output path required", nil)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, services.Wrap(services.ErrValidation, "encode", "open",
			fmt.Sprintf("invalid output geometry %dx%d@%v", cfg.Width, cfg.Height, cfg.FPS), nil)
	}
	binary := cfg.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := commandContext(ctx, binary, encodeArgs(cfg)...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encode stdin pipe: %w", err)
	}
	stderr := &strings.Builder{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "encode", "start ffmpeg", cfg.Path, err)
	}
	return &Sink{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		buf:    make([]byte, cfg.Width*cfg.Height*3),
	}, nil
}

func encodeArgs(cfg SinkConfig) []string {
	codec := cfg.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-r", strconv.FormatFloat(cfg.FPS, 'f', -1, 64),
		"-i", "pipe:0",
	}
	if cfg.AudioSource != "" {
		args = append(args, "-i", cfg.AudioSource, "-map", "0:v:0", "-map", fmt.Sprintf("1:a:%d?", max(0, cfg.AudioTrack)), "-c:a", "aac", "-shortest")
	}
	args = append(args, "-c:v", codec)
	if cfg.Preset != "" {
		args = append(args, "-preset", cfg.Preset)
	}
	if cfg.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(cfg.CRF))
	}
	args = append(args, "-pix_fmt", "yuv420p", "-movflags", "+faststart", cfg.Path)
	return args
}

// WriteFrame encodes one frame. The frame must match the sink's geometry.
func (s *Sink) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != s.cfg.Width || b.Dy() != s.cfg.Height {
		return services.Wrap(services.ErrValidation, "encode", "write frame",
			fmt.Sprintf("frame %dx%d does not match sink %dx%d", b.Dx(), b.Dy(), s.cfg.Width, s.cfg.Height), nil)
	}
	packRGB(img, s.buf)
	if _, err := s.stdin.Write(s.buf); err != nil {
		return services.Wrap(services.ErrExternalTool, "encode", "write frame",
			strings.TrimSpace(s.stderr.String()), err)
	}
	s.frames++
	return nil
}

// Frames returns how many frames were written.
func (s *Sink) Frames() int {
	return s.frames
}

// Close flushes the encoder and waits for the output file to be finalized.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stdin.Close(); err != nil {
			s.closeErr = fmt.Errorf("close encoder input: %w", err)
		}
		if err := s.cmd.Wait(); err != nil {
			s.closeErr = services.Wrap(services.ErrExternalTool, "encode", "ffmpeg exit",
				strings.TrimSpace(s.stderr.String()), err)
		}
	})
	return s.closeErr
}

func packRGB(img *image.RGBA, dst []byte) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[off : off+w*4]
		out := dst[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			out[x*3] = row[x*4]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+2]
		}
	}
}
