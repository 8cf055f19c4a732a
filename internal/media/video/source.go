package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"cspanlens/internal/services"
)

// commandContext is swapped in tests.
var commandContext = exec.CommandContext

// SourceConfig describes a decode.
type SourceConfig struct {
	FFmpegBinary string
	Path         string
	Width        int
	Height       int
}

// Source yields decoded frames in presentation order.
type Source struct {
	cfg    SourceConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *strings.Builder
	buf    []byte
	frames int

	closeOnce sync.Once
	closeErr  error
}

// OpenSource starts decoding cfg.Path. Width and Height must match the
// stream (use ffprobe first).
func OpenSource(ctx context.Context, cfg SourceConfig) (*Source, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, services.Wrap(services.ErrValidation, "decode", "open", "source path required", nil)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "decode", "open",
			fmt.Sprintf("invalid frame size %dx%d", cfg.Width, cfg.Height), nil)
	}
	binary := cfg.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := commandContext(ctx, binary, decodeArgs(cfg.Path)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode stdout pipe: %w", err)
	}
	stderr := &strings.Builder{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "start ffmpeg", cfg.Path, err)
	}
	return &Source{
		cfg:    cfg,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		buf:    make([]byte, cfg.Width*cfg.Height*3),
	}, nil
}

func decodeArgs(path string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
}

// ReadFrame returns the next frame, or io.EOF once the stream is exhausted.
func (s *Source) ReadFrame() (*image.RGBA, error) {
	img, err := readFrame(s.stdout, s.buf, s.cfg.Width, s.cfg.Height)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, services.Wrap(services.ErrExternalTool, "decode", "read frame",
			fmt.Sprintf("frame %d", s.frames), err)
	}
	s.frames++
	return img, nil
}

// Frames returns how many frames were read.
func (s *Source) Frames() int {
	return s.frames
}

// Close stops the decoder. Exit errors after early termination are ignored.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdout.Close()
		err := s.cmd.Wait()
		if err != nil && s.cmd.ProcessState != nil && !s.cmd.ProcessState.Success() && s.frames == 0 {
			s.closeErr = services.Wrap(services.ErrExternalTool, "decode", "ffmpeg exit",
				strings.TrimSpace(s.stderr.String()), err)
		}
	})
	return s.closeErr
}

// readFrame reads exactly one rgb24 frame into buf and expands it to RGBA.
// A clean end of stream between frames is io.EOF; a torn frame is
// io.ErrUnexpectedEOF.
func readFrame(r io.Reader, buf []byte, width, height int) (*image.RGBA, error) {
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(buf); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
