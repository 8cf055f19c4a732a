package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cspanlens/internal/logging"
	"cspanlens/internal/services"
)

var commandContext = exec.CommandContext

// DefaultBinary is used when Config.Binary is empty.
const DefaultBinary = "yt-dlp"

// Config configures the downloader.
type Config struct {
	Binary  string
	Format  string
	Dir     string
	Timeout time.Duration
}

// Downloader fetches remote videos.
type Downloader struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Downloader.
func New(cfg Config, logger *slog.Logger) *Downloader {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	return &Downloader{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "download"),
		now:    time.Now,
	}
}

// FileName returns the local name for a download started at t.
func FileName(t time.Time) string {
	return "cspan_video_" + t.Format("20060102_150405") + ".mp4"
}

var percentPattern = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%`)

// Download fetches rawURL into the configured directory and returns the
// local path.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", services.Wrap(services.ErrValidation, "download", "fetch", "url required", nil)
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "download", "prepare", d.cfg.Dir, err)
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	dest := filepath.Join(d.cfg.Dir, FileName(d.now()))
	cmd := commandContext(ctx, d.cfg.Binary, d.args(rawURL, dest)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	stderr := &strings.Builder{}
	cmd.Stderr = stderr

	d.logger.Info("downloading video", logging.String("url", rawURL), logging.String("dest", dest))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "start yt-dlp", "", err)
	}
	d.followProgress(stdout)

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(dest)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "download", "fetch", rawURL, ctx.Err())
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, lastLine(detail))
		}
		return "", services.Wrap(services.ErrExternalTool, "download", "fetch", rawURL, err)
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrNotFound, "download", "fetch", "yt-dlp produced no file at "+dest, err)
	}
	d.logger.Info("video downloaded",
		logging.String("path", dest),
		logging.Int("bytes", int(info.Size())),
		logging.Duration("elapsed", time.Since(start)))
	return dest, nil
}

func (d *Downloader) args(rawURL, dest string) []string {
	args := []string{"--no-playlist", "--newline", "--no-part", "--merge-output-format", "mp4", "-o", dest}
	if format := strings.TrimSpace(d.cfg.Format); format != "" {
		args = append(args, "-f", format)
	}
	return append(args, rawURL)
}

func (d *Downloader) followProgress(r io.Reader) {
	sampler := logging.NewProgressSampler(10)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := percentPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		percent, err := strconv.ParseFloat(m[1], 64)
		if err != nil || !sampler.ShouldLog(percent, "download") {
			continue
		}
		d.logger.Info("download progress",
			logging.Float64(logging.FieldProgressPercent, percent),
			logging.String(logging.FieldProgressStage, "download"))
	}
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
