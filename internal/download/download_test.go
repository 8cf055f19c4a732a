package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"cspanlens/internal/services"
)

func stubYtDlp(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string(nil), args...)
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "YTDLP_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func fixedDownloader(dir string) *Downloader {
	d := New(Config{Dir: dir, Format: "best[ext=mp4]"}, nil)
	d.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	return d
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	if got != "cspan_video_20240305_140709.mp4" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestDownloadSuccess(t *testing.T) {
	dir := t.TempDir()
	args := stubYtDlp(t, "ok")

	path, err := fixedDownloader(dir).Download(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if want := filepath.Join(dir, "cspan_video_20240305_140709.mp4"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if idx := slices.Index(*args, "-f"); idx < 0 || (*args)[idx+1] != "best[ext=mp4]" {
		t.Fatalf("format not passed: %v", *args)
	}
	if (*args)[len(*args)-1] != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("url should be the last argument: %v", *args)
	}
}

func TestDownloadFailure(t *testing.T) {
	stubYtDlp(t, "fail")
	_, err := fixedDownloader(t.TempDir()).Download(context.Background(), "https://example.com/v")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestDownloadNoFile(t *testing.T) {
	stubYtDlp(t, "nofile")
	_, err := fixedDownloader(t.TempDir()).Download(context.Background(), "https://example.com/v")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDownloadRequiresURL(t *testing.T) {
	_, err := fixedDownloader(t.TempDir()).Download(context.Background(), "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	var dest string
	if idx := slices.Index(args, "-o"); idx >= 0 && idx+1 < len(args) {
		dest = args[idx+1]
	}

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "ok":
		for _, p := range []string{"0.0", "12.5", "57.1", "100.0"} {
			fmt.Printf("[download]  %s%% of 10.00MiB at 1.00MiB/s ETA 00:05\n", p)
		}
		_ = os.WriteFile(dest, []byte("fake mp4"), 0o644)
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "ERROR: [youtube] abc: Video unavailable")
		os.Exit(1)
	case "nofile":
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
