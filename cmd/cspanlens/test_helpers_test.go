package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cspanlens/internal/config"
	"cspanlens/internal/pipeline"
	"cspanlens/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Pose.Enabled = false
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("OPENROUTER_API_KEY", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// fakeMedia serves solid grey frames and counts what the sink receives.
type fakeMedia struct {
	info     pipeline.SourceInfo
	frames   int
	probeErr error

	mu       sync.Mutex
	written  int
	sinkPath string
	sinkFPS  float64
}

func (m *fakeMedia) Probe(_ context.Context, path string) (pipeline.SourceInfo, error) {
	if m.probeErr != nil {
		return pipeline.SourceInfo{}, m.probeErr
	}
	if _, err := os.Stat(path); err != nil {
		return pipeline.SourceInfo{}, err
	}
	return m.info, nil
}

func (m *fakeMedia) OpenSource(_ context.Context, _ string, info pipeline.SourceInfo) (pipeline.FrameSource, error) {
	return &fakeSource{remaining: m.frames, width: info.Width, height: info.Height}, nil
}

func (m *fakeMedia) CreateSink(_ context.Context, spec pipeline.SinkSpec) (pipeline.FrameSink, error) {
	m.mu.Lock()
	m.sinkPath = spec.Path
	m.sinkFPS = spec.FPS
	m.mu.Unlock()
	return &fakeSink{media: m}, nil
}

type fakeSource struct {
	remaining     int
	width, height int
}

func (s *fakeSource) ReadFrame() (*image.RGBA, error) {
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	s.remaining--
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	return img, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeSink struct {
	media *fakeMedia
}

func (s *fakeSink) WriteFrame(*image.RGBA) error {
	s.media.mu.Lock()
	s.media.written++
	s.media.mu.Unlock()
	return nil
}

func (s *fakeSink) Close() error { return nil }

func useFakeMedia(t *testing.T, media *fakeMedia) {
	t.Helper()
	original := newMedia
	newMedia = func(*config.Config) pipeline.Media { return media }
	t.Cleanup(func() { newMedia = original })
}

var errProbe = errors.New("moov atom not found")
