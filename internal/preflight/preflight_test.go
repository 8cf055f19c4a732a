package preflight

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cspanlens/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a one byte floor, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, math.MaxUint64); result.Passed {
		t.Fatal("expected failure with an impossible floor")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{})
	if result.Passed {
		t.Fatal("expected failure without api key")
	}
	if !strings.Contains(result.Detail, "API key missing") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func llmServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		payload := map[string]any{"choices": []any{
			map[string]any{"message": map[string]any{"content": `{"ok":true}`}},
		}}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM_Reachable(t *testing.T) {
	srv := llmServer(t, http.StatusOK)
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_Unauthorized(t *testing.T) {
	srv := llmServer(t, http.StatusUnauthorized)
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "bad", BaseURL: srv.URL, Model: "m"})
	if result.Passed {
		t.Fatal("expected failure for rejected key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Transcription.Enabled = false
	cfg.LLM.Enabled = false

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected no failures, got %#v", failed)
	}
}

func TestRunAll_IncludesLLMAndCacheWhenEnabled(t *testing.T) {
	srv := llmServer(t, http.StatusOK)

	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.CacheDir = filepath.Join(t.TempDir(), "missing")
	cfg.Transcription.Enabled = true
	cfg.Transcription.CacheEnabled = true
	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = "test"
	cfg.LLM.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	names := map[string]Result{}
	for _, r := range results {
		names[r.Name] = r
	}
	if r, ok := names["Context LLM"]; !ok || !r.Passed {
		t.Fatalf("expected passing LLM check, got %#v", r)
	}
	if r, ok := names["Transcript cache"]; !ok || r.Passed {
		t.Fatalf("expected failing cache check for missing dir, got %#v", r)
	}
	if failed := Failed(results); len(failed) != 1 {
		t.Fatalf("expected one failure, got %#v", failed)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"ffmpeg", "ffprobe", "uvx"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write stub: %v", err)
		}
	}
	t.Setenv("PATH", binDir)

	cfg := config.Default()
	cfg.Transcription.Enabled = true
	cfg.Pose.Enabled = true

	statuses := CheckSystemDeps(&cfg)
	byName := map[string]bool{}
	for _, s := range statuses {
		byName[s.Name] = s.Available
	}
	for _, name := range []string{"FFmpeg", "FFprobe", "uvx", "Pose worker"} {
		if !byName[name] {
			t.Errorf("expected %s available", name)
		}
	}
	if byName["yt-dlp"] {
		t.Error("expected yt-dlp missing")
	}

	cfg.Pose.Enabled = false
	cfg.Transcription.Enabled = false
	if got := len(CheckSystemDeps(&cfg)); got != 3 {
		t.Fatalf("expected 3 requirements with optional features disabled, got %d", got)
	}
}
