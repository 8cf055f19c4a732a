package preflight

import (
	"context"

	"cspanlens/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// MinFreeBytes is the free space the output directory must have before a run.
const MinFreeBytes uint64 = 1 << 30

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Transcription.Enabled && cfg.Transcription.CacheEnabled {
		results = append(results, CheckDirectoryAccess("Transcript cache", cfg.Paths.CacheDir))
	}

	if cfg.LLM.Enabled {
		results = append(results, CheckLLM(ctx, "Context LLM", cfg.GetLLM()))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
