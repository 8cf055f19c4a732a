package transcript

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cspanlens/internal/logging"
)

// FailureText is shown for the whole recording when transcription fails.
const FailureText = "Speech transcription failed. Processing video without speech analysis."

// failureEnd is the end time of the sentinel segment, far past any recording.
const failureEnd = 100000

// Transcriber converts the audio of a local video into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) ([]Segment, error)
}

// TranscriberFunc adapts a function to the Transcriber interface.
type TranscriberFunc func(ctx context.Context, videoPath string) ([]Segment, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, videoPath string) ([]Segment, error) {
	return f(ctx, videoPath)
}

// BuildResult reports the index produced by Build. Err holds the
// transcriber failure when Degraded is set.
type BuildResult struct {
	Index    *Index
	Degraded bool
	Err      error
	Elapsed  time.Duration
}

// FailureSegment returns the sentinel segment used when transcription fails.
func FailureSegment() Segment {
	return Segment{Start: 0, End: failureEnd, Text: FailureText}
}

// Build transcribes videoPath and indexes the result. It never fails: a nil
// transcriber or a transcriber error yields a degraded index holding only the
// sentinel segment.
func Build(ctx context.Context, transcriber Transcriber, videoPath string, logger *slog.Logger) BuildResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "transcript")

	start := time.Now()
	var (
		segments []Segment
		err      error
	)
	if transcriber == nil {
		err = errors.New("speech transcription disabled")
	} else {
		segments, err = transcriber.Transcribe(ctx, videoPath)
	}
	elapsed := time.Since(start)

	if err != nil {
		logging.WarnWithContext(logger, "speech transcription failed",
			"transcription_failed",
			logging.String("video", videoPath),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the whisperx installation and the recording's audio track"),
			logging.String(logging.FieldImpact, "overlay shows a transcription failure notice and no context analysis runs"),
		)
		return BuildResult{
			Index:    NewIndex([]Segment{FailureSegment()}),
			Degraded: true,
			Err:      err,
			Elapsed:  elapsed,
		}
	}

	logger.Info("speech transcription complete",
		logging.String("video", videoPath),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", elapsed),
	)
	return BuildResult{Index: NewIndex(segments), Elapsed: elapsed}
}
