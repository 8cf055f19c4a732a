package pose

import (
	"context"
	"image"
	"log/slog"

	"cspanlens/internal/logging"
)

// Estimation is what an Estimator reports for one frame. Landmarks is empty
// when no person was detected.
type Estimation struct {
	Landmarks []Landmark
	Mask      *Mask
}

// Estimator detects a body pose in an RGB frame.
type Estimator interface {
	Estimate(ctx context.Context, frame RGBFrame) (Estimation, error)
}

// Result is the per-frame output of the Extractor.
type Result struct {
	Landmarks []Landmark
	Mask      *Mask
	// Degraded is set when the estimator failed and the result is empty.
	Degraded bool
}

// Detected reports whether a pose was found.
func (r Result) Detected() bool {
	return len(r.Landmarks) > 0
}

// Extractor wraps an Estimator with frame conversion and failure handling.
type Extractor struct {
	estimator Estimator
	logger    *slog.Logger
	failures  int
}

// NewExtractor constructs an Extractor. A nil estimator yields empty results.
func NewExtractor(estimator Estimator, logger *slog.Logger) *Extractor {
	return &Extractor{
		estimator: estimator,
		logger:    logging.NewComponentLogger(logger, "pose"),
	}
}

// Extract estimates the pose in frame. Estimator errors are logged and
// reported through Result.Degraded; they never stop the caller.
func (e *Extractor) Extract(ctx context.Context, frame *image.RGBA) Result {
	if e == nil || e.estimator == nil || frame == nil {
		return Result{}
	}
	estimation, err := e.estimator.Estimate(ctx, ToRGB(frame))
	if err != nil {
		e.failures++
		// First failure warns; repeats stay at debug to keep long runs readable.
		if e.failures == 1 {
			logging.WarnWithContext(e.logger, "pose estimation failed", "pose_estimate_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame written without skeleton"),
				logging.String(logging.FieldErrorHint, "check the pose worker command in [pose] config"),
			)
		} else {
			e.logger.Debug("pose estimation failed", logging.Error(err), logging.Int("failures", e.failures))
		}
		return Result{Degraded: true}
	}
	b := frame.Bounds()
	mask := estimation.Mask
	if mask != nil && !mask.Valid(b.Dx(), b.Dy()) {
		e.logger.Debug("discarding segmentation mask with mismatched size",
			logging.Int("mask_width", mask.Width), logging.Int("mask_height", mask.Height))
		mask = nil
	}
	return Result{Landmarks: estimation.Landmarks, Mask: mask}
}

// Reset clears the failure count.
func (e *Extractor) Reset() {
	if e != nil {
		e.failures = 0
	}
}

// Failures returns how many estimates failed so far.
func (e *Extractor) Failures() int {
	if e == nil {
		return 0
	}
	return e.failures
}
