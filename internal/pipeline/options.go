package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"cspanlens/internal/services"
)

// Defaults applied by the CLI.
const (
	DefaultOutput              = "cspan_analyzed.mp4"
	DefaultFrameSkip           = 2
	DefaultSpeechUpdateSeconds = 3.0
	DefaultProgressBucket      = 5.0
)

// Options selects the input, output and cadence of a run. VideoPath wins
// over URL when both are set; the Driver itself only reads local files, so
// a URL must be downloaded into VideoPath before Run.
type Options struct {
	VideoPath           string  `validate:"required_without=URL"`
	URL                 string  `validate:"omitempty,url"`
	OutputPath          string  `validate:"required"`
	FrameSkip           int     `validate:"min=1"`
	SpeechUpdateSeconds float64 `validate:"gt=0"`
	// ProgressBucket is the percent step between progress log lines.
	ProgressBucket float64 `validate:"gte=0,lte=100"`
	// KeepAudio muxes the source audio into the output.
	KeepAudio bool
}

var validate = validator.New()

// Validate checks the options and returns a validation error naming every
// offending field.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return services.Wrap(services.ErrValidation, "options", "validate", "", err)
		}
		return services.Wrap(services.ErrValidation, "options", "validate", strings.Join(formatValidationErrors(verrs), "; "), nil)
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required_without":
			out = append(out, "either a local video path or a URL is required")
		case "required":
			out = append(out, fmt.Sprintf("%s is required", fe.Field()))
		case "url":
			out = append(out, fmt.Sprintf("%s %q is not a valid URL", fe.Field(), fe.Value()))
		default:
			msg := fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
			if fe.Param() != "" {
				msg += " (" + fe.Param() + ")"
			}
			out = append(out, msg)
		}
	}
	return out
}

// NeedsDownload reports whether the input has to be fetched first.
func (o Options) NeedsDownload() bool {
	return strings.TrimSpace(o.VideoPath) == "" && strings.TrimSpace(o.URL) != ""
}
