package transcript

import (
	"context"

	"cspanlens/internal/services/whisperx"
)

// WhisperX transcribes recordings with a whisperx.Service.
type WhisperX struct {
	service  *whisperx.Service
	language string
}

// NewWhisperX returns a Transcriber backed by service. An empty language
// lets WhisperX detect it.
func NewWhisperX(service *whisperx.Service, language string) *WhisperX {
	return &WhisperX{service: service, language: language}
}

// Transcribe runs WhisperX over the audio track of videoPath.
func (w *WhisperX) Transcribe(ctx context.Context, videoPath string) ([]Segment, error) {
	raw, err := w.service.Transcribe(ctx, videoPath, w.language)
	if err != nil {
		return nil, err
	}
	return fromWhisperX(raw), nil
}

func fromWhisperX(raw []whisperx.Segment) []Segment {
	segments := make([]Segment, 0, len(raw))
	for _, seg := range raw {
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return segments
}
