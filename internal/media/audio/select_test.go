package audio

import (
	"testing"

	"cspanlens/internal/media/ffprobe"
)

func TestSelectPrefersConfiguredLanguage(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "video"},
		{
			Index:       1,
			CodecType:   "audio",
			CodecName:   "aac",
			Channels:    2,
			Tags:        map[string]string{"language": "spa", "title": "Interpreter"},
			Disposition: map[string]int{"default": 1},
		},
		{
			Index:     2,
			CodecType: "audio",
			CodecName: "aac",
			Channels:  2,
			Tags:      map[string]string{"language": "eng", "title": "Floor"},
		},
	}

	sel := Select(streams, "en")
	if sel.Track != 1 || sel.Stream.Index != 2 {
		t.Fatalf("expected english floor feed (track 1, stream 2), got track %d stream %d", sel.Track, sel.Stream.Index)
	}
	if sel.Candidates != 2 {
		t.Fatalf("candidates = %d", sel.Candidates)
	}
	if got := sel.Label(); got != "eng | aac | 2ch | Floor" {
		t.Fatalf("label = %q", got)
	}
}

func TestSelectWithoutPreferenceUsesDefaultFlag(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "audio", Channels: 2},
		{Index: 1, CodecType: "audio", Channels: 2, Disposition: map[string]int{"default": 1}},
	}
	for _, preferred := range []string{"", "auto"} {
		sel := Select(streams, preferred)
		if sel.Track != 1 {
			t.Fatalf("preferred %q: expected default-flagged track 1, got %d", preferred, sel.Track)
		}
	}
}

func TestSelectDemotesCommentaryTracks(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 1, CodecType: "audio", Channels: 2, Tags: map[string]string{"language": "eng"}, Disposition: map[string]int{"default": 1, "comment": 1}},
		{Index: 2, CodecType: "audio", ChannelLayout: "stereo", Tags: map[string]string{"language": "eng"}},
	}
	if sel := Select(streams, "english"); sel.Track != 1 {
		t.Fatalf("expected non-commentary track, got %d", sel.Track)
	}
}

func TestSelectTiesKeepFirstTrack(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 3, CodecType: "audio", ChannelLayout: "5.1(side)"},
		{Index: 4, CodecType: "audio", ChannelLayout: "5.1(side)"},
	}
	sel := Select(streams, "")
	if sel.Track != 0 || sel.Stream.Index != 3 {
		t.Fatalf("expected first track, got %#v", sel)
	}
	if got := channelCount(sel.Stream); got != 6 {
		t.Fatalf("channel count = %d", got)
	}
}

func TestSelectNoAudio(t *testing.T) {
	sel := Select([]ffprobe.Stream{{Index: 0, CodecType: "video"}}, "en")
	if sel.Found() {
		t.Fatalf("expected no selection, got %#v", sel)
	}
	if sel.Label() != "" {
		t.Fatalf("expected empty label, got %q", sel.Label())
	}
}
