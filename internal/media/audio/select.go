package audio

import (
	"strconv"
	"strings"

	"cspanlens/internal/language"
	"cspanlens/internal/media/ffprobe"
)

// Selection is the chosen speech track.
type Selection struct {
	Stream ffprobe.Stream
	// Track is the position among audio streams, -1 when there is no audio.
	Track int
	// Candidates is the number of audio streams considered.
	Candidates int
}

// Found reports whether any audio stream was selected.
func (s Selection) Found() bool {
	return s.Track >= 0
}

// Label returns a short human-readable description of the selected stream.
func (s Selection) Label() string {
	if !s.Found() {
		return ""
	}
	parts := make([]string, 0, 4)
	if lang := languageTag(s.Stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	if s.Stream.CodecName != "" {
		parts = append(parts, s.Stream.CodecName)
	}
	if ch := channelCount(s.Stream); ch > 0 {
		parts = append(parts, strconv.Itoa(ch)+"ch")
	}
	if title := strings.TrimSpace(s.Stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}

// Select returns the audio stream best suited for transcription. preferred
// is a language code in any form language.ToISO2 accepts; empty or "auto"
// leaves language out of the ranking.
func Select(streams []ffprobe.Stream, preferred string) Selection {
	want := language.ToISO2(preferred)
	best := Selection{Track: -1}
	bestScore := 0
	track := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		score := scoreStream(stream, want)
		if best.Track < 0 || score > bestScore {
			best = Selection{Stream: stream, Track: track}
			bestScore = score
		}
		track++
	}
	best.Candidates = track
	return best
}

// scoreStream ranks a stream; ties keep the earlier track.
func scoreStream(stream ffprobe.Stream, want string) int {
	score := 0
	if want != "" && language.ToISO2(languageTag(stream.Tags)) == want {
		score += 1000
	}
	if stream.Disposition["default"] == 1 {
		score += 100
	}
	if stream.Disposition["visual_impaired"] == 1 || stream.Disposition["comment"] == 1 {
		score -= 200
	}
	switch ch := channelCount(stream); {
	case ch == 1 || ch == 2:
		score += 50
	case ch > 2:
		score += 30
	}
	return score
}

func languageTag(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "LANG"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "5.1"):
		return 6
	}
	total := 0
	for _, part := range strings.Split(layout, ".") {
		part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}
