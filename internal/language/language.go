package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps spelled-out names that language.Parse does not accept.
var words = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"russian":    "ru",
	"arabic":     "ar",
}

func parse(code string) (language.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "und" || code == "auto" {
		return language.Base{}, false
	}
	if mapped, ok := words[code]; ok {
		code = mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Base{}, false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return language.Base{}, false
	}
	return base, true
}

// ToISO2 converts a recognized language code or English name to ISO 639-1.
// Returns an empty string for unrecognized input.
func ToISO2(code string) string {
	base, ok := parse(code)
	if !ok {
		return ""
	}
	iso := base.String()
	if len(iso) != 2 {
		return ""
	}
	return iso
}

// DisplayName returns the English name of a language code, or "Unknown".
func DisplayName(code string) string {
	base, ok := parse(code)
	if !ok {
		return "Unknown"
	}
	name := display.English.Languages().Name(base)
	if name == "" {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	return name
}

// ExtractFromTags returns the language tag of a media stream, if any.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if value != "" {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}

// Resolve picks the transcription language: an explicit configured code wins,
// "auto" falls back to the stream tag, and unknown values yield "" so the
// transcriber detects the language itself.
func Resolve(configured string, tags map[string]string) string {
	if iso := ToISO2(configured); iso != "" {
		return iso
	}
	return ToISO2(ExtractFromTags(tags))
}
