package textutil

import (
	"strings"
	"unicode/utf8"
)

// WrapWords greedily packs whitespace-separated words into lines of at most
// width characters. A word longer than width gets a line of its own; words
// are never split. When the very first word is too long, an empty line
// precedes it.
func WrapWords(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := ""
	for _, word := range words {
		// The candidate always counts a joining space, even on an empty line.
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width {
			if current == "" {
				current = word
			} else {
				current += " " + word
			}
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// Truncate returns the first n characters of s followed by suffix. Shorter
// strings keep all their characters and still get the suffix.
func Truncate(s string, n int, suffix string) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s + suffix
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + suffix
		}
		count++
	}
	return s + suffix
}
