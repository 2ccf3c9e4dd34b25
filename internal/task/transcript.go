package task

import "strings"

// ScrubGarbageWords drops words longer than maxWordLength from a
// transcript. Speech-to-text models occasionally emit runaway
// concatenations on noisy audio; anything past a sane word length is
// noise, not language. Whitespace is normalized to single spaces.
func ScrubGarbageWords(transcript string, maxWordLength int) string {
	if maxWordLength <= 0 {
		return transcript
	}

	words := strings.Fields(transcript)
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) <= maxWordLength {
			kept = append(kept, w)
		}
	}

	return strings.Join(kept, " ")
}
