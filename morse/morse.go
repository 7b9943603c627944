// Package morse converts text to International Morse and back, and renders
// encoded strings as signed millisecond timings for playback.
//
// Encoded form: dots and dashes, letters separated by one space, words by
// three spaces.
package morse

import (
	"strings"
)

// Unit is the dot length at the broadcast speed.
const Unit = 100

const (
	Dot       = Unit
	Dash      = 3 * Unit
	SymbolGap = Unit
	LetterGap = 3 * Unit
	WordGap   = 7 * Unit
)

const (
	letterSep = " "
	wordSep   = "   "
)

var alphabet = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '!': "-.-.--", '/': "-..-.",
}

var reverse = func() map[string]rune {
	m := make(map[string]rune, len(alphabet))
	for r, code := range alphabet {
		m[code] = r
	}
	return m
}()

// Encode is case-insensitive. Characters outside the alphabet are dropped,
// and a word left with no encodable characters disappears entirely.
func Encode(text string) string {
	var words []string
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		var letters []string
		for _, r := range word {
			if code, ok := alphabet[r]; ok {
				letters = append(letters, code)
			}
		}
		if len(letters) > 0 {
			words = append(words, strings.Join(letters, letterSep))
		}
	}
	return strings.Join(words, wordSep)
}

// Decode maps unknown codes to nothing rather than failing.
func Decode(encoded string) string {
	var words []string
	for _, word := range strings.Split(encoded, wordSep) {
		var b strings.Builder
		for _, code := range strings.Fields(word) {
			if r, ok := reverse[code]; ok {
				b.WriteRune(r)
			}
		}
		words = append(words, b.String())
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

// Timings renders an encoded string as tone durations (positive) and
// silences (negative), in milliseconds. No trailing silence is emitted.
func Timings(encoded string) []int {
	timings := []int{}
	for w, word := range splitWords(encoded) {
		if w > 0 {
			timings = append(timings, -WordGap)
		}
		for l, letter := range word {
			if l > 0 {
				timings = append(timings, -LetterGap)
			}
			for s, sym := range letter {
				if s > 0 {
					timings = append(timings, -SymbolGap)
				}
				if sym == '-' {
					timings = append(timings, Dash)
				} else {
					timings = append(timings, Dot)
				}
			}
		}
	}
	return timings
}

// TotalDuration is the length in milliseconds of one full pass of text.
func TotalDuration(text string) int {
	total := 0
	for _, t := range Timings(Encode(text)) {
		if t < 0 {
			t = -t
		}
		total += t
	}
	return total
}

// splitWords returns words of letters, each letter holding only dots and
// dashes. Empty words and stray symbols are skipped.
func splitWords(encoded string) [][]string {
	var out [][]string
	for _, word := range strings.Split(encoded, wordSep) {
		var letters []string
		for _, letter := range strings.Fields(word) {
			clean := strings.Map(func(r rune) rune {
				if r == '.' || r == '-' {
					return r
				}
				return -1
			}, letter)
			if clean != "" {
				letters = append(letters, clean)
			}
		}
		if len(letters) > 0 {
			out = append(out, letters)
		}
	}
	return out
}
