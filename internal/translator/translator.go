// Package translator decodes the encodings spammers use to slip terms
// past text filters.
package translator

import "strings"

// Translator decodes morse and binary segments embedded in chat messages.
type Translator struct {
	morseToText map[string]string
}

// New creates a Translator with the International Morse Code table.
func New() *Translator {
	return &Translator{
		morseToText: map[string]string{
			".-": "A", "-...": "B", "-.-.": "C", "-..": "D", ".": "E",
			"..-.": "F", "--.": "G", "....": "H", "..": "I", ".---": "J",
			"-.-": "K", ".-..": "L", "--": "M", "-.": "N", "---": "O",
			".--.": "P", "--.-": "Q", ".-.": "R", "...": "S", "-": "T",
			"..-": "U", "...-": "V", ".--": "W", "-..-": "X", "-.--": "Y",
			"--..": "Z", ".----": "1", "..---": "2", "...--": "3", "....-": "4",
			".....": "5", "-....": "6", "--...": "7", "---..": "8", "----.": "9",
			"-----": "0", "..--..": "?", "-.-.--": "!", ".-.-.-": ".",
			"--..--": ",", "---...": ":", ".----.": "'", ".-..-.": "\"",
		},
	}
}

// Decode replaces every morse or binary segment of the input with its plain
// text. Lines and plain segments are kept as they are, so the result of a
// message without encoded content equals the trimmed input.
func (t *Translator) Decode(input string) string {
	if shouldSkipDecoding(input) {
		return input
	}

	lines := strings.Split(strings.TrimSpace(input), "\n")
	var result strings.Builder

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}

		for j, segment := range splitIntoSegments(line) {
			if j > 0 {
				result.WriteString(" ")
			}

			result.WriteString(t.decodeSegment(segment))
		}
	}

	return result.String()
}

// HasEncodedContent reports whether any segment of the input is morse or binary.
func HasEncodedContent(input string) bool {
	if shouldSkipDecoding(input) {
		return false
	}

	for word := range strings.FieldsSeq(input) {
		if IsMorseFormat(word) || IsBinaryFormat(word) {
			return true
		}
	}

	return false
}

func (t *Translator) decodeSegment(segment string) string {
	if IsMorseFormat(segment) {
		return t.TranslateMorse(segment)
	}

	if IsBinaryFormat(segment) {
		if decoded, err := t.TranslateBinary(segment); err == nil {
			return decoded
		}
	}

	return segment
}

// splitIntoSegments groups consecutive words of the same format.
func splitIntoSegments(line string) []string {
	var segments []string
	var current strings.Builder
	words := strings.Fields(line)

	for i, word := range words {
		if i > 0 && current.Len() > 0 {
			prev := words[i-1]
			if isMorseWord(prev) != isMorseWord(word) || IsBinaryFormat(prev) != IsBinaryFormat(word) {
				segments = append(segments, current.String())
				current.Reset()
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		segments = append(segments, current.String())
	}

	return segments
}

// isMorseWord also accepts the bare word separator.
func isMorseWord(word string) bool {
	return word == "/" || IsMorseFormat(word)
}

// shouldSkipDecoding checks if the content is too short to hold an encoded term.
func shouldSkipDecoding(text string) bool {
	if len(text) <= 4 {
		return true
	}

	// Repeated characters such as "-----" or "....." are separators, not code
	first := text[0]
	for i := 1; i < len(text); i++ {
		if text[i] != first {
			return false
		}
	}

	return true
}
