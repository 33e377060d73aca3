package translator

import "strings"

// TranslateMorse converts Morse code to text. Words are separated by a
// forward slash and letters by spaces; unknown letters are dropped.
func (t *Translator) TranslateMorse(morse string) string {
	var result strings.Builder

	for i, word := range strings.Split(morse, "/") {
		if i > 0 {
			result.WriteString(" ")
		}

		for letter := range strings.FieldsSeq(word) {
			if text, ok := t.morseToText[letter]; ok {
				result.WriteString(text)
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// IsMorseFormat checks if text consists only of morse symbols.
func IsMorseFormat(text string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', ' ':
			return -1
		default:
			return r
		}
	}, text)

	return cleaned == "" && strings.ContainsAny(text, ".-")
}
