package translator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidBinary is returned when the binary input is malformed or incomplete.
var ErrInvalidBinary = errors.New("invalid binary string")

// TranslateBinary converts 8-bit binary sequences to text.
// Spaces between sequences are ignored.
func (t *Translator) TranslateBinary(binary string) (string, error) {
	binary = strings.ReplaceAll(binary, " ", "")

	var result strings.Builder
	for i := 0; i < len(binary); i += 8 {
		if i+8 > len(binary) {
			return "", fmt.Errorf("%w: incomplete byte", ErrInvalidBinary)
		}

		num, err := strconv.ParseUint(binary[i:i+8], 2, 8)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidBinary, err)
		}

		result.WriteRune(rune(num))
	}

	return result.String(), nil
}

// IsBinaryFormat checks if text is made of whole 8-bit binary sequences.
func IsBinaryFormat(text string) bool {
	cleaned := strings.ReplaceAll(text, " ", "")
	if len(cleaned) == 0 || len(cleaned)%8 != 0 {
		return false
	}

	return strings.IndexFunc(cleaned, func(r rune) bool {
		return r != '0' && r != '1'
	}) == -1
}
