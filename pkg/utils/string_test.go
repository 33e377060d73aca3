package utils_test

import (
	"testing"

	"github.com/robalyx/chatguard/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestCompressWhitespacePreserveNewlines(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single line",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name: "multiple lines",
			input: `hello    world
				this  is  a  test
				preserve  newlines`,
			want: "hello world\nthis is a test\npreserve newlines",
		},
		{
			name: "empty lines",
			input: `
				hello    world

				this  is  a  test
				`,
			want: "hello world\n\nthis is a test",
		},
		{
			name:  "mixed line endings",
			input: "hello    world\r\nthis  is  a  test\rpreserve  newlines",
			want:  "hello world\nthis is a test\npreserve newlines",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \n\t   \n   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := utils.CompressWhitespacePreserveNewlines(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}


func TestTruncateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "shorter than limit",
			input:  "hello",
			maxLen: 10,
			want:   "hello",
		},
		{
			name:   "exactly at limit",
			input:  "hello",
			maxLen: 5,
			want:   "hello",
		},
		{
			name:   "truncated with ellipsis",
			input:  "hello world",
			maxLen: 8,
			want:   "hello...",
		},
		{
			name:   "multibyte runes",
			input:  "héllo wörld",
			maxLen: 7,
			want:   "héll...",
		},
		{
			name:   "tiny limit",
			input:  "hello",
			maxLen: 2,
			want:   "he",
		},
		{
			name:   "zero limit",
			input:  "hello",
			maxLen: 0,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.TruncateString(tt.input, tt.maxLen))
		})
	}
}
