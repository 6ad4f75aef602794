package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantEmoji int
	}{
		{
			name:  "lowercases and strips punctuation",
			input: "It's SO over!!!",
			want:  "it s so over",
		},
		{
			name:  "collapses internal whitespace",
			input: "ohio   final\t boss",
			want:  "ohio final boss",
		},
		{
			name:  "trims leading and trailing space",
			input: "  caught in 4k  ",
			want:  "caught in 4k",
		},
		{
			name:      "strips emoji but counts them",
			input:     "ohio final boss \U0001F480\U0001F480",
			want:      "ohio final boss",
			wantEmoji: 2,
		},
		{
			name:      "emoji only collapses to empty",
			input:     "\U0001F602\U0001F602\U0001F602",
			want:      "",
			wantEmoji: 3,
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, emoji := NormalizeText(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantEmoji, emoji)
		})
	}
}

func TestNormalizeTextDeterministic(t *testing.T) {
	input := "Same   INPUT, every time!! \U0001F4AF"
	first, firstEmoji := NormalizeText(input)
	for i := 0; i < 10; i++ {
		got, emoji := NormalizeText(input)
		assert.Equal(t, first, got)
		assert.Equal(t, firstEmoji, emoji)
	}
}

func TestNormalizeHashtag(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips leading hash", "#Ohio", "ohio"},
		{"lowercases", "GYATT", "gyatt"},
		{"trims whitespace", "  #fyp  ", "fyp"},
		{"bare hash becomes empty", "#", ""},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHashtag(tt.input))
		})
	}
}
