package analysis

import (
	"strings"
	"unicode"
)

// NormalizeText canonicalizes comment text into a phrase unit key. The
// pipeline is deterministic and order-sensitive: lowercase, strip
// punctuation, collapse internal whitespace, trim. Emoji are stripped from
// the text key but reported separately so emoji-heavy comments still carry
// a signal instead of being discarded.
func NormalizeText(text string) (normalized string, emojiCount int) {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))

	for _, r := range lowered {
		switch {
		case isEmoji(r):
			emojiCount++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " "), emojiCount
}

// NormalizeHashtag canonicalizes a hashtag into its unit key: leading '#'
// stripped, lowercased, trimmed. Returns "" for tags with no usable content.
func NormalizeHashtag(tag string) string {
	t := strings.TrimSpace(strings.ToLower(tag))
	t = strings.TrimPrefix(t, "#")
	return strings.TrimSpace(t)
}

// isEmoji reports whether a rune belongs to the emoji blocks, including the
// joiners and modifiers that compose multi-codepoint emoji sequences.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols and pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport and map
		return true
	case r >= 0x1F900 && r <= 0x1FAFF: // supplemental pictographs
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0xFE0F || r == 0x200D: // variation selector, zero-width joiner
		return true
	}
	return false
}
