// internal/service/analysis/phrases.go

package analysis

import (
	"strings"
)

// ngramStopList holds grammatical fillers that dominate caption bigrams and
// trigrams. They are structural noise and never aggregate, unlike the
// configured stop-phrase list, which aggregates and is suppressed at scoring.
var ngramStopList = map[string]struct{}{
	"in the": {}, "on the": {}, "at the": {}, "to the": {}, "for the": {},
	"of the": {}, "and the": {}, "is the": {}, "it is": {}, "this is": {},
	"that is": {}, "i am": {}, "you are": {}, "we are": {}, "they are": {},
	"i have": {}, "you have": {}, "we have": {}, "check out": {}, "link in": {},
	"follow me": {}, "like and": {}, "comment below": {}, "let me": {},
	"want to": {}, "going to": {}, "have to": {}, "need to": {},
}

// ExtractPostPhrases pulls candidate two- and three-word phrases out of post
// text (captions, descriptions). Viral terms often first appear there rather
// than in comments. URLs, hashtags, and mentions are stripped before
// tokenizing: hashtags are tracked as their own unit kind and links and
// mentions carry no meme signal. Each phrase is reported once per post.
func ExtractPostPhrases(text string) []string {
	words := captionWords(text)

	seen := make(map[string]struct{})
	var phrases []string
	add := func(phrase string, minLen int) {
		if len(phrase) <= minLen {
			return
		}
		if _, stop := ngramStopList[phrase]; stop {
			return
		}
		if _, dup := seen[phrase]; dup {
			return
		}
		seen[phrase] = struct{}{}
		phrases = append(phrases, phrase)
	}

	for i := 0; i+1 < len(words); i++ {
		add(words[i]+" "+words[i+1], 4)
	}
	for i := 0; i+2 < len(words); i++ {
		add(words[i]+" "+words[i+1]+" "+words[i+2], 6)
	}

	return phrases
}

// captionWords lowercases the text, discards link, hashtag, and mention
// tokens, and runs the remainder through the same normalization as comment
// phrases so caption and comment units share one key space.
func captionWords(text string) []string {
	var b strings.Builder
	b.Grow(len(text))

	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if strings.HasPrefix(tok, "http") || strings.HasPrefix(tok, "www.") ||
			strings.HasPrefix(tok, "#") || strings.HasPrefix(tok, "@") {
			continue
		}
		b.WriteString(tok)
		b.WriteByte(' ')
	}

	normalized, _ := NormalizeText(b.String())
	return strings.Fields(normalized)
}
