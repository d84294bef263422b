// Package filter prepares chat text for speech synthesis and evaluates the
// banned-term denylist. Both operations are pure and total.
package filter

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`https?://\S+|www\.\S+`)
	})
	// Twitch emote codes are written as shouty tokens (KEKW, LUL, POGGERS).
	emoteTokenPattern = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`\b[A-Z][A-Z0-9]{2,}\b`)
	})
	// Alternating consonant+vowel laughter: jaja, jejeje, haha, hohoho...
	laughterPattern = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`(?i)\b(?:[jh][aeiou]){2,}[jh]?\b`)
	})
	xdPattern = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`(?i)\bx+d+\b`)
	})
	emoticonPattern = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`[:;=8][-^']?[()\[\]DPpOo3*/\\|cC]|<3|[()\[\]DOo][-^']?[:;=8]`)
	})
	whitespacePattern = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`\s+`)
	})
)

// emojiRanges are the stripped blocks: symbols/pictographs, emoticons,
// transport, supplemental, flags, misc symbols and dingbats, plus the
// variation selector and joiner that ride along with them.
var emojiRanges = []struct{ lo, hi rune }{
	{0x1F300, 0x1FAFF},
	{0x1F1E6, 0x1F1FF},
	{0x2600, 0x27BF},
	{0x2190, 0x21FF},
	{0x2B00, 0x2BFF},
	{0xFE00, 0xFE0F},
	{0x200D, 0x200D},
}

// Filter holds the compiled denylist and the truncation limit.
type Filter struct {
	maxLen int
	terms  []bannedTerm
}

type bannedTerm struct {
	folded   *regexp.Regexp
	original *regexp.Regexp
}

// New compiles the banned-term list. maxLen bounds the cleaned text; longer
// results are cut and marked with an ellipsis.
func New(bannedTerms []string, maxLen int) *Filter {
	f := &Filter{maxLen: maxLen}
	for _, term := range bannedTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		folded := Fold(term)
		f.terms = append(f.terms, bannedTerm{
			folded:   wholeWord(folded),
			original: wholeWord(strings.ToLower(term)),
		})
	}
	return f
}

func wholeWord(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

// Fold strips diacritics (NFD decomposition, drop combining marks) and
// lower-cases, so "CANCIÓN" and "cancion" compare equal.
func Fold(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Clean normalizes raw chat text for the speech engine. The steps run in a
// fixed order; whitespace collapse is last so earlier removals cannot leave
// stray gaps, and truncation operates on the final text.
func (f *Filter) Clean(text string) string {
	text = urlPattern().ReplaceAllString(text, " ")
	text = emoteTokenPattern().ReplaceAllString(text, " ")
	text = laughterPattern().ReplaceAllString(text, " ")
	text = xdPattern().ReplaceAllString(text, " ")
	text = emoticonPattern().ReplaceAllString(text, " ")
	text = collapseRuns(text)
	text = stripEmoji(text)
	text = whitespacePattern().ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if f.maxLen > 0 {
		runes := []rune(text)
		if len(runes) > f.maxLen {
			text = strings.TrimSpace(string(runes[:f.maxLen])) + "…"
		}
	}
	return text
}

// collapseRuns reduces runs of four or more identical runes to two
// ("holaaaaa" -> "holaa"); shorter runs pass through unchanged. RE2 has no
// backreferences, so this is a scan.
func collapseRuns(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		n := j - i
		if n >= 4 {
			n = 2
		}
		for k := 0; k < n; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}

func stripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmoji(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}

// IsBanned reports whether the text contains any denylisted term as a whole
// word. Matching runs against both the accent-folded text and the original
// text, so diacritic variants and case-sensitive slang are both caught.
func (f *Filter) IsBanned(text string) bool {
	if len(f.terms) == 0 {
		return false
	}
	folded := Fold(text)
	lower := strings.ToLower(text)
	for _, t := range f.terms {
		if t.folded.MatchString(folded) || t.original.MatchString(lower) {
			return true
		}
	}
	return false
}
