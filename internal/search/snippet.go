package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"jaytaylor.com/html2text"
)

// fallbackLength caps the plain-text prefix returned when no query word
// occurs in the page.
const fallbackLength = 300

// Snippet builds a bounded excerpt of the page's text around the earliest
// query match, with every query word wrapped in <b> markers. radius is the
// context window size in runes.
func Snippet(query, htmlContent string, radius int) string {
	text, err := html2text.FromString(htmlContent, html2text.Options{TextOnly: true})
	if err != nil {
		text = htmlContent
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	words := strings.Fields(query)
	runes := []rune(text)

	idx := matchIndex(text, query, words)
	if idx < 0 {
		if len(runes) > fallbackLength {
			return string(runes[:fallbackLength])
		}
		return text
	}

	start := snippetStart(runes, idx, radius)
	end := snippetEnd(runes, idx, radius)

	return highlight(string(runes[start:end]), words)
}

// matchIndex returns the rune index of the earliest match: the literal
// phrase first, then the first case-insensitive occurrence of any query
// word. Returns -1 when nothing matches.
func matchIndex(text, query string, words []string) int {
	if byteIdx := strings.Index(text, query); byteIdx >= 0 {
		return utf8.RuneCountInString(text[:byteIdx])
	}

	best := -1
	for _, word := range words {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(word))
		if err != nil {
			continue
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		runeIdx := utf8.RuneCountInString(text[:loc[0]])
		if best < 0 || runeIdx < best {
			best = runeIdx
		}
	}
	return best
}

// snippetStart walks backward from the match to the nearest sentence
// boundary, going at most radius runes back.
func snippetStart(runes []rune, idx, radius int) int {
	limit := idx - radius
	if limit < 0 {
		limit = 0
	}

	for i := idx; i > limit; i-- {
		if unicode.IsUpper(runes[i]) || isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	return limit
}

// snippetEnd walks forward from radius past the match to the next word or
// sentence boundary.
func snippetEnd(runes []rune, idx, radius int) int {
	if idx+radius >= len(runes) {
		return len(runes)
	}

	for i := idx + radius; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) || isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	return len(runes)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// highlight wraps every case-insensitive occurrence of any query word in
// <b> markers and appends an ellipsis unless the window already ends a
// sentence.
func highlight(window string, words []string) string {
	if len(words) > 0 {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		re, err := regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
		if err == nil {
			window = re.ReplaceAllString(window, "<b>$1</b>")
		}
	}

	runes := []rune(window)
	if len(runes) == 0 || !isSentenceEnd(runes[len(runes)-1]) {
		window += "..."
	}
	return window
}
