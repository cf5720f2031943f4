// Package lemma turns raw text into normalized index terms. Words are
// case-folded, reduced to their dictionary form with a snowball stemmer and
// filtered against a function-word list for the target language, so that
// prepositions, conjunctions, particles and interjections never reach the
// index.
package lemma

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// letterClasses maps supported languages to the letters kept during
// normalization. Everything else is treated as a word separator.
var letterClasses = map[string]string{
	"russian": "а-яё",
	"english": "a-z",
}

// Analyzer performs morphological normalization for one language. It is
// stateless after construction and safe for concurrent use; build it once
// at startup and share it between indexing and search.
type Analyzer struct {
	language  string
	wordRe    *regexp.Regexp
	stopWords map[string]struct{}
}

// New creates an analyzer for the given language. An unsupported language
// is a construction error; callers treat it as fatal at startup.
func New(language string) (*Analyzer, error) {
	letters, ok := letterClasses[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}

	return &Analyzer{
		language:  language,
		wordRe:    regexp.MustCompile("[" + letters + "]+"),
		stopWords: stopWordSets[language],
	}, nil
}

// Language returns the analyzer's target language.
func (a *Analyzer) Language() string {
	return a.language
}

// Analyze returns the term-frequency map of the text: every lemma mapped to
// the number of times its word forms occur. Used for one page at a time.
func (a *Analyzer) Analyze(text string) map[string]int {
	freq := make(map[string]int)
	for _, word := range a.words(text) {
		if lemma, ok := a.normalForm(word); ok {
			freq[lemma]++
		}
	}
	return freq
}

// Tokenize returns the deduplicated lemma set of the text in first-seen
// order. Used for queries, where only presence matters.
func (a *Analyzer) Tokenize(text string) []string {
	seen := make(map[string]struct{})
	var lemmas []string
	for _, word := range a.words(text) {
		lemma, ok := a.normalForm(word)
		if !ok {
			continue
		}
		if _, dup := seen[lemma]; dup {
			continue
		}
		seen[lemma] = struct{}{}
		lemmas = append(lemmas, lemma)
	}
	return lemmas
}

// words case-folds the text and splits it into candidate words, keeping
// only the target language's letters.
func (a *Analyzer) words(text string) []string {
	return a.wordRe.FindAllString(strings.ToLower(text), -1)
}

// normalForm reduces a word to its dictionary form. Function words
// contribute no lemma; single letters are treated the same way.
func (a *Analyzer) normalForm(word string) (string, bool) {
	if len([]rune(word)) < 2 {
		return "", false
	}
	if _, functional := a.stopWords[word]; functional {
		return "", false
	}

	stemmed, err := snowball.Stem(word, a.language, false)
	if err != nil || stemmed == "" {
		// Stemming never fails for a supported language; keep the raw
		// word rather than losing it if it somehow does.
		return word, true
	}

	// The stem of an inflected function word can differ from every form in
	// the stop list, so check the normal form as well.
	if _, functional := a.stopWords[stemmed]; functional {
		return "", false
	}

	return stemmed, true
}
