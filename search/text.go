package search

import (
	"strings"
	"unicode/utf8"
)

// DefaultStopWords are dropped from queries before tag matching.
var DefaultStopWords = []string{
	"a", "an", "the", "in", "on", "at", "with", "by", "for", "of", "and", "is", "are",
}

// minWordLength is the shortest token considered significant.
const minWordLength = 3

// StopWordSet builds the lookup set used by SignificantWords.
func StopWordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

// SignificantWords splits query on whitespace, lowercases, trims punctuation,
// and removes stop words and tokens shorter than three characters (runes, not bytes).
// Order is preserved and repeated words are kept once.
func SignificantWords(query string, stopWords map[string]bool) []string {
	words := strings.Fields(query)
	filtered := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		if utf8.RuneCountInString(cleaned) < minWordLength || stopWords[cleaned] || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		filtered = append(filtered, cleaned)
	}

	return filtered
}
