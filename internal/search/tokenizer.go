package search

import (
	"regexp"
	"strings"
)

// tokenPattern matches maximal runs of ASCII letters and digits.
var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// MinTokenLength is the shortest token retained by Tokenize.
const MinTokenLength = 2

// DefaultStopWords is the fixed stopword list used by the default BM25 backend.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else",
	"is", "are", "was", "were", "be", "been", "being",
	"to", "of", "in", "on", "at", "by", "for", "with", "as",
	"from", "into", "about", "this", "that", "these", "those",
	"it", "its", "not", "no", "so", "such", "can", "will",
}

// BuildStopWordSet converts a stopword slice into a lookup set.
func BuildStopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// Tokenize lowercases text, splits on runs of non-alphanumeric characters,
// drops stopwords, and discards tokens shorter than MinTokenLength.
func Tokenize(text string, stopWords map[string]struct{}) []string {
	raw := tokenPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		lower := strings.ToLower(t)
		if len(lower) < MinTokenLength {
			continue
		}
		if _, stop := stopWords[lower]; stop {
			continue
		}
		tokens = append(tokens, lower)
	}
	return tokens
}
