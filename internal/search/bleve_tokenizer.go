package search

import (
	"regexp"
	"strings"
	"unicode"
)

// codeTokenPattern matches alphanumeric-and-underscore runs, the first pass
// of code-aware tokenization before camelCase/snake_case splitting.
var codeTokenPattern = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// tokenizeCode splits text with identifier-aware rules: camelCase,
// PascalCase and snake_case boundaries are split into separate tokens.
// This is used only by the Bleve backend's custom analyzer; the default
// backend uses the plainer Tokenize in tokenizer.go.
func tokenizeCode(text string) []string {
	var tokens []string
	for _, word := range codeTokenPattern.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) >= MinTokenLength {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase splits camelCase/PascalCase identifiers, keeping runs of
// uppercase letters (acronyms) together: "parseHTTPRequest" -> [parse HTTP Request].
func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
