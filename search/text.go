package search

import "strings"

// Function words ignored when testing whether a chunk contains the query's
// wording verbatim.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "in": {}, "that": {},
	"have": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {},
	"by": {}, "from": {},
}

const punctuation = ".,!?;:'\"-()[]{}"

// contentWords lowercases text, strips surrounding punctuation, and drops
// stop words.
func contentWords(text string) []string {
	var words []string
	for _, field := range strings.Fields(text) {
		word := strings.ToLower(strings.Trim(field, punctuation))
		if word == "" {
			continue
		}
		if _, skip := stopWords[word]; skip {
			continue
		}
		words = append(words, word)
	}
	return words
}

// containsAllQueryWords reports whether every content word of the query
// appears somewhere in the chunk text.
func containsAllQueryWords(chunk, query string) bool {
	queryWords := contentWords(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, word := range contentWords(chunk) {
		present[word] = struct{}{}
	}

	for _, word := range queryWords {
		if _, ok := present[word]; !ok {
			return false
		}
	}
	return true
}
