package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain splits text content into pages on form feed characters.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) []Page {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\uFFFD"))
	}
	var pages []Page
	for i, text := range strings.Split(string(content), "\f") {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages
}
