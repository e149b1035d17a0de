package indexer

import (
	"regexp"
	"strings"
)

// referenceWords is how many leading words form a fallback reference.
const referenceWords = 8

var (
	articleRef = regexp.MustCompile(`(?i)article\s+(\d+)[ \t]*:?[ \t]*([^\n]*)`)
	codeRef    = regexp.MustCompile(`\b\d-\d-(?:\d|-){1,6}\b`)
)

// ResolveReference derives a short citation label for a clause chunk. In order of
// priority it returns "Article N" (with ": title" when the heading line carries one),
// the first hyphenated control code, or the first eight words followed by "..." when
// the chunk is longer. The result is never empty for a chunk with any words.
func ResolveReference(chunk string) string {
	if m := articleRef.FindStringSubmatch(chunk); m != nil {
		ref := "Article " + m[1]
		if title := NormalizeSpace(m[2]); title != "" {
			ref += ": " + title
		}
		return ref
	}
	if code := codeRef.FindString(chunk); code != "" {
		return code
	}
	words := strings.Fields(chunk)
	if len(words) > referenceWords {
		return strings.Join(words[:referenceWords], " ") + "..."
	}
	return strings.Join(words, " ")
}
